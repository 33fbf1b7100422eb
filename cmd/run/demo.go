package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sync"

	"github.com/wippyai/wasm-bridge/bridge"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/runtime"
	"github.com/wippyai/wasm-bridge/task"
)

// MathHost is the "math" namespace. Add, Mul and Sqrt are importable by
// wasm guests.
type MathHost struct{}

func (MathHost) Namespace() string { return "math" }

func (MathHost) GuestFunctions() []string { return []string{"add", "mul", "sqrt"} }

func (MathHost) Add(a, b float64) float64 { return a + b }

func (MathHost) Mul(a, b float64) float64 { return a * b }

func (MathHost) Sqrt(x float64) (float64, error) {
	if x < 0 {
		return 0, fmt.Errorf("sqrt of negative number %v", x)
	}
	return math.Sqrt(x), nil
}

// Results collects digest job results keyed by job id.
type Results struct {
	byJob map[string]string
	mu    sync.Mutex
}

func NewResults() *Results {
	return &Results{byJob: make(map[string]string)}
}

func (r *Results) put(id, v string) {
	r.mu.Lock()
	r.byJob[id] = v
	r.mu.Unlock()
}

// Get returns the result of job id.
func (r *Results) Get(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.byJob[id]
	return v, ok
}

// digestTask hashes data rounds times on a worker.
type digestTask struct {
	data   []byte
	rounds int
}

func (d digestTask) Perform() (string, error) {
	if d.rounds <= 0 {
		return "", fmt.Errorf("rounds must be positive, got %d", d.rounds)
	}
	sum := sha256.Sum256(d.data)
	for k := 1; k < d.rounds; k++ {
		sum = sha256.Sum256(sum[:])
	}
	return hex.EncodeToString(sum[:]), nil
}

func (digestTask) Complete(cx *task.Context, out string, err error) (engine.Handle, error) {
	if err != nil {
		return engine.Handle{}, err
	}
	return cx.String(out)
}

// jobsModule exports digest(text, rounds) which schedules a digest task
// and returns its job id, and result(id) which returns the digest once
// the job is done.
func jobsModule(results *Results) func(*bridge.ModuleContext) error {
	return func(mc *bridge.ModuleContext) error {
		err := mc.ExportFunction("digest", func(cx *bridge.CallContext) (engine.Handle, error) {
			text, err := cx.ArgumentString(0)
			if err != nil {
				return engine.Handle{}, err
			}
			rounds := 1
			if h, ok := cx.ArgumentOpt(1); ok {
				n, err := cx.NumberOf(h)
				if err != nil {
					return engine.Handle{}, err
				}
				rounds = int(n)
			}

			var job *task.Job
			cb, err := cx.Function("digest-done", func(cx *bridge.CallContext) (engine.Handle, error) {
				e, err := cx.Argument(0)
				if err != nil {
					return engine.Handle{}, err
				}
				if cx.VM.Kind(e) != engine.KindNull {
					results.put(job.ID, "error: "+cx.Describe(e))
					return cx.Undefined()
				}
				v, err := cx.Argument(1)
				if err != nil {
					return engine.Handle{}, err
				}
				s, err := cx.StringOf(v)
				if err != nil {
					return engine.Handle{}, err
				}
				results.put(job.ID, s)
				return cx.Undefined()
			})
			if err != nil {
				return engine.Handle{}, err
			}

			job, err = task.Schedule[string](cx, digestTask{data: []byte(text), rounds: rounds}, cb)
			if err != nil {
				return engine.Handle{}, err
			}
			return cx.String(job.ID)
		})
		if err != nil {
			return err
		}

		return mc.ExportFunction("result", func(cx *bridge.CallContext) (engine.Handle, error) {
			id, err := cx.ArgumentString(0)
			if err != nil {
				return engine.Handle{}, err
			}
			if v, ok := results.Get(id); ok {
				return cx.String(v)
			}
			return cx.Null()
		})
	}
}

// bytesModule exports xor(text, key), which copies text into a VM buffer
// and xors it in place through an exclusive loan.
func bytesModule(mc *bridge.ModuleContext) error {
	return mc.ExportFunction("xor", func(cx *bridge.CallContext) (engine.Handle, error) {
		text, err := cx.ArgumentString(0)
		if err != nil {
			return engine.Handle{}, err
		}
		key, err := cx.ArgumentNumber(1)
		if err != nil {
			return engine.Handle{}, err
		}
		if key < 0 || key > 255 || key != math.Trunc(key) {
			return engine.Handle{}, cx.ThrowRangeError("key must be a byte")
		}

		buf, err := cx.ArrayBuffer(uint32(len(text)))
		if err != nil {
			return engine.Handle{}, err
		}
		g := cx.Lock()
		defer g.Release()
		m, err := g.BorrowMut(buf)
		if err != nil {
			return engine.Handle{}, err
		}
		b := m.Bytes()
		copy(b, text)
		for k := range b {
			b[k] ^= byte(key)
		}
		return buf, nil
	})
}

// setup registers the demo hosts and modules.
func setup(rt *runtime.Runtime, results *Results) error {
	if err := rt.RegisterHost(MathHost{}); err != nil {
		return err
	}
	if err := rt.RegisterModule("jobs", jobsModule(results)); err != nil {
		return err
	}
	return rt.RegisterModule("bytes", bytesModule)
}
