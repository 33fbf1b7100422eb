package runtime

import (
	"context"

	"github.com/wippyai/wasm-bridge/bridge"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/task"
)

// Isolate is a runtime-managed engine isolate with its modules bound.
// Its methods are safe for concurrent use; VM work is serialized on the
// isolate loop.
type Isolate struct {
	rt    *Runtime
	iso   *engine.Isolate
	sched *task.Scheduler
}

// Engine returns the underlying engine isolate.
func (i *Isolate) Engine() *engine.Isolate { return i.iso }

func (i *Isolate) Scheduler() *task.Scheduler { return i.sched }

// Call invokes module.name with Go arguments and returns the Go result.
// A VM exception is returned as *bridge.Exception.
func (i *Isolate) Call(ctx context.Context, module, name string, args ...any) (any, error) {
	return bridge.CallExport(ctx, i.iso, module, name, args...)
}

// Modules lists the modules initialized on the isolate.
func (i *Isolate) Modules(ctx context.Context) ([]string, error) {
	var names []string
	err := i.iso.Do(ctx, func() error {
		names = bridge.ModulesOf(i.iso).Names()
		return nil
	})
	return names, err
}

// Exports lists the exports of one module.
func (i *Isolate) Exports(ctx context.Context, module string) ([]string, error) {
	var names []string
	err := i.iso.Do(ctx, func() error {
		if m, ok := bridge.ModulesOf(i.iso).Lookup(module); ok {
			names = m.Exports()
		}
		return nil
	})
	return names, err
}

// LoadGuest instantiates a wasm guest that may import the isolate's
// memory and guest functions.
func (i *Isolate) LoadGuest(ctx context.Context, name string, wasm []byte) (*engine.Guest, error) {
	return i.iso.LoadGuest(ctx, name, wasm)
}

// Wait blocks until every scheduled task is done.
func (i *Isolate) Wait(ctx context.Context) error {
	return i.sched.Wait(ctx)
}

func (i *Isolate) Stats() engine.Stats { return i.iso.Stats() }

func (i *Isolate) Close(ctx context.Context) error {
	i.rt.forget(i.iso.ID())
	return i.iso.Close(ctx)
}
