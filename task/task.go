package task

import (
	stderrors "errors"
	"fmt"

	"github.com/wippyai/wasm-bridge/bridge"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
)

// Task is background work split in two. Perform runs on a worker
// goroutine with no VM access. Complete runs afterwards on the isolate
// loop inside a fresh scope and turns the outcome into a VM value.
//
// The task value itself crosses to the worker, so it must not hold
// anything confined to the loop. Carry bridge.Root, not handles.
type Task[T any] interface {
	Perform() (T, error)
	Complete(cx *Context, out T, err error) (engine.Handle, error)
}

// Context is the VM capability set handed to Task.Complete.
type Context struct {
	bridge.VM
	job *Job
}

// Job returns the job being completed.
func (cx *Context) Job() *Job { return cx.job }

// work is the type-erased perform/complete pair the scheduler runs.
type work struct {
	perform  func() error
	complete func(cx *Context) (engine.Handle, error)
}

// Schedule validates t, persists callback and hands t to the isolate's
// scheduler. The callback is later invoked on the loop as
// callback(null, value) on success or callback(error, undefined) on
// failure.
func Schedule[T any](cx bridge.Context, t Task[T], callback engine.Handle) (*Job, error) {
	vm := cx.Env()
	if err := engine.CheckTransferable(t); err != nil {
		return nil, err
	}
	if k := vm.Kind(callback); k != engine.KindFunction {
		return nil, errors.TypeMismatch(errors.PhaseTask, []string{"callback"}, "", k.String())
	}

	s := SchedulerOf(vm.Isolate())
	cb, err := vm.Persist(callback)
	if err != nil {
		return nil, err
	}

	var (
		out  T
		perr error
	)
	w := work{
		perform: func() error {
			out, perr = perform(t)
			if perr == nil {
				if err := engine.CheckTransferable(out); err != nil {
					var zero T
					out, perr = zero, err
				}
			} else if engine.CheckTransferable(perr) != nil {
				perr = stderrors.New(perr.Error())
			}
			return perr
		},
		complete: func(cx *Context) (engine.Handle, error) {
			return complete(t, cx, out, perr)
		},
	}

	j, err := s.submit(fmt.Sprintf("%T", t), cb, w)
	if err != nil {
		vm.Release(cb)
		return nil, err
	}
	return j, nil
}

func perform[T any](t Task[T]) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			out, err = zero, errors.Panic(errors.PhaseTask, r)
		}
	}()
	return t.Perform()
}

// complete runs t.Complete, turning a panic into a KindPanic error so the
// job still reaches Done. Scope violations stay fatal.
func complete[T any](t Task[T], cx *Context, out T, perr error) (h engine.Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*errors.Error); ok && e.Kind == errors.KindScopeViolation {
				panic(r)
			}
			h, err = engine.Handle{}, errors.Panic(errors.PhaseTask, r)
		}
	}()
	return t.Complete(cx, out, perr)
}

// thrown reports whether err stands for an exception pending on the
// isolate rather than a Go failure.
func thrown(vm *bridge.VM, err error) bool {
	return stderrors.Is(err, errors.ErrThrow) || vm.Isolate().HasException()
}
