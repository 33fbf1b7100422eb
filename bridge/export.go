package bridge

import (
	"context"
	stderrors "errors"

	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
)

// Exception is a VM exception that escaped to Go.
type Exception struct {
	// Value is the thrown value converted with ToGo, when convertible.
	Value   any
	Name    string
	Message string
}

func (e *Exception) Error() string {
	if e.Name == "" {
		return "uncaught " + e.Message
	}
	return e.Name + ": " + e.Message
}

// Exception builds an Exception from a thrown value.
func (vm *VM) Exception(h engine.Handle) *Exception {
	if vm.Kind(h) != engine.KindError {
		e := &Exception{Message: vm.Describe(h)}
		if v, err := vm.ToGo(h); err == nil {
			e.Value = v
		}
		return e
	}
	e := &Exception{}
	if n, err := vm.Get(h, "name"); err == nil {
		e.Name, _ = vm.StringOf(n)
	}
	if m, err := vm.Get(h, "message"); err == nil {
		e.Message, _ = vm.StringOf(m)
	}
	return e
}

// exceptionOf converts a pending exception behind err into *Exception.
func exceptionOf(vm *VM, err error) error {
	if err == nil && !vm.scope.iso.HasException() {
		return nil
	}
	if err != nil && !stderrors.Is(err, errors.ErrThrow) && !vm.scope.iso.HasException() {
		return err
	}
	h, ok := vm.TakeException()
	if !ok {
		return err
	}
	return vm.Exception(h)
}

// CallExport calls an export of an initialized module on the isolate loop.
// Arguments are converted with FromGo and the result with ToGo. An
// exception thrown by the export is returned as *Exception.
func CallExport(ctx context.Context, iso *engine.Isolate, module, name string, args ...any) (any, error) {
	var out any
	err := iso.Do(ctx, func() error {
		m, ok := ModulesOf(iso).Lookup(module)
		if !ok {
			return errors.NotFound(errors.PhaseCall, "module", module)
		}
		root, ok := m.Export(name)
		if !ok {
			return errors.NotFound(errors.PhaseCall, "export", module+"."+name)
		}
		return With(iso, func(s *Scope) error {
			vm := NewVM(s)
			fn, err := vm.Local(root)
			if err != nil {
				return err
			}
			hs := make([]engine.Handle, len(args))
			for k, a := range args {
				if hs[k], err = vm.FromGo(a); err != nil {
					return exceptionOf(&vm, err)
				}
			}
			ret, err := vm.Call(fn, engine.Handle{}, hs...)
			if err != nil {
				return exceptionOf(&vm, err)
			}
			out, err = vm.ToGo(ret)
			return err
		})
	})
	return out, err
}
