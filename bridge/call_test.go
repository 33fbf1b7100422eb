package bridge

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
)

func TestCallContext_Arguments(t *testing.T) {
	iso := newIsolate(t)

	run(t, iso, func(vm *VM) error {
		var seen struct {
			n        int
			opt      bool
			kind     CallKind
			callee   engine.Kind
			thisKind engine.Kind
		}
		fn, err := vm.Function("inspect", func(cx *CallContext) (engine.Handle, error) {
			seen.n = cx.Len()
			_, seen.opt = cx.ArgumentOpt(5)
			seen.kind = cx.Kind()
			callee, _ := cx.Callee()
			seen.callee = cx.VM.Kind(callee)
			this, _ := cx.This()
			seen.thisKind = cx.VM.Kind(this)

			x, err := cx.ArgumentNumber(0)
			if err != nil {
				return engine.Handle{}, err
			}
			s, err := cx.ArgumentString(1)
			if err != nil {
				return engine.Handle{}, err
			}
			return cx.String(fmt.Sprintf("%s=%g", s, x))
		})
		if err != nil {
			return err
		}

		n, _ := vm.Number(4)
		s, _ := vm.String("x")
		got, err := vm.Call(fn, engine.Handle{}, n, s)
		if err != nil {
			return err
		}
		if str, _ := vm.StringOf(got); str != "x=4" {
			t.Errorf("result = %q", str)
		}
		if seen.n != 2 || seen.opt || seen.kind != CallKindCall {
			t.Errorf("seen = %+v", seen)
		}
		if seen.callee != engine.KindFunction || seen.thisKind != engine.KindUndefined {
			t.Errorf("callee=%v this=%v", seen.callee, seen.thisKind)
		}
		return nil
	})
}

func TestCallContext_ArgumentErrorsThrow(t *testing.T) {
	iso := newIsolate(t)

	tests := []struct {
		name    string
		args    func(vm *VM) []engine.Handle
		wantMsg string
	}{
		{
			name:    "missing",
			args:    func(*VM) []engine.Handle { return nil },
			wantMsg: "TypeError: not enough arguments",
		},
		{
			name: "wrong kind",
			args: func(vm *VM) []engine.Handle {
				s, _ := vm.String("nope")
				return []engine.Handle{s}
			},
			wantMsg: "TypeError: argument 0: expected number, got string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run(t, iso, func(vm *VM) error {
				constructed := false
				fn, err := vm.Function("needsNumber", func(cx *CallContext) (engine.Handle, error) {
					if _, err := cx.ArgumentNumber(0); err != nil {
						if _, cerr := cx.String("after throw"); !stderrors.Is(cerr, errors.ErrThrow) {
							t.Errorf("construction after throw: %v", cerr)
						} else {
							constructed = true
						}
						return engine.Handle{}, err
					}
					return cx.Undefined()
				})
				if err != nil {
					return err
				}

				_, err = vm.Call(fn, engine.Handle{}, tt.args(vm)...)
				if !stderrors.Is(err, errors.ErrThrow) {
					return fmt.Errorf("got %v, want ErrThrow", err)
				}
				exc, ok := vm.TakeException()
				if !ok {
					return fmt.Errorf("no pending exception")
				}
				if got := vm.Describe(exc); got != tt.wantMsg {
					t.Errorf("exception = %q, want %q", got, tt.wantMsg)
				}
				if !constructed {
					t.Error("constructors should refuse while an exception is pending")
				}
				return nil
			})
		})
	}
}

func TestCallContext_GoErrorBecomesThrow(t *testing.T) {
	iso := newIsolate(t)

	run(t, iso, func(vm *VM) error {
		fn, err := vm.Function("fails", func(cx *CallContext) (engine.Handle, error) {
			return engine.Handle{}, errors.OutOfBounds(errors.PhaseCall, nil, 9, 3)
		})
		if err != nil {
			return err
		}
		if _, err := vm.Call(fn, engine.Handle{}); !stderrors.Is(err, errors.ErrThrow) {
			return fmt.Errorf("got %v, want ErrThrow", err)
		}
		exc, _ := vm.TakeException()
		if got := vm.Describe(exc); !strings.Contains(got, "index 9 out of bounds") {
			t.Errorf("exception = %q", got)
		}
		name, _ := vm.Get(exc, "name")
		if s, _ := vm.StringOf(name); s != "RangeError" {
			t.Errorf("name = %q, want RangeError", s)
		}
		return nil
	})
}

func TestCallContext_Construct(t *testing.T) {
	iso := newIsolate(t)

	run(t, iso, func(vm *VM) error {
		var kinds []CallKind
		fn, err := vm.Function("Thing", func(cx *CallContext) (engine.Handle, error) {
			kinds = append(kinds, cx.Kind())
			return engine.Handle{}, nil
		})
		if err != nil {
			return err
		}
		obj, err := vm.Construct(fn)
		if err != nil {
			return err
		}
		if vm.Kind(obj) != engine.KindObject {
			t.Errorf("constructed kind = %v", vm.Kind(obj))
		}
		ret, err := vm.Call(fn, engine.Handle{})
		if err != nil {
			return err
		}
		if vm.Kind(ret) != engine.KindUndefined {
			t.Errorf("empty handle should return undefined, got %v", vm.Kind(ret))
		}
		if len(kinds) != 2 || kinds[0] != CallKindConstruct || kinds[1] != CallKindCall {
			t.Errorf("kinds = %v", kinds)
		}
		return nil
	})
}
