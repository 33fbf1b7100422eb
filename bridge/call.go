package bridge

import (
	"strconv"

	"github.com/wippyai/wasm-bridge/engine"
)

// Function is a native function callable from the VM. A returned error
// that is not errors.ErrThrow is thrown as a VM error object.
type Function func(*CallContext) (engine.Handle, error)

// CallKind distinguishes plain calls from constructor calls.
type CallKind int

const (
	CallKindCall CallKind = iota
	CallKindConstruct
)

func (k CallKind) String() string {
	if k == CallKindConstruct {
		return "construct"
	}
	return "call"
}

// CallContext is the context of one native call. It owns the scope the
// call runs in.
type CallContext struct {
	VM
	info *engine.CallInfo
}

func native(f Function) engine.NativeFunc {
	return func(info *engine.CallInfo) error {
		return With(info.Isolate(), func(s *Scope) error {
			cx := &CallContext{VM: NewVM(s), info: info}
			h, err := f(cx)
			if err != nil {
				return cx.ThrowGo(err)
			}
			if h.IsEmpty() {
				info.SetReturn(engine.Undefined())
				return nil
			}
			v, err := cx.value(h)
			if err != nil {
				return cx.ThrowGo(err)
			}
			info.SetReturn(v)
			return nil
		})
	}
}

// Kind reports whether the function was invoked as a constructor.
func (cx *CallContext) Kind() CallKind {
	if cx.info.IsConstruct() {
		return CallKindConstruct
	}
	return CallKindCall
}

// Len returns the number of arguments passed.
func (cx *CallContext) Len() int { return cx.info.Len() }

// ArgumentOpt returns argument i, or false if it was not passed.
func (cx *CallContext) ArgumentOpt(i int) (engine.Handle, bool) {
	v, ok := cx.info.Arg(i)
	if !ok {
		return engine.Handle{}, false
	}
	h, err := cx.scope.handle(v)
	if err != nil {
		return engine.Handle{}, false
	}
	return h, true
}

// Argument returns argument i, throwing a TypeError if it was not passed.
func (cx *CallContext) Argument(i int) (engine.Handle, error) {
	h, ok := cx.ArgumentOpt(i)
	if !ok {
		return engine.Handle{}, cx.ThrowTypeError("not enough arguments")
	}
	return h, nil
}

func (cx *CallContext) argumentOf(i int, want engine.Kind) (engine.Handle, error) {
	h, err := cx.Argument(i)
	if err != nil {
		return engine.Handle{}, err
	}
	if k := cx.VM.Kind(h); k != want {
		return engine.Handle{}, cx.ThrowTypeError("argument " + strconv.Itoa(i) + ": expected " + want.String() + ", got " + k.String())
	}
	return h, nil
}

// ArgumentNumber returns argument i as a number.
func (cx *CallContext) ArgumentNumber(i int) (float64, error) {
	h, err := cx.argumentOf(i, engine.KindNumber)
	if err != nil {
		return 0, err
	}
	return cx.NumberOf(h)
}

// ArgumentString returns argument i as a string.
func (cx *CallContext) ArgumentString(i int) (string, error) {
	h, err := cx.argumentOf(i, engine.KindString)
	if err != nil {
		return "", err
	}
	return cx.StringOf(h)
}

// ArgumentBuffer returns argument i, which must be a buffer.
func (cx *CallContext) ArgumentBuffer(i int) (engine.Handle, error) {
	return cx.argumentOf(i, engine.KindBuffer)
}

// ArgumentFunction returns argument i, which must be a function.
func (cx *CallContext) ArgumentFunction(i int) (engine.Handle, error) {
	return cx.argumentOf(i, engine.KindFunction)
}

// This returns the call's receiver.
func (cx *CallContext) This() (engine.Handle, error) {
	return cx.scope.handle(cx.info.This())
}

// Callee returns the function being called.
func (cx *CallContext) Callee() (engine.Handle, error) {
	return cx.scope.handle(cx.info.Callee())
}
