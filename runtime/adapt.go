package runtime

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/wippyai/wasm-bridge/bridge"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
)

var (
	callContextType = reflect.TypeOf((*bridge.CallContext)(nil))
	errorType       = reflect.TypeOf((*error)(nil)).Elem()
	handleType      = reflect.TypeOf(engine.Handle{})
)

// signature adapts a typed Go function to a bridge.Function. Arguments are
// converted from VM values with ToGo, the result with FromGo. An optional
// leading *bridge.CallContext receives the call context; a trailing error
// result is thrown.
type signature struct {
	fn        reflect.Value
	native    bridge.Function
	params    []reflect.Type
	withCx    bool
	hasResult bool
	hasErr    bool
}

func newSignature(handler any) (*signature, error) {
	switch f := handler.(type) {
	case bridge.Function:
		return &signature{native: f}, nil
	case func(*bridge.CallContext) (engine.Handle, error):
		return &signature{native: f}, nil
	}

	fv := reflect.ValueOf(handler)
	if fv.Kind() != reflect.Func {
		return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			GoType(fmt.Sprintf("%T", handler)).
			Detail("handler must be a function").
			Build()
	}
	ft := fv.Type()
	if ft.IsVariadic() {
		return nil, errors.InvalidInput(errors.PhaseHost, "variadic handlers are not supported")
	}

	s := &signature{fn: fv}
	start := 0
	if ft.NumIn() > 0 && ft.In(0) == callContextType {
		s.withCx = true
		start = 1
	}
	for k := start; k < ft.NumIn(); k++ {
		s.params = append(s.params, ft.In(k))
	}

	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) == errorType {
			s.hasErr = true
		} else {
			s.hasResult = true
		}
	case 2:
		if ft.Out(1) != errorType {
			return nil, errors.InvalidInput(errors.PhaseHost, "second result must be error")
		}
		s.hasResult, s.hasErr = true, true
	default:
		return nil, errors.InvalidInput(errors.PhaseHost,
			fmt.Sprintf("result count mismatch: expected at most 2, got %d", ft.NumOut()))
	}
	return s, nil
}

// arity is the number of VM arguments the handler takes. Native handlers
// report -1.
func (s *signature) arity() int {
	if s.native != nil {
		return -1
	}
	return len(s.params)
}

func (s *signature) function() bridge.Function {
	if s.native != nil {
		return s.native
	}
	return s.call
}

func (s *signature) call(cx *bridge.CallContext) (engine.Handle, error) {
	args := make([]reflect.Value, 0, len(s.params)+1)
	if s.withCx {
		args = append(args, reflect.ValueOf(cx))
	}
	for k, pt := range s.params {
		h, ok := cx.ArgumentOpt(k)
		if !ok {
			args = append(args, reflect.Zero(pt))
			continue
		}
		if pt == handleType {
			args = append(args, reflect.ValueOf(h))
			continue
		}
		v, err := cx.ToGo(h)
		if err != nil {
			return engine.Handle{}, err
		}
		a, err := convert(v, pt, []string{"argument " + strconv.Itoa(k)})
		if err != nil {
			return engine.Handle{}, err
		}
		args = append(args, a)
	}

	out := s.fn.Call(args)
	if s.hasErr {
		if err, _ := out[len(out)-1].Interface().(error); err != nil {
			return engine.Handle{}, err
		}
	}
	if !s.hasResult {
		return cx.Undefined()
	}
	return cx.FromGo(out[0].Interface())
}

// convert turns a value produced by ToGo into t.
func convert(v any, t reflect.Type, path []string) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv.Convert(t), nil
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f, ok := v.(float64)
		if !ok || f != math.Trunc(f) {
			break
		}
		out := reflect.New(t).Elem()
		if out.OverflowInt(int64(f)) {
			return reflect.Value{}, overflow(path, f, t)
		}
		out.SetInt(int64(f))
		return out, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f, ok := v.(float64)
		if !ok || f != math.Trunc(f) || f < 0 {
			break
		}
		out := reflect.New(t).Elem()
		if out.OverflowUint(uint64(f)) {
			return reflect.Value{}, overflow(path, f, t)
		}
		out.SetUint(uint64(f))
		return out, nil

	case reflect.Float32:
		if f, ok := v.(float64); ok {
			return reflect.ValueOf(f).Convert(t), nil
		}

	case reflect.Slice:
		items, ok := v.([]any)
		if !ok {
			break
		}
		out := reflect.MakeSlice(t, len(items), len(items))
		for k, item := range items {
			e, err := convert(item, t.Elem(), extend(path, "["+strconv.Itoa(k)+"]"))
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(k).Set(e)
		}
		return out, nil

	case reflect.Map:
		fields, ok := v.(map[string]any)
		if !ok || t.Key().Kind() != reflect.String {
			break
		}
		out := reflect.MakeMapWithSize(t, len(fields))
		for k, item := range fields {
			e, err := convert(item, t.Elem(), extend(path, k))
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), e)
		}
		return out, nil
	}

	return reflect.Value{}, errors.TypeMismatch(errors.PhaseCall, path, t.String(), fmt.Sprintf("%T", v))
}

func overflow(path []string, f float64, t reflect.Type) error {
	return errors.New(errors.PhaseCall, errors.KindOutOfBounds).
		Path(path...).
		Value(f).
		Detail("%v overflows %s", f, t).
		Build()
}

func extend(path []string, elem string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = elem
	return out
}
