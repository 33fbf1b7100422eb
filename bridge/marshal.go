package bridge

import (
	"reflect"
	"sort"
	"strconv"

	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
)

// FromGo converts a Go value to a VM value:
//
//	nil                   -> null
//	bool                  -> boolean
//	integers, floats      -> number
//	string                -> string
//	[]byte                -> buffer (copied)
//	slices, arrays        -> array
//	map[string]T          -> object
//	error                 -> error object (not thrown)
//	engine.Handle, Root   -> the referenced value
func (vm *VM) FromGo(x any) (engine.Handle, error) {
	switch v := x.(type) {
	case nil:
		return vm.Null()
	case engine.Handle:
		return v, nil
	case Root:
		return vm.Local(v)
	case bool:
		return vm.Boolean(v)
	case string:
		return vm.String(v)
	case []byte:
		return vm.bufferFrom(v)
	case *Exception:
		return vm.Error(v.Name, v.Message)
	case error:
		return vm.Error(errorName(v), v.Error())
	}
	return vm.fromReflect(reflect.ValueOf(x), []string{"$"})
}

func (vm *VM) bufferFrom(b []byte) (engine.Handle, error) {
	h, err := vm.ArrayBuffer(uint32(len(b)))
	if err != nil {
		return engine.Handle{}, err
	}
	g := vm.Lock()
	defer g.Release()
	ref, err := g.BorrowMut(h)
	if err != nil {
		return engine.Handle{}, err
	}
	copy(ref.Bytes(), b)
	return h, nil
}

func (vm *VM) fromReflect(rv reflect.Value, path []string) (engine.Handle, error) {
	switch rv.Kind() {
	case reflect.Bool:
		return vm.Boolean(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return vm.Number(float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return vm.Number(float64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return vm.Number(rv.Float())
	case reflect.String:
		return vm.String(rv.String())

	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return vm.Null()
		}
		return vm.FromGo(rv.Elem().Interface())

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return vm.Null()
		}
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return vm.bufferFrom(rv.Bytes())
		}
		arr, err := vm.EmptyArray()
		if err != nil {
			return engine.Handle{}, err
		}
		for k := 0; k < rv.Len(); k++ {
			el, err := vm.fromElem(rv.Index(k), append(path, "["+strconv.Itoa(k)+"]"))
			if err != nil {
				return engine.Handle{}, err
			}
			if err := vm.Push(arr, el); err != nil {
				return engine.Handle{}, err
			}
		}
		return arr, nil

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		if rv.IsNil() {
			return vm.Null()
		}
		obj, err := vm.EmptyObject()
		if err != nil {
			return engine.Handle{}, err
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		for _, k := range keys {
			el, err := vm.fromElem(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())), append(path, k))
			if err != nil {
				return engine.Handle{}, err
			}
			if err := vm.Set(obj, k, el); err != nil {
				return engine.Handle{}, err
			}
		}
		return obj, nil
	}

	t := "invalid"
	if rv.IsValid() {
		t = rv.Type().String()
	}
	return engine.Handle{}, errors.TypeMismatch(errors.PhaseCall, path, t, "")
}

func (vm *VM) fromElem(rv reflect.Value, path []string) (engine.Handle, error) {
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return vm.Null()
		}
		rv = rv.Elem()
	}
	if rv.CanInterface() {
		switch rv.Interface().(type) {
		case engine.Handle, Root, []byte, error:
			return vm.FromGo(rv.Interface())
		}
	}
	return vm.fromReflect(rv, path)
}

// ToGo converts a VM value to Go:
//
//	undefined, null -> nil
//	boolean         -> bool
//	number          -> float64
//	string          -> string
//	buffer          -> []byte (copied)
//	array           -> []any
//	object          -> map[string]any
//	error           -> *Exception
//
// Functions cannot be converted.
func (vm *VM) ToGo(h engine.Handle) (any, error) {
	return vm.toGo(h, []string{"$"})
}

func (vm *VM) toGo(h engine.Handle, path []string) (any, error) {
	v, err := vm.value(h)
	if err != nil {
		return nil, err
	}
	switch v.Kind() {
	case engine.KindUndefined, engine.KindNull:
		return nil, nil
	case engine.KindBoolean:
		return v.Bool(), nil
	case engine.KindNumber:
		return v.Float(), nil
	case engine.KindString:
		return vm.StringOf(h)

	case engine.KindBuffer:
		g := vm.Lock()
		defer g.Release()
		ref, err := g.Borrow(h)
		if err != nil {
			return nil, err
		}
		return append([]byte{}, ref.Bytes()...), nil

	case engine.KindArray:
		n, err := vm.Length(h)
		if err != nil {
			return nil, err
		}
		out := make([]any, n)
		for k := range out {
			el, err := vm.Index(h, k)
			if err != nil {
				return nil, err
			}
			if out[k], err = vm.toGo(el, append(path, "["+strconv.Itoa(k)+"]")); err != nil {
				return nil, err
			}
		}
		return out, nil

	case engine.KindObject:
		keys, err := vm.Keys(h)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			el, err := vm.Get(h, k)
			if err != nil {
				return nil, err
			}
			if out[k], err = vm.toGo(el, append(path, k)); err != nil {
				return nil, err
			}
		}
		return out, nil

	case engine.KindError:
		return vm.Exception(h), nil
	}
	return nil, errors.TypeMismatch(errors.PhaseCall, path, "", v.Kind().String())
}
