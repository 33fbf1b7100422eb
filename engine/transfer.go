package engine

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/wippyai/wasm-bridge/errors"
)

// Confined is implemented by types that may only be used on an isolate
// loop: values, handles, scope tokens, call contexts.
type Confined interface {
	VMConfined()
}

var confinedType = reflect.TypeOf((*Confined)(nil)).Elem()

// CheckTransferable reports whether v may cross from the loop to another
// goroutine. It walks v and rejects anything reachable that implements
// Confined. Channels and functions are opaque and not inspected.
func CheckTransferable(v any) error {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	return walkTransfer(rv, []string{rv.Type().String()}, make(map[uintptr]bool))
}

func walkTransfer(v reflect.Value, path []string, seen map[uintptr]bool) error {
	if !v.IsValid() {
		return nil
	}
	t := v.Type()
	if t.Implements(confinedType) || (t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(confinedType)) {
		return errors.NotTransferable(path, t.String())
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		p := v.Pointer()
		if seen[p] {
			return nil
		}
		seen[p] = true
		return walkTransfer(v.Elem(), path, seen)

	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return walkTransfer(v.Elem(), path, seen)

	case reflect.Struct:
		for k := 0; k < v.NumField(); k++ {
			if err := walkTransfer(v.Field(k), extend(path, t.Field(k).Name), seen); err != nil {
				return err
			}
		}

	case reflect.Slice, reflect.Array:
		if isScalar(t.Elem()) {
			return nil
		}
		if v.Kind() == reflect.Slice {
			if v.IsNil() {
				return nil
			}
		}
		for k := 0; k < v.Len(); k++ {
			if err := walkTransfer(v.Index(k), extend(path, "["+strconv.Itoa(k)+"]"), seen); err != nil {
				return err
			}
		}

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		iter := v.MapRange()
		for iter.Next() {
			key := iter.Key()
			p := extend(path, "["+describeKey(key)+"]")
			if err := walkTransfer(key, p, seen); err != nil {
				return err
			}
			if err := walkTransfer(iter.Value(), p, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

func isScalar(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128, reflect.String:
		return !t.Implements(confinedType)
	}
	return false
}

func describeKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return strconv.Quote(k.String())
	}
	if k.CanInterface() && isScalar(k.Type()) {
		return fmt.Sprint(k.Interface())
	}
	return k.Type().String()
}

func extend(path []string, elem string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = elem
	return out
}
