package bridge

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/wippyai/wasm-bridge/engine"
)

func TestMarshal_RoundTrip(t *testing.T) {
	iso := newIsolate(t)

	tests := []struct {
		in   any
		want any
		kind engine.Kind
		name string
	}{
		{nil, nil, engine.KindNull, "nil"},
		{true, true, engine.KindBoolean, "bool"},
		{7, 7.0, engine.KindNumber, "int"},
		{uint16(9), 9.0, engine.KindNumber, "uint16"},
		{"hi", "hi", engine.KindString, "string"},
		{[]byte{1, 2, 3}, []byte{1, 2, 3}, engine.KindBuffer, "bytes"},
		{[]string{"a", "b"}, []any{"a", "b"}, engine.KindArray, "slice"},
		{[2]int{1, 2}, []any{1.0, 2.0}, engine.KindArray, "array"},
		{map[string]int{"x": 1}, map[string]any{"x": 1.0}, engine.KindObject, "map"},
		{
			map[string]any{"list": []any{true, nil}},
			map[string]any{"list": []any{true, nil}},
			engine.KindObject, "nested",
		},
	}

	run(t, iso, func(vm *VM) error {
		for _, tt := range tests {
			h, err := vm.FromGo(tt.in)
			if err != nil {
				t.Errorf("%s: FromGo: %v", tt.name, err)
				continue
			}
			if k := vm.Kind(h); k != tt.kind {
				t.Errorf("%s: kind %s, want %s", tt.name, k, tt.kind)
			}
			got, err := vm.ToGo(h)
			if err != nil {
				t.Errorf("%s: ToGo: %v", tt.name, err)
				continue
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("%s: got %#v, want %#v", tt.name, got, tt.want)
			}
		}
		return nil
	})
}

func TestMarshal_Errors(t *testing.T) {
	iso := newIsolate(t)

	run(t, iso, func(vm *VM) error {
		h, err := vm.FromGo(fmt.Errorf("broken pipe"))
		if err != nil {
			return err
		}
		got, err := vm.ToGo(h)
		if err != nil {
			return err
		}
		exc, ok := got.(*Exception)
		if !ok || exc.Name != "Error" || exc.Message != "broken pipe" {
			t.Errorf("error round trip = %#v", got)
		}

		if _, err := vm.FromGo(struct{}{}); err == nil {
			t.Error("struct should not convert")
		}
		if _, err := vm.FromGo(map[int]string{1: "x"}); err == nil {
			t.Error("map with non-string keys should not convert")
		}

		fn, err := vm.Function("f", func(cx *CallContext) (engine.Handle, error) { return cx.Undefined() })
		if err != nil {
			return err
		}
		if _, err := vm.ToGo(fn); err == nil {
			t.Error("function should not convert")
		}
		return nil
	})
}
