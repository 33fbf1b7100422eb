package bridge

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/wippyai/wasm-bridge/engine"
)

type counter struct {
	n float64
}

func initCounterModule(mc *ModuleContext) error {
	if err := mc.ExportFunction("add", func(cx *CallContext) (engine.Handle, error) {
		a, err := cx.ArgumentNumber(0)
		if err != nil {
			return engine.Handle{}, err
		}
		b, err := cx.ArgumentNumber(1)
		if err != nil {
			return engine.Handle{}, err
		}
		return cx.Number(a + b)
	}); err != nil {
		return err
	}

	if err := mc.ExportFunction("fail", func(cx *CallContext) (engine.Handle, error) {
		return engine.Handle{}, cx.ThrowTypeError("always fails")
	}); err != nil {
		return err
	}

	version, err := mc.String("1.0")
	if err != nil {
		return err
	}
	if err := mc.ExportValue("version", version); err != nil {
		return err
	}

	return ExportClass(mc, "Counter",
		func(cx *CallContext) (*counter, error) {
			start := 0.0
			if h, ok := cx.ArgumentOpt(0); ok {
				start, _ = cx.NumberOf(h)
			}
			return &counter{n: start}, nil
		},
		map[string]Method[*counter]{
			"inc": func(cx *CallContext, self *counter) (engine.Handle, error) {
				self.n++
				return cx.Number(self.n)
			},
		})
}

func TestInitModule(t *testing.T) {
	iso := newIsolate(t)
	ctx := context.Background()

	if err := InitModule(ctx, iso, "counter", initCounterModule); err != nil {
		t.Fatalf("InitModule failed: %v", err)
	}
	if err := InitModule(ctx, iso, "counter", initCounterModule); err == nil {
		t.Error("second InitModule with the same name should fail")
	}

	err := iso.Do(ctx, func() error {
		m, ok := ModulesOf(iso).Lookup("counter")
		if !ok {
			return fmt.Errorf("module not registered")
		}
		want := []string{"add", "fail", "version", "Counter"}
		if got := m.Exports(); !reflect.DeepEqual(got, want) {
			t.Errorf("Exports = %v, want %v", got, want)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestInitModule_ThrowBecomesException(t *testing.T) {
	iso := newIsolate(t)

	err := InitModule(context.Background(), iso, "broken", func(mc *ModuleContext) error {
		return mc.ThrowError("SyntaxError", "bad module")
	})
	var exc *Exception
	if !stderrors.As(err, &exc) || exc.Name != "SyntaxError" || exc.Message != "bad module" {
		t.Fatalf("got %v, want SyntaxError exception", err)
	}

	iso.Do(context.Background(), func() error {
		if iso.HasException() {
			t.Error("exception should be consumed")
		}
		if _, ok := ModulesOf(iso).Lookup("broken"); ok {
			t.Error("failed module should not be registered")
		}
		return nil
	})
}

func TestCallExport(t *testing.T) {
	iso := newIsolate(t)
	ctx := context.Background()
	if err := InitModule(ctx, iso, "counter", initCounterModule); err != nil {
		t.Fatal(err)
	}

	got, err := CallExport(ctx, iso, "counter", "add", 40, 2)
	if err != nil {
		t.Fatalf("CallExport failed: %v", err)
	}
	if got != 42.0 {
		t.Errorf("add = %v, want 42", got)
	}

	_, err = CallExport(ctx, iso, "counter", "fail")
	var exc *Exception
	if !stderrors.As(err, &exc) || exc.Name != "TypeError" {
		t.Errorf("fail: got %v, want TypeError exception", err)
	}

	if _, err := CallExport(ctx, iso, "counter", "missing"); err == nil {
		t.Error("missing export should fail")
	}
	if _, err := CallExport(ctx, iso, "nope", "add"); err == nil {
		t.Error("missing module should fail")
	}
	if _, err := CallExport(ctx, iso, "counter", "add", struct{}{}, 1); err == nil {
		t.Error("unconvertible argument should fail")
	}
}

func TestExportClass(t *testing.T) {
	iso := newIsolate(t)
	ctx := context.Background()
	if err := InitModule(ctx, iso, "counter", initCounterModule); err != nil {
		t.Fatal(err)
	}

	run(t, iso, func(vm *VM) error {
		cls, ok := Classes(iso).Lookup(reflect.TypeOf(&counter{}))
		if !ok || cls.Name != "Counter" || len(cls.Methods) != 1 {
			return fmt.Errorf("class registry = %+v, %v", cls, ok)
		}
		ctor, err := vm.Local(cls.Constructor)
		if err != nil {
			return err
		}

		start, _ := vm.Number(10)
		obj, err := vm.Construct(ctor, start)
		if err != nil {
			return err
		}
		inc, err := vm.Get(obj, "inc")
		if err != nil {
			return err
		}
		vm.Call(inc, obj)
		got, err := vm.Call(inc, obj)
		if err != nil {
			return err
		}
		if n, _ := vm.NumberOf(got); n != 12 {
			t.Errorf("inc = %v, want 12", n)
		}

		self, err := Unwrap[*counter](vm, obj)
		if err != nil || self.n != 12 {
			t.Errorf("Unwrap = %+v, %v", self, err)
		}

		if _, err := vm.Call(ctor, engine.Handle{}); err == nil {
			t.Error("calling a class constructor without new should throw")
		}
		exc, _ := vm.TakeException()
		if got := vm.Describe(exc); got != "TypeError: class constructor Counter cannot be invoked without 'new'" {
			t.Errorf("exception = %q", got)
		}

		plain, _ := vm.EmptyObject()
		if _, err := vm.Call(inc, plain); err == nil {
			t.Error("method on a foreign receiver should throw")
		}
		vm.TakeException()
		return nil
	})
}

func TestExportClass_Duplicate(t *testing.T) {
	iso := newIsolate(t)

	err := InitModule(context.Background(), iso, "dup", func(mc *ModuleContext) error {
		ctor := func(*CallContext) (counter, error) { return counter{}, nil }
		if err := ExportClass(mc, "A", ctor, nil); err != nil {
			return err
		}
		if err := ExportClass(mc, "B", ctor, nil); err == nil {
			t.Error("binding the same Go type twice should fail")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if n := Classes(iso).Len(); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}
}

func TestInitModule_FailureReleasesExports(t *testing.T) {
	iso := newIsolate(t)
	ctx := context.Background()
	before := iso.Stats().Roots

	init := func(fail bool) func(*ModuleContext) error {
		return func(mc *ModuleContext) error {
			if err := mc.ExportGuestFunction("twice", 1, func(cx *CallContext) (engine.Handle, error) {
				x, err := cx.ArgumentNumber(0)
				if err != nil {
					return engine.Handle{}, err
				}
				return cx.Number(2 * x)
			}); err != nil {
				return err
			}
			v, err := mc.String("half done")
			if err != nil {
				return err
			}
			if err := mc.ExportValue("state", v); err != nil {
				return err
			}
			if fail {
				return mc.ThrowError("Error", "init gave up")
			}
			return nil
		}
	}

	if err := InitModule(ctx, iso, "partial", init(true)); err == nil {
		t.Fatal("init that throws should fail")
	}
	if got := iso.Stats().Roots; got != before {
		t.Errorf("roots = %d after failed init, want %d", got, before)
	}

	if err := InitModule(ctx, iso, "partial", init(false)); err != nil {
		t.Fatalf("retry after failed init: %v", err)
	}
	// One root for the guest import, one per export.
	if got := iso.Stats().Roots; got != before+3 {
		t.Errorf("roots = %d after retry, want %d", got, before+3)
	}
}
