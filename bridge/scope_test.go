package bridge

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
)

func newIsolate(t *testing.T) *engine.Isolate {
	t.Helper()
	return newIsolateWith(t, nil)
}

func newIsolateWith(t *testing.T, cfg *engine.Config) *engine.Isolate {
	t.Helper()
	ctx := context.Background()
	eng, err := engine.NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	iso, err := eng.NewIsolate(ctx)
	if err != nil {
		t.Fatalf("NewIsolate failed: %v", err)
	}
	t.Cleanup(func() { eng.Close(ctx) })
	return iso
}

// run executes fn on the isolate loop inside a fresh scope.
func run(t *testing.T, iso *engine.Isolate, fn func(vm *VM) error) {
	t.Helper()
	err := iso.Do(context.Background(), func() error {
		return With(iso, func(s *Scope) error {
			vm := NewVM(s)
			return fn(&vm)
		})
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestWith_PairsEntryAndExit(t *testing.T) {
	iso := newIsolate(t)
	errInner := fmt.Errorf("inner failed")

	tests := []struct {
		inner   func(*Scope) error
		wantErr error
		name    string
	}{
		{func(*Scope) error { return nil }, nil, "ok"},
		{func(*Scope) error { return errInner }, errInner, "error path"},
		{func(s *Scope) error {
			return With(s.Isolate(), func(*Scope) error { return errInner })
		}, errInner, "nested error path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var depths []int
			err := iso.Do(context.Background(), func() error {
				base := iso.ScopeDepth()
				err := With(iso, func(outer *Scope) error {
					depths = append(depths, iso.ScopeDepth())
					return With(iso, func(inner *Scope) error {
						depths = append(depths, iso.ScopeDepth())
						if inner.Depth() != outer.Depth()+1 {
							t.Errorf("depths outer=%d inner=%d", outer.Depth(), inner.Depth())
						}
						return tt.inner(inner)
					})
				})
				if iso.ScopeDepth() != base {
					t.Errorf("scope depth %d after With, want %d", iso.ScopeDepth(), base)
				}
				return err
			})
			if !stderrors.Is(err, tt.wantErr) && err != tt.wantErr {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if len(depths) != 2 || depths[1] != depths[0]+1 {
				t.Errorf("depths = %v", depths)
			}
		})
	}
}

func TestWith_ExitsOnPanic(t *testing.T) {
	iso := newIsolate(t)

	err := iso.Do(context.Background(), func() error {
		base := iso.ScopeDepth()
		func() {
			defer func() { recover() }()
			With(iso, func(*Scope) error { panic("boom") })
		}()
		if iso.ScopeDepth() != base {
			t.Errorf("scope leaked on panic: depth %d, want %d", iso.ScopeDepth(), base)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestScope_HandlesDieWithScope(t *testing.T) {
	iso := newIsolate(t)

	run(t, iso, func(vm *VM) error {
		var leaked engine.Handle
		err := With(iso, func(s *Scope) error {
			inner := NewVM(s)
			var err error
			leaked, err = inner.String("short-lived")
			return err
		})
		if err != nil {
			return err
		}
		if _, err := vm.StringOf(leaked); !stderrors.Is(err, errors.ErrStaleHandle) {
			t.Errorf("leaked handle: got %v, want stale", err)
		}
		return nil
	})
}

func TestScope_Deactivate(t *testing.T) {
	iso := newIsolate(t)

	run(t, iso, func(vm *VM) error {
		h, err := vm.Number(1)
		if err != nil {
			return err
		}

		err = vm.Reenter(func() error {
			if vm.Scope().IsActive() {
				t.Error("scope should be inactive inside Reenter")
			}
			if _, err := vm.Number(2); !stderrors.Is(err, errors.ErrInactiveScope) {
				t.Errorf("Number while inactive: %v", err)
			}
			if _, err := vm.NumberOf(h); !stderrors.Is(err, errors.ErrInactiveScope) {
				t.Errorf("NumberOf while inactive: %v", err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		if !vm.Scope().IsActive() {
			return fmt.Errorf("scope should be reactivated")
		}
		if n, err := vm.NumberOf(h); err != nil || n != 1 {
			t.Errorf("NumberOf after reactivation = %v, %v", n, err)
		}
		return nil
	})
}
