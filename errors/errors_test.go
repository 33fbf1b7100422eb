package errors

import (
	"errors"
	"strings"
	"testing"
)

type testKey string

func (k testKey) String() string { return string(k) }

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseCall,
				Kind:   KindTypeMismatch,
				Path:   []string{"argument", "2"},
				GoType: "float64",
				VMType: "string",
				Detail: "cannot convert",
			},
			contains: []string{"[call]", "type_mismatch", "argument.2", "float64", "string", "cannot convert"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseMemory,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[memory]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseMemory,
				Kind:   KindAllocation,
				Detail: "memory full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[memory]", "allocation", "memory full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseTask,
		Kind:  KindInvalidInput,
		Cause: cause,
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := Frozen(testKey("1:4"))

	if !errors.Is(err, ErrFrozen) {
		t.Error("Frozen should match ErrFrozen")
	}
	if errors.Is(err, ErrMutating) {
		t.Error("Frozen should not match ErrMutating")
	}
	if !errors.Is(Mutating(testKey("1:4")), ErrMutating) {
		t.Error("Mutating should match ErrMutating")
	}

	wrapped := Wrap(PhaseTask, KindInvalidInput, ErrThrow, "complete")
	if !errors.Is(wrapped, ErrThrow) {
		t.Error("errors.Is should see ErrThrow through Cause")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseCall, KindTypeMismatch).
		Path("argument", "0").
		GoType("string").
		VMType("number").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "string", "number").
		Build()

	if err.Phase != PhaseCall {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseCall)
	}
	if err.Kind != KindTypeMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
	}
	if len(err.Path) != 2 || err.Path[0] != "argument" || err.Path[1] != "0" {
		t.Errorf("Path = %v, want [argument 0]", err.Path)
	}
	if err.GoType != "string" || err.VMType != "number" {
		t.Errorf("GoType=%v VMType=%v", err.GoType, err.VMType)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected string, got number" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("Mutating", func(t *testing.T) {
		err := Mutating(testKey("3:7"))
		if err.Value.(testKey) != "3:7" {
			t.Errorf("Value = %v, want 3:7", err.Value)
		}
		if !strings.Contains(err.Error(), "3:7") {
			t.Errorf("message %q should name the key", err.Error())
		}
	})

	t.Run("ScopeViolation", func(t *testing.T) {
		err := ScopeViolation("exit %d, top %d", 1, 2)
		if err.Kind != KindScopeViolation || err.Detail != "exit 1, top 2" {
			t.Errorf("got %+v", err)
		}
	})

	t.Run("NotTransferable", func(t *testing.T) {
		err := NotTransferable([]string{"payload", "cb"}, "engine.Handle")
		if !errors.Is(err, ErrNotTransferable) {
			t.Error("should match ErrNotTransferable")
		}
		if !strings.Contains(err.Error(), "payload.cb") {
			t.Errorf("message %q should contain path", err.Error())
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseCall, []string{"argument"}, 3, 1)
		if err.Value != 3 {
			t.Errorf("Value = %v, want 3", err.Value)
		}
	})

	t.Run("StaleHandle", func(t *testing.T) {
		if !errors.Is(StaleHandle(2, 9), ErrStaleHandle) {
			t.Error("should match ErrStaleHandle")
		}
	})

	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(PhaseMemory, 1024, nil)
		if !strings.Contains(err.Detail, "1024") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseCall, "export", "fib")
		if err.Kind != KindNotFound || !strings.Contains(err.Detail, `"fib"`) {
			t.Errorf("got %+v", err)
		}
	})
}
