// Package errors provides structured error types for the wasm-bridge library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: path, Go/VM type names, the offending
// value and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCall, errors.KindTypeMismatch).
//		Path("argument", "1").
//		GoType("float64").
//		VMType("string").
//		Detail("expected a number").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Frozen(key)
//	err := errors.OutOfBounds(errors.PhaseMemory, nil, 10, 5)
//
// Two kinds carry special meaning for the bridge:
//
//	KindThrow           - a VM exception is pending; propagate ErrThrow untouched
//	KindScopeViolation  - a handle scope was exited out of order; raised by panic
//
// All errors implement the standard error interface and support errors.Is/As.
// Is matches on Phase and Kind, so the exported sentinels can be used as
// errors.Is targets:
//
//	if errors.Is(err, errors.ErrFrozen) { ... }
package errors
