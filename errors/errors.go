package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseScope  Phase = "scope"  // handle scope entry/exit
	PhaseBorrow Phase = "borrow" // buffer loans
	PhaseCall   Phase = "call"   // native/VM calls
	PhaseTask   Phase = "task"   // background tasks
	PhaseMemory Phase = "memory" // linear memory access
	PhaseLoad   Phase = "load"   // module loading
	PhaseHost   Phase = "host"   // host function registration
	PhaseConfig Phase = "config" // configuration
)

// Kind categorizes the error
type Kind string

const (
	KindMutating        Kind = "mutating"
	KindFrozen          Kind = "frozen"
	KindThrow           Kind = "throw"
	KindScopeViolation  Kind = "scope_violation"
	KindInactiveScope   Kind = "inactive_scope"
	KindStaleHandle     Kind = "stale_handle"
	KindNotTransferable Kind = "not_transferable"
	KindTypeMismatch    Kind = "type_mismatch"
	KindOutOfBounds     Kind = "out_of_bounds"
	KindNotFound        Kind = "not_found"
	KindInvalidInput    Kind = "invalid_input"
	KindAllocation      Kind = "allocation"
	KindClosed          Kind = "closed"
	KindRegistration    Kind = "registration"
	KindPanic           Kind = "panic"
)

// Sentinels usable as errors.Is targets.
var (
	ErrThrow           = &Error{Phase: PhaseCall, Kind: KindThrow, Detail: "VM exception pending"}
	ErrMutating        = &Error{Phase: PhaseBorrow, Kind: KindMutating}
	ErrFrozen          = &Error{Phase: PhaseBorrow, Kind: KindFrozen}
	ErrStaleHandle     = &Error{Phase: PhaseScope, Kind: KindStaleHandle}
	ErrInactiveScope   = &Error{Phase: PhaseScope, Kind: KindInactiveScope}
	ErrNotTransferable = &Error{Phase: PhaseTask, Kind: KindNotTransferable}
)

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	VMType string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.VMType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.VMType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", VM type ")
			b.WriteString(e.VMType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("VM type ")
			b.WriteString(e.VMType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.VMType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// VMType sets the VM value kind name
func (b *Builder) VMType(t string) *Builder {
	b.err.VMType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Mutating reports an outstanding exclusive loan on key.
func Mutating(key fmt.Stringer) *Error {
	return &Error{
		Phase:  PhaseBorrow,
		Kind:   KindMutating,
		Value:  key,
		Detail: fmt.Sprintf("outstanding mutable loan exists for buffer %s", key),
	}
}

// Frozen reports outstanding shared loans on key.
func Frozen(key fmt.Stringer) *Error {
	return &Error{
		Phase:  PhaseBorrow,
		Kind:   KindFrozen,
		Value:  key,
		Detail: fmt.Sprintf("buffer %s is frozen", key),
	}
}

// ScopeViolation creates the fatal out-of-order scope exit error
func ScopeViolation(detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseScope,
		Kind:   KindScopeViolation,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, vmType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		GoType: goType,
		VMType: vmType,
	}
}

// NotTransferable reports a task payload or result holding VM-confined state
func NotTransferable(path []string, goType string) *Error {
	return &Error{
		Phase:  PhaseTask,
		Kind:   KindNotTransferable,
		Path:   path,
		GoType: goType,
		Detail: "value is confined to the VM thread",
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size uint32, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
		Cause:  cause,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// StaleHandle reports use of a handle whose scope has exited
func StaleHandle(depth int, serial uint64) *Error {
	return &Error{
		Phase:  PhaseScope,
		Kind:   KindStaleHandle,
		Detail: fmt.Sprintf("handle from scope %d (depth %d) used after exit", serial, depth),
	}
}

// InactiveScope reports handle creation while the scope is deactivated
func InactiveScope() *Error {
	return &Error{
		Phase:  PhaseScope,
		Kind:   KindInactiveScope,
		Detail: "scope is not active",
	}
}

// Closed reports an operation on a closed component
func Closed(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", component),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a registration error
func Registration(phase Phase, namespace, name string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s#%s", namespace, name),
		Cause:  cause,
	}
}

// Panic wraps a recovered panic value
func Panic(phase Phase, r any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindPanic,
		Value:  r,
		Detail: fmt.Sprintf("panic: %v", r),
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidInput,
		Detail: detail,
		Cause:  cause,
	}
}
