package engine

import (
	"github.com/wippyai/wasm-bridge/errors"
)

type frame struct {
	serial uint64
}

// ScopeToken identifies an entered handle scope.
type ScopeToken struct {
	serial uint64
	depth  int32
}

// Depth returns the scope's position on the scope stack, starting at 0.
func (t ScopeToken) Depth() int { return int(t.depth) }

// Serial returns the scope's unique serial number. Zero means no scope.
func (t ScopeToken) Serial() uint64 { return t.serial }

// VMConfined marks ScopeToken as usable only on the isolate loop.
func (ScopeToken) VMConfined() {}

// Handle is a rooted value tied to the scope that created it.
type Handle struct {
	val    Value
	serial uint64
	depth  int32
}

// IsEmpty reports whether h is the zero handle.
func (h Handle) IsEmpty() bool { return h.serial == 0 }

// Kind returns the kind of the referenced value.
func (h Handle) Kind() Kind { return h.val.kind }

// Scope returns the depth and serial of the owning scope.
func (h Handle) Scope() (depth int, serial uint64) { return int(h.depth), h.serial }

// VMConfined marks Handle as usable only on the isolate loop.
func (Handle) VMConfined() {}

func (i *Isolate) mustOnLoop(op string) {
	if !i.loop.OnLoop() {
		panic(errors.ScopeViolation("%s called off the isolate loop", op))
	}
}

// EnterScope pushes a new handle scope.
func (i *Isolate) EnterScope() ScopeToken {
	i.mustOnLoop("EnterScope")
	i.serial++
	i.frames = append(i.frames, frame{serial: i.serial})
	return ScopeToken{depth: int32(len(i.frames) - 1), serial: i.serial}
}

// ExitScope pops the scope identified by tok. Exiting anything but the
// innermost scope is a fatal scope violation.
func (i *Isolate) ExitScope(tok ScopeToken) {
	i.mustOnLoop("ExitScope")
	n := len(i.frames)
	if n == 0 {
		panic(errors.ScopeViolation("exit of scope %d with no scope entered", tok.serial))
	}
	top := i.frames[n-1]
	if int(tok.depth) != n-1 || top.serial != tok.serial {
		panic(errors.ScopeViolation("exit of scope %d at depth %d, innermost is scope %d at depth %d",
			tok.serial, tok.depth, top.serial, n-1))
	}
	i.frames = i.frames[:n-1]
}

// ScopeDepth returns the number of entered scopes.
func (i *Isolate) ScopeDepth() int { return len(i.frames) }

// ScopeLive reports whether tok's scope is still on the stack.
func (i *Isolate) ScopeLive(tok ScopeToken) bool {
	return i.live(tok.depth, tok.serial)
}

func (i *Isolate) live(depth int32, serial uint64) bool {
	return serial != 0 && int(depth) < len(i.frames) && i.frames[depth].serial == serial
}

// NewHandle roots v in the scope identified by tok.
func (i *Isolate) NewHandle(tok ScopeToken, v Value) (Handle, error) {
	if !i.live(tok.depth, tok.serial) {
		return Handle{}, errors.StaleHandle(int(tok.depth), tok.serial)
	}
	if v.IsEmpty() {
		v = Undefined()
	}
	return Handle{val: v, depth: tok.depth, serial: tok.serial}, nil
}

// Resolve returns the value behind h, failing if h's scope has exited.
func (i *Isolate) Resolve(h Handle) (Value, error) {
	if h.IsEmpty() {
		return Value{}, errors.InvalidInput(errors.PhaseScope, "empty handle")
	}
	if !i.live(h.depth, h.serial) {
		return Value{}, errors.StaleHandle(int(h.depth), h.serial)
	}
	return h.val, nil
}

// Escape re-roots h in the scope identified by outer, which must enclose
// h's scope.
func (i *Isolate) Escape(h Handle, outer ScopeToken) (Handle, error) {
	v, err := i.Resolve(h)
	if err != nil {
		return Handle{}, err
	}
	if outer.depth > h.depth {
		return Handle{}, errors.InvalidInput(errors.PhaseScope, "escape target is not an enclosing scope")
	}
	return i.NewHandle(outer, v)
}
