package bridge

import (
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
)

// Scope binds one entered handle scope of an isolate. Handles created
// through a scope are valid until the scope exits.
type Scope struct {
	iso      *engine.Isolate
	cleanups []func()
	tok      engine.ScopeToken
	active   bool
	exited   bool
}

// With enters a scope on iso, runs f, and exits the scope on every path
// out of f, including panics. Must be called on the isolate loop.
func With(iso *engine.Isolate, f func(*Scope) error) error {
	s := &Scope{iso: iso, tok: iso.EnterScope(), active: true}
	defer s.exit()
	return f(s)
}

func (s *Scope) exit() {
	for k := len(s.cleanups) - 1; k >= 0; k-- {
		s.cleanups[k]()
	}
	s.cleanups = nil
	s.active = false
	s.exited = true
	s.iso.ExitScope(s.tok)
}

// onExit registers fn to run, LIFO, just before the scope exits.
func (s *Scope) onExit(fn func()) {
	s.cleanups = append(s.cleanups, fn)
}

// Isolate returns the isolate the scope is bound to.
func (s *Scope) Isolate() *engine.Isolate { return s.iso }

// Depth returns the scope's depth on the isolate's scope stack.
func (s *Scope) Depth() int { return s.tok.Depth() }

// IsActive reports whether the scope may currently produce or observe
// handles.
func (s *Scope) IsActive() bool { return s.active && !s.exited }

// Activate re-enables a deactivated scope.
func (s *Scope) Activate() {
	if !s.exited {
		s.active = true
	}
}

// Deactivate suspends the scope. While inactive every capability that
// produces or reads handles fails with an inactive-scope error.
func (s *Scope) Deactivate() { s.active = false }

func (s *Scope) check() error {
	if !s.IsActive() {
		return errors.InactiveScope()
	}
	return nil
}

func (s *Scope) handle(v engine.Value) (engine.Handle, error) {
	if err := s.check(); err != nil {
		return engine.Handle{}, err
	}
	return s.iso.NewHandle(s.tok, v)
}

// VMConfined marks Scope as usable only on the isolate loop.
func (*Scope) VMConfined() {}
