package bridge

import (
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
)

// Root is a persistent reference to a VM value. Unlike handles, roots may
// be held across loop turns and carried by task payloads; they can only be
// turned back into a handle on the owning isolate's loop.
type Root struct {
	id    engine.RootID
	arena uint32
}

// IsZero reports whether r is the zero root.
func (r Root) IsZero() bool { return r.id == 0 }

// Persist roots the value behind h until Release.
func (vm *VM) Persist(h engine.Handle) (Root, error) {
	v, err := vm.value(h)
	if err != nil {
		return Root{}, err
	}
	id, err := vm.scope.iso.Persist(v)
	if err != nil {
		return Root{}, err
	}
	return Root{id: id, arena: vm.scope.iso.ID()}, nil
}

// Local returns a handle in this scope for the value behind r.
func (vm *VM) Local(r Root) (engine.Handle, error) {
	if err := vm.scope.check(); err != nil {
		return engine.Handle{}, err
	}
	if r.arena != vm.scope.iso.ID() {
		return engine.Handle{}, errors.InvalidInput(errors.PhaseScope, "root belongs to another isolate")
	}
	v, ok := vm.scope.iso.Root(r.id)
	if !ok {
		return engine.Handle{}, errors.NotFound(errors.PhaseScope, "root", "released")
	}
	return vm.scope.handle(v)
}

// Release drops a persistent root. Releasing twice is a no-op.
func (vm *VM) Release(r Root) {
	if r.arena == vm.scope.iso.ID() {
		vm.scope.iso.Unpersist(r.id)
	}
}

// ReleaseRoot drops r from any goroutine. It is a no-op for roots of
// other isolates and after the isolate has closed.
func ReleaseRoot(iso *engine.Isolate, r Root) {
	if r.arena == iso.ID() {
		iso.Unpersist(r.id)
	}
}
