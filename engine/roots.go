package engine

import (
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/heap"
)

// RootID identifies a persistent root. Roots outlive handle scopes and are
// the only way to keep a value reachable across loop turns.
type RootID = heap.Handle

// Persist roots v until Unpersist or isolate close.
func (i *Isolate) Persist(v Value) (RootID, error) {
	if v.IsEmpty() {
		v = Undefined()
	}
	id, err := i.roots.Insert(v)
	if err != nil {
		return 0, errors.Closed(errors.PhaseMemory, "isolate roots")
	}
	return id, nil
}

// Root returns the value behind a persistent root.
func (i *Isolate) Root(id RootID) (Value, bool) {
	return i.roots.Get(id)
}

// Unpersist releases a persistent root.
func (i *Isolate) Unpersist(id RootID) bool {
	_, ok := i.roots.Remove(id)
	return ok
}
