package bridge

import (
	"github.com/wippyai/wasm-bridge/borrow"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
)

type ledgerKey struct{}

// ledgerState is the isolate's ledger. It exists while at least one
// guard root is alive, so nested calls share loans.
type ledgerState struct {
	ledger *borrow.Ledger
	roots  int
}

func ledgerOf(iso *engine.Isolate) *ledgerState {
	return iso.Slot(ledgerKey{}, func() any { return &ledgerState{} }).(*ledgerState)
}

// Guard is a guard root: the owner of loans over VM buffers. It is
// released when its scope exits.
type Guard struct {
	vm       *VM
	state    *ledgerState
	loans    []*loan
	released bool
}

// Lock acquires a guard root bound to the VM's scope.
func (vm *VM) Lock() *Guard {
	st := ledgerOf(vm.scope.iso)
	if st.roots == 0 {
		st.ledger = borrow.NewLedger()
	}
	st.roots++

	g := &Guard{vm: vm, state: st}
	vm.scope.onExit(g.Release)
	return g
}

// Borrow acquires a shared loan on the buffer behind h. It fails
// immediately if an exclusive loan is outstanding.
func (g *Guard) Borrow(h engine.Handle) (*Ref, error) {
	l, err := g.acquire(h, false)
	if err != nil {
		return nil, err
	}
	return &Ref{l}, nil
}

// BorrowMut acquires an exclusive loan on the buffer behind h. It fails
// immediately if any loan is outstanding.
func (g *Guard) BorrowMut(h engine.Handle) (*RefMut, error) {
	l, err := g.acquire(h, true)
	if err != nil {
		return nil, err
	}
	return &RefMut{l}, nil
}

func (g *Guard) acquire(h engine.Handle, mut bool) (*loan, error) {
	if g.released {
		return nil, errors.Closed(errors.PhaseBorrow, "guard")
	}
	v, err := g.vm.value(h)
	if err != nil {
		return nil, err
	}
	key, err := g.vm.scope.iso.BufferKey(v)
	if err != nil {
		return nil, err
	}

	if mut {
		err = g.state.ledger.TryBorrowMut(key)
	} else {
		err = g.state.ledger.TryBorrow(key)
	}
	if err != nil {
		debugf("loan on %s refused: %v", key, err)
		return nil, err
	}

	g.vm.scope.iso.PinMemory()
	l := &loan{guard: g, key: key, mut: mut}
	g.loans = append(g.loans, l)
	return l, nil
}

// Loans returns the number of loans this guard still holds.
func (g *Guard) Loans() int {
	n := 0
	for _, l := range g.loans {
		if !l.released {
			n++
		}
	}
	return n
}

// Release settles every loan the guard still holds and releases the root.
// Calling it again is a no-op.
func (g *Guard) Release() {
	if g.released {
		return
	}
	for k := len(g.loans) - 1; k >= 0; k-- {
		g.loans[k].release()
	}
	g.loans = nil
	g.released = true

	g.state.roots--
	if g.state.roots == 0 {
		g.state.ledger = nil
	}
}

// VMConfined marks Guard as usable only on the isolate loop.
func (*Guard) VMConfined() {}

type loan struct {
	guard    *Guard
	key      borrow.Key
	mut      bool
	released bool
}

func (l *loan) release() {
	if l.released {
		return
	}
	l.released = true
	l.guard.vm.scope.iso.UnpinMemory()
	if l.mut {
		l.guard.state.ledger.SettleMut(l.key)
	} else {
		l.guard.state.ledger.Settle(l.key)
	}
}

func (l *loan) bytes() []byte {
	if l.released {
		return nil
	}
	b, err := l.guard.vm.scope.iso.BufferBytes(l.key)
	if err != nil {
		return nil
	}
	return b
}

// Ref is a shared loan. Bytes must not be written.
type Ref struct{ l *loan }

// Bytes returns the buffer contents. The slice aliases VM memory and is
// valid until Release: while any loan is held, memory either grows within
// its reserved capacity or not at all. Nil after Release.
func (r *Ref) Bytes() []byte { return r.l.bytes() }

// Key returns the loaned buffer's key.
func (r *Ref) Key() borrow.Key { return r.l.key }

// Release settles the loan. Calling it again is a no-op.
func (r *Ref) Release() { r.l.release() }

// VMConfined marks Ref as usable only on the isolate loop.
func (*Ref) VMConfined() {}

// RefMut is an exclusive loan.
type RefMut struct{ l *loan }

// Bytes returns the writable buffer contents. The slice aliases VM memory
// and is valid until Release. Nil after Release.
func (r *RefMut) Bytes() []byte { return r.l.bytes() }

// Key returns the loaned buffer's key.
func (r *RefMut) Key() borrow.Key { return r.l.key }

// Release settles the loan. Calling it again is a no-op.
func (r *RefMut) Release() { r.l.release() }

// VMConfined marks RefMut as usable only on the isolate loop.
func (*RefMut) VMConfined() {}
