package borrow

import (
	stderrors "errors"
	"fmt"
	"sort"

	"github.com/wippyai/wasm-bridge/errors"
)

// Key identifies a buffer: Arena is the owning isolate, Index its slot in
// the isolate's buffer table.
type Key struct {
	Arena uint32
	Index uint32
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.Arena, k.Index)
}

// Ledger records outstanding loans per key.
type Ledger struct {
	shared    map[Key]int
	exclusive map[Key]struct{}
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		shared:    make(map[Key]int),
		exclusive: make(map[Key]struct{}),
	}
}

// TryBorrow registers a shared loan on k unless an exclusive loan exists.
func (l *Ledger) TryBorrow(k Key) error {
	if _, ok := l.exclusive[k]; ok {
		return errors.Mutating(k)
	}
	l.shared[k]++
	return nil
}

// TryBorrowMut registers an exclusive loan on k only if no loan of either
// kind exists.
func (l *Ledger) TryBorrowMut(k Key) error {
	if _, ok := l.exclusive[k]; ok {
		return errors.Mutating(k)
	}
	if l.shared[k] > 0 {
		return errors.Frozen(k)
	}
	l.exclusive[k] = struct{}{}
	return nil
}

// Settle releases one shared loan on k. Absent keys are ignored.
func (l *Ledger) Settle(k Key) {
	n, ok := l.shared[k]
	if !ok {
		return
	}
	if n <= 1 {
		delete(l.shared, k)
		return
	}
	l.shared[k] = n - 1
}

// SettleMut releases the exclusive loan on k. Absent keys are ignored.
func (l *Ledger) SettleMut(k Key) {
	delete(l.exclusive, k)
}

// Shared returns the number of outstanding shared loans on k.
func (l *Ledger) Shared(k Key) int {
	return l.shared[k]
}

// Exclusive reports whether an exclusive loan is outstanding on k.
func (l *Ledger) Exclusive(k Key) bool {
	_, ok := l.exclusive[k]
	return ok
}

// Len returns the number of keys with at least one outstanding loan.
func (l *Ledger) Len() int {
	return len(l.shared) + len(l.exclusive)
}

// Keys returns every loaned key in (arena, index) order.
func (l *Ledger) Keys() []Key {
	keys := make([]Key, 0, l.Len())
	for k := range l.shared {
		keys = append(keys, k)
	}
	for k := range l.exclusive {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Arena != keys[j].Arena {
			return keys[i].Arena < keys[j].Arena
		}
		return keys[i].Index < keys[j].Index
	})
	return keys
}

// KeyOf extracts the key from a loan failure returned by the ledger.
func KeyOf(err error) (Key, bool) {
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Phase != errors.PhaseBorrow {
		return Key{}, false
	}
	k, ok := e.Value.(Key)
	return k, ok
}
