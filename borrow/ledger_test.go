package borrow

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/wasm-bridge/errors"
)

func TestLedger_SharedLoans(t *testing.T) {
	l := NewLedger()
	k := Key{Arena: 1, Index: 3}

	if err := l.TryBorrow(k); err != nil {
		t.Fatalf("first shared loan: %v", err)
	}
	if err := l.TryBorrow(k); err != nil {
		t.Fatalf("second shared loan: %v", err)
	}
	if got := l.Shared(k); got != 2 {
		t.Fatalf("Shared = %d, want 2", got)
	}

	err := l.TryBorrowMut(k)
	if !stderrors.Is(err, errors.ErrFrozen) {
		t.Fatalf("exclusive over shared: got %v, want frozen", err)
	}
	if got, ok := KeyOf(err); !ok || got != k {
		t.Errorf("KeyOf = %v, %v", got, ok)
	}

	l.Settle(k)
	if err := l.TryBorrowMut(k); !stderrors.Is(err, errors.ErrFrozen) {
		t.Fatalf("one shared loan remains, got %v", err)
	}

	l.Settle(k)
	if err := l.TryBorrowMut(k); err != nil {
		t.Fatalf("after settling all shared loans: %v", err)
	}
}

func TestLedger_ExclusiveLoans(t *testing.T) {
	l := NewLedger()
	k := Key{Arena: 1, Index: 1}

	if err := l.TryBorrowMut(k); err != nil {
		t.Fatalf("exclusive loan: %v", err)
	}
	if !l.Exclusive(k) {
		t.Fatal("Exclusive should report the loan")
	}

	tests := []struct {
		name   string
		borrow func(Key) error
	}{
		{"second exclusive", l.TryBorrowMut},
		{"shared over exclusive", l.TryBorrow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.borrow(k)
			if !stderrors.Is(err, errors.ErrMutating) {
				t.Fatalf("got %v, want mutating", err)
			}
			if got, _ := KeyOf(err); got != k {
				t.Errorf("KeyOf = %v, want %v", got, k)
			}
		})
	}

	l.SettleMut(k)
	if err := l.TryBorrow(k); err != nil {
		t.Fatalf("shared after exclusive settled: %v", err)
	}
}

func TestLedger_KeysAreIndependent(t *testing.T) {
	l := NewLedger()
	a := Key{Arena: 1, Index: 1}
	b := Key{Arena: 1, Index: 2}
	c := Key{Arena: 2, Index: 1}

	if err := l.TryBorrowMut(a); err != nil {
		t.Fatal(err)
	}
	if err := l.TryBorrowMut(b); err != nil {
		t.Fatalf("different index: %v", err)
	}
	if err := l.TryBorrowMut(c); err != nil {
		t.Fatalf("different arena: %v", err)
	}

	keys := l.Keys()
	if len(keys) != 3 || keys[0] != a || keys[1] != b || keys[2] != c {
		t.Errorf("Keys = %v", keys)
	}
}

func TestLedger_SettleAbsentIsNoop(t *testing.T) {
	l := NewLedger()
	held := Key{Arena: 1, Index: 1}
	other := Key{Arena: 1, Index: 9}

	if err := l.TryBorrow(held); err != nil {
		t.Fatal(err)
	}

	l.Settle(other)
	l.SettleMut(other)
	l.SettleMut(held)

	if l.Shared(held) != 1 {
		t.Errorf("Shared(held) = %d, want 1", l.Shared(held))
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1", l.Len())
	}

	l.Settle(held)
	l.Settle(held)
	if l.Len() != 0 {
		t.Errorf("Len = %d, want 0", l.Len())
	}
	if err := l.TryBorrowMut(held); err != nil {
		t.Errorf("exclusive after over-settling: %v", err)
	}
}

func TestKeyOf_ForeignError(t *testing.T) {
	if _, ok := KeyOf(stderrors.New("boom")); ok {
		t.Error("KeyOf should reject foreign errors")
	}
	if _, ok := KeyOf(errors.ErrThrow); ok {
		t.Error("KeyOf should reject non-borrow errors")
	}
}
