// Package borrow implements the runtime loan ledger that arbitrates direct
// access to VM-owned buffers.
//
// Native code can obtain a zero-copy view into a buffer that lives in an
// isolate's linear memory. Nothing in the VM prevents two such views from
// aliasing, so the ledger applies shared/exclusive borrow rules at runtime:
//
//	any number of shared loans   XOR   exactly one exclusive loan
//
// Loans are keyed by Key (isolate arena + buffer slot index), not by
// address, so keys stay valid when linear memory grows and moves.
//
//	l := borrow.NewLedger()
//	if err := l.TryBorrow(k); err != nil { ... }      // fails with errors.ErrMutating
//	defer l.Settle(k)
//	if err := l.TryBorrowMut(k); err != nil { ... }   // fails with errors.ErrFrozen
//
// Shared loans are counted: two shared loans on the same key need two
// Settle calls before an exclusive loan can be taken.
//
// A Ledger is owned by one guard root on the VM thread and is not safe for
// concurrent use.
package borrow
