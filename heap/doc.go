// Package heap provides the index-handle slot tables that back an isolate's
// managed objects, binary buffers and persistent roots.
//
// A Table maps non-zero integer handles to values:
//
//	objects := heap.NewTable[*Object]()
//
//	// Insert a value, get a handle
//	id := objects.Insert(obj)
//
//	// Retrieve value by handle
//	obj, ok := objects.Get(id)
//
//	// Remove and get value
//	obj, ok = objects.Remove(id)
//
// Handle 0 is reserved and always invalid. Removed slots are recycled
// through a free list, so a handle must not be used after Remove.
//
// Handles are stable logical identifiers: they never change when the
// underlying storage moves (for example when linear memory grows), which is
// why the borrow ledger keys loans by buffer handle instead of by address.
package heap
