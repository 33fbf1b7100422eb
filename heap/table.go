package heap

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("heap table closed")

// Handle is an opaque reference to a slot in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Dropper is optionally implemented by values that need cleanup when the
// table is closed.
type Dropper interface {
	Drop()
}

// Table is an in-memory slot table with free-list reuse.
type Table[T any] struct {
	entries  []entry[T]
	freeList []Handle
	live     int
	mu       sync.RWMutex
	closed   bool
}

type entry[T any] struct {
	value T
	valid bool
}

// NewTable creates an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{
		entries:  make([]entry[T], 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

// Insert stores a value and returns its handle.
func (t *Table[T]) Insert(value T) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, ErrClosed
	}

	e := entry[T]{value: value, valid: true}
	t.live++

	if len(t.freeList) > 0 {
		h := t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.entries[h-1] = e
		return h, nil
	}

	t.entries = append(t.entries, e)
	return Handle(len(t.entries)), nil
}

// Get retrieves a value by handle.
func (t *Table[T]) Get(h Handle) (T, bool) {
	var zero T
	if h == 0 {
		return zero, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	idx := h - 1
	if int(idx) >= len(t.entries) {
		return zero, false
	}

	e := t.entries[idx]
	if !e.valid {
		return zero, false
	}
	return e.value, true
}

// Replace overwrites the value stored at h. It returns false if h is invalid.
func (t *Table[T]) Replace(h Handle, value T) bool {
	if h == 0 {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	idx := h - 1
	if int(idx) >= len(t.entries) || !t.entries[idx].valid {
		return false
	}
	t.entries[idx].value = value
	return true
}

// Remove drops a slot and returns (value, true) if it was live.
func (t *Table[T]) Remove(h Handle) (T, bool) {
	var zero T
	if h == 0 {
		return zero, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	idx := h - 1
	if int(idx) >= len(t.entries) {
		return zero, false
	}

	e := &t.entries[idx]
	if !e.valid {
		return zero, false
	}

	value := e.value
	e.valid = false
	e.value = zero
	t.live--
	t.freeList = append(t.freeList, h)

	return value, true
}

// Len returns the number of live slots.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// Each iterates over all live slots until fn returns false.
func (t *Table[T]) Each(fn func(Handle, T) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i, e := range t.entries {
		if e.valid {
			if !fn(Handle(i+1), e.value) {
				break
			}
		}
	}
}

// Close drops every live slot and stops accepting inserts.
func (t *Table[T]) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	var zero T
	for i := range t.entries {
		if t.entries[i].valid {
			if d, ok := any(t.entries[i].value).(Dropper); ok {
				d.Drop()
			}
			t.entries[i].valid = false
			t.entries[i].value = zero
		}
	}

	t.entries = nil
	t.freeList = nil
	t.live = 0
	return nil
}
