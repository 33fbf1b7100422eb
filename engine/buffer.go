package engine

import (
	"strconv"

	"github.com/wippyai/wasm-bridge/borrow"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/heap"
)

const bufferAlign = 8

// bufferRegion is a buffer's placement in linear memory.
type bufferRegion struct {
	offset uint32
	length uint32
}

// NewBuffer allocates a zeroed buffer of size bytes in linear memory,
// growing the memory when needed.
func (i *Isolate) NewBuffer(size uint32) (Value, error) {
	if i.HasException() {
		return Value{}, errors.ErrThrow
	}
	off, err := i.allocate(size)
	if err != nil {
		return Value{}, err
	}
	if size > 0 {
		region, ok := i.memory.Read(off, size)
		if !ok {
			return Value{}, errors.AllocationFailed(errors.PhaseMemory, size, nil)
		}
		clear(region)
	}
	bh, err := i.buffers.Insert(bufferRegion{offset: off, length: size})
	if err != nil {
		return Value{}, errors.Closed(errors.PhaseMemory, "isolate heap")
	}
	return i.alloc(&Object{kind: KindBuffer, buffer: bh})
}

// allocate bumps the break pointer. Buffer memory is never reused.
func (i *Isolate) allocate(size uint32) (uint32, error) {
	off := uint64(i.brk)
	end := off + uint64(size)
	if end > 1<<32 {
		return 0, errors.AllocationFailed(errors.PhaseMemory, size, nil)
	}

	if have := uint64(i.memory.Size()); end > have {
		pages := (end - have + pageSize - 1) / pageSize
		if i.pins > 0 && !i.reserved {
			return 0, errors.New(errors.PhaseMemory, errors.KindAllocation).
				Detail("cannot grow memory by %d pages while %d buffer loans are outstanding", pages, i.pins).
				Build()
		}
		if _, ok := i.memory.Grow(uint32(pages)); !ok {
			return 0, errors.AllocationFailed(errors.PhaseMemory, size, nil)
		}
		debugf("isolate %d grew memory by %d pages", i.id, pages)
	}

	next := (end + bufferAlign - 1) &^ (bufferAlign - 1)
	if next > 1<<32-1 {
		next = 1<<32 - 1
	}
	i.brk = uint32(next)
	return uint32(off), nil
}

// BufferKey returns the ledger key of a buffer value.
func (i *Isolate) BufferKey(v Value) (borrow.Key, error) {
	o, err := i.objectOf(v, KindBuffer, "buffer")
	if err != nil {
		return borrow.Key{}, err
	}
	return borrow.Key{Arena: i.id, Index: uint32(o.buffer)}, nil
}

// BufferRegion returns the offset and length of the buffer behind k.
func (i *Isolate) BufferRegion(k borrow.Key) (offset, length uint32, err error) {
	if k.Arena != i.id {
		return 0, 0, errors.InvalidInput(errors.PhaseMemory, "buffer belongs to isolate "+strconv.FormatUint(uint64(k.Arena), 10))
	}
	r, ok := i.buffers.Get(heap.Handle(k.Index))
	if !ok {
		return 0, 0, errors.NotFound(errors.PhaseMemory, "buffer", k.String())
	}
	return r.offset, r.length, nil
}

// PinMemory records an outstanding view into linear memory. Without a
// reserved capacity, growth would move the memory, so allocations that
// need to grow fail until every pin is dropped.
func (i *Isolate) PinMemory() { i.pins++ }

// UnpinMemory drops a pin taken by PinMemory.
func (i *Isolate) UnpinMemory() {
	if i.pins > 0 {
		i.pins--
	}
}

// BufferBytes returns a view of the buffer's bytes in linear memory. The
// view is only stable while the memory is pinned; callers hold it for the
// duration of a loan.
func (i *Isolate) BufferBytes(k borrow.Key) ([]byte, error) {
	off, n, err := i.BufferRegion(k)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	b, ok := i.memory.Read(off, n)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseMemory, []string{k.String()}, int(off)+int(n), int(i.memory.Size()))
	}
	return b, nil
}
