// File: internal/concurrency/ring.go
// Package concurrency implements lock-free ring buffers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RingBuffer is a bounded circular buffer with per-slot sequence
// numbers, padded to prevent false sharing. Safe for many producers
// and many consumers; the event loop uses it single-consumer.

package concurrency

import (
	"runtime"
	"sync/atomic"
)

type ringSlot[T any] struct {
	seq  atomic.Uint64
	item T
}

// RingBuffer is a bounded lock-free FIFO.
type RingBuffer[T any] struct {
	mask  uint64
	slots []ringSlot[T]
	_     [64]byte // Padding for hot/cold separation
	head  atomic.Uint64
	_     [64]byte
	tail  atomic.Uint64
	_     [64]byte
}

// NewRingBuffer allocates a ring buffer of power-of-two size.
func NewRingBuffer[T any](size uint64) *RingBuffer[T] {
	if size == 0 || size&(size-1) != 0 {
		panic("ring size must be power of two")
	}
	r := &RingBuffer[T]{
		mask:  size - 1,
		slots: make([]ringSlot[T], size),
	}
	for i := range r.slots {
		r.slots[i].seq.Store(uint64(i))
	}
	return r
}

// Enqueue adds item; returns false if full.
func (r *RingBuffer[T]) Enqueue(item T) bool {
	for {
		tail := r.tail.Load()
		slot := &r.slots[tail&r.mask]
		seq := slot.seq.Load()
		switch {
		case seq == tail:
			if r.tail.CompareAndSwap(tail, tail+1) {
				slot.item = item
				slot.seq.Store(tail + 1)
				return true
			}
		case seq < tail:
			return false
		default:
			runtime.Gosched()
		}
	}
}

// Dequeue removes and returns an item; ok false if empty.
func (r *RingBuffer[T]) Dequeue() (item T, ok bool) {
	for {
		head := r.head.Load()
		slot := &r.slots[head&r.mask]
		seq := slot.seq.Load()
		switch {
		case seq == head+1:
			if r.head.CompareAndSwap(head, head+1) {
				item = slot.item
				var zero T
				slot.item = zero
				slot.seq.Store(head + uint64(len(r.slots)))
				return item, true
			}
		case seq <= head:
			return item, false
		default:
			runtime.Gosched()
		}
	}
}

// Len returns the number of items currently buffered.
func (r *RingBuffer[T]) Len() int {
	head := r.head.Load()
	tail := r.tail.Load()
	if tail < head {
		return 0
	}
	return int(tail - head)
}

// Cap returns the fixed buffer capacity.
func (r *RingBuffer[T]) Cap() int { return len(r.slots) }

// IsEmpty reports an empty ring.
func (r *RingBuffer[T]) IsEmpty() bool { return r.Len() == 0 }

// IsFull reports a full ring.
func (r *RingBuffer[T]) IsFull() bool { return r.Len() == len(r.slots) }
