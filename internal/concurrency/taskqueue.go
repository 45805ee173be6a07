// File: internal/concurrency/taskqueue.go
// Package concurrency provides the event loop's submission queue.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TaskQueue couples a lock-free ring fast path with an unbounded
// overflow FIFO so Submit never rejects work. Per-producer FIFO order
// is preserved: once a producer overflows, subsequent items from every
// producer drain behind the overflowed ones.

package concurrency

import (
	"sync"

	"github.com/eapache/queue"
)

// TaskQueue is a many-producer, single-consumer FIFO of loop tasks.
type TaskQueue[T any] struct {
	ring *RingBuffer[T]

	mu       sync.Mutex
	overflow *queue.Queue
	spilled  bool
}

// NewTaskQueue creates a queue with a ring fast path of ringSize slots.
func NewTaskQueue[T any](ringSize uint64) *TaskQueue[T] {
	return &TaskQueue[T]{
		ring:     NewRingBuffer[T](ringSize),
		overflow: queue.New(),
	}
}

// Push enqueues item. Never fails; falls back to the overflow FIFO
// when the ring is full.
func (q *TaskQueue[T]) Push(item T) {
	q.mu.Lock()
	if q.spilled {
		q.overflow.Add(item)
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()

	if q.ring.Enqueue(item) {
		return
	}

	q.mu.Lock()
	q.spilled = true
	q.overflow.Add(item)
	q.mu.Unlock()
}

// Pop dequeues the next item in FIFO order.
func (q *TaskQueue[T]) Pop() (item T, ok bool) {
	if item, ok = q.ring.Dequeue(); ok {
		return item, true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.overflow.Length() == 0 {
		q.spilled = false
		return item, false
	}
	item = q.overflow.Remove().(T)
	if q.overflow.Length() == 0 {
		q.spilled = false
	}
	return item, true
}

// Len returns the total number of queued items.
func (q *TaskQueue[T]) Len() int {
	q.mu.Lock()
	n := q.overflow.Length()
	q.mu.Unlock()
	return q.ring.Len() + n
}
