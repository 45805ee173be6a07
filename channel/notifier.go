// File: channel/notifier.go
// Package channel: checkpoint-based completion of flush promises.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// FlushPromiseNotifier tracks a monotonic write counter and a FIFO of
// checkpoints. A promise added while n bytes are pending gets the
// checkpoint counter+n and completes once the counter reaches it.

package channel

import (
	"github.com/eapache/queue"

	"github.com/momentics/hioload-net/api"
)

// counterRebase keeps the write counter clear of int64 overflow; when
// the counter passes it, counter and every checkpoint shift down
// together.
const counterRebase = int64(1) << 60

type flushCheckpoint struct {
	checkpoint int64
	promise    api.Promise
}

// FlushPromiseNotifier completes flush promises as transmitted bytes
// accumulate. Loop-confined, not safe for concurrent use.
type FlushPromiseNotifier struct {
	writeCounter int64
	pending      *queue.Queue
	notifying    bool
}

// NewFlushPromiseNotifier creates an empty notifier.
func NewFlushPromiseNotifier() *FlushPromiseNotifier {
	return &FlushPromiseNotifier{pending: queue.New()}
}

// WriteCounter returns the accumulated byte count.
func (n *FlushPromiseNotifier) WriteCounter() int64 { return n.writeCounter }

// Add registers promise to complete once pendingDataSize more bytes
// have been counted.
func (n *FlushPromiseNotifier) Add(promise api.Promise, pendingDataSize int64) {
	if pendingDataSize < 0 {
		pendingDataSize = 0
	}
	n.pending.Add(&flushCheckpoint{
		checkpoint: n.writeCounter + pendingDataSize,
		promise:    promise,
	})
}

// IncreaseWriteCounter records delta transmitted bytes.
func (n *FlushPromiseNotifier) IncreaseWriteCounter(delta int64) {
	n.writeCounter += delta
}

// NotifyPromises succeeds every promise whose checkpoint is satisfied.
func (n *FlushPromiseNotifier) NotifyPromises() {
	n.notify()
}

// NotifyFailure succeeds the satisfied promises and fails every other
// pending one with cause.
func (n *FlushPromiseNotifier) NotifyFailure(cause error) {
	n.notify()
	n.failRemaining(cause)
}

// NotifyFailureSplit fails the satisfied promises with satisfiedCause
// and the remainder with pendingCause. Used on abortive teardown where
// even counted bytes may never have reached the peer.
func (n *FlushPromiseNotifier) NotifyFailureSplit(satisfiedCause, pendingCause error) {
	if n.notifying {
		return
	}
	n.notifying = true
	for n.pending.Length() > 0 {
		cp := n.pending.Peek().(*flushCheckpoint)
		if cp.checkpoint > n.writeCounter {
			break
		}
		n.pending.Remove()
		cp.promise.TryFailure(satisfiedCause)
	}
	n.notifying = false
	n.failRemaining(pendingCause)
	n.resetIfEmpty()
}

func (n *FlushPromiseNotifier) notify() {
	// Promise listeners may add new checkpoints from inside this walk;
	// the guard keeps a single frame draining the queue.
	if n.notifying {
		return
	}
	n.notifying = true
	for n.pending.Length() > 0 {
		cp := n.pending.Peek().(*flushCheckpoint)
		if cp.checkpoint > n.writeCounter {
			break
		}
		n.pending.Remove()
		cp.promise.TrySuccess()
	}
	n.notifying = false
	n.resetIfEmpty()
	n.rebase()
}

func (n *FlushPromiseNotifier) failRemaining(cause error) {
	for n.pending.Length() > 0 {
		cp := n.pending.Remove().(*flushCheckpoint)
		cp.promise.TryFailure(cause)
	}
	n.resetIfEmpty()
}

// resetIfEmpty zeroes the counter once nothing is waiting, keeping the
// numbers small on long-lived channels.
func (n *FlushPromiseNotifier) resetIfEmpty() {
	if n.pending.Length() == 0 {
		n.writeCounter = 0
	}
}

func (n *FlushPromiseNotifier) rebase() {
	if n.writeCounter < counterRebase {
		return
	}
	delta := n.writeCounter
	n.writeCounter = 0
	for i, count := 0, n.pending.Length(); i < count; i++ {
		cp := n.pending.Remove().(*flushCheckpoint)
		cp.checkpoint -= delta
		n.pending.Add(cp)
	}
}
