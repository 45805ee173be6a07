// File: channel/outbound.go
// Package channel: the per-channel queue of pending writes.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Writes accumulate unflushed until a flush marks them transmittable.
// Pending byte totals drive the channel's writability flag: crossing
// the high-water mark clears it, draining below the low-water mark
// sets it again, and every edge fires channelWritabilityChanged.

package channel

import (
	"sync/atomic"

	"github.com/momentics/hioload-net/api"
)

const (
	// DefaultHighWaterMark is the pending-byte count above which a
	// channel reports unwritable.
	DefaultHighWaterMark = 64 * 1024

	// DefaultLowWaterMark is the pending-byte count below which a
	// channel turns writable again.
	DefaultLowWaterMark = 32 * 1024
)

type pendingWrite struct {
	buf     api.Buffer
	size    int64
	promise api.Promise
	next    *pendingWrite
}

// outboundBuffer is loop-confined except for the writable flag, which
// other goroutines read through Channel.IsWritable.
type outboundBuffer struct {
	ch *core

	unflushedHead *pendingWrite
	unflushedTail *pendingWrite
	flushedHead   *pendingWrite
	flushedTail   *pendingWrite

	notifier *FlushPromiseNotifier

	pendingBytes int64
	writable     atomic.Bool
	closed       bool
}

func newOutboundBuffer(ch *core) *outboundBuffer {
	b := &outboundBuffer{ch: ch, notifier: NewFlushPromiseNotifier()}
	b.writable.Store(true)
	return b
}

func (b *outboundBuffer) isWritable() bool { return b.writable.Load() }

// addMessage queues one unflushed write.
func (b *outboundBuffer) addMessage(buf api.Buffer, promise api.Promise) {
	if b.closed {
		buf.Release()
		promise.TryFailure(api.ErrChannelClosed)
		return
	}
	e := &pendingWrite{buf: buf, size: int64(buf.ReadableBytes()), promise: promise}
	if b.unflushedTail == nil {
		b.unflushedHead, b.unflushedTail = e, e
	} else {
		b.unflushedTail.next = e
		b.unflushedTail = e
	}
	b.incrementPending(e.size)
}

// addFlush marks every queued write transmittable. Promises move into
// the notifier with a checkpoint at the entry's last byte.
func (b *outboundBuffer) addFlush() {
	if b.unflushedHead == nil {
		return
	}
	var ahead int64
	for cur := b.flushedHead; cur != nil; cur = cur.next {
		ahead += int64(cur.buf.ReadableBytes())
	}
	for e := b.unflushedHead; e != nil; e = e.next {
		ahead += int64(e.buf.ReadableBytes())
		b.notifier.Add(e.promise, ahead)
		e.promise = nil
	}
	if b.flushedTail == nil {
		b.flushedHead, b.flushedTail = b.unflushedHead, b.unflushedTail
	} else {
		b.flushedTail.next = b.unflushedHead
		b.flushedTail = b.unflushedTail
	}
	b.unflushedHead, b.unflushedTail = nil, nil
}

// current returns the first flushed entry's buffer, nil when drained.
func (b *outboundBuffer) current() api.Buffer {
	if b.flushedHead == nil {
		return nil
	}
	return b.flushedHead.buf
}

// progress records n transmitted bytes of the current entry.
func (b *outboundBuffer) progress(n int) {
	b.notifier.IncreaseWriteCounter(int64(n))
	b.notifier.NotifyPromises()
	b.decrementPending(int64(n))
}

// remove discards the fully transmitted current entry.
func (b *outboundBuffer) remove() {
	e := b.flushedHead
	if e == nil {
		return
	}
	b.flushedHead = e.next
	if b.flushedHead == nil {
		b.flushedTail = nil
	}
	e.buf.Release()
	e.next = nil
}

// isEmpty reports no flushed entries remain.
func (b *outboundBuffer) isEmpty() bool { return b.flushedHead == nil }

// failAll releases every entry and fails every promise, used on close.
func (b *outboundBuffer) failAll(cause error) {
	if b.closed {
		return
	}
	b.closed = true
	for e := b.unflushedHead; e != nil; e = e.next {
		b.decrementPending(int64(e.buf.ReadableBytes()))
		e.buf.Release()
		e.promise.TryFailure(cause)
	}
	b.unflushedHead, b.unflushedTail = nil, nil
	for e := b.flushedHead; e != nil; e = e.next {
		b.decrementPending(int64(e.buf.ReadableBytes()))
		e.buf.Release()
	}
	b.flushedHead, b.flushedTail = nil, nil
	b.notifier.NotifyFailureSplit(cause, cause)
}

func (b *outboundBuffer) incrementPending(n int64) {
	b.pendingBytes += n
	if b.pendingBytes > int64(b.ch.cfg.WriteBufferHighWaterMark) && b.writable.CompareAndSwap(true, false) {
		b.ch.pipeline.FireChannelWritabilityChanged()
	}
}

func (b *outboundBuffer) decrementPending(n int64) {
	b.pendingBytes -= n
	if b.pendingBytes < int64(b.ch.cfg.WriteBufferLowWaterMark) && b.writable.CompareAndSwap(false, true) {
		b.ch.pipeline.FireChannelWritabilityChanged()
	}
}
