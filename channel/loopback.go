// File: channel/loopback.go
// Package channel: the in-process pair transport.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A loopback pair moves buffers between two pipelines without touching
// the network. Each side may live on a different loop; delivery always
// hops through the peer's loop so handler code stays loop-confined.

package channel

import (
	"net"
	"strconv"
	"sync"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/loop"
	"github.com/momentics/hioload-net/reactor"
)

// LoopbackAddr identifies one end of a loopback pair.
type LoopbackAddr uint64

// Network implements net.Addr.
func (LoopbackAddr) Network() string { return "loopback" }

// String implements net.Addr.
func (a LoopbackAddr) String() string { return "loopback:" + strconv.FormatUint(uint64(a), 10) }

// LoopbackChannel is one end of an in-process channel pair.
type LoopbackChannel struct {
	*core
	peer *LoopbackChannel

	// preMu guards deliveries arriving before this side registered.
	preMu sync.Mutex
	pre   []api.Buffer

	// loop-confined
	inbound    []api.Buffer
	delivering bool
}

var (
	_ api.Channel    = (*LoopbackChannel)(nil)
	_ loop.IOHandler = (*LoopbackChannel)(nil)
)

// NewLoopbackPair creates two connected loopback channels. Both sides
// still need registering to a loop before traffic flows.
func NewLoopbackPair(cfgA, cfgB Config) (*LoopbackChannel, *LoopbackChannel) {
	a := &LoopbackChannel{core: newCore(nil, cfgA)}
	b := &LoopbackChannel{core: newCore(nil, cfgB)}
	a.peer, b.peer = b, a
	a.core.finish(a, a)
	b.core.finish(b, b)
	return a, b
}

func (c *LoopbackChannel) localAddr() net.Addr  { return LoopbackAddr(c.id) }
func (c *LoopbackChannel) remoteAddr() net.Addr { return LoopbackAddr(c.peer.id) }

func (c *LoopbackChannel) doRegister() error {
	if l, ok := c.EventLoop().(*loop.Loop); ok {
		l.AttachHandler(c.id, c)
	}
	c.preMu.Lock()
	queued := c.pre
	c.pre = nil
	c.preMu.Unlock()
	c.inbound = append(c.inbound, queued...)
	if len(c.inbound) > 0 {
		c.scheduleDeliver()
	}
	return nil
}

func (c *LoopbackChannel) doBind(net.Addr) error { return api.ErrNotSupported }

func (c *LoopbackChannel) doConnect(_ net.Addr, promise api.Promise) {
	// the pair is born connected
	promise.TryFailure(api.ErrNotSupported)
}

func (c *LoopbackChannel) doDisconnect() error { return api.ErrNotSupported }

func (c *LoopbackChannel) doClose() error {
	peer := c.peer
	if peer == nil || !peer.IsOpen() {
		return nil
	}
	if l := peer.EventLoop(); l != nil {
		l.Submit(func() { peer.pipeline.Close() })
		return nil
	}
	peer.pipeline.Close()
	return nil
}

func (c *LoopbackChannel) doDeregister() error {
	if l, ok := c.EventLoop().(*loop.Loop); ok {
		l.DetachHandler(c.id)
	}
	return nil
}

func (c *LoopbackChannel) doBeginRead() error {
	c.scheduleDeliver()
	return nil
}

// doFlush hands every flushed buffer to the peer.
func (c *LoopbackChannel) doFlush() {
	for {
		buf := c.out.current()
		if buf == nil {
			return
		}
		n := buf.ReadableBytes()
		buf.Retain()
		c.out.progress(n)
		c.out.remove()
		c.peer.offer(buf)
	}
}

func (c *LoopbackChannel) isActive() bool { return c.open.Load() && c.registered.Load() }

func (c *LoopbackChannel) supportsDisconnect() bool { return false }

// offer enqueues one buffer for this side's pipeline. Any goroutine.
func (c *LoopbackChannel) offer(buf api.Buffer) {
	l := c.EventLoop()
	if l == nil {
		c.preMu.Lock()
		c.pre = append(c.pre, buf)
		c.preMu.Unlock()
		return
	}
	if _, err := l.Submit(func() {
		c.inbound = append(c.inbound, buf)
		c.deliver()
	}); err != nil {
		buf.Release()
	}
}

func (c *LoopbackChannel) scheduleDeliver() {
	l := c.EventLoop()
	if l == nil {
		return
	}
	if l.InLoop() {
		c.deliver()
		return
	}
	l.Submit(func() { c.deliver() })
}

// deliver drains queued buffers through the pipeline, respecting the
// read-throttling contract.
func (c *LoopbackChannel) deliver() {
	if c.delivering || !c.IsActive() {
		return
	}
	if !c.cfg.AutoRead && !c.readPending {
		return
	}
	if len(c.inbound) == 0 {
		return
	}
	c.delivering = true
	queued := c.inbound
	c.inbound = nil
	c.readPending = false
	for _, buf := range queued {
		c.pipeline.FireChannelRead(buf)
	}
	c.delivering = false
	c.pipeline.FireChannelReadComplete()
}

// HandleEvent implements loop.IOHandler; loopback channels never see
// selector events.
func (c *LoopbackChannel) HandleEvent(reactor.Event) {}

// ForceClose implements loop.IOHandler.
func (c *LoopbackChannel) ForceClose(error) {
	c.unsafe.Close(newPromise())
}
