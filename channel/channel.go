// File: channel/channel.go
// Package channel: shared channel state machine and transport bridge.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// core carries everything transports have in common: identity, config,
// pipeline, outbound buffer and lifecycle flags. Concrete transports
// embed it and plug in through the transport interface; the unsafe
// methods below run the state machine on the owning loop.

package channel

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/internal/concurrency"
	"github.com/momentics/hioload-net/pool"
)

// DefaultAllocator backs channels whose config names no allocator.
var DefaultAllocator api.Allocator = pool.NewPooledAllocator()

// Config carries per-channel tunables.
type Config struct {
	// Allocator for receive buffers. Nil means DefaultAllocator.
	Allocator api.Allocator

	// AutoRead keeps the channel reading without explicit Read calls.
	AutoRead bool

	// WriteBufferHighWaterMark turns the channel unwritable when
	// pending outbound bytes exceed it. Zero means the default.
	WriteBufferHighWaterMark int

	// WriteBufferLowWaterMark turns the channel writable again once
	// pending outbound bytes drop below it. Zero means the default.
	WriteBufferLowWaterMark int

	// Logger for channel diagnostics. Zero value logs nowhere.
	Logger *zerolog.Logger
}

// DefaultConfig returns the auto-read config with default watermarks.
func DefaultConfig() Config {
	return Config{AutoRead: true}
}

func (c Config) withDefaults() Config {
	if c.Allocator == nil {
		c.Allocator = DefaultAllocator
	}
	if c.WriteBufferHighWaterMark <= 0 {
		c.WriteBufferHighWaterMark = DefaultHighWaterMark
	}
	if c.WriteBufferLowWaterMark <= 0 {
		c.WriteBufferLowWaterMark = DefaultLowWaterMark
	}
	return c
}

// transport is the per-kind half of a channel. Every method runs on
// the owning loop.
type transport interface {
	localAddr() net.Addr
	remoteAddr() net.Addr

	// doRegister attaches the transport to the loop's selector.
	doRegister() error

	doBind(local net.Addr) error
	doConnect(remote net.Addr, promise api.Promise)
	doDisconnect() error
	doClose() error
	doDeregister() error
	doBeginRead() error
	doFlush()

	// isActive reports transport-level liveness, consulted after
	// register and bind.
	isActive() bool

	// supportsDisconnect is false for stream transports, where
	// disconnect degrades to close.
	supportsDisconnect() bool
}

var channelIDs atomic.Uint64

// core implements the transport-independent part of api.Channel.
type core struct {
	id     uint64
	parent api.Channel
	self   api.Channel
	t      transport

	cfg   Config
	log   zerolog.Logger
	sizer *recvSizer

	pipeline *Pipeline
	out      *outboundBuffer
	unsafe   api.Unsafe

	loopRef atomic.Value // api.EventLoop

	open       atomic.Bool
	registered atomic.Bool
	active     atomic.Bool

	closeOnce sync.Once
	closeP    *concurrency.Promise

	// loop-confined
	readPending bool
}

func newCore(parent api.Channel, cfg Config) *core {
	cfg = cfg.withDefaults()
	c := &core{
		id:     channelIDs.Add(1),
		parent: parent,
		cfg:    cfg,
		log:    zerolog.Nop(),
		sizer:  newRecvSizer(),
		closeP: concurrency.NewPromise(),
	}
	if cfg.Logger != nil {
		c.log = *cfg.Logger
	}
	c.open.Store(true)
	c.pipeline = newPipeline(c)
	c.out = newOutboundBuffer(c)
	c.unsafe = &channelUnsafe{ch: c}
	return c
}

// finish wires the concrete channel and its transport into the core.
func (c *core) finish(self api.Channel, t transport) {
	c.self = self
	c.t = t
}

// ID implements api.Channel.
func (c *core) ID() uint64 { return c.id }

// EventLoop implements api.Channel.
func (c *core) EventLoop() api.EventLoop {
	if l, ok := c.loopRef.Load().(api.EventLoop); ok {
		return l
	}
	return nil
}

// Parent implements api.Channel.
func (c *core) Parent() api.Channel { return c.parent }

// Pipeline implements api.Channel.
func (c *core) Pipeline() api.Pipeline { return c.pipeline }

// Allocator implements api.Channel.
func (c *core) Allocator() api.Allocator { return c.cfg.Allocator }

// LocalAddr implements api.Channel.
func (c *core) LocalAddr() net.Addr { return c.t.localAddr() }

// RemoteAddr implements api.Channel.
func (c *core) RemoteAddr() net.Addr { return c.t.remoteAddr() }

// IsRegistered implements api.Channel.
func (c *core) IsRegistered() bool { return c.registered.Load() }

// IsActive implements api.Channel.
func (c *core) IsActive() bool { return c.active.Load() }

// IsOpen implements api.Channel.
func (c *core) IsOpen() bool { return c.open.Load() }

// IsWritable implements api.Channel.
func (c *core) IsWritable() bool { return c.out.isWritable() }

// Bind implements api.Channel.
func (c *core) Bind(local net.Addr) api.Future { return c.pipeline.Bind(local) }

// Connect implements api.Channel.
func (c *core) Connect(remote net.Addr) api.Future { return c.pipeline.Connect(remote) }

// Disconnect implements api.Channel.
func (c *core) Disconnect() api.Future { return c.pipeline.Disconnect() }

// Close implements api.Channel.
func (c *core) Close() api.Future {
	c.closeOnce.Do(func() { c.pipeline.Close() })
	return c.closeP
}

// CloseFuture implements api.Channel.
func (c *core) CloseFuture() api.Future { return c.closeP }

// Deregister implements api.Channel.
func (c *core) Deregister() api.Future { return c.pipeline.Deregister() }

// Read implements api.Channel.
func (c *core) Read() { c.pipeline.Read() }

// Write implements api.Channel.
func (c *core) Write(msg any) api.Future { return c.pipeline.Write(msg) }

// Flush implements api.Channel.
func (c *core) Flush() { c.pipeline.Flush() }

// WriteAndFlush implements api.Channel.
func (c *core) WriteAndFlush(msg any) api.Future { return c.pipeline.WriteAndFlush(msg) }

// Unsafe implements api.Channel.
func (c *core) Unsafe() api.Unsafe { return c.unsafe }

func newPromise() api.Promise { return concurrency.NewPromise() }

// markActive flips the active flag and fires channelActive once.
func (c *core) markActive() {
	if c.active.CompareAndSwap(false, true) {
		c.pipeline.FireChannelActive()
	}
}

// channelUnsafe implements api.Unsafe over the core state machine.
type channelUnsafe struct {
	ch *core
}

var _ api.Unsafe = (*channelUnsafe)(nil)

// Register implements api.Unsafe.
func (u *channelUnsafe) Register(l api.EventLoop, promise api.Promise) {
	c := u.ch
	if c.registered.Load() {
		promise.TryFailure(api.ErrAlreadyRegistered)
		return
	}
	if !c.open.Load() {
		promise.TryFailure(api.ErrChannelClosed)
		return
	}
	c.loopRef.Store(l)
	if err := c.t.doRegister(); err != nil {
		promise.TryFailure(err)
		return
	}
	c.registered.Store(true)
	c.pipeline.FireChannelRegistered()
	if c.t.isActive() {
		c.markActive()
	}
	promise.TrySuccess()
}

// Bind implements api.Unsafe.
func (u *channelUnsafe) Bind(local net.Addr, promise api.Promise) {
	c := u.ch
	if !c.open.Load() {
		promise.TryFailure(api.ErrChannelClosed)
		return
	}
	if err := c.t.doBind(local); err != nil {
		promise.TryFailure(err)
		c.pipeline.FireExceptionCaught(err)
		return
	}
	promise.TrySuccess()
	if c.t.isActive() {
		c.markActive()
	}
}

// Connect implements api.Unsafe.
func (u *channelUnsafe) Connect(remote net.Addr, promise api.Promise) {
	c := u.ch
	if !c.open.Load() {
		promise.TryFailure(api.ErrChannelClosed)
		return
	}
	c.t.doConnect(remote, promise)
}

// Disconnect implements api.Unsafe.
func (u *channelUnsafe) Disconnect(promise api.Promise) {
	c := u.ch
	if !c.t.supportsDisconnect() {
		u.Close(promise)
		return
	}
	if err := c.t.doDisconnect(); err != nil {
		promise.TryFailure(err)
		return
	}
	if c.active.CompareAndSwap(true, false) {
		c.pipeline.FireChannelInactive()
	}
	promise.TrySuccess()
}

// Close implements api.Unsafe.
func (u *channelUnsafe) Close(promise api.Promise) {
	c := u.ch
	if !c.open.CompareAndSwap(true, false) {
		// already closing, settle when the first close finishes
		c.closeP.AddListener(func(f api.Future) {
			if err := f.Err(); err != nil {
				promise.TryFailure(err)
				return
			}
			promise.TrySuccess()
		})
		return
	}
	c.out.failAll(api.ErrChannelClosed)
	err := c.t.doClose()
	if c.active.CompareAndSwap(true, false) {
		c.pipeline.FireChannelInactive()
	}
	u.deregisterQuietly()
	if err != nil {
		c.log.Warn().Err(err).Uint64("channel", c.id).Msg("transport close failed")
	}
	c.closeP.TrySuccess()
	promise.TrySuccess()
}

// Deregister implements api.Unsafe.
func (u *channelUnsafe) Deregister(promise api.Promise) {
	c := u.ch
	if !c.registered.Load() {
		promise.TryFailure(api.ErrNotRegistered)
		return
	}
	u.deregisterQuietly()
	promise.TrySuccess()
}

func (u *channelUnsafe) deregisterQuietly() {
	c := u.ch
	if !c.registered.CompareAndSwap(true, false) {
		return
	}
	if err := c.t.doDeregister(); err != nil {
		c.log.Warn().Err(err).Uint64("channel", c.id).Msg("deregister failed")
	}
	c.pipeline.FireChannelUnregistered()
}

// BeginRead implements api.Unsafe.
func (u *channelUnsafe) BeginRead() {
	c := u.ch
	if !c.active.Load() {
		c.readPending = true
		return
	}
	c.readPending = true
	if err := c.t.doBeginRead(); err != nil {
		c.pipeline.FireExceptionCaught(err)
	}
}

// Write implements api.Unsafe.
func (u *channelUnsafe) Write(msg any, promise api.Promise) {
	c := u.ch
	buf, ok := msg.(api.Buffer)
	if !ok {
		promise.TryFailure(&api.ProtocolError{Message: "unsupported outbound message type"})
		return
	}
	c.out.addMessage(buf, promise)
}

// Flush implements api.Unsafe.
func (u *channelUnsafe) Flush() {
	c := u.ch
	c.out.addFlush()
	if !c.out.isEmpty() {
		c.t.doFlush()
	}
}
