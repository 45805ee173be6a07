// File: api/channel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Channel is one communication endpoint: a socket, a listener or an
// in-process loopback. All user-visible state mutation happens on the
// channel's owning event loop.

package api

import "net"

// Channel represents a single communicating endpoint with a pipeline.
//
// Lifecycle: Unregistered -> Registered -> Active -> Inactive -> Closed.
// Transitions are one-way; a closed channel never reopens.
type Channel interface {
	// ID returns the channel's stable identifier.
	ID() uint64

	// EventLoop returns the owning loop, nil before registration.
	EventLoop() EventLoop

	// Parent returns the server channel that spawned this one, or nil.
	Parent() Channel

	// Pipeline is never nil and never empty (head and tail always exist).
	Pipeline() Pipeline

	// Allocator used for this channel's receive buffers.
	Allocator() Allocator

	LocalAddr() net.Addr
	RemoteAddr() net.Addr

	IsRegistered() bool
	IsActive() bool
	IsOpen() bool

	// IsWritable is true while queued outbound bytes sit below the
	// high-water mark. Every edge fires channelWritabilityChanged.
	IsWritable() bool

	// Bind assigns the local address (listeners become active).
	Bind(local net.Addr) Future

	// Connect establishes the remote peer.
	Connect(remote net.Addr) Future

	// Disconnect terminates the peer link; on stream transports this
	// is equivalent to Close.
	Disconnect() Future

	// Close initiates orderly teardown. Idempotent; every call returns
	// the same close future.
	Close() Future

	// CloseFuture resolves once teardown finished.
	CloseFuture() Future

	// Deregister detaches the channel from its loop. Before activation
	// the channel may be registered again to a different loop.
	Deregister() Future

	// Read requests one read from the transport when auto-read is off.
	Read()

	// Write enqueues msg in the outbound buffer without flushing.
	Write(msg any) Future

	// Flush asks the transport to transmit queued outbound bytes.
	Flush()

	// WriteAndFlush combines Write and Flush.
	WriteAndFlush(msg any) Future

	// Unsafe exposes the transport-facing primitives consumed by the
	// pipeline head and the event loop. Not for application use.
	Unsafe() Unsafe
}

// Unsafe bundles the I/O primitives of a channel. Every method must be
// invoked from the owning event loop.
type Unsafe interface {
	Register(loop EventLoop, promise Promise)
	Bind(local net.Addr, promise Promise)
	Connect(remote net.Addr, promise Promise)
	Disconnect(promise Promise)
	Close(promise Promise)
	Deregister(promise Promise)
	BeginRead()
	Write(msg any, promise Promise)
	Flush()
}
