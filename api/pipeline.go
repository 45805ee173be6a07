// File: api/pipeline.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pipeline is the bidirectional handler chain of one channel. Inbound
// events walk head -> tail, outbound operations walk tail -> head.

package api

import "net"

// Pipeline routes events through an ordered chain of named handlers.
//
// Mutations performed off-loop are scheduled onto the owning loop; the
// structural change is visible immediately, lifecycle hooks run on the
// loop.
type Pipeline interface {
	Channel() Channel

	AddFirst(name string, h Handler) error
	AddLast(name string, h Handler) error
	AddBefore(baseName, name string, h Handler) error
	AddAfter(baseName, name string, h Handler) error

	// Remove detaches the named handler and returns it.
	Remove(name string) (Handler, error)

	// Replace swaps the handler at oldName for h under newName.
	Replace(oldName, newName string, h Handler) error

	// Get returns the named handler, nil when absent.
	Get(name string) Handler

	// Context returns the named handler's context, nil when absent.
	Context(name string) HandlerContext

	// Names lists handler names head to tail, sentinels excluded.
	Names() []string

	FireChannelRegistered() Pipeline
	FireChannelUnregistered() Pipeline
	FireChannelActive() Pipeline
	FireChannelInactive() Pipeline
	FireChannelRead(msg any) Pipeline
	FireChannelReadComplete() Pipeline
	FireChannelWritabilityChanged() Pipeline
	FireUserEventTriggered(event any) Pipeline
	FireExceptionCaught(cause error) Pipeline

	Bind(local net.Addr) Future
	Connect(remote net.Addr) Future
	Disconnect() Future
	Close() Future
	Deregister() Future
	Read() Pipeline
	Write(msg any) Future
	Flush() Pipeline
	WriteAndFlush(msg any) Future
}

// HandlerContext binds one handler into one pipeline and walks events
// to its neighbours.
type HandlerContext interface {
	Name() string
	Handler() Handler
	Channel() Channel
	Pipeline() Pipeline
	EventLoop() EventLoop
	Allocator() Allocator

	// Fire* forward an inbound event to the next inbound-capable
	// context after this one.
	FireChannelRegistered() HandlerContext
	FireChannelUnregistered() HandlerContext
	FireChannelActive() HandlerContext
	FireChannelInactive() HandlerContext
	FireChannelRead(msg any) HandlerContext
	FireChannelReadComplete() HandlerContext
	FireChannelWritabilityChanged() HandlerContext
	FireUserEventTriggered(event any) HandlerContext
	FireExceptionCaught(cause error) HandlerContext

	// Operations walk to the previous outbound-capable context.
	Bind(local net.Addr) Future
	Connect(remote net.Addr) Future
	Disconnect() Future
	Close() Future
	Deregister() Future
	Read() HandlerContext
	Write(msg any) Future
	Flush() HandlerContext
	WriteAndFlush(msg any) Future

	NewPromise() Promise
	NewSucceededFuture() Future
	NewFailedFuture(cause error) Future
}
