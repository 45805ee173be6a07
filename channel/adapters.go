// File: channel/adapters.go
// Package channel: no-op handler bases that forward every event.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Embed one of these and override the methods you care about.

package channel

import (
	"net"

	"github.com/momentics/hioload-net/api"
)

// InboundHandlerAdapter forwards every inbound event unchanged.
type InboundHandlerAdapter struct{}

var _ api.InboundHandler = (*InboundHandlerAdapter)(nil)

func (InboundHandlerAdapter) HandlerAdded(api.HandlerContext) error   { return nil }
func (InboundHandlerAdapter) HandlerRemoved(api.HandlerContext) error { return nil }

func (InboundHandlerAdapter) ChannelRegistered(ctx api.HandlerContext) error {
	ctx.FireChannelRegistered()
	return nil
}

func (InboundHandlerAdapter) ChannelUnregistered(ctx api.HandlerContext) error {
	ctx.FireChannelUnregistered()
	return nil
}

func (InboundHandlerAdapter) ChannelActive(ctx api.HandlerContext) error {
	ctx.FireChannelActive()
	return nil
}

func (InboundHandlerAdapter) ChannelInactive(ctx api.HandlerContext) error {
	ctx.FireChannelInactive()
	return nil
}

func (InboundHandlerAdapter) ChannelRead(ctx api.HandlerContext, msg any) error {
	ctx.FireChannelRead(msg)
	return nil
}

func (InboundHandlerAdapter) ChannelReadComplete(ctx api.HandlerContext) error {
	ctx.FireChannelReadComplete()
	return nil
}

func (InboundHandlerAdapter) ChannelWritabilityChanged(ctx api.HandlerContext) error {
	ctx.FireChannelWritabilityChanged()
	return nil
}

func (InboundHandlerAdapter) UserEventTriggered(ctx api.HandlerContext, event any) error {
	ctx.FireUserEventTriggered(event)
	return nil
}

func (InboundHandlerAdapter) ExceptionCaught(ctx api.HandlerContext, cause error) {
	ctx.FireExceptionCaught(cause)
}

// OutboundHandlerAdapter forwards every outbound operation unchanged.
type OutboundHandlerAdapter struct{}

var _ api.OutboundHandler = (*OutboundHandlerAdapter)(nil)

func (OutboundHandlerAdapter) HandlerAdded(api.HandlerContext) error   { return nil }
func (OutboundHandlerAdapter) HandlerRemoved(api.HandlerContext) error { return nil }

func (OutboundHandlerAdapter) Bind(ctx api.HandlerContext, local net.Addr, promise api.Promise) {
	chain(ctx.Bind(local), promise)
}

func (OutboundHandlerAdapter) Connect(ctx api.HandlerContext, remote net.Addr, promise api.Promise) {
	chain(ctx.Connect(remote), promise)
}

func (OutboundHandlerAdapter) Disconnect(ctx api.HandlerContext, promise api.Promise) {
	chain(ctx.Disconnect(), promise)
}

func (OutboundHandlerAdapter) Close(ctx api.HandlerContext, promise api.Promise) {
	chain(ctx.Close(), promise)
}

func (OutboundHandlerAdapter) Deregister(ctx api.HandlerContext, promise api.Promise) {
	chain(ctx.Deregister(), promise)
}

func (OutboundHandlerAdapter) Read(ctx api.HandlerContext) { ctx.Read() }

func (OutboundHandlerAdapter) Write(ctx api.HandlerContext, msg any, promise api.Promise) {
	chain(ctx.Write(msg), promise)
}

func (OutboundHandlerAdapter) Flush(ctx api.HandlerContext) { ctx.Flush() }

// chain completes promise from the outcome of f.
func chain(f api.Future, promise api.Promise) {
	f.AddListener(func(done api.Future) {
		if err := done.Err(); err != nil {
			promise.TryFailure(err)
			return
		}
		promise.TrySuccess()
	})
}
