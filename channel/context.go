// File: channel/context.go
// Package channel: one handler's binding into a pipeline.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Contexts form the pipeline's doubly-linked list. Inbound events walk
// next pointers toward the tail, outbound operations walk prev
// pointers toward the head. Every handler invocation runs on the
// channel's loop; off-loop callers get their event submitted.

package channel

import (
	"net"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/internal/concurrency"
)

type handlerContext struct {
	name     string
	handler  api.Handler
	pipeline *Pipeline

	prev, next *handlerContext

	inbound  bool
	outbound bool
	removed  bool
}

var _ api.HandlerContext = (*handlerContext)(nil)

func newContext(p *Pipeline, name string, h api.Handler) *handlerContext {
	_, in := h.(api.InboundHandler)
	_, out := h.(api.OutboundHandler)
	return &handlerContext{name: name, handler: h, pipeline: p, inbound: in, outbound: out}
}

func (ctx *handlerContext) Name() string             { return ctx.name }
func (ctx *handlerContext) Handler() api.Handler     { return ctx.handler }
func (ctx *handlerContext) Channel() api.Channel     { return ctx.pipeline.channel.self }
func (ctx *handlerContext) Pipeline() api.Pipeline   { return ctx.pipeline }
func (ctx *handlerContext) EventLoop() api.EventLoop { return ctx.pipeline.channel.EventLoop() }
func (ctx *handlerContext) Allocator() api.Allocator { return ctx.pipeline.channel.Allocator() }

func (ctx *handlerContext) NewPromise() api.Promise { return concurrency.NewPromise() }
func (ctx *handlerContext) NewSucceededFuture() api.Future {
	return concurrency.NewSucceededFuture()
}
func (ctx *handlerContext) NewFailedFuture(cause error) api.Future {
	return concurrency.NewFailedFuture(cause)
}

// execute runs fn on the channel's loop, inline when already there or
// when the channel has no loop yet.
func (ctx *handlerContext) execute(fn func()) {
	l := ctx.pipeline.channel.EventLoop()
	if l == nil || l.InLoop() {
		fn()
		return
	}
	if _, err := l.Submit(fn); err != nil {
		ctx.pipeline.channel.log.Error().Err(err).
			Str("handler", ctx.name).Msg("event dropped, loop down")
	}
}

func (ctx *handlerContext) findNextInbound() *handlerContext {
	c := ctx.next
	for c != nil && !c.inbound {
		c = c.next
	}
	return c
}

func (ctx *handlerContext) findPrevOutbound() *handlerContext {
	c := ctx.prev
	for c != nil && !c.outbound {
		c = c.prev
	}
	return c
}

// ---- inbound walk ----

func (ctx *handlerContext) FireChannelRegistered() api.HandlerContext {
	if next := ctx.findNextInbound(); next != nil {
		next.invokeChannelRegistered()
	}
	return ctx
}

func (ctx *handlerContext) invokeChannelRegistered() {
	ctx.execute(func() {
		if err := ctx.handler.(api.InboundHandler).ChannelRegistered(ctx); err != nil {
			ctx.FireExceptionCaught(err)
		}
	})
}

func (ctx *handlerContext) FireChannelUnregistered() api.HandlerContext {
	if next := ctx.findNextInbound(); next != nil {
		next.invokeChannelUnregistered()
	}
	return ctx
}

func (ctx *handlerContext) invokeChannelUnregistered() {
	ctx.execute(func() {
		if err := ctx.handler.(api.InboundHandler).ChannelUnregistered(ctx); err != nil {
			ctx.FireExceptionCaught(err)
		}
	})
}

func (ctx *handlerContext) FireChannelActive() api.HandlerContext {
	if next := ctx.findNextInbound(); next != nil {
		next.invokeChannelActive()
	}
	return ctx
}

func (ctx *handlerContext) invokeChannelActive() {
	ctx.execute(func() {
		if err := ctx.handler.(api.InboundHandler).ChannelActive(ctx); err != nil {
			ctx.FireExceptionCaught(err)
		}
	})
}

func (ctx *handlerContext) FireChannelInactive() api.HandlerContext {
	if next := ctx.findNextInbound(); next != nil {
		next.invokeChannelInactive()
	}
	return ctx
}

func (ctx *handlerContext) invokeChannelInactive() {
	ctx.execute(func() {
		if err := ctx.handler.(api.InboundHandler).ChannelInactive(ctx); err != nil {
			ctx.FireExceptionCaught(err)
		}
	})
}

func (ctx *handlerContext) FireChannelRead(msg any) api.HandlerContext {
	if next := ctx.findNextInbound(); next != nil {
		next.invokeChannelRead(msg)
	}
	return ctx
}

func (ctx *handlerContext) invokeChannelRead(msg any) {
	ctx.execute(func() {
		if err := ctx.handler.(api.InboundHandler).ChannelRead(ctx, msg); err != nil {
			ctx.FireExceptionCaught(err)
		}
	})
}

func (ctx *handlerContext) FireChannelReadComplete() api.HandlerContext {
	if next := ctx.findNextInbound(); next != nil {
		next.invokeChannelReadComplete()
	}
	return ctx
}

func (ctx *handlerContext) invokeChannelReadComplete() {
	ctx.execute(func() {
		if err := ctx.handler.(api.InboundHandler).ChannelReadComplete(ctx); err != nil {
			ctx.FireExceptionCaught(err)
		}
	})
}

func (ctx *handlerContext) FireChannelWritabilityChanged() api.HandlerContext {
	if next := ctx.findNextInbound(); next != nil {
		next.invokeChannelWritabilityChanged()
	}
	return ctx
}

func (ctx *handlerContext) invokeChannelWritabilityChanged() {
	ctx.execute(func() {
		if err := ctx.handler.(api.InboundHandler).ChannelWritabilityChanged(ctx); err != nil {
			ctx.FireExceptionCaught(err)
		}
	})
}

func (ctx *handlerContext) FireUserEventTriggered(event any) api.HandlerContext {
	if next := ctx.findNextInbound(); next != nil {
		next.invokeUserEventTriggered(event)
	}
	return ctx
}

func (ctx *handlerContext) invokeUserEventTriggered(event any) {
	ctx.execute(func() {
		if err := ctx.handler.(api.InboundHandler).UserEventTriggered(ctx, event); err != nil {
			ctx.FireExceptionCaught(err)
		}
	})
}

func (ctx *handlerContext) FireExceptionCaught(cause error) api.HandlerContext {
	if next := ctx.findNextInbound(); next != nil {
		next.invokeExceptionCaught(cause)
	}
	return ctx
}

func (ctx *handlerContext) invokeExceptionCaught(cause error) {
	ctx.execute(func() {
		ctx.handler.(api.InboundHandler).ExceptionCaught(ctx, cause)
	})
}

// ---- outbound walk ----

func (ctx *handlerContext) Bind(local net.Addr) api.Future {
	p := concurrency.NewPromise()
	ctx.invokeBind(local, p)
	return p
}

func (ctx *handlerContext) invokeBind(local net.Addr, promise api.Promise) {
	prev := ctx.findPrevOutbound()
	if prev == nil {
		promise.TryFailure(api.ErrHandlerNotFound)
		return
	}
	prev.execute(func() {
		prev.handler.(api.OutboundHandler).Bind(prev, local, promise)
	})
}

func (ctx *handlerContext) Connect(remote net.Addr) api.Future {
	p := concurrency.NewPromise()
	ctx.invokeConnect(remote, p)
	return p
}

func (ctx *handlerContext) invokeConnect(remote net.Addr, promise api.Promise) {
	prev := ctx.findPrevOutbound()
	if prev == nil {
		promise.TryFailure(api.ErrHandlerNotFound)
		return
	}
	prev.execute(func() {
		prev.handler.(api.OutboundHandler).Connect(prev, remote, promise)
	})
}

func (ctx *handlerContext) Disconnect() api.Future {
	p := concurrency.NewPromise()
	ctx.invokeDisconnect(p)
	return p
}

func (ctx *handlerContext) invokeDisconnect(promise api.Promise) {
	prev := ctx.findPrevOutbound()
	if prev == nil {
		promise.TryFailure(api.ErrHandlerNotFound)
		return
	}
	prev.execute(func() {
		prev.handler.(api.OutboundHandler).Disconnect(prev, promise)
	})
}

func (ctx *handlerContext) Close() api.Future {
	p := concurrency.NewPromise()
	ctx.invokeClose(p)
	return p
}

func (ctx *handlerContext) invokeClose(promise api.Promise) {
	prev := ctx.findPrevOutbound()
	if prev == nil {
		promise.TryFailure(api.ErrHandlerNotFound)
		return
	}
	prev.execute(func() {
		prev.handler.(api.OutboundHandler).Close(prev, promise)
	})
}

func (ctx *handlerContext) Deregister() api.Future {
	p := concurrency.NewPromise()
	ctx.invokeDeregister(p)
	return p
}

func (ctx *handlerContext) invokeDeregister(promise api.Promise) {
	prev := ctx.findPrevOutbound()
	if prev == nil {
		promise.TryFailure(api.ErrHandlerNotFound)
		return
	}
	prev.execute(func() {
		prev.handler.(api.OutboundHandler).Deregister(prev, promise)
	})
}

func (ctx *handlerContext) Read() api.HandlerContext {
	if prev := ctx.findPrevOutbound(); prev != nil {
		prev.execute(func() {
			prev.handler.(api.OutboundHandler).Read(prev)
		})
	}
	return ctx
}

func (ctx *handlerContext) Write(msg any) api.Future {
	p := concurrency.NewPromise()
	ctx.invokeWrite(msg, p)
	return p
}

func (ctx *handlerContext) invokeWrite(msg any, promise api.Promise) {
	prev := ctx.findPrevOutbound()
	if prev == nil {
		releaseIfBuffer(msg)
		promise.TryFailure(api.ErrHandlerNotFound)
		return
	}
	prev.execute(func() {
		prev.handler.(api.OutboundHandler).Write(prev, msg, promise)
	})
}

func (ctx *handlerContext) Flush() api.HandlerContext {
	if prev := ctx.findPrevOutbound(); prev != nil {
		prev.execute(func() {
			prev.handler.(api.OutboundHandler).Flush(prev)
		})
	}
	return ctx
}

func (ctx *handlerContext) WriteAndFlush(msg any) api.Future {
	p := concurrency.NewPromise()
	ctx.invokeWrite(msg, p)
	ctx.execute(func() { ctx.Flush() })
	return p
}

func releaseIfBuffer(msg any) {
	if buf, ok := msg.(api.Buffer); ok {
		buf.Release()
	}
}
