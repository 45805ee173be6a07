// File: channel/pipeline.go
// Package channel: the handler chain of one channel.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A pipeline always contains the head and tail sentinels. Head bridges
// outbound operations into the channel's transport; tail terminates
// inbound events, releasing leaked buffers and logging stray errors.

package channel

import (
	"fmt"
	"net"
	"sync"

	"github.com/momentics/hioload-net/api"
)

// Pipeline implements api.Pipeline as a doubly-linked context chain.
type Pipeline struct {
	channel *core

	mu   sync.Mutex
	head *handlerContext
	tail *handlerContext

	nextNameID int
}

var _ api.Pipeline = (*Pipeline)(nil)

func newPipeline(ch *core) *Pipeline {
	p := &Pipeline{channel: ch}
	p.head = newContext(p, "head", &headHandler{ch: ch})
	p.tail = newContext(p, "tail", &tailHandler{ch: ch})
	p.head.next = p.tail
	p.tail.prev = p.head
	return p
}

// Channel implements api.Pipeline.
func (p *Pipeline) Channel() api.Channel { return p.channel.self }

func (p *Pipeline) generateName(h api.Handler) string {
	name := fmt.Sprintf("%T#%d", h, p.nextNameID)
	p.nextNameID++
	return name
}

func (p *Pipeline) checkName(name string) error {
	if name == p.head.name || name == p.tail.name {
		return api.ErrDuplicateName
	}
	for ctx := p.head.next; ctx != p.tail; ctx = ctx.next {
		if ctx.name == name {
			return api.ErrDuplicateName
		}
	}
	return nil
}

func (p *Pipeline) find(name string) *handlerContext {
	for ctx := p.head.next; ctx != p.tail; ctx = ctx.next {
		if ctx.name == name {
			return ctx
		}
	}
	return nil
}

func (p *Pipeline) insert(prev *handlerContext, name string, h api.Handler) error {
	if name == "" {
		name = p.generateName(h)
	}
	if err := p.checkName(name); err != nil {
		return err
	}
	ctx := newContext(p, name, h)
	ctx.prev = prev
	ctx.next = prev.next
	prev.next.prev = ctx
	prev.next = ctx
	ctx.execute(func() {
		if err := ctx.handler.HandlerAdded(ctx); err != nil {
			p.FireExceptionCaught(err)
		}
	})
	return nil
}

// AddFirst implements api.Pipeline.
func (p *Pipeline) AddFirst(name string, h api.Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.insert(p.head, name, h)
}

// AddLast implements api.Pipeline.
func (p *Pipeline) AddLast(name string, h api.Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.insert(p.tail.prev, name, h)
}

// AddBefore implements api.Pipeline.
func (p *Pipeline) AddBefore(baseName, name string, h api.Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	base := p.find(baseName)
	if base == nil {
		return api.ErrHandlerNotFound
	}
	return p.insert(base.prev, name, h)
}

// AddAfter implements api.Pipeline.
func (p *Pipeline) AddAfter(baseName, name string, h api.Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	base := p.find(baseName)
	if base == nil {
		return api.ErrHandlerNotFound
	}
	return p.insert(base, name, h)
}

func (p *Pipeline) unlink(ctx *handlerContext) {
	ctx.prev.next = ctx.next
	ctx.next.prev = ctx.prev
	ctx.removed = true
	ctx.execute(func() {
		if err := ctx.handler.HandlerRemoved(ctx); err != nil {
			p.FireExceptionCaught(err)
		}
	})
}

// Remove implements api.Pipeline.
func (p *Pipeline) Remove(name string) (api.Handler, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ctx := p.find(name)
	if ctx == nil {
		return nil, api.ErrHandlerNotFound
	}
	p.unlink(ctx)
	return ctx.handler, nil
}

// Replace implements api.Pipeline.
func (p *Pipeline) Replace(oldName, newName string, h api.Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	old := p.find(oldName)
	if old == nil {
		return api.ErrHandlerNotFound
	}
	if newName != oldName {
		if err := p.checkName(newName); err != nil {
			return err
		}
	}
	if newName == "" {
		newName = p.generateName(h)
	}
	if err := p.insert(old, newName, h); err != nil {
		return err
	}
	p.unlink(old)
	return nil
}

// Get implements api.Pipeline.
func (p *Pipeline) Get(name string) api.Handler {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx := p.find(name); ctx != nil {
		return ctx.handler
	}
	return nil
}

// Context implements api.Pipeline.
func (p *Pipeline) Context(name string) api.HandlerContext {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx := p.find(name); ctx != nil {
		return ctx
	}
	return nil
}

// Names implements api.Pipeline.
func (p *Pipeline) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var names []string
	for ctx := p.head.next; ctx != p.tail; ctx = ctx.next {
		names = append(names, ctx.name)
	}
	return names
}

// ---- inbound entry points ----

func (p *Pipeline) FireChannelRegistered() api.Pipeline {
	p.head.invokeChannelRegistered()
	return p
}

func (p *Pipeline) FireChannelUnregistered() api.Pipeline {
	p.head.invokeChannelUnregistered()
	return p
}

func (p *Pipeline) FireChannelActive() api.Pipeline {
	p.head.invokeChannelActive()
	return p
}

func (p *Pipeline) FireChannelInactive() api.Pipeline {
	p.head.invokeChannelInactive()
	return p
}

func (p *Pipeline) FireChannelRead(msg any) api.Pipeline {
	p.head.invokeChannelRead(msg)
	return p
}

func (p *Pipeline) FireChannelReadComplete() api.Pipeline {
	p.head.invokeChannelReadComplete()
	return p
}

func (p *Pipeline) FireChannelWritabilityChanged() api.Pipeline {
	p.head.invokeChannelWritabilityChanged()
	return p
}

func (p *Pipeline) FireUserEventTriggered(event any) api.Pipeline {
	p.head.invokeUserEventTriggered(event)
	return p
}

func (p *Pipeline) FireExceptionCaught(cause error) api.Pipeline {
	p.head.invokeExceptionCaught(cause)
	return p
}

// ---- outbound entry points ----

func (p *Pipeline) Bind(local net.Addr) api.Future    { return p.tail.Bind(local) }
func (p *Pipeline) Connect(remote net.Addr) api.Future { return p.tail.Connect(remote) }
func (p *Pipeline) Disconnect() api.Future             { return p.tail.Disconnect() }
func (p *Pipeline) Close() api.Future                  { return p.tail.Close() }
func (p *Pipeline) Deregister() api.Future             { return p.tail.Deregister() }

func (p *Pipeline) Read() api.Pipeline {
	p.tail.Read()
	return p
}

func (p *Pipeline) Write(msg any) api.Future { return p.tail.Write(msg) }

func (p *Pipeline) Flush() api.Pipeline {
	p.tail.Flush()
	return p
}

func (p *Pipeline) WriteAndFlush(msg any) api.Future { return p.tail.WriteAndFlush(msg) }

// headHandler bridges outbound operations into the transport and
// triggers the next read for auto-read channels.
type headHandler struct {
	ch *core
}

var (
	_ api.InboundHandler  = (*headHandler)(nil)
	_ api.OutboundHandler = (*headHandler)(nil)
)

func (*headHandler) HandlerAdded(api.HandlerContext) error   { return nil }
func (*headHandler) HandlerRemoved(api.HandlerContext) error { return nil }

func (h *headHandler) ChannelRegistered(ctx api.HandlerContext) error {
	ctx.FireChannelRegistered()
	return nil
}

func (h *headHandler) ChannelUnregistered(ctx api.HandlerContext) error {
	ctx.FireChannelUnregistered()
	return nil
}

func (h *headHandler) ChannelActive(ctx api.HandlerContext) error {
	ctx.FireChannelActive()
	h.readIfAutoRead()
	return nil
}

func (h *headHandler) ChannelInactive(ctx api.HandlerContext) error {
	ctx.FireChannelInactive()
	return nil
}

func (h *headHandler) ChannelRead(ctx api.HandlerContext, msg any) error {
	ctx.FireChannelRead(msg)
	return nil
}

func (h *headHandler) ChannelReadComplete(ctx api.HandlerContext) error {
	ctx.FireChannelReadComplete()
	h.readIfAutoRead()
	return nil
}

func (h *headHandler) ChannelWritabilityChanged(ctx api.HandlerContext) error {
	ctx.FireChannelWritabilityChanged()
	return nil
}

func (h *headHandler) UserEventTriggered(ctx api.HandlerContext, event any) error {
	ctx.FireUserEventTriggered(event)
	return nil
}

func (h *headHandler) ExceptionCaught(ctx api.HandlerContext, cause error) {
	ctx.FireExceptionCaught(cause)
}

func (h *headHandler) readIfAutoRead() {
	if h.ch.cfg.AutoRead {
		h.ch.unsafe.BeginRead()
	}
}

func (h *headHandler) Bind(_ api.HandlerContext, local net.Addr, promise api.Promise) {
	h.ch.unsafe.Bind(local, promise)
}

func (h *headHandler) Connect(_ api.HandlerContext, remote net.Addr, promise api.Promise) {
	h.ch.unsafe.Connect(remote, promise)
}

func (h *headHandler) Disconnect(_ api.HandlerContext, promise api.Promise) {
	h.ch.unsafe.Disconnect(promise)
}

func (h *headHandler) Close(_ api.HandlerContext, promise api.Promise) {
	h.ch.unsafe.Close(promise)
}

func (h *headHandler) Deregister(_ api.HandlerContext, promise api.Promise) {
	h.ch.unsafe.Deregister(promise)
}

func (h *headHandler) Read(api.HandlerContext) { h.ch.unsafe.BeginRead() }

func (h *headHandler) Write(_ api.HandlerContext, msg any, promise api.Promise) {
	h.ch.unsafe.Write(msg, promise)
}

func (h *headHandler) Flush(api.HandlerContext) { h.ch.unsafe.Flush() }

// tailHandler terminates the inbound walk.
type tailHandler struct {
	ch *core
}

var _ api.InboundHandler = (*tailHandler)(nil)

func (*tailHandler) HandlerAdded(api.HandlerContext) error          { return nil }
func (*tailHandler) HandlerRemoved(api.HandlerContext) error        { return nil }
func (*tailHandler) ChannelRegistered(api.HandlerContext) error     { return nil }
func (*tailHandler) ChannelUnregistered(api.HandlerContext) error   { return nil }
func (*tailHandler) ChannelActive(api.HandlerContext) error         { return nil }
func (*tailHandler) ChannelInactive(api.HandlerContext) error       { return nil }
func (*tailHandler) ChannelReadComplete(api.HandlerContext) error   { return nil }
func (*tailHandler) ChannelWritabilityChanged(api.HandlerContext) error { return nil }

func (t *tailHandler) ChannelRead(_ api.HandlerContext, msg any) error {
	t.ch.log.Debug().Uint64("channel", t.ch.id).
		Msg("inbound message reached the pipeline tail, releasing")
	releaseIfBuffer(msg)
	return nil
}

func (t *tailHandler) UserEventTriggered(_ api.HandlerContext, event any) error {
	releaseIfBuffer(event)
	return nil
}

func (t *tailHandler) ExceptionCaught(_ api.HandlerContext, cause error) {
	t.ch.log.Warn().Err(cause).Uint64("channel", t.ch.id).
		Msg("unhandled exception reached the pipeline tail")
}
