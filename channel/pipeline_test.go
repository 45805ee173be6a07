// File: channel/pipeline_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package channel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/pool"
)

func newTestBuf(t *testing.T, payload string) api.Buffer {
	t.Helper()
	buf, err := pool.Unpooled.Allocate(len(payload), len(payload))
	require.NoError(t, err)
	_, err = buf.WriteBytes([]byte(payload))
	require.NoError(t, err)
	return buf
}

// recordingInbound collects the events that reach it.
type recordingInbound struct {
	InboundHandlerAdapter
	name   string
	log    *[]string
	causes []error
}

func (h *recordingInbound) ChannelRead(ctx api.HandlerContext, msg any) error {
	*h.log = append(*h.log, h.name+":read")
	ctx.FireChannelRead(msg)
	return nil
}

func (h *recordingInbound) ExceptionCaught(ctx api.HandlerContext, cause error) {
	h.causes = append(h.causes, cause)
	ctx.FireExceptionCaught(cause)
}

// recordingOutbound collects the operations that pass through it.
type recordingOutbound struct {
	OutboundHandlerAdapter
	name string
	log  *[]string
}

func (h *recordingOutbound) Write(ctx api.HandlerContext, msg any, promise api.Promise) {
	*h.log = append(*h.log, h.name+":write")
	chain(ctx.Write(msg), promise)
}

// TestPipeline_InsertOrder verifies every insertion primitive through
// Names.
func TestPipeline_InsertOrder(t *testing.T) {
	ch, _ := NewLoopbackPair(DefaultConfig(), DefaultConfig())
	p := ch.Pipeline()

	require.NoError(t, p.AddLast("a", &recordingInbound{name: "a", log: new([]string)}))
	require.NoError(t, p.AddLast("b", &recordingInbound{name: "b", log: new([]string)}))
	require.NoError(t, p.AddFirst("first", &recordingInbound{name: "first", log: new([]string)}))
	require.NoError(t, p.AddBefore("b", "mid", &recordingInbound{name: "mid", log: new([]string)}))
	require.NoError(t, p.AddAfter("b", "last", &recordingInbound{name: "last", log: new([]string)}))

	assert.Equal(t, []string{"first", "a", "mid", "b", "last"}, p.Names())
}

// TestPipeline_NameConflicts rejects duplicates, sentinels included.
func TestPipeline_NameConflicts(t *testing.T) {
	ch, _ := NewLoopbackPair(DefaultConfig(), DefaultConfig())
	p := ch.Pipeline()

	require.NoError(t, p.AddLast("x", &recordingInbound{name: "x", log: new([]string)}))
	assert.ErrorIs(t, p.AddLast("x", &recordingInbound{name: "x2", log: new([]string)}), api.ErrDuplicateName)
	assert.ErrorIs(t, p.AddLast("head", &recordingInbound{name: "h", log: new([]string)}), api.ErrDuplicateName)
	assert.ErrorIs(t, p.AddBefore("ghost", "y", &recordingInbound{name: "y", log: new([]string)}), api.ErrHandlerNotFound)
}

// TestPipeline_RemoveReplace detaches and swaps handlers.
func TestPipeline_RemoveReplace(t *testing.T) {
	ch, _ := NewLoopbackPair(DefaultConfig(), DefaultConfig())
	p := ch.Pipeline()

	orig := &recordingInbound{name: "orig", log: new([]string)}
	require.NoError(t, p.AddLast("h", orig))
	assert.Same(t, api.Handler(orig), p.Get("h"))
	assert.NotNil(t, p.Context("h"))

	repl := &recordingInbound{name: "repl", log: new([]string)}
	require.NoError(t, p.Replace("h", "h2", repl))
	assert.Nil(t, p.Get("h"))
	assert.Same(t, api.Handler(repl), p.Get("h2"))

	got, err := p.Remove("h2")
	require.NoError(t, err)
	assert.Same(t, api.Handler(repl), got)
	assert.Empty(t, p.Names())

	_, err = p.Remove("h2")
	assert.ErrorIs(t, err, api.ErrHandlerNotFound)
}

// TestPipeline_InboundOrder walks reads head to tail.
func TestPipeline_InboundOrder(t *testing.T) {
	ch, _ := NewLoopbackPair(DefaultConfig(), DefaultConfig())
	p := ch.Pipeline()

	var log []string
	require.NoError(t, p.AddLast("one", &recordingInbound{name: "one", log: &log}))
	require.NoError(t, p.AddLast("two", &recordingInbound{name: "two", log: &log}))

	buf := newTestBuf(t, "payload")
	p.FireChannelRead(buf)
	assert.Equal(t, []string{"one:read", "two:read"}, log)
	// the tail released the buffer
	_, err := buf.Release()
	assert.ErrorIs(t, err, api.ErrReleased)
}

// TestPipeline_OutboundOrder walks writes tail to head.
func TestPipeline_OutboundOrder(t *testing.T) {
	ch, _ := NewLoopbackPair(DefaultConfig(), DefaultConfig())
	p := ch.Pipeline()

	var log []string
	require.NoError(t, p.AddLast("o1", &recordingOutbound{name: "o1", log: &log}))
	require.NoError(t, p.AddLast("o2", &recordingOutbound{name: "o2", log: &log}))

	p.Write(newTestBuf(t, "msg"))
	assert.Equal(t, []string{"o2:write", "o1:write"}, log)
}

// TestPipeline_ErrorBecomesException routes a handler error to the next
// inbound handler's ExceptionCaught.
func TestPipeline_ErrorBecomesException(t *testing.T) {
	ch, _ := NewLoopbackPair(DefaultConfig(), DefaultConfig())
	p := ch.Pipeline()

	cause := errors.New("decode failed")
	require.NoError(t, p.AddLast("bad", &failingInbound{err: cause}))
	after := &recordingInbound{name: "after", log: new([]string)}
	require.NoError(t, p.AddLast("after", after))

	p.FireChannelRead(newTestBuf(t, "x"))
	require.Len(t, after.causes, 1)
	assert.ErrorIs(t, after.causes[0], cause)
}

type failingInbound struct {
	InboundHandlerAdapter
	err error
}

func (h *failingInbound) ChannelRead(_ api.HandlerContext, msg any) error {
	releaseIfBuffer(msg)
	return h.err
}

// TestPipeline_WriteRejectsNonBuffer fails the write future with a
// protocol error.
func TestPipeline_WriteRejectsNonBuffer(t *testing.T) {
	ch, _ := NewLoopbackPair(DefaultConfig(), DefaultConfig())
	f := ch.Write("not a buffer")
	require.True(t, f.IsDone())
	var perr *api.ProtocolError
	assert.ErrorAs(t, f.Err(), &perr)
}
