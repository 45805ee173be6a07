// File: channel/outbound_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-net/api"
)

// watchWritability records every writability edge it observes.
type watchWritability struct {
	InboundHandlerAdapter
	states []bool
}

func (h *watchWritability) ChannelWritabilityChanged(ctx api.HandlerContext) error {
	h.states = append(h.states, ctx.Channel().IsWritable())
	ctx.FireChannelWritabilityChanged()
	return nil
}

// TestOutbound_WatermarkEdges flips writability exactly once per
// crossing and fires the pipeline event on each edge.
func TestOutbound_WatermarkEdges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WriteBufferHighWaterMark = 8
	cfg.WriteBufferLowWaterMark = 4
	ch, _ := NewLoopbackPair(cfg, DefaultConfig())

	w := &watchWritability{}
	require.NoError(t, ch.Pipeline().AddLast("watch", w))

	assert.True(t, ch.IsWritable())

	f := ch.Write(newTestBuf(t, "0123456789"))
	assert.False(t, f.IsDone())
	assert.False(t, ch.IsWritable())
	require.Equal(t, []bool{false}, w.states)

	// A second queued write must not fire the event again.
	f2 := ch.Write(newTestBuf(t, "ab"))
	assert.False(t, ch.IsWritable())
	require.Equal(t, []bool{false}, w.states)

	ch.Flush()
	assert.True(t, f.IsDone())
	require.NoError(t, f.Err())
	assert.True(t, f2.IsDone())
	require.NoError(t, f2.Err())
	assert.True(t, ch.IsWritable())
	assert.Equal(t, []bool{false, true}, w.states)
}

// TestOutbound_FlushCompletesInOrder settles write futures in queue
// order as their bytes drain.
func TestOutbound_FlushCompletesInOrder(t *testing.T) {
	ch, _ := NewLoopbackPair(DefaultConfig(), DefaultConfig())

	var order []int
	f1 := ch.Write(newTestBuf(t, "first"))
	f2 := ch.Write(newTestBuf(t, "second"))
	f1.AddListener(func(api.Future) { order = append(order, 1) })
	f2.AddListener(func(api.Future) { order = append(order, 2) })

	ch.Flush()
	require.NoError(t, f1.Err())
	require.NoError(t, f2.Err())
	assert.Equal(t, []int{1, 2}, order)
}

// TestOutbound_CloseFailsQueuedWrites fails unflushed writes and
// releases their buffers.
func TestOutbound_CloseFailsQueuedWrites(t *testing.T) {
	ch, _ := NewLoopbackPair(DefaultConfig(), DefaultConfig())

	buf := newTestBuf(t, "doomed")
	f := ch.Write(buf)
	assert.False(t, f.IsDone())

	require.NoError(t, ch.Close().Err())
	assert.True(t, f.IsDone())
	assert.ErrorIs(t, f.Err(), api.ErrChannelClosed)
	_, err := buf.Release()
	assert.ErrorIs(t, err, api.ErrReleased)
	assert.False(t, ch.IsOpen())
	assert.True(t, ch.CloseFuture().IsDone())
}

// TestOutbound_WriteAfterClose rejects immediately, releasing the
// buffer.
func TestOutbound_WriteAfterClose(t *testing.T) {
	ch, _ := NewLoopbackPair(DefaultConfig(), DefaultConfig())
	require.NoError(t, ch.Close().Err())

	buf := newTestBuf(t, "late")
	f := ch.Write(buf)
	require.True(t, f.IsDone())
	assert.ErrorIs(t, f.Err(), api.ErrChannelClosed)
	_, err := buf.Release()
	assert.ErrorIs(t, err, api.ErrReleased)
}

// TestOutbound_CloseIsIdempotent resolves a second close against the
// same outcome.
func TestOutbound_CloseIsIdempotent(t *testing.T) {
	ch, _ := NewLoopbackPair(DefaultConfig(), DefaultConfig())
	first := ch.Close()
	second := ch.Close()
	require.NoError(t, first.Err())
	require.NoError(t, second.Err())
	assert.Same(t, first, second)
}
