// File: buffer/io_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-net/api"
)

// TestWritableSlice fills a buffer through the raw window the socket
// readers use.
func TestWritableSlice(t *testing.T) {
	b := newHeapBuffer(8, 8)
	win, err := b.WritableSlice()
	require.NoError(t, err)
	assert.Len(t, win, 8)

	copy(win, "abc")
	require.NoError(t, b.AdvanceWriter(3))
	assert.Equal(t, "abc", string(b.Bytes()))

	win, err = b.WritableSlice()
	require.NoError(t, err)
	assert.Len(t, win, 5)

	assert.ErrorIs(t, b.AdvanceWriter(6), api.ErrIndexOutOfRange)
	assert.ErrorIs(t, b.AdvanceWriter(-1), api.ErrIndexOutOfRange)
}
