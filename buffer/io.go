// File: buffer/io.go
// Package buffer: direct window access for transports.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Socket transports read straight into the writable window and write
// straight out of the readable one, skipping the copying accessors.

package buffer

import "github.com/momentics/hioload-net/api"

// WritableSlice returns the window between the writer index and the
// current capacity. Bytes placed there become readable only after
// AdvanceWriter.
func (b *Buffer) WritableSlice() ([]byte, error) {
	if err := b.alive(); err != nil {
		return nil, err
	}
	return b.mem[b.writeIdx:b.cur], nil
}

// AdvanceWriter moves the writer index forward by n, typically after a
// transport filled the writable window.
func (b *Buffer) AdvanceWriter(n int) error {
	if err := b.alive(); err != nil {
		return err
	}
	if n < 0 || b.writeIdx+n > b.cur {
		return api.ErrIndexOutOfRange
	}
	b.writeIdx += n
	return nil
}
