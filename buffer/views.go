// File: buffer/views.go
// Package buffer: derived views sharing a parent's storage slot.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import "github.com/momentics/hioload-net/api"

// Slice implements api.Buffer. The view covers [from, from+length) of
// the parent, shares its memory and reference count, and starts fully
// readable. Views cannot be resized and are invalidated by a parent
// Resize.
func (b *Buffer) Slice(from, length int) (api.Buffer, error) {
	if err := b.alive(); err != nil {
		return nil, err
	}
	if from < 0 || length < 0 || from+length > b.cur {
		return nil, api.ErrIndexOutOfRange
	}
	return &Buffer{
		mem:      b.mem[from : from+length],
		cur:      length,
		max:      length,
		writeIdx: length,
		order:    b.order,
		st:       b.st,
		derived:  true,
	}, nil
}

// Duplicate implements api.Buffer: a full-capacity view with
// independent cursors, sharing memory and the reference count.
func (b *Buffer) Duplicate() api.Buffer {
	return &Buffer{
		mem:      b.mem,
		cur:      b.cur,
		max:      b.cur,
		readIdx:  b.readIdx,
		writeIdx: b.writeIdx,
		order:    b.order,
		st:       b.st,
		derived:  true,
	}
}

// RetainedDuplicate implements api.Buffer.
func (b *Buffer) RetainedDuplicate() api.Buffer {
	d := b.Duplicate()
	d.Retain()
	return d
}
