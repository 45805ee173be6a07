// File: buffer/buffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pooled, reference-counted byte buffer with separate read and write
// cursors and a configurable endianness attribute.
//
// A buffer owns one storage slot obtained from a Backend. Views made
// with Slice and Duplicate alias the memory and share the reference
// count; the slot is returned once, when the count hits zero.

package buffer

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"

	"github.com/momentics/hioload-net/api"
)

// state is shared between a root buffer and all of its views.
type state struct {
	refs    atomic.Int32
	backend Backend
	handle  any

	// suspension of intermediate deallocations: while suspended,
	// slots superseded by Resize are stashed instead of freed.
	suspended bool
	stash     []any
}

func (s *state) freeSlot(handle any) {
	if s.suspended {
		s.stash = append(s.stash, handle)
		return
	}
	if s.backend != nil {
		s.backend.FreeRaw(handle)
	}
}

// Buffer implements api.Buffer.
type Buffer struct {
	mem []byte // full slot; cap may exceed the reported capacity
	cur int    // reported capacity, <= len(mem)
	max int    // growth bound

	readIdx  int
	writeIdx int
	order    api.ByteOrder

	st      *state
	derived bool
}

var _ api.Buffer = (*Buffer)(nil)

// New wraps a fresh slot in a root buffer with refcount one.
func New(mem []byte, capacity, maxCapacity int, be Backend, handle any) *Buffer {
	st := &state{backend: be, handle: handle}
	st.refs.Store(1)
	return &Buffer{mem: mem, cur: capacity, max: maxCapacity, st: st}
}

func (b *Buffer) alive() error {
	if b.st.refs.Load() < 1 {
		return api.ErrReleased
	}
	return nil
}

// Capacity implements api.Buffer.
func (b *Buffer) Capacity() int { return b.cur }

// MaxCapacity implements api.Buffer.
func (b *Buffer) MaxCapacity() int { return b.max }

// ReaderIndex implements api.Buffer.
func (b *Buffer) ReaderIndex() int { return b.readIdx }

// WriterIndex implements api.Buffer.
func (b *Buffer) WriterIndex() int { return b.writeIdx }

// ReadableBytes implements api.Buffer.
func (b *Buffer) ReadableBytes() int { return b.writeIdx - b.readIdx }

// WritableBytes implements api.Buffer.
func (b *Buffer) WritableBytes() int { return b.cur - b.writeIdx }

// Order implements api.Buffer.
func (b *Buffer) Order() api.ByteOrder { return b.order }

// SetOrder implements api.Buffer.
func (b *Buffer) SetOrder(order api.ByteOrder) { b.order = order }

func (b *Buffer) byteOrder() binary.ByteOrder {
	if b.order == api.LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// SetIndices implements api.Buffer.
func (b *Buffer) SetIndices(readerIndex, writerIndex int) error {
	if err := b.alive(); err != nil {
		return err
	}
	if readerIndex < 0 || readerIndex > writerIndex || writerIndex > b.cur {
		return api.ErrIndexOutOfRange
	}
	b.readIdx, b.writeIdx = readerIndex, writerIndex
	return nil
}

// Resize implements api.Buffer. Derived buffers cannot be resized.
func (b *Buffer) Resize(newCapacity int) error {
	if err := b.alive(); err != nil {
		return err
	}
	if b.derived {
		return api.ErrNotSupported
	}
	if newCapacity < 0 || newCapacity > b.max {
		return api.ErrCapacityExceeded
	}
	if newCapacity <= len(b.mem) {
		// Slot already holds enough; adjust the reported capacity.
		b.cur = newCapacity
		b.clipIndices()
		return nil
	}
	mem, handle, err := b.st.backend.AllocateRaw(newCapacity)
	if err != nil {
		return err
	}
	copy(mem[b.readIdx:b.writeIdx], b.mem[b.readIdx:b.writeIdx])
	old := b.st.handle
	b.mem, b.st.handle = mem, handle
	b.cur = newCapacity
	b.st.freeSlot(old)
	return nil
}

func (b *Buffer) clipIndices() {
	if b.readIdx > b.cur {
		b.readIdx = b.cur
	}
	if b.writeIdx > b.cur {
		b.writeIdx = b.cur
	}
	if b.readIdx > b.writeIdx {
		b.readIdx = b.writeIdx
	}
}

// EnsureWritable implements api.Buffer.
func (b *Buffer) EnsureWritable(n int) error {
	if err := b.alive(); err != nil {
		return err
	}
	if n < 0 {
		return api.ErrIndexOutOfRange
	}
	if b.WritableBytes() >= n {
		return nil
	}
	required := b.writeIdx + n
	if required > b.max {
		return api.ErrCapacityExceeded
	}
	newCap := b.cur
	if newCap == 0 {
		newCap = 64
	}
	for newCap < required {
		newCap <<= 1
	}
	if newCap > b.max {
		newCap = b.max
	}
	return b.Resize(newCap)
}

// SuspendFree begins a suspension of intermediate deallocations:
// slots superseded by Resize are stashed until ResumeFree.
func (b *Buffer) SuspendFree() { b.st.suspended = true }

// ResumeFree ends the suspension and frees every stashed slot.
func (b *Buffer) ResumeFree() {
	b.st.suspended = false
	if b.st.backend != nil {
		for _, h := range b.st.stash {
			b.st.backend.FreeRaw(h)
		}
	}
	b.st.stash = nil
}

// GetByte implements api.Buffer.
func (b *Buffer) GetByte(index int) (byte, error) {
	if err := b.alive(); err != nil {
		return 0, err
	}
	if index < 0 || index >= b.cur {
		return 0, api.ErrIndexOutOfRange
	}
	return b.mem[index], nil
}

// SetByte implements api.Buffer.
func (b *Buffer) SetByte(index int, value byte) error {
	if err := b.alive(); err != nil {
		return err
	}
	if index < 0 || index >= b.cur {
		return api.ErrIndexOutOfRange
	}
	b.mem[index] = value
	return nil
}

func (b *Buffer) checkReadable(n int) error {
	if err := b.alive(); err != nil {
		return err
	}
	if b.ReadableBytes() < n {
		return api.ErrBufferUnderflow
	}
	return nil
}

// ReadUint8 implements api.Buffer.
func (b *Buffer) ReadUint8() (uint8, error) {
	if err := b.checkReadable(1); err != nil {
		return 0, err
	}
	v := b.mem[b.readIdx]
	b.readIdx++
	return v, nil
}

// ReadUint16 implements api.Buffer.
func (b *Buffer) ReadUint16() (uint16, error) {
	if err := b.checkReadable(2); err != nil {
		return 0, err
	}
	v := b.byteOrder().Uint16(b.mem[b.readIdx:])
	b.readIdx += 2
	return v, nil
}

// ReadUint32 implements api.Buffer.
func (b *Buffer) ReadUint32() (uint32, error) {
	if err := b.checkReadable(4); err != nil {
		return 0, err
	}
	v := b.byteOrder().Uint32(b.mem[b.readIdx:])
	b.readIdx += 4
	return v, nil
}

// ReadUint64 implements api.Buffer.
func (b *Buffer) ReadUint64() (uint64, error) {
	if err := b.checkReadable(8); err != nil {
		return 0, err
	}
	v := b.byteOrder().Uint64(b.mem[b.readIdx:])
	b.readIdx += 8
	return v, nil
}

// WriteUint8 implements api.Buffer.
func (b *Buffer) WriteUint8(v uint8) error {
	if err := b.EnsureWritable(1); err != nil {
		return err
	}
	b.mem[b.writeIdx] = v
	b.writeIdx++
	return nil
}

// WriteUint16 implements api.Buffer.
func (b *Buffer) WriteUint16(v uint16) error {
	if err := b.EnsureWritable(2); err != nil {
		return err
	}
	b.byteOrder().PutUint16(b.mem[b.writeIdx:], v)
	b.writeIdx += 2
	return nil
}

// WriteUint32 implements api.Buffer.
func (b *Buffer) WriteUint32(v uint32) error {
	if err := b.EnsureWritable(4); err != nil {
		return err
	}
	b.byteOrder().PutUint32(b.mem[b.writeIdx:], v)
	b.writeIdx += 4
	return nil
}

// WriteUint64 implements api.Buffer.
func (b *Buffer) WriteUint64(v uint64) error {
	if err := b.EnsureWritable(8); err != nil {
		return err
	}
	b.byteOrder().PutUint64(b.mem[b.writeIdx:], v)
	b.writeIdx += 8
	return nil
}

// ReadBytes implements api.Buffer.
func (b *Buffer) ReadBytes(dst []byte) (int, error) {
	if err := b.alive(); err != nil {
		return 0, err
	}
	n := copy(dst, b.mem[b.readIdx:b.writeIdx])
	b.readIdx += n
	return n, nil
}

// WriteBytes implements api.Buffer.
func (b *Buffer) WriteBytes(src []byte) (int, error) {
	if err := b.EnsureWritable(len(src)); err != nil {
		return 0, err
	}
	n := copy(b.mem[b.writeIdx:b.cur], src)
	b.writeIdx += n
	return n, nil
}

// Skip implements api.Buffer.
func (b *Buffer) Skip(n int) error {
	if err := b.checkReadable(n); err != nil {
		return err
	}
	b.readIdx += n
	return nil
}

// DiscardReadBytes implements api.Buffer.
func (b *Buffer) DiscardReadBytes() {
	if b.readIdx == 0 {
		return
	}
	copy(b.mem, b.mem[b.readIdx:b.writeIdx])
	b.writeIdx -= b.readIdx
	b.readIdx = 0
}

// Bytes implements api.Buffer.
func (b *Buffer) Bytes() []byte {
	return b.mem[b.readIdx:b.writeIdx]
}

// Retain implements api.Buffer.
func (b *Buffer) Retain() api.Buffer {
	b.st.refs.Add(1)
	return b
}

// Release implements api.Buffer.
func (b *Buffer) Release() (bool, error) {
	for {
		refs := b.st.refs.Load()
		if refs < 1 {
			return false, api.ErrReleased
		}
		if !b.st.refs.CompareAndSwap(refs, refs-1) {
			continue
		}
		if refs != 1 {
			return false, nil
		}
		b.st.freeSlot(b.st.handle)
		b.st.handle = nil
		if !b.st.suspended && b.st.backend != nil {
			for _, h := range b.st.stash {
				b.st.backend.FreeRaw(h)
			}
			b.st.stash = nil
		}
		return true, nil
	}
}

// RefCount implements api.Buffer.
func (b *Buffer) RefCount() int { return int(b.st.refs.Load()) }

// MemoryAddress implements api.Buffer.
func (b *Buffer) MemoryAddress() (uintptr, bool) {
	if len(b.mem) == 0 {
		return 0, false
	}
	return uintptr(unsafe.Pointer(&b.mem[0])), true
}
