// File: api/buffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reference-counted random-access byte buffers backing all I/O.
//
// Buffers are produced by an Allocator, shared via Retain, and returned
// to their arena when the reference count drops to zero.

package api

// ByteOrder selects the endianness of multi-byte accessors.
type ByteOrder int

const (
	// BigEndian is the default network byte order.
	BigEndian ByteOrder = iota
	// LittleEndian must be requested explicitly.
	LittleEndian
)

// Buffer is a reference-counted, growable byte sequence with separate
// read and write cursors.
//
// Invariant: 0 <= ReaderIndex <= WriterIndex <= Capacity <= MaxCapacity.
// Readable bytes are [ReaderIndex, WriterIndex); writable bytes are
// [WriterIndex, Capacity).
type Buffer interface {
	// Capacity returns the current backing capacity in bytes.
	Capacity() int

	// MaxCapacity returns the growth bound fixed at allocation.
	MaxCapacity() int

	// Resize grows or shrinks the backing storage to newCapacity,
	// preserving bytes in [ReaderIndex, WriterIndex).
	Resize(newCapacity int) error

	// EnsureWritable guarantees at least n writable bytes, growing the
	// buffer through its allocator. Fails with ErrCapacityExceeded when
	// growth past MaxCapacity would be required.
	EnsureWritable(n int) error

	ReaderIndex() int
	WriterIndex() int

	// SetIndices repositions both cursors at once.
	SetIndices(readerIndex, writerIndex int) error

	ReadableBytes() int
	WritableBytes() int

	// Order reports the buffer's endianness attribute.
	Order() ByteOrder

	// SetOrder switches the endianness used by multi-byte accessors.
	SetOrder(order ByteOrder)

	// GetByte and SetByte access an absolute index without moving cursors.
	GetByte(index int) (byte, error)
	SetByte(index int, value byte) error

	ReadUint8() (uint8, error)
	ReadUint16() (uint16, error)
	ReadUint32() (uint32, error)
	ReadUint64() (uint64, error)

	WriteUint8(v uint8) error
	WriteUint16(v uint16) error
	WriteUint32(v uint32) error
	WriteUint64(v uint64) error

	// ReadBytes fills dst from the readable region, advancing the read
	// cursor; short reads return the count actually copied.
	ReadBytes(dst []byte) (int, error)

	// WriteBytes appends src, growing up to MaxCapacity as needed.
	WriteBytes(src []byte) (int, error)

	// Skip advances the read cursor by n.
	Skip(n int) error

	// DiscardReadBytes drops consumed bytes, moving [ReaderIndex,
	// WriterIndex) to the origin to reclaim writable space.
	DiscardReadBytes()

	// Bytes returns the readable region as a view. The view aliases the
	// buffer's memory and is invalidated by Resize and Release.
	Bytes() []byte

	// Slice returns a view of [from, from+length) sharing memory and the
	// parent's reference count. Releasing the slice releases the parent.
	Slice(from, length int) (Buffer, error)

	// Duplicate returns a view of the whole buffer with independent
	// cursors, sharing memory and the parent's reference count.
	Duplicate() Buffer

	// RetainedDuplicate is Duplicate plus Retain.
	RetainedDuplicate() Buffer

	// Retain increments the reference count.
	Retain() Buffer

	// Release decrements the reference count, returning the buffer to
	// its arena on zero. Reports true when deallocation happened.
	// Releasing an already-dead buffer returns ErrReleased.
	Release() (bool, error)

	// RefCount returns the current reference count.
	RefCount() int

	// MemoryAddress returns the address of the backing storage for
	// zero-copy native I/O, or ok=false when unsupported.
	MemoryAddress() (addr uintptr, ok bool)
}

// Allocator produces pooled buffers.
type Allocator interface {
	// Allocate returns a buffer with ReaderIndex = WriterIndex = 0,
	// the requested initial capacity and the given growth bound.
	Allocate(initialCapacity, maxCapacity int) (Buffer, error)
}
