// File: buffer/backend.go
// Package buffer implements the reference-counted byte buffer.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

// Backend supplies and reclaims raw storage slots for buffers. The
// pooled allocator implements it with arena slots; HeapBackend falls
// back to plain garbage-collected slices.
type Backend interface {
	// AllocateRaw returns storage of at least capacity bytes together
	// with an opaque slot handle passed back on free.
	AllocateRaw(capacity int) (mem []byte, handle any, err error)

	// FreeRaw returns a slot to its arena.
	FreeRaw(handle any)
}

// HeapBackend serves buffers straight from the Go heap.
type HeapBackend struct{}

func (HeapBackend) AllocateRaw(capacity int) ([]byte, any, error) {
	return make([]byte, capacity), nil, nil
}

func (HeapBackend) FreeRaw(any) {}
