// File: pool/allocator.go
// Package pool: the public pooled allocator.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"runtime"
	"sync/atomic"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/buffer"
)

// Option tunes a PooledAllocator.
type Option func(*PooledAllocator)

// WithArenaCount overrides the default of 2 x GOMAXPROCS arenas.
func WithArenaCount(n int) Option {
	return func(a *PooledAllocator) {
		if n > 0 {
			a.arenaCount = n
		}
	}
}

// WithMaxTotalBytes bounds pooled chunk memory; exceeding it fails
// allocations with ErrAllocFailed instead of growing further.
func WithMaxTotalBytes(n int64) Option {
	return func(a *PooledAllocator) { a.maxTotalBytes.Store(n) }
}

// PooledAllocator serves reference-counted buffers from size-classed
// arenas. Safe for concurrent use; allocations bind to an arena by
// round-robin, releases go back to the originating arena.
type PooledAllocator struct {
	arenas        []*Arena
	next          atomic.Uint64
	arenaCount    int
	maxTotalBytes atomic.Int64
	chunkBytes    atomic.Int64
}

var _ api.Allocator = (*PooledAllocator)(nil)

// NewPooledAllocator creates an allocator with the given options.
func NewPooledAllocator(opts ...Option) *PooledAllocator {
	a := &PooledAllocator{arenaCount: 2 * runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(a)
	}
	a.arenas = make([]*Arena, a.arenaCount)
	for i := range a.arenas {
		a.arenas[i] = newArena(a)
	}
	return a
}

// SetMaxTotalBytes retunes the chunk memory bound at runtime. Zero or
// negative removes the bound. Chunks already reserved stay reserved;
// only new chunk growth observes the new limit.
func (a *PooledAllocator) SetMaxTotalBytes(n int64) { a.maxTotalBytes.Store(n) }

func (a *PooledAllocator) reserveChunk() bool {
	limit := a.maxTotalBytes.Load()
	if limit <= 0 {
		a.chunkBytes.Add(ChunkSize)
		return true
	}
	for {
		cur := a.chunkBytes.Load()
		if cur+ChunkSize > limit {
			return false
		}
		if a.chunkBytes.CompareAndSwap(cur, cur+ChunkSize) {
			return true
		}
	}
}

func (a *PooledAllocator) unreserveChunk() { a.chunkBytes.Add(-ChunkSize) }

func (a *PooledAllocator) pickArena() *Arena {
	idx := a.next.Add(1) % uint64(len(a.arenas))
	return a.arenas[idx]
}

// Allocate implements api.Allocator.
func (a *PooledAllocator) Allocate(initialCapacity, maxCapacity int) (api.Buffer, error) {
	if initialCapacity < 0 || maxCapacity < initialCapacity {
		return nil, api.ErrCapacityExceeded
	}
	mem, handle, err := a.AllocateRaw(initialCapacity)
	if err != nil {
		return nil, err
	}
	return buffer.New(mem, initialCapacity, maxCapacity, a, handle), nil
}

// AllocateRaw implements buffer.Backend: one storage slot of at least
// capacity bytes. Requests above half a chunk are served unpooled.
func (a *PooledAllocator) AllocateRaw(capacity int) ([]byte, any, error) {
	if capacity > MaxPooledSize {
		return make([]byte, capacity), nil, nil
	}
	normCap := normalizeCapacity(capacity)
	return a.pickArena().allocate(normCap)
}

// FreeRaw implements buffer.Backend.
func (a *PooledAllocator) FreeRaw(handle any) {
	h, ok := handle.(*Handle)
	if !ok || h == nil {
		return // unpooled slot, garbage collected
	}
	h.arena.free(h)
}

// Stats aggregates all arena snapshots.
func (a *PooledAllocator) Stats() AllocatorStats {
	var s AllocatorStats
	s.Arenas = make([]ArenaStats, len(a.arenas))
	for i, ar := range a.arenas {
		st := ar.stats()
		s.Arenas[i] = st
		s.Allocations += st.Allocations
		s.Deallocations += st.Deallocations
		s.ActiveBytes += st.ActiveBytes
		s.ChunksLive += st.ChunksLive
	}
	s.PooledBytes = a.chunkBytes.Load()
	return s
}

// AllocatorStats aggregates per-arena accounting.
type AllocatorStats struct {
	Allocations   int64
	Deallocations int64
	ActiveBytes   int64
	ChunksLive    int64
	PooledBytes   int64
	Arenas        []ArenaStats
}

// unpooledAllocator serves plain heap buffers, mainly for tests and
// one-off messages.
type unpooledAllocator struct{}

// Unpooled is a heap-backed api.Allocator.
var Unpooled api.Allocator = unpooledAllocator{}

func (unpooledAllocator) Allocate(initialCapacity, maxCapacity int) (api.Buffer, error) {
	if initialCapacity < 0 || maxCapacity < initialCapacity {
		return nil, api.ErrCapacityExceeded
	}
	mem := make([]byte, initialCapacity)
	return buffer.New(mem, initialCapacity, maxCapacity, buffer.HeapBackend{}, nil), nil
}
