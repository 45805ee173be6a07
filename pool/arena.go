// File: pool/arena.go
// Package pool: one arena serializing a subset of allocations.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Any goroutine may free into any arena; the arena lock protects the
// chunk lists, the buddy trees and the subpage pools.

package pool

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-net/api"
)

// Handle identifies one allocated slot for later release.
type Handle struct {
	arena     *Arena
	chunk     *chunk
	id        int
	bitmapIdx int // -1 for buddy runs
	size      int
}

// Arena is a set of chunks plus the subpage pools of each size class.
type Arena struct {
	alloc *PooledAllocator

	mu sync.Mutex

	tinyPools  [numTinyClasses]*subpage
	smallPools [numSmallClasses]*subpage

	qInit *chunkList
	q000  *chunkList
	q025  *chunkList
	q050  *chunkList
	q075  *chunkList
	q100  *chunkList

	// stats
	allocations   atomic.Int64
	deallocations atomic.Int64
	activeBytes   atomic.Int64
	chunksLive    atomic.Int64
}

func newArena(alloc *PooledAllocator) *Arena {
	a := &Arena{alloc: alloc}
	for i := range a.tinyPools {
		a.tinyPools[i] = newPoolHead()
	}
	for i := range a.smallPools {
		a.smallPools[i] = newPoolHead()
	}
	a.qInit = newChunkList(a, 0, 25)
	a.q000 = newChunkList(a, 1, 50)
	a.q025 = newChunkList(a, 25, 75)
	a.q050 = newChunkList(a, 50, 100)
	a.q075 = newChunkList(a, 75, 100)
	a.q100 = newChunkList(a, 100, 101)

	a.qInit.nextList = a.q000
	a.q000.prevList = nil // drained chunks die here
	a.q000.nextList = a.q025
	a.q025.prevList = a.q000
	a.q025.nextList = a.q050
	a.q050.prevList = a.q025
	a.q050.nextList = a.q075
	a.q075.prevList = a.q050
	a.q075.nextList = a.q100
	a.q100.prevList = a.q075
	return a
}

func (a *Arena) subpagePoolHead(elemSize int) *subpage {
	if elemSize < TinyCeiling {
		return a.tinyPools[tinyClassIdx(elemSize)]
	}
	return a.smallPools[smallClassIdx(elemSize)]
}

// allocate serves one normalized request from the arena.
func (a *Arena) allocate(normCap int) ([]byte, *Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var h *Handle
	if normCap < SmallCeiling {
		h = a.allocateSubpageSlot(normCap)
	} else {
		h = a.allocateRun(normCap)
	}
	if h == nil {
		return nil, nil, api.ErrAllocFailed
	}
	a.allocations.Add(1)
	a.activeBytes.Add(int64(h.size))

	off := h.chunk.runOffset(h.id)
	if h.bitmapIdx >= 0 {
		off += h.bitmapIdx * normCap
	}
	return h.chunk.memory[off : off+h.size : off+h.size], h, nil
}

func (a *Arena) allocateSubpageSlot(elemSize int) *Handle {
	head := a.subpagePoolHead(elemSize)
	if s := head.next; s != head {
		idx := s.allocate()
		if idx >= 0 {
			return &Handle{arena: a, chunk: s.chunk, id: s.pageID, bitmapIdx: idx, size: elemSize}
		}
	}
	s := a.allocateFreshSubpage(elemSize, head)
	if s == nil {
		return nil
	}
	idx := s.allocate()
	if idx < 0 {
		return nil
	}
	return &Handle{arena: a, chunk: s.chunk, id: s.pageID, bitmapIdx: idx, size: elemSize}
}

func (a *Arena) allocateFreshSubpage(elemSize int, head *subpage) *subpage {
	for _, l := range []*chunkList{a.q050, a.q025, a.q000, a.qInit, a.q075} {
		if s := l.allocateSubpage(elemSize, head); s != nil {
			return s
		}
	}
	c, err := a.newChunk()
	if err != nil {
		return nil
	}
	s := c.allocateSubpage(elemSize, head)
	a.qInit.add(c)
	return s
}

func (a *Arena) allocateRun(normCap int) *Handle {
	for _, l := range []*chunkList{a.q050, a.q025, a.q000, a.qInit, a.q075} {
		if c, id := l.allocateRun(normCap); id >= 0 {
			return &Handle{arena: a, chunk: c, id: id, bitmapIdx: -1, size: c.runLength(id)}
		}
	}
	c, err := a.newChunk()
	if err != nil {
		return nil
	}
	id := c.allocateNormal(normCap)
	a.qInit.add(c)
	if id < 0 {
		return nil
	}
	return &Handle{arena: a, chunk: c, id: id, bitmapIdx: -1, size: c.runLength(id)}
}

func (a *Arena) newChunk() (*chunk, error) {
	if !a.alloc.reserveChunk() {
		return nil, api.ErrAllocFailed
	}
	a.chunksLive.Add(1)
	return newChunk(a), nil
}

// free returns one slot to the arena.
func (a *Arena) free(h *Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()

	c := h.chunk
	if h.bitmapIdx >= 0 {
		c.freeSubpageSlot(h.id, h.bitmapIdx)
	} else {
		c.freeRun(h.id)
	}
	a.deallocations.Add(1)
	a.activeBytes.Add(-int64(h.size))

	if c.list != nil && !c.list.rebalanceAfterFree(c) {
		// chunk destroyed
		a.chunksLive.Add(-1)
		a.alloc.unreserveChunk()
	}
}

// ArenaStats is a point-in-time snapshot of one arena.
type ArenaStats struct {
	Allocations   int64
	Deallocations int64
	ActiveBytes   int64
	ChunksLive    int64
}

func (a *Arena) stats() ArenaStats {
	return ArenaStats{
		Allocations:   a.allocations.Load(),
		Deallocations: a.deallocations.Load(),
		ActiveBytes:   a.activeBytes.Load(),
		ChunksLive:    a.chunksLive.Load(),
	}
}
