// File: pool/allocator_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"errors"
	"sync"
	"testing"

	"github.com/momentics/hioload-net/api"
)

// TestNormalizeCapacity checks size-class rounding across regimes.
func TestNormalizeCapacity(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 16},
		{1, 16},
		{16, 16},
		{17, 32},
		{500, 512},
		{511, 512},
		{512, 512},
		{513, 1024},
		{4096, 4096},
		{4097, 8192},
		{100000, 131072},
	}
	for _, c := range cases {
		if got := normalizeCapacity(c.in); got != c.want {
			t.Errorf("normalizeCapacity(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

// TestAllocate_Lifecycle allocates, writes and releases one buffer.
func TestAllocate_Lifecycle(t *testing.T) {
	a := NewPooledAllocator(WithArenaCount(1))
	buf, err := a.Allocate(256, 4096)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if buf.Capacity() < 256 || buf.MaxCapacity() != 4096 {
		t.Fatalf("capacity mismatch: cap=%d max=%d", buf.Capacity(), buf.MaxCapacity())
	}
	if _, err := buf.WriteBytes([]byte("hello")); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if string(buf.Bytes()) != "hello" {
		t.Fatalf("readback mismatch: %q", buf.Bytes())
	}
	dead, err := buf.Release()
	if err != nil || !dead {
		t.Fatalf("Release: dead=%v err=%v", dead, err)
	}
	if _, err := buf.Release(); !errors.Is(err, api.ErrReleased) {
		t.Fatalf("double release: %v", err)
	}

	s := a.Stats()
	if s.Allocations != 1 || s.Deallocations != 1 || s.ActiveBytes != 0 {
		t.Errorf("stats after release: %+v", s)
	}
}

// TestAllocate_SlotReuse releases a tiny slot and expects the next
// same-class allocation to reuse the chunk.
func TestAllocate_SlotReuse(t *testing.T) {
	a := NewPooledAllocator(WithArenaCount(1))
	b1, err := a.Allocate(64, 64)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	chunksAfterFirst := a.Stats().ChunksLive
	if _, err := b1.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	b2, err := a.Allocate(64, 64)
	if err != nil {
		t.Fatalf("second Allocate: %v", err)
	}
	defer b2.Release()
	if got := a.Stats().ChunksLive; got != chunksAfterFirst {
		t.Errorf("expected chunk reuse, chunks went %d -> %d", chunksAfterFirst, got)
	}
}

// TestAllocate_Oversized serves requests above MaxPooledSize unpooled.
func TestAllocate_Oversized(t *testing.T) {
	a := NewPooledAllocator(WithArenaCount(1))
	huge := MaxPooledSize + 1
	buf, err := a.Allocate(huge, huge)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if buf.Capacity() < huge {
		t.Fatalf("capacity %d below request %d", buf.Capacity(), huge)
	}
	if a.Stats().PooledBytes != 0 {
		t.Errorf("oversized allocation counted as pooled: %d", a.Stats().PooledBytes)
	}
	buf.Release()
}

// TestAllocate_Budget fails allocations past the configured memory cap.
func TestAllocate_Budget(t *testing.T) {
	a := NewPooledAllocator(WithArenaCount(1), WithMaxTotalBytes(ChunkSize))

	// Two half-chunk runs fill the single permitted chunk.
	b1, err := a.Allocate(MaxPooledSize, MaxPooledSize)
	if err != nil {
		t.Fatalf("first Allocate within budget: %v", err)
	}
	defer b1.Release()
	b2, err := a.Allocate(MaxPooledSize, MaxPooledSize)
	if err != nil {
		t.Fatalf("second Allocate within budget: %v", err)
	}
	defer b2.Release()

	// A third run needs another chunk and must fail instead of growing.
	_, err = a.Allocate(MaxPooledSize, MaxPooledSize)
	if !errors.Is(err, api.ErrAllocFailed) {
		t.Fatalf("expected ErrAllocFailed, got %v", err)
	}
}

// TestAllocate_InvalidArgs rejects negative and inverted capacities.
func TestAllocate_InvalidArgs(t *testing.T) {
	a := NewPooledAllocator(WithArenaCount(1))
	if _, err := a.Allocate(-1, 16); !errors.Is(err, api.ErrCapacityExceeded) {
		t.Errorf("negative initial: %v", err)
	}
	if _, err := a.Allocate(32, 16); !errors.Is(err, api.ErrCapacityExceeded) {
		t.Errorf("max below initial: %v", err)
	}
}

// TestAllocate_Concurrent hammers the allocator from many goroutines.
func TestAllocate_Concurrent(t *testing.T) {
	a := NewPooledAllocator()
	const workers, rounds = 8, 200
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				size := 16 + (seed*31+i*17)%8192
				buf, err := a.Allocate(size, size*2)
				if err != nil {
					t.Errorf("Allocate(%d): %v", size, err)
					return
				}
				if _, err := buf.WriteBytes(make([]byte, size)); err != nil {
					t.Errorf("WriteBytes(%d): %v", size, err)
				}
				if _, err := buf.Release(); err != nil {
					t.Errorf("Release: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	s := a.Stats()
	if s.Allocations != s.Deallocations {
		t.Errorf("leak: alloc=%d dealloc=%d", s.Allocations, s.Deallocations)
	}
	if s.ActiveBytes != 0 {
		t.Errorf("active bytes after full drain: %d", s.ActiveBytes)
	}
}

// TestAllocate_SubpageExhaustion fills one tiny subpage completely and
// spills into a second page without corrupting the free lists.
func TestAllocate_SubpageExhaustion(t *testing.T) {
	a := NewPooledAllocator(WithArenaCount(1))
	// 16-byte elems pack 512 slots into one 8 KiB page.
	const slots = PageSize / 16
	bufs := make([]api.Buffer, 0, slots+1)
	for i := 0; i < slots+1; i++ {
		buf, err := a.Allocate(16, 16)
		if err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
		bufs = append(bufs, buf)
	}
	for i, buf := range bufs {
		if _, err := buf.Release(); err != nil {
			t.Fatalf("Release #%d: %v", i, err)
		}
	}
	s := a.Stats()
	if s.ActiveBytes != 0 {
		t.Fatalf("active bytes after drain: %d", s.ActiveBytes)
	}
	if s.Allocations != int64(slots+1) || s.Deallocations != int64(slots+1) {
		t.Fatalf("counters: %+v", s)
	}
}

// TestUnpooled exercises the heap-backed fallback allocator.
func TestUnpooled(t *testing.T) {
	buf, err := Unpooled.Allocate(8, 64)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, err := buf.WriteBytes([]byte("unpooled")); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if string(buf.Bytes()) != "unpooled" {
		t.Fatalf("readback mismatch: %q", buf.Bytes())
	}
	if _, err := buf.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}
