// Package benchmarks
// Author: momentics <momentics@gmail.com>
//
// Performance benchmarks for hioload-net components.

package benchmarks

import (
	"testing"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/channel"
	"github.com/momentics/hioload-net/internal/concurrency"
	"github.com/momentics/hioload-net/pool"
)

// BenchmarkPooledAllocate measures the allocate/release round trip for
// a small-class buffer under parallel load.
func BenchmarkPooledAllocate(b *testing.B) {
	a := pool.NewPooledAllocator()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf, err := a.Allocate(4096, 4096)
			if err != nil {
				b.Fatal(err)
			}
			buf.Release()
		}
	})
}

// BenchmarkPooledAllocateTiny exercises the subpage path.
func BenchmarkPooledAllocateTiny(b *testing.B) {
	a := pool.NewPooledAllocator()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf, err := a.Allocate(64, 64)
			if err != nil {
				b.Fatal(err)
			}
			buf.Release()
		}
	})
}

// BenchmarkRingThroughput measures the submission fast path.
func BenchmarkRingThroughput(b *testing.B) {
	ring := concurrency.NewRingBuffer[int](1 << 10)
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if !ring.Enqueue(i) {
				ring.Dequeue()
				ring.Enqueue(i)
			}
			i++
		}
	})
}

// BenchmarkPromiseComplete measures promise settle plus one listener.
func BenchmarkPromiseComplete(b *testing.B) {
	for i := 0; i < b.N; i++ {
		p := concurrency.NewPromise()
		p.AddListener(func(api.Future) {})
		p.TrySuccess()
	}
}

// BenchmarkPipelineRead pushes one buffer through a three-handler
// pipeline on an unregistered pair.
func BenchmarkPipelineRead(b *testing.B) {
	ch, _ := channel.NewLoopbackPair(channel.DefaultConfig(), channel.DefaultConfig())
	p := ch.Pipeline()
	for _, name := range []string{"h1", "h2", "h3"} {
		if err := p.AddLast(name, &channel.InboundHandlerAdapter{}); err != nil {
			b.Fatal(err)
		}
	}
	payload := []byte("twelve bytes")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf, err := pool.Unpooled.Allocate(len(payload), len(payload))
		if err != nil {
			b.Fatal(err)
		}
		if _, err := buf.WriteBytes(payload); err != nil {
			b.Fatal(err)
		}
		p.FireChannelRead(buf)
	}
}

// BenchmarkBufferAccessors measures the typed cursor round trip.
func BenchmarkBufferAccessors(b *testing.B) {
	buf, err := pool.Unpooled.Allocate(4096, 4096)
	if err != nil {
		b.Fatal(err)
	}
	defer buf.Release()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := buf.WriteUint64(uint64(i)); err != nil {
			b.Fatal(err)
		}
		if _, err := buf.ReadUint64(); err != nil {
			b.Fatal(err)
		}
		buf.DiscardReadBytes()
	}
}
