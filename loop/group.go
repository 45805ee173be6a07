// File: loop/group.go
// Package loop: a fixed set of loops with round-robin assignment.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package loop

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-net/api"
)

// Group owns a fixed number of started loops and assigns channels to
// them round-robin.
type Group struct {
	loops []*Loop
	next  atomic.Uint64
}

// NewGroup creates and starts n loops. n <= 0 means GOMAXPROCS.
func NewGroup(n int, opts ...Option) (*Group, error) {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	g := &Group{loops: make([]*Loop, n)}
	for i := 0; i < n; i++ {
		l, err := NewLoop(opts...)
		if err != nil {
			for _, started := range g.loops[:i] {
				started.Shutdown()
			}
			return nil, err
		}
		g.loops[i] = l
		l.Start()
	}
	return g, nil
}

// NewPinnedGroup creates and starts n loops with each loop's thread
// pinned to a distinct CPU, wrapping around when n exceeds the core
// count. n <= 0 means GOMAXPROCS.
func NewPinnedGroup(n int, opts ...Option) (*Group, error) {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	cpus := runtime.NumCPU()
	g := &Group{loops: make([]*Loop, n)}
	for i := 0; i < n; i++ {
		l, err := NewLoop(append(opts, WithPinnedCPU(i%cpus))...)
		if err != nil {
			for _, started := range g.loops[:i] {
				started.Shutdown()
			}
			return nil, err
		}
		g.loops[i] = l
		l.Start()
	}
	return g, nil
}

// Next returns the next loop in round-robin order.
func (g *Group) Next() api.EventLoop {
	idx := g.next.Add(1) % uint64(len(g.loops))
	return g.loops[idx]
}

// Register assigns ch to the next loop.
func (g *Group) Register(ch api.Channel) api.Future {
	return g.Next().Register(ch)
}

// Len returns the number of loops.
func (g *Group) Len() int { return len(g.loops) }

// Stats sums the counters of every loop in the group.
func (g *Group) Stats() map[string]int64 {
	out := make(map[string]int64)
	for _, l := range g.loops {
		for k, v := range l.Stats() {
			out[k] += v
		}
	}
	return out
}

// Shutdown stops every loop and blocks until all of them terminated or
// ctx expired.
func (g *Group) Shutdown(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, l := range g.loops {
		f := l.Shutdown()
		eg.Go(func() error { return f.Await(ctx) })
	}
	return eg.Wait()
}
