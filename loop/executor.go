// File: loop/executor.go
// Package loop: worker pool for blocking work offloaded from loops.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Loops must never block. Work that can (DNS, disk, crypto) goes to an
// Executor; the completion is posted back to the submitting loop so the
// callback observes loop-confined state safely.

package loop

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-net/api"
)

// BlockingTask produces a result off-loop.
type BlockingTask func() (any, error)

// Executor runs blocking tasks on a fixed worker pool.
type Executor struct {
	queue   chan func()
	closeCh chan struct{}
	closed  atomic.Bool
	wg      sync.WaitGroup

	totalTasks     atomic.Int64
	completedTasks atomic.Int64
}

// NewExecutor creates an executor with numWorkers goroutines.
// numWorkers <= 0 defaults to NumCPU.
func NewExecutor(numWorkers int) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	e := &Executor{
		queue:   make(chan func(), numWorkers*4),
		closeCh: make(chan struct{}),
	}
	e.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go e.worker()
	}
	return e
}

func (e *Executor) worker() {
	defer e.wg.Done()
	for {
		select {
		case fn := <-e.queue:
			fn()
			e.completedTasks.Add(1)
		case <-e.closeCh:
			// drain what is already queued
			for {
				select {
				case fn := <-e.queue:
					fn()
					e.completedTasks.Add(1)
				default:
					return
				}
			}
		}
	}
}

// Execute runs fn on a worker and posts done(result, err) back to l.
func (e *Executor) Execute(l api.EventLoop, fn BlockingTask, done func(any, error)) error {
	if e.closed.Load() {
		return api.ErrLoopShutdown
	}
	e.totalTasks.Add(1)
	job := func() {
		result, err := fn()
		if _, serr := l.Submit(func() { done(result, err) }); serr != nil {
			done(nil, serr)
		}
	}
	select {
	case e.queue <- job:
		return nil
	case <-e.closeCh:
		return api.ErrLoopShutdown
	}
}

// Close stops the executor and waits for running tasks to finish.
func (e *Executor) Close() {
	if e.closed.CompareAndSwap(false, true) {
		close(e.closeCh)
		e.wg.Wait()
	}
}

// Stats returns basic executor counters.
func (e *Executor) Stats() map[string]int64 {
	total := e.totalTasks.Load()
	completed := e.completedTasks.Load()
	return map[string]int64{
		"total_tasks":     total,
		"completed_tasks": completed,
		"pending_tasks":   total - completed,
	}
}
