// File: internal/concurrency/promise.go
// Package concurrency implements the Promise/Future contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Completion is one-shot and guarded by a mutex; listeners added after
// completion run on the adding goroutine, listeners added before run
// on the completing goroutine (normally the event loop).

package concurrency

import (
	"context"
	"sync"

	"github.com/momentics/hioload-net/api"
)

// Promise implements api.Promise.
type Promise struct {
	mu        sync.Mutex
	done      chan struct{}
	err       error
	completed bool
	listeners []func(api.Future)
}

var _ api.Promise = (*Promise)(nil)

// NewPromise creates an incomplete promise.
func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// NewSucceededFuture returns an already-successful future.
func NewSucceededFuture() api.Future {
	p := NewPromise()
	p.TrySuccess()
	return p
}

// NewFailedFuture returns an already-failed future.
func NewFailedFuture(cause error) api.Future {
	p := NewPromise()
	p.TryFailure(cause)
	return p
}

// Done implements api.Future.
func (p *Promise) Done() <-chan struct{} { return p.done }

// IsDone implements api.Future.
func (p *Promise) IsDone() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed
}

// Err implements api.Future.
func (p *Promise) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Await implements api.Future.
func (p *Promise) Await(ctx context.Context) error {
	select {
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddListener implements api.Future.
func (p *Promise) AddListener(fn func(api.Future)) {
	p.mu.Lock()
	if !p.completed {
		p.listeners = append(p.listeners, fn)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	fn(p)
}

// TrySuccess implements api.Promise.
func (p *Promise) TrySuccess() bool { return p.complete(nil) }

// TryFailure implements api.Promise.
func (p *Promise) TryFailure(cause error) bool { return p.complete(cause) }

func (p *Promise) complete(cause error) bool {
	p.mu.Lock()
	if p.completed {
		p.mu.Unlock()
		return false
	}
	p.completed = true
	p.err = cause
	listeners := p.listeners
	p.listeners = nil
	close(p.done)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(p)
	}
	return true
}
