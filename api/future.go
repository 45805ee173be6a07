// File: api/future.go
// Package api defines write promises and task handles.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "context"

// Future is the read side of an asynchronous completion.
type Future interface {
	// Done is closed once the future completes.
	Done() <-chan struct{}

	// IsDone reports completion without blocking.
	IsDone() bool

	// Err returns nil for success, the failure cause otherwise.
	// Before completion it returns nil; check IsDone to distinguish.
	Err() error

	// Await blocks until completion or context cancellation.
	Await(ctx context.Context) error

	// AddListener registers fn to run once the future completes.
	// Listeners added after completion run immediately on the caller.
	AddListener(fn func(Future))
}

// Promise is the write side of a Future.
//
// Completion is one-shot: the first TrySuccess or TryFailure wins and
// later attempts report false.
type Promise interface {
	Future

	TrySuccess() bool
	TryFailure(cause error) bool
}

// TaskHandle identifies a task submitted to an event loop.
type TaskHandle interface {
	// Cancel prevents a not-yet-started task from running.
	// Cancellation after the task started has no effect.
	Cancel() bool
}
