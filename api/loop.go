// File: api/loop.go
// Package api defines the event loop contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "time"

// EventLoop drives I/O and tasks for its channels on one dedicated
// goroutine. Channels are affined to exactly one loop for life.
type EventLoop interface {
	// Submit enqueues fn for execution on the loop goroutine and
	// returns immediately. Submissions from the loop goroutine itself
	// are still enqueued, never run inline.
	Submit(fn func()) (TaskHandle, error)

	// Schedule runs fn on the loop after the given delay.
	Schedule(delay time.Duration, fn func()) (TaskHandle, error)

	// InLoop reports whether the caller runs on the loop goroutine.
	InLoop() bool

	// Register affines ch to this loop. The returned future resolves
	// after the channel joined the selector and its pipeline fired the
	// registered event.
	Register(ch Channel) Future

	// NewPromise creates a promise bound to this loop.
	NewPromise() Promise
}
