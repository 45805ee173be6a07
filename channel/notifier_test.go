// File: channel/notifier_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package channel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/internal/concurrency"
)

// TestNotifier_Checkpoint completes promises exactly when their byte
// checkpoint is reached.
func TestNotifier_Checkpoint(t *testing.T) {
	n := NewFlushPromiseNotifier()
	p1 := concurrency.NewPromise()
	p2 := concurrency.NewPromise()
	n.Add(p1, 10)
	n.Add(p2, 25)

	n.IncreaseWriteCounter(9)
	n.NotifyPromises()
	assert.False(t, p1.IsDone())

	n.IncreaseWriteCounter(1)
	n.NotifyPromises()
	assert.True(t, p1.IsDone())
	require.NoError(t, p1.Err())
	assert.False(t, p2.IsDone())

	n.IncreaseWriteCounter(15)
	n.NotifyPromises()
	assert.True(t, p2.IsDone())
	require.NoError(t, p2.Err())
}

// TestNotifier_ZeroPending completes an empty-flush promise on the next
// notification.
func TestNotifier_ZeroPending(t *testing.T) {
	n := NewFlushPromiseNotifier()
	p := concurrency.NewPromise()
	n.Add(p, 0)
	n.NotifyPromises()
	assert.True(t, p.IsDone())
	require.NoError(t, p.Err())
}

// TestNotifier_ResetWhenIdle zeroes the counter once the queue drains.
func TestNotifier_ResetWhenIdle(t *testing.T) {
	n := NewFlushPromiseNotifier()
	p := concurrency.NewPromise()
	n.Add(p, 5)
	n.IncreaseWriteCounter(5)
	n.NotifyPromises()
	require.True(t, p.IsDone())
	assert.Equal(t, int64(0), n.WriteCounter())

	// Counting with nothing waiting must also stay at zero after the
	// next notification pass.
	n.IncreaseWriteCounter(100)
	n.NotifyPromises()
	assert.Equal(t, int64(0), n.WriteCounter())
}

// TestNotifier_Failure succeeds satisfied checkpoints and fails the
// remainder.
func TestNotifier_Failure(t *testing.T) {
	n := NewFlushPromiseNotifier()
	done := concurrency.NewPromise()
	pending := concurrency.NewPromise()
	n.Add(done, 4)
	n.Add(pending, 20)
	n.IncreaseWriteCounter(4)

	cause := errors.New("connection reset")
	n.NotifyFailure(cause)

	assert.True(t, done.IsDone())
	assert.NoError(t, done.Err())
	assert.True(t, pending.IsDone())
	assert.ErrorIs(t, pending.Err(), cause)
	assert.Equal(t, int64(0), n.WriteCounter())
}

// TestNotifier_FailureSplit applies distinct causes to satisfied and
// unsatisfied checkpoints.
func TestNotifier_FailureSplit(t *testing.T) {
	n := NewFlushPromiseNotifier()
	counted := concurrency.NewPromise()
	waiting := concurrency.NewPromise()
	n.Add(counted, 3)
	n.Add(waiting, 30)
	n.IncreaseWriteCounter(3)

	satCause := errors.New("flushed but unacknowledged")
	pendCause := errors.New("never flushed")
	n.NotifyFailureSplit(satCause, pendCause)

	assert.ErrorIs(t, counted.Err(), satCause)
	assert.ErrorIs(t, waiting.Err(), pendCause)
}

// TestNotifier_Rebase shifts the counter and open checkpoints down
// together past the overflow guard.
func TestNotifier_Rebase(t *testing.T) {
	n := NewFlushPromiseNotifier()
	settled := concurrency.NewPromise()
	n.Add(settled, 10)
	n.IncreaseWriteCounter(counterRebase)
	open := concurrency.NewPromise()
	n.Add(open, 5)

	n.NotifyPromises()
	require.True(t, settled.IsDone())
	assert.False(t, open.IsDone())
	assert.Less(t, n.WriteCounter(), counterRebase)

	n.IncreaseWriteCounter(5)
	n.NotifyPromises()
	assert.True(t, open.IsDone())
	assert.NoError(t, open.Err())
}

// TestNotifier_ReentrantAdd tolerates listeners that register new
// checkpoints mid-notification.
func TestNotifier_ReentrantAdd(t *testing.T) {
	n := NewFlushPromiseNotifier()
	inner := concurrency.NewPromise()
	p := concurrency.NewPromise()
	p.AddListener(func(api.Future) {
		n.Add(inner, 5)
	})
	n.Add(p, 2)
	n.IncreaseWriteCounter(2)
	n.NotifyPromises()
	require.True(t, p.IsDone())
	assert.False(t, inner.IsDone())

	n.IncreaseWriteCounter(5)
	n.NotifyPromises()
	assert.True(t, inner.IsDone())
}
