// File: internal/concurrency/timers_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"testing"
	"time"
)

// TestTimerHeap_Order pops tasks in deadline order regardless of
// insertion order.
func TestTimerHeap_Order(t *testing.T) {
	h := NewTimerHeap()
	base := time.Now()
	var fired []int
	h.Add(base.Add(3*time.Millisecond), func() { fired = append(fired, 3) })
	h.Add(base.Add(1*time.Millisecond), func() { fired = append(fired, 1) })
	h.Add(base.Add(2*time.Millisecond), func() { fired = append(fired, 2) })

	now := base.Add(10 * time.Millisecond)
	for {
		task := h.PopExpired(now)
		if task == nil {
			break
		}
		task.Run()
	}
	if len(fired) != 3 || fired[0] != 1 || fired[1] != 2 || fired[2] != 3 {
		t.Fatalf("expected [1 2 3], got %v", fired)
	}
}

// TestTimerHeap_NotYetDue leaves future tasks on the heap.
func TestTimerHeap_NotYetDue(t *testing.T) {
	h := NewTimerHeap()
	base := time.Now()
	h.Add(base.Add(time.Hour), func() {})
	if task := h.PopExpired(base); task != nil {
		t.Fatal("future task popped early")
	}
	if h.Len() != 1 {
		t.Fatalf("expected 1 pending task, got %d", h.Len())
	}
	dl, ok := h.NextDeadline()
	if !ok || !dl.Equal(base.Add(time.Hour)) {
		t.Fatalf("NextDeadline mismatch: %v ok=%v", dl, ok)
	}
}

// TestTimerHeap_Cancel discards cancelled tasks at expiry.
func TestTimerHeap_Cancel(t *testing.T) {
	h := NewTimerHeap()
	base := time.Now()
	ran := false
	task := h.Add(base.Add(time.Millisecond), func() { ran = true })
	if !task.Cancel() {
		t.Fatal("first Cancel must succeed")
	}
	if task.Cancel() {
		t.Error("second Cancel must report false")
	}
	if got := h.PopExpired(base.Add(time.Second)); got != nil {
		t.Fatalf("cancelled task surfaced: %v", got)
	}
	if ran {
		t.Error("cancelled task ran")
	}
	if _, ok := h.NextDeadline(); ok {
		t.Error("NextDeadline should skip cancelled tasks")
	}
}
