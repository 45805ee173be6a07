// File: reactor/mem.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// In-memory selector for loops that drive only loopback channels.
// Carries no file descriptors; Wait parks on a channel until timeout
// or wake-up.

package reactor

import (
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-net/api"
)

type memSelector struct {
	wake   chan struct{}
	closed atomic.Bool
}

// NewMemSelector creates a selector without fd support. Add, Mod and
// Del report ErrNotSupported; Wait and Wakeup behave normally.
func NewMemSelector() Selector {
	return &memSelector{wake: make(chan struct{}, 1)}
}

func (s *memSelector) Add(fd int, token uint64, interest Interest) error {
	return api.ErrNotSupported
}

func (s *memSelector) Mod(fd int, token uint64, interest Interest) error {
	return api.ErrNotSupported
}

func (s *memSelector) Del(fd int) error {
	return api.ErrNotSupported
}

func (s *memSelector) Wait(events []Event, timeout time.Duration) (int, error) {
	if s.closed.Load() {
		return 0, api.ErrLoopShutdown
	}
	if timeout < 0 {
		<-s.wake
		return 0, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.wake:
	case <-timer.C:
	}
	return 0, nil
}

func (s *memSelector) Wakeup() error {
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *memSelector) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.Wakeup()
	}
	return nil
}
