// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral readiness selector interface for IO multiplexing.

package reactor

import "time"

// Interest selects the readiness kinds a registration listens for.
type Interest uint8

const (
	// InterestRead requests readable-readiness notifications.
	InterestRead Interest = 1 << iota
	// InterestWrite requests writable-readiness notifications.
	InterestWrite
)

// WakeToken is reserved for the selector's own wake-up registration
// and never delivered to callers.
const WakeToken = ^uint64(0)

// Event is one readiness notification.
type Event struct {
	Token    uint64 // registration token, typically a channel id
	Readable bool
	Writable bool
	Error    bool
	Hup      bool
}

// Selector multiplexes file descriptor readiness plus an out-of-band
// wake-up signal. Wait is called only by the owning event loop; Wakeup
// may be called from any goroutine.
type Selector interface {
	// Add registers fd under token with the given interest set.
	Add(fd int, token uint64, interest Interest) error

	// Mod replaces the interest set of a registered fd.
	Mod(fd int, token uint64, interest Interest) error

	// Del removes a registration.
	Del(fd int) error

	// Wait blocks up to timeout for readiness and fills events.
	// A wake-up terminates the wait early with n possibly zero.
	// timeout < 0 blocks indefinitely.
	Wait(events []Event, timeout time.Duration) (n int, err error)

	// Wakeup interrupts a concurrent Wait.
	Wakeup() error

	Close() error
}
