// File: reactor/reactor_stub.go
//go:build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-Linux fallback: loopback channels work everywhere, fd-backed
// transports need the epoll selector.

package reactor

// NewSelector returns the in-memory selector on platforms without an
// epoll implementation.
func NewSelector() (Selector, error) {
	return NewMemSelector(), nil
}
