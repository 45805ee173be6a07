// File: channel/net_stub.go
// Package channel: socket transport stubs for unsupported platforms.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build !linux

package channel

import (
	"net"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/loop"
)

// TCPChannel requires the linux epoll transport.
type TCPChannel struct{ *core }

// ListenerChannel requires the linux epoll transport.
type ListenerChannel struct{ *core }

// NewTCPChannel is unavailable on this platform.
func NewTCPChannel(Config) (*TCPChannel, error) { return nil, api.ErrNotSupported }

// Dial is unavailable on this platform.
func Dial(api.EventLoop, *net.TCPAddr, Config, func(api.Channel) error) (*TCPChannel, api.Future, error) {
	return nil, nil, api.ErrNotSupported
}

// NewListenerChannel is unavailable on this platform.
func NewListenerChannel(Config, Config, *loop.Group, func(api.Channel) error) (*ListenerChannel, error) {
	return nil, api.ErrNotSupported
}

// Listen is unavailable on this platform.
func Listen(api.EventLoop, *net.TCPAddr, Config, Config, *loop.Group, func(api.Channel) error) (*ListenerChannel, api.Future, error) {
	return nil, nil, api.ErrNotSupported
}
