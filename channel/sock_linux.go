// File: channel/sock_linux.go
// Package channel: raw socket plumbing shared by the TCP transports.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build linux

package channel

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-net/api"
)

// newStreamSocket opens a non-blocking TCP socket for the address
// family of addr.
func newStreamSocket(addr *net.TCPAddr) (int, error) {
	family := unix.AF_INET
	if addr != nil && addr.IP.To4() == nil && addr.IP.To16() != nil {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, &api.TransportError{Op: "socket", Cause: err}
	}
	return fd, nil
}

func tcpAddrToSockaddr(addr *net.TCPAddr) (unix.Sockaddr, error) {
	if addr == nil {
		return nil, api.ErrNotSupported
	}
	if ip4 := addr.IP.To4(); ip4 != nil || addr.IP == nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return sa, nil
	}
	if ip6 := addr.IP.To16(); ip6 != nil {
		sa := &unix.SockaddrInet6{Port: addr.Port}
		copy(sa.Addr[:], ip6)
		return sa, nil
	}
	return nil, api.ErrNotSupported
}

func sockaddrToTCPAddr(sa unix.Sockaddr) *net.TCPAddr {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(s.Addr[:]), Port: s.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(s.Addr[:]), Port: s.Port}
	}
	return nil
}

func sockLocalAddr(fd int) *net.TCPAddr {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil
	}
	return sockaddrToTCPAddr(sa)
}

func sockRemoteAddr(fd int) *net.TCPAddr {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return nil
	}
	return sockaddrToTCPAddr(sa)
}
