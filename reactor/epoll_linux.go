// File: reactor/epoll_linux.go
//go:build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux selector backed by epoll with an eventfd wake-up channel.
// The 64-bit registration token is packed into the epoll user data.

package reactor

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

type epollSelector struct {
	epfd   int
	wakefd int

	mu     sync.Mutex
	closed bool
}

// NewSelector creates the platform selector: epoll plus eventfd.
func NewSelector() (Selector, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	s := &epollSelector{epfd: epfd, wakefd: wakefd}
	if err := s.Add(wakefd, WakeToken, InterestRead); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, err
	}
	return s, nil
}

func packToken(ev *unix.EpollEvent, token uint64) {
	ev.Fd = int32(uint32(token))
	ev.Pad = int32(uint32(token >> 32))
}

func unpackToken(ev *unix.EpollEvent) uint64 {
	return uint64(uint32(ev.Fd)) | uint64(uint32(ev.Pad))<<32
}

func epollMask(interest Interest) uint32 {
	var mask uint32 = unix.EPOLLRDHUP
	if interest&InterestRead != 0 {
		mask |= unix.EPOLLIN
	}
	if interest&InterestWrite != 0 {
		mask |= unix.EPOLLOUT
	}
	return mask
}

func (s *epollSelector) Add(fd int, token uint64, interest Interest) error {
	ev := unix.EpollEvent{Events: epollMask(interest)}
	packToken(&ev, token)
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

func (s *epollSelector) Mod(fd int, token uint64, interest Interest) error {
	ev := unix.EpollEvent{Events: epollMask(interest)}
	packToken(&ev, token)
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	return nil
}

func (s *epollSelector) Del(fd int) error {
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

func (s *epollSelector) Wait(events []Event, timeout time.Duration) (int, error) {
	raw := make([]unix.EpollEvent, len(events)+1)
	ms := -1
	if timeout >= 0 {
		ms = int(timeout.Milliseconds())
	}
	n, err := unix.EpollWait(s.epfd, raw, ms)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}

	out := 0
	for i := 0; i < n; i++ {
		ev := &raw[i]
		token := unpackToken(ev)
		if token == WakeToken {
			s.drainWake()
			continue
		}
		if out == len(events) {
			break
		}
		events[out] = Event{
			Token:    token,
			Readable: ev.Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0,
			Writable: ev.Events&unix.EPOLLOUT != 0,
			Error:    ev.Events&unix.EPOLLERR != 0,
			Hup:      ev.Events&unix.EPOLLHUP != 0,
		}
		out++
	}
	return out, nil
}

func (s *epollSelector) drainWake() {
	var buf [8]byte
	for {
		_, err := unix.Read(s.wakefd, buf[:])
		if err != nil {
			return
		}
	}
}

func (s *epollSelector) Wakeup() error {
	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)
	_, err := unix.Write(s.wakefd, one[:])
	if err == unix.EAGAIN {
		return nil // counter saturated, wake already pending
	}
	return err
}

func (s *epollSelector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	unix.Close(s.wakefd)
	return unix.Close(s.epfd)
}
