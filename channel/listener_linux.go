// File: channel/listener_linux.go
// Package channel: the accepting TCP server transport.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A ListenerChannel accepts connections on its own loop and hands each
// child to the next loop of the child group. Accepted channels surface
// in the listener's pipeline as channelRead messages before they are
// registered, mirroring the child-channel flow of the stream side.

package channel

import (
	"net"
	"time"

	"github.com/jpillora/backoff"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/loop"
	"github.com/momentics/hioload-net/reactor"
)

const (
	listenBacklog     = 1024
	maxAcceptsPerWake = 16
)

// ListenerChannel is a bound TCP server socket.
type ListenerChannel struct {
	*core

	fd int
	lp *loop.Loop

	children  *loop.Group
	childCfg  Config
	childInit func(api.Channel) error

	// loop-confined
	interest reactor.Interest
	bound    bool
	retry    *backoff.Backoff
	paused   bool
}

var (
	_ api.Channel    = (*ListenerChannel)(nil)
	_ loop.IOHandler = (*ListenerChannel)(nil)
)

// NewListenerChannel creates an unbound listener. Accepted channels
// use childCfg, run childInit for pipeline setup and register on the
// child group.
func NewListenerChannel(cfg, childCfg Config, children *loop.Group, childInit func(api.Channel) error) (*ListenerChannel, error) {
	fd, err := newStreamSocket(nil)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, &api.TransportError{Op: "setsockopt", Cause: err}
	}
	c := &ListenerChannel{
		core:      newCore(nil, cfg),
		fd:        fd,
		children:  children,
		childCfg:  childCfg,
		childInit: childInit,
		retry: &backoff.Backoff{
			Min:    time.Millisecond,
			Max:    time.Second,
			Factor: 2,
			Jitter: true,
		},
	}
	c.core.finish(c, c)
	return c, nil
}

// Listen creates a listener, registers it on l and binds it to addr.
// The returned future resolves once the socket accepts connections.
func Listen(l api.EventLoop, addr *net.TCPAddr, cfg, childCfg Config, children *loop.Group, childInit func(api.Channel) error) (*ListenerChannel, api.Future, error) {
	c, err := NewListenerChannel(cfg, childCfg, children, childInit)
	if err != nil {
		return nil, nil, err
	}
	bindP := newPromise()
	l.Register(c).AddListener(func(f api.Future) {
		if err := f.Err(); err != nil {
			bindP.TryFailure(err)
			return
		}
		chain(c.Bind(addr), bindP)
	})
	return c, bindP, nil
}

func (c *ListenerChannel) localAddr() net.Addr  { return sockLocalAddr(c.fd) }
func (c *ListenerChannel) remoteAddr() net.Addr { return nil }

func (c *ListenerChannel) doRegister() error {
	l, ok := c.EventLoop().(*loop.Loop)
	if !ok {
		return api.ErrNotSupported
	}
	c.lp = l
	c.interest = 0
	return l.RegisterHandler(c.fd, c.id, c.interest, c)
}

func (c *ListenerChannel) doBind(local net.Addr) error {
	addr, ok := local.(*net.TCPAddr)
	if !ok {
		return api.ErrNotSupported
	}
	sa, err := tcpAddrToSockaddr(addr)
	if err != nil {
		return err
	}
	if err := unix.Bind(c.fd, sa); err != nil {
		return &api.TransportError{Op: "bind", Cause: err}
	}
	if err := unix.Listen(c.fd, listenBacklog); err != nil {
		return &api.TransportError{Op: "listen", Cause: err}
	}
	c.bound = true
	return nil
}

func (c *ListenerChannel) doConnect(_ net.Addr, promise api.Promise) {
	promise.TryFailure(api.ErrNotSupported)
}

func (c *ListenerChannel) doDisconnect() error { return api.ErrNotSupported }

func (c *ListenerChannel) doClose() error {
	if err := unix.Close(c.fd); err != nil {
		return &api.TransportError{Op: "close", Cause: err}
	}
	return nil
}

func (c *ListenerChannel) doDeregister() error {
	if c.lp == nil {
		return nil
	}
	err := c.lp.DeregisterHandler(c.fd, c.id)
	c.lp = nil
	return err
}

func (c *ListenerChannel) doBeginRead() error {
	if c.paused {
		return nil
	}
	return c.setInterest(c.interest | reactor.InterestRead)
}

// doFlush is meaningless on a listener.
func (c *ListenerChannel) doFlush() {}

func (c *ListenerChannel) isActive() bool { return c.open.Load() && c.bound }

func (c *ListenerChannel) supportsDisconnect() bool { return false }

func (c *ListenerChannel) setInterest(want reactor.Interest) error {
	if want == c.interest || c.lp == nil {
		return nil
	}
	if err := c.lp.ModInterest(c.fd, c.id, want); err != nil {
		return err
	}
	c.interest = want
	return nil
}

// HandleEvent implements loop.IOHandler.
func (c *ListenerChannel) HandleEvent(ev reactor.Event) {
	if !c.open.Load() {
		return
	}
	if ev.Error || ev.Hup {
		c.unsafe.Close(newPromise())
		return
	}
	if ev.Readable {
		c.acceptReady()
	}
}

// ForceClose implements loop.IOHandler.
func (c *ListenerChannel) ForceClose(error) {
	c.unsafe.Close(newPromise())
}

func (c *ListenerChannel) acceptReady() {
	accepted := 0
	for accepted < maxAcceptsPerWake {
		nfd, _, err := unix.Accept4(c.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			switch err {
			case unix.EAGAIN:
				c.retry.Reset()
			case unix.EINTR:
				continue
			case unix.ECONNABORTED:
				continue
			default:
				// likely fd exhaustion, pause accepting briefly
				c.pauseAccept(err)
			}
			break
		}
		c.retry.Reset()
		accepted++
		c.spawnChild(nfd)
	}
	if accepted > 0 {
		c.pipeline.FireChannelReadComplete()
	}
}

func (c *ListenerChannel) spawnChild(fd int) {
	child := newAcceptedTCPChannel(c.self, c.childCfg, fd)
	if c.childInit != nil {
		if err := c.childInit(child); err != nil {
			c.log.Warn().Err(err).Uint64("listener", c.id).Msg("child setup failed, dropping connection")
			unix.Close(fd)
			return
		}
	}
	c.pipeline.FireChannelRead(child)
	c.children.Register(child).AddListener(func(f api.Future) {
		if err := f.Err(); err != nil {
			c.log.Warn().Err(err).Uint64("listener", c.id).Msg("child registration failed")
			child.Close()
		}
	})
}

// pauseAccept backs off after an accept failure such as EMFILE, then
// rearms read interest.
func (c *ListenerChannel) pauseAccept(cause error) {
	c.log.Warn().Err(cause).Uint64("listener", c.id).Msg("accept failed, backing off")
	c.pipeline.FireExceptionCaught(&api.TransportError{Op: "accept", Cause: cause})
	if c.paused {
		return
	}
	c.paused = true
	c.setInterest(c.interest &^ reactor.InterestRead)
	delay := c.retry.Duration()
	l := c.EventLoop()
	if l == nil {
		return
	}
	l.Schedule(delay, func() {
		c.paused = false
		if c.open.Load() {
			c.unsafe.BeginRead()
		}
	})
}
