// File: channel/tcp_linux.go
// Package channel: the epoll-backed TCP stream transport.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TCPChannel wraps one non-blocking connected socket. Reads pull into
// allocator buffers sized by the adaptive sizer; writes drain the
// outbound buffer until EAGAIN, then arm write interest and resume on
// the next writable event.

package channel

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/buffer"
	"github.com/momentics/hioload-net/loop"
	"github.com/momentics/hioload-net/reactor"
)

// maxReadsPerWake bounds consecutive reads on one readiness event so a
// chatty peer cannot starve the loop's other channels.
const maxReadsPerWake = 16

// TCPChannel is a connected TCP stream endpoint.
type TCPChannel struct {
	*core

	fd int
	lp *loop.Loop

	// loop-confined
	interest  reactor.Interest
	connected bool
	connectP  api.Promise
	pendingRemote net.Addr
}

var (
	_ api.Channel    = (*TCPChannel)(nil)
	_ loop.IOHandler = (*TCPChannel)(nil)
)

// NewTCPChannel creates an unconnected TCP channel. Register it, then
// connect through the pipeline.
func NewTCPChannel(cfg Config) (*TCPChannel, error) {
	fd, err := newStreamSocket(nil)
	if err != nil {
		return nil, err
	}
	c := &TCPChannel{core: newCore(nil, cfg), fd: fd}
	c.core.finish(c, c)
	return c, nil
}

// newAcceptedTCPChannel wraps a socket produced by accept.
func newAcceptedTCPChannel(parent api.Channel, cfg Config, fd int) *TCPChannel {
	c := &TCPChannel{core: newCore(parent, cfg), fd: fd, connected: true}
	c.core.finish(c, c)
	return c
}

// Dial creates, registers and connects a TCP channel in one call. The
// returned future resolves when the connection is established.
func Dial(l api.EventLoop, remote *net.TCPAddr, cfg Config, setup func(api.Channel) error) (*TCPChannel, api.Future, error) {
	c, err := NewTCPChannel(cfg)
	if err != nil {
		return nil, nil, err
	}
	if setup != nil {
		if err := setup(c); err != nil {
			unix.Close(c.fd)
			return nil, nil, err
		}
	}
	connectP := newPromise()
	l.Register(c).AddListener(func(f api.Future) {
		if err := f.Err(); err != nil {
			connectP.TryFailure(err)
			return
		}
		chain(c.Connect(remote), connectP)
	})
	return c, connectP, nil
}

func (c *TCPChannel) localAddr() net.Addr { return sockLocalAddr(c.fd) }

func (c *TCPChannel) remoteAddr() net.Addr {
	if addr := sockRemoteAddr(c.fd); addr != nil {
		return addr
	}
	return c.pendingRemote
}

func (c *TCPChannel) doRegister() error {
	l, ok := c.EventLoop().(*loop.Loop)
	if !ok {
		return api.ErrNotSupported
	}
	c.lp = l
	c.interest = 0
	return l.RegisterHandler(c.fd, c.id, c.interest, c)
}

func (c *TCPChannel) doBind(local net.Addr) error {
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
	return nil
}

func (c *TCPChannel) doConnect(remote net.Addr, promise api.Promise) {
	addr, ok := remote.(*net.TCPAddr)
	if !ok {
		promise.TryFailure(api.ErrNotSupported)
		return
	}
	sa, err := tcpAddrToSockaddr(addr)
	if err != nil {
		promise.TryFailure(err)
		return
	}
	c.pendingRemote = addr
	err = unix.Connect(c.fd, sa)
	switch {
	case err == nil:
		c.finishConnect(promise)
	case err == unix.EINPROGRESS:
		c.connectP = promise
		c.setInterest(c.interest | reactor.InterestWrite)
	default:
		promise.TryFailure(&api.TransportError{Op: "connect", Cause: err})
	}
}

func (c *TCPChannel) finishConnect(promise api.Promise) {
	c.connected = true
	promise.TrySuccess()
	c.markActive()
}

func (c *TCPChannel) doDisconnect() error { return api.ErrNotSupported }

func (c *TCPChannel) doClose() error {
	if err := unix.Close(c.fd); err != nil {
		return &api.TransportError{Op: "close", Cause: err}
	}
	return nil
}

func (c *TCPChannel) doDeregister() error {
	if c.lp == nil {
		return nil
	}
	err := c.lp.DeregisterHandler(c.fd, c.id)
	c.lp = nil
	return err
}

func (c *TCPChannel) doBeginRead() error {
	return c.setInterest(c.interest | reactor.InterestRead)
}

func (c *TCPChannel) isActive() bool { return c.open.Load() && c.connected }

func (c *TCPChannel) supportsDisconnect() bool { return false }

func (c *TCPChannel) setInterest(want reactor.Interest) error {
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
func (c *TCPChannel) HandleEvent(ev reactor.Event) {
	if !c.open.Load() {
		return
	}
	if ev.Error {
		c.failOrClose(&api.TransportError{Op: "poll", Cause: unix.EIO})
		return
	}
	if ev.Writable {
		if c.connectP != nil {
			c.completeConnect()
		} else {
			c.doFlush()
		}
	}
	if ev.Readable {
		c.readReady()
	}
	if ev.Hup && c.open.Load() {
		c.unsafe.Close(newPromise())
	}
}

// ForceClose implements loop.IOHandler.
func (c *TCPChannel) ForceClose(error) {
	c.unsafe.Close(newPromise())
}

func (c *TCPChannel) completeConnect() {
	p := c.connectP
	c.connectP = nil
	soerr, err := unix.GetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err == nil && soerr != 0 {
		err = unix.Errno(soerr)
	}
	if err != nil {
		p.TryFailure(&api.TransportError{Op: "connect", Cause: err})
		c.unsafe.Close(newPromise())
		return
	}
	c.setInterest(c.interest &^ reactor.InterestWrite)
	c.finishConnect(p)
}

func (c *TCPChannel) failOrClose(cause error) {
	if c.connectP != nil {
		p := c.connectP
		c.connectP = nil
		p.TryFailure(cause)
	} else {
		c.pipeline.FireExceptionCaught(cause)
	}
	c.unsafe.Close(newPromise())
}

// readReady pulls from the socket until it drains, the read budget is
// spent or the throttle stops us.
func (c *TCPChannel) readReady() {
	readsLeft := maxReadsPerWake
	gotData := false
	for readsLeft > 0 {
		if !c.cfg.AutoRead && !c.readPending {
			break
		}
		guess := c.sizer.Guess()
		abuf, err := c.cfg.Allocator.Allocate(guess, guess)
		if err != nil {
			c.pipeline.FireExceptionCaught(err)
			break
		}
		buf := abuf.(*buffer.Buffer)
		window, werr := buf.WritableSlice()
		if werr != nil {
			buf.Release()
			c.pipeline.FireExceptionCaught(werr)
			break
		}
		n, rerr := unix.Read(c.fd, window)
		if n > 0 {
			buf.AdvanceWriter(n)
			c.sizer.Record(n)
			c.readPending = false
			gotData = true
			readsLeft--
			c.pipeline.FireChannelRead(abuf)
			if n < len(window) {
				break
			}
			continue
		}
		buf.Release()
		if rerr == unix.EAGAIN {
			break
		}
		if rerr == unix.EINTR {
			continue
		}
		if gotData {
			c.pipeline.FireChannelReadComplete()
			gotData = false
		}
		if rerr != nil {
			c.failOrClose(&api.TransportError{Op: "read", Cause: rerr})
		} else {
			// n == 0, orderly shutdown by the peer
			c.unsafe.Close(newPromise())
		}
		return
	}
	if gotData {
		c.pipeline.FireChannelReadComplete()
	}
	if !c.cfg.AutoRead && !c.readPending {
		c.setInterest(c.interest &^ reactor.InterestRead)
	}
}

// doFlush drains the outbound buffer into the socket.
func (c *TCPChannel) doFlush() {
	for {
		buf := c.out.current()
		if buf == nil {
			c.setInterest(c.interest &^ reactor.InterestWrite)
			return
		}
		n, err := unix.Write(c.fd, buf.Bytes())
		if n > 0 {
			buf.Skip(n)
			c.out.progress(n)
			if buf.ReadableBytes() == 0 {
				c.out.remove()
			}
			continue
		}
		switch err {
		case unix.EAGAIN:
			c.setInterest(c.interest | reactor.InterestWrite)
			return
		case unix.EINTR:
			continue
		default:
			c.failOrClose(&api.TransportError{Op: "write", Cause: err})
			return
		}
	}
}
