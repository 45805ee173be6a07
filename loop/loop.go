// File: loop/loop.go
// Package loop runs selector-driven event loops.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One Loop owns one goroutine, one selector and every channel affined
// to it. All channel state mutation happens here; other goroutines only
// hand work over through Submit or Schedule.

package loop

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-net/affinity"
	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/internal/concurrency"
	"github.com/momentics/hioload-net/reactor"
)

const (
	// selectQuantum bounds one selector wait so pending timers and the
	// shutdown flag are observed promptly.
	selectQuantum = 10 * time.Millisecond

	// cancelledKeyThreshold forces a zero-timeout selector pass after
	// this many deregistrations, discarding events for dead tokens.
	cancelledKeyThreshold = 256

	// panicPause throttles a loop iteration that panicked so a broken
	// handler cannot spin the core at full speed.
	panicPause = time.Second

	defaultTaskRing = 1 << 12
	eventBatch      = 128
)

const (
	stateCreated int32 = iota
	stateRunning
	stateShuttingDown
	stateTerminated
)

// IOHandler receives readiness callbacks on the loop goroutine.
// Channel transports implement it.
type IOHandler interface {
	// HandleEvent processes one readiness notification.
	HandleEvent(ev reactor.Event)

	// ForceClose tears the handler down when its loop shuts down.
	ForceClose(cause error)
}

// Option tunes a Loop.
type Option func(*Loop)

// WithLogger sets the loop's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Loop) { l.log = log }
}

// WithSelector overrides the platform default selector.
func WithSelector(sel reactor.Selector) Option {
	return func(l *Loop) { l.sel = sel }
}

// WithTaskRingSize sets the capacity of the submission fast path.
func WithTaskRingSize(n uint64) Option {
	return func(l *Loop) { l.ringSize = n }
}

// WithPinnedCPU locks the loop goroutine to an OS thread and binds it
// to the given logical CPU. Negative means unpinned.
func WithPinnedCPU(cpu int) Option {
	return func(l *Loop) { l.pinCPU = cpu }
}

// Loop is one event loop. Implements api.EventLoop.
type Loop struct {
	id  uint64
	sel reactor.Selector
	log zerolog.Logger

	tasks    *concurrency.TaskQueue[*task]
	timers   *concurrency.TimerHeap
	ringSize uint64

	// handlers is loop-confined: only the loop goroutine reads or
	// writes it.
	handlers      map[uint64]IOHandler
	cancelledKeys int

	pinCPU int

	wakenUp atomic.Bool
	state   atomic.Int32
	gid     atomic.Uint64

	selectRounds atomic.Int64
	wakeupCount  atomic.Int64
	tasksRun     atomic.Int64

	terminated *concurrency.Promise
}

var _ api.EventLoop = (*Loop)(nil)

var loopIDs atomic.Uint64

// NewLoop creates a stopped loop; Start launches its goroutine.
func NewLoop(opts ...Option) (*Loop, error) {
	l := &Loop{
		id:         loopIDs.Add(1),
		log:        zerolog.Nop(),
		pinCPU:     -1,
		timers:     concurrency.NewTimerHeap(),
		handlers:   make(map[uint64]IOHandler),
		ringSize:   defaultTaskRing,
		terminated: concurrency.NewPromise(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.sel == nil {
		sel, err := reactor.NewSelector()
		if err != nil {
			return nil, err
		}
		l.sel = sel
	}
	l.tasks = concurrency.NewTaskQueue[*task](l.ringSize)
	return l, nil
}

// ID returns the loop's process-unique identifier.
func (l *Loop) ID() uint64 { return l.id }

// Start launches the loop goroutine. Idempotent.
func (l *Loop) Start() {
	if !l.state.CompareAndSwap(stateCreated, stateRunning) {
		return
	}
	go l.run()
}

// InLoop implements api.EventLoop.
func (l *Loop) InLoop() bool {
	return l.gid.Load() == concurrency.GoroutineID()
}

// task is one queued submission.
type task struct {
	fn        func()
	cancelled atomic.Bool
}

// Cancel implements api.TaskHandle.
func (t *task) Cancel() bool { return t.cancelled.CompareAndSwap(false, true) }

// Submit implements api.EventLoop. Submissions are never run inline,
// even from the loop goroutine itself.
func (l *Loop) Submit(fn func()) (api.TaskHandle, error) {
	if l.state.Load() >= stateShuttingDown {
		return nil, api.ErrLoopShutdown
	}
	t := &task{fn: fn}
	l.tasks.Push(t)
	l.wakeup()
	return t, nil
}

// Schedule implements api.EventLoop.
func (l *Loop) Schedule(delay time.Duration, fn func()) (api.TaskHandle, error) {
	if delay < 0 {
		delay = 0
	}
	deadline := time.Now().Add(delay)
	t := &task{fn: fn}
	// The heap is loop-confined, so insertion routes through the task
	// queue when called from outside. Cancellation stays race-free via
	// the task's own flag.
	insert := func() {
		l.timers.Add(deadline, func() {
			if !t.cancelled.Load() {
				t.fn()
			}
		})
	}
	if l.InLoop() {
		insert()
		return t, nil
	}
	if l.state.Load() >= stateShuttingDown {
		return nil, api.ErrLoopShutdown
	}
	l.tasks.Push(&task{fn: insert})
	l.wakeup()
	return t, nil
}

// Register implements api.EventLoop.
func (l *Loop) Register(ch api.Channel) api.Future {
	p := concurrency.NewPromise()
	if l.InLoop() {
		ch.Unsafe().Register(l, p)
		return p
	}
	if _, err := l.Submit(func() { ch.Unsafe().Register(l, p) }); err != nil {
		p.TryFailure(err)
	}
	return p
}

// NewPromise implements api.EventLoop.
func (l *Loop) NewPromise() api.Promise { return concurrency.NewPromise() }

// wakeup interrupts a blocked selector wait at most once per pass.
func (l *Loop) wakeup() {
	if l.InLoop() {
		return
	}
	if l.wakenUp.CompareAndSwap(false, true) {
		l.wakeupCount.Add(1)
		if err := l.sel.Wakeup(); err != nil {
			l.log.Error().Err(err).Uint64("loop", l.id).Msg("selector wakeup failed")
		}
	}
}

// Stats returns cumulative loop counters for metric sources.
func (l *Loop) Stats() map[string]int64 {
	return map[string]int64{
		"select_rounds": l.selectRounds.Load(),
		"wakeups":       l.wakeupCount.Load(),
		"tasks_run":     l.tasksRun.Load(),
	}
}

// RegisterHandler adds fd to the selector under token and routes its
// events to h. Loop goroutine only.
func (l *Loop) RegisterHandler(fd int, token uint64, interest reactor.Interest, h IOHandler) error {
	if err := l.sel.Add(fd, token, interest); err != nil {
		return err
	}
	l.handlers[token] = h
	return nil
}

// AttachHandler routes token events to h without a descriptor, used by
// in-process transports. Loop goroutine only.
func (l *Loop) AttachHandler(token uint64, h IOHandler) {
	l.handlers[token] = h
}

// ModInterest replaces the interest set of a registered fd.
func (l *Loop) ModInterest(fd int, token uint64, interest reactor.Interest) error {
	return l.sel.Mod(fd, token, interest)
}

// DeregisterHandler removes an fd registration. Loop goroutine only.
func (l *Loop) DeregisterHandler(fd int, token uint64) error {
	err := l.sel.Del(fd)
	delete(l.handlers, token)
	l.cancelledKeys++
	return err
}

// DetachHandler removes a descriptorless registration.
func (l *Loop) DetachHandler(token uint64) {
	delete(l.handlers, token)
}

// Shutdown stops the loop: registered channels are force-closed,
// queued tasks drain, then the goroutine exits. The returned future
// resolves at termination. Idempotent.
func (l *Loop) Shutdown() api.Future {
	for {
		s := l.state.Load()
		if s >= stateShuttingDown {
			return l.terminated
		}
		if s == stateCreated {
			if l.state.CompareAndSwap(stateCreated, stateTerminated) {
				_ = l.sel.Close()
				l.terminated.TrySuccess()
				return l.terminated
			}
			continue
		}
		if l.state.CompareAndSwap(stateRunning, stateShuttingDown) {
			if l.wakenUp.CompareAndSwap(false, true) {
				_ = l.sel.Wakeup()
			}
			return l.terminated
		}
	}
}

// Terminated resolves once the loop goroutine exited.
func (l *Loop) Terminated() api.Future { return l.terminated }

func (l *Loop) run() {
	if l.pinCPU >= 0 {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := affinity.Pin(l.pinCPU); err != nil {
			l.log.Warn().Err(err).Uint64("loop", l.id).Int("cpu", l.pinCPU).Msg("cpu pin failed")
		}
	}
	l.gid.Store(concurrency.GoroutineID())
	defer func() {
		l.gid.Store(0)
		l.state.Store(stateTerminated)
		if err := l.sel.Close(); err != nil {
			l.log.Error().Err(err).Uint64("loop", l.id).Msg("selector close failed")
		}
		l.terminated.TrySuccess()
	}()

	events := make([]reactor.Event, eventBatch)
	for {
		if l.state.Load() == stateShuttingDown {
			l.drainAndClose()
			return
		}
		l.iterate(events)
	}
}

// iterate runs one select-dispatch-task pass with panic containment.
func (l *Loop) iterate(events []reactor.Event) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Uint64("loop", l.id).Interface("panic", r).Msg("loop iteration panicked")
			time.Sleep(panicPause)
		}
	}()

	timeout := l.selectTimeout()
	l.wakenUp.Store(false)
	l.selectRounds.Add(1)
	n, err := l.sel.Wait(events, timeout)
	if err != nil {
		l.log.Error().Err(err).Uint64("loop", l.id).Msg("selector wait failed")
	}
	// A wakeup between Store(false) and Wait would otherwise be
	// consumed by the next pass with tasks already visible.
	if l.wakenUp.Load() {
		_ = l.sel.Wakeup()
	}

	l.dispatch(events[:n])
	l.runTimers(time.Now())
	l.runTasks()

	if l.cancelledKeys >= cancelledKeyThreshold {
		l.cancelledKeys = 0
		if n, err := l.sel.Wait(events, 0); err == nil {
			l.dispatch(events[:n])
		}
	}
}

func (l *Loop) selectTimeout() time.Duration {
	if l.tasks.Len() > 0 {
		return 0
	}
	timeout := selectQuantum
	if deadline, ok := l.timers.NextDeadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
		if timeout < 0 {
			timeout = 0
		}
	}
	return timeout
}

func (l *Loop) dispatch(events []reactor.Event) {
	for _, ev := range events {
		h, ok := l.handlers[ev.Token]
		if !ok {
			// raced with deregistration
			continue
		}
		h.HandleEvent(ev)
	}
}

func (l *Loop) runTimers(now time.Time) {
	for {
		t := l.timers.PopExpired(now)
		if t == nil {
			return
		}
		t.Run()
	}
}

func (l *Loop) runTasks() {
	for {
		t, ok := l.tasks.Pop()
		if !ok {
			return
		}
		if t.cancelled.Load() {
			continue
		}
		l.tasksRun.Add(1)
		t.fn()
	}
}

// drainAndClose runs queued tasks (so handlers they attach are closed
// too), force-closes every handler and runs remaining tasks.
func (l *Loop) drainAndClose() {
	l.runTasks()
	for token, h := range l.handlers {
		delete(l.handlers, token)
		func() {
			defer func() {
				if r := recover(); r != nil {
					l.log.Error().Uint64("loop", l.id).Interface("panic", r).Msg("force close panicked")
				}
			}()
			h.ForceClose(api.ErrLoopShutdown)
		}()
	}
	l.runTasks()
	l.runTimers(time.Now())
}
