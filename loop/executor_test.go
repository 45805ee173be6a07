// File: loop/executor_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package loop

import (
	"errors"
	"testing"
	"time"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/reactor"
)

// TestExecutor_PostsBackToLoop runs blocking work off-loop and the
// completion on the loop goroutine.
func TestExecutor_PostsBackToLoop(t *testing.T) {
	l := newTestLoop(t)
	e := NewExecutor(2)
	defer e.Close()

	type outcome struct {
		result any
		err    error
		inLoop bool
	}
	res := make(chan outcome, 1)
	err := e.Execute(l,
		func() (any, error) {
			if l.InLoop() {
				t.Error("blocking task ran on the loop")
			}
			return 42, nil
		},
		func(result any, err error) {
			res <- outcome{result, err, l.InLoop()}
		})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	select {
	case o := <-res:
		if o.err != nil || o.result != 42 {
			t.Errorf("unexpected outcome: %+v", o)
		}
		if !o.inLoop {
			t.Error("completion ran off-loop")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("completion never arrived")
	}

	s := e.Stats()
	if s["total_tasks"] != 1 {
		t.Errorf("stats: %v", s)
	}
}

// TestExecutor_ErrorPropagation carries the task error into done.
func TestExecutor_ErrorPropagation(t *testing.T) {
	l := newTestLoop(t)
	e := NewExecutor(1)
	defer e.Close()

	cause := errors.New("blocked op failed")
	res := make(chan error, 1)
	if err := e.Execute(l,
		func() (any, error) { return nil, cause },
		func(_ any, err error) { res <- err }); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	select {
	case err := <-res:
		if !errors.Is(err, cause) {
			t.Errorf("expected %v, got %v", cause, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("completion never arrived")
	}
}

// TestExecutor_Closed rejects submissions after Close.
func TestExecutor_Closed(t *testing.T) {
	l, err := NewLoop(WithSelector(reactor.NewMemSelector()))
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	l.Start()
	defer l.Shutdown()

	e := NewExecutor(1)
	e.Close()
	err = e.Execute(l, func() (any, error) { return nil, nil }, func(any, error) {})
	if !errors.Is(err, api.ErrLoopShutdown) {
		t.Fatalf("expected ErrLoopShutdown, got %v", err)
	}
}
