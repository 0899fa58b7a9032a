package scope

import (
	"errors"
	"log/slog"
)

// ErrCancelled is returned by Do when the owning scope has been cancelled
// before the task could run.
var ErrCancelled = errors.New("scope: dispatch scope cancelled")

// queueDepth bounds the number of asynchronously enqueued reactions. Tasks
// submitted with Do are accepted only when the worker is ready, so the
// buffer is consumed by Dispatch callers alone.
const queueDepth = 64

type task struct {
	fn   func() error
	done chan error // nil for fire-and-forget tasks
}

// Dispatcher owns a single goroutine that processes one task at a time.
// Camera operations submitted from arbitrary goroutines are serialized here,
// so no two operations ever run concurrently against the same backend.
type Dispatcher struct {
	scope  *Scope
	tasks  chan task
	logger *slog.Logger
}

// NewDispatcher starts a dispatcher bound to the given scope. Once the
// scope is cancelled the worker stops executing tasks and every Do returns
// ErrCancelled.
func NewDispatcher(s *Scope, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		scope:  s,
		tasks:  make(chan task, queueDepth),
		logger: logger,
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	for {
		select {
		case <-d.scope.Done():
			d.refuse()
			return
		case t := <-d.tasks:
			err := t.fn()
			if t.done != nil {
				t.done <- err
			} else if err != nil {
				d.logger.Warn("Dispatched task failed", "error", err)
			}
		}
	}
}

// refuse answers every task with ErrCancelled, forever. A Do racing the
// cancellation can win the enqueue select after Done is closed, so a
// one-shot drain would strand that caller; the worker must keep receiving
// for as long as the dispatcher is reachable. It blocks on an empty
// channel in the common case, which costs nothing.
func (d *Dispatcher) refuse() {
	for t := range d.tasks {
		if t.done != nil {
			t.done <- ErrCancelled
		}
	}
}

// Do runs fn on the dispatch goroutine and blocks the caller until it
// completes. Sequential calls from one goroutine execute in program order;
// concurrent callers are serialized in submission order.
func (d *Dispatcher) Do(fn func() error) error {
	t := task{fn: fn, done: make(chan error, 1)}
	select {
	case d.tasks <- t:
		return <-t.done
	case <-d.scope.Done():
		return ErrCancelled
	}
}

// Dispatch enqueues fn without waiting for it. Configuration observers use
// this so that a backend already running on the dispatch goroutine can
// schedule follow-up work without deadlocking on itself.
func (d *Dispatcher) Dispatch(fn func() error) {
	t := task{fn: fn}
	select {
	case d.tasks <- t:
	case <-d.scope.Done():
	}
}
