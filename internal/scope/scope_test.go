package scope

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestScope_CancelPropagatesToChildren(t *testing.T) {
	root := NewRoot()
	child := root.Child()
	grandchild := child.Child()

	root.Cancel()

	if !child.Cancelled() {
		t.Error("Child should be cancelled when root is cancelled")
	}
	if !grandchild.Cancelled() {
		t.Error("Grandchild should be cancelled when root is cancelled")
	}
}

func TestScope_ChildCancelLeavesParentAlive(t *testing.T) {
	root := NewRoot()
	child := root.Child()

	child.Cancel()

	if root.Cancelled() {
		t.Error("Cancelling a child must not cancel the parent")
	}
	if !child.Cancelled() {
		t.Error("Child should be cancelled")
	}
}

func TestDispatcher_Serializes(t *testing.T) {
	root := NewRoot()
	defer root.Cancel()
	d := NewDispatcher(root, testLogger())

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Do(func() error {
				n := atomic.AddInt32(&inFlight, 1)
				if n > atomic.LoadInt32(&maxInFlight) {
					atomic.StoreInt32(&maxInFlight, n)
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxInFlight); got != 1 {
		t.Errorf("Expected at most 1 task in flight, saw %d", got)
	}
}

func TestDispatcher_ProgramOrder(t *testing.T) {
	root := NewRoot()
	defer root.Cancel()
	d := NewDispatcher(root, testLogger())

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		if err := d.Do(func() error {
			order = append(order, i)
			return nil
		}); err != nil {
			t.Fatalf("Do returned error: %v", err)
		}
	}

	for i, v := range order {
		if v != i {
			t.Fatalf("Tasks ran out of order: %v", order)
		}
	}
}

func TestDispatcher_CancelledScope(t *testing.T) {
	root := NewRoot()
	d := NewDispatcher(root, testLogger())
	root.Cancel()

	err := d.Do(func() error { return nil })
	if err != ErrCancelled {
		t.Errorf("Expected ErrCancelled after scope teardown, got %v", err)
	}
}

func TestDispatcher_DoNeverBlocksAfterCancel(t *testing.T) {
	root := NewRoot()
	d := NewDispatcher(root, testLogger())
	root.Cancel()

	// A caller can win the enqueue race against the closed Done channel,
	// so every submission must still be answered, not left in the buffer.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			if err := d.Do(func() error { return nil }); err != ErrCancelled {
				t.Errorf("Do #%d = %v, want ErrCancelled", i, err)
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Do blocked after scope cancellation")
	}
}

func TestDispatcher_DispatchFromWorker(t *testing.T) {
	root := NewRoot()
	defer root.Cancel()
	d := NewDispatcher(root, testLogger())

	followUp := make(chan struct{})
	err := d.Do(func() error {
		// A task scheduling more work on its own dispatcher must not deadlock.
		d.Dispatch(func() error {
			close(followUp)
			return nil
		})
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}

	select {
	case <-followUp:
	case <-time.After(time.Second):
		t.Fatal("Dispatched follow-up task never ran")
	}
}
