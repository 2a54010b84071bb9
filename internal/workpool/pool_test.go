package workpool

import (
	"context"
	"sync"
	"testing"
	"time"
)

// TestPoolFIFO verifies that with a single worker, k submitted tasks
// run to completion in submission order.
func TestPoolFIFO(t *testing.T) {
	t.Parallel()
	p := New(1)
	defer p.Destroy()

	const n = 20
	var mu sync.Mutex
	var order []uint64
	done := make(chan struct{})

	for i := uint64(1); i <= n; i++ {
		i := i
		ok := p.Submit(Task{ID: i, Run: func(ctx context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			if i == n {
				close(done)
			}
		}})
		if !ok {
			t.Fatalf("Submit(%d) returned false", i)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tasks to complete")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != n {
		t.Fatalf("ran %d tasks, want %d", len(order), n)
	}
	for i, id := range order {
		if id != uint64(i+1) {
			t.Errorf("order[%d] = %d, want %d", i, id, i+1)
		}
	}
}

// TestPoolCancellationLive verifies that cancelling a running task's ID
// unblocks it via ctx.Done() and the worker returns to idle afterward.
func TestPoolCancellationLive(t *testing.T) {
	t.Parallel()
	p := New(1)
	defer p.Destroy()

	started := make(chan struct{})
	cancelled := make(chan struct{})

	ok := p.Submit(Task{ID: 1, Run: func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}})
	if !ok {
		t.Fatal("Submit returned false")
	}

	<-started
	if !p.Cancel(1) {
		t.Fatal("Cancel(1) = false, want true for a running task")
	}

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not observe cancellation")
	}

	// The worker must return to idle and accept the next task.
	done := make(chan struct{})
	ok = p.Submit(Task{ID: 2, Run: func(ctx context.Context) {
		close(done)
	}})
	if !ok {
		t.Fatal("Submit(2) returned false after cancellation")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never returned to idle after cancellation")
	}
}

func TestPoolCancelUnknownTaskIsNoop(t *testing.T) {
	t.Parallel()
	p := New(2)
	defer p.Destroy()
	if p.Cancel(999) {
		t.Error("Cancel on unknown task id = true, want false")
	}
}

func TestPoolDestroyStopsAcceptingTasks(t *testing.T) {
	t.Parallel()
	p := New(1)
	p.Destroy()
	if p.Submit(Task{ID: 1, Run: func(ctx context.Context) {}}) {
		t.Error("Submit after Destroy = true, want false")
	}
}

func TestPoolSize(t *testing.T) {
	t.Parallel()
	p := New(4)
	defer p.Destroy()
	if p.Size() != 4 {
		t.Errorf("Size() = %d, want 4", p.Size())
	}
}

func TestPoolPanicInTaskDoesNotWedgeWorker(t *testing.T) {
	t.Parallel()
	p := New(1)
	defer p.Destroy()

	p.Submit(Task{ID: 1, Run: func(ctx context.Context) {
		panic("boom")
	}})

	done := make(chan struct{})
	p.Submit(Task{ID: 2, Run: func(ctx context.Context) {
		close(done)
	}})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not recover from a panicking task")
	}
}
