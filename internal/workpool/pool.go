// Package workpool implements the fixed-size, cancellable worker pool
// that dispatches FTP command handlers as tasks.
//
// Aborting an in-flight task (ABOR cancelling a running RETR or STOR,
// say) uses token-based cooperative cancellation rather than an async
// signal: the token is a context.Context. Each task runs with a context
// derived from the pool's own lifetime, and Cancel cancels that context
// directly. Handlers observe it cooperatively: they check it between
// data blocks and race it against a passive-mode accept or an
// active-mode dial; a socket read or write that is already blocked is
// not interrupted by it.
package workpool

import (
	"context"
	"sync"
)

// Task is a unit of work submitted to the pool. ID must be unique
// among a submitter's live tasks; the server package draws IDs from one
// server-wide counter and each connection keeps the ID of its running
// command, so ABOR can target it without a separate registry.
type Task struct {
	ID  uint64
	Run func(ctx context.Context)
}

// workerState tracks what a single worker goroutine is doing, guarded
// by its own mutex so Cancel never contends with the shared task
// queue.
type workerState struct {
	mu        sync.Mutex
	busy      bool
	taskID    uint64
	cancelFn  context.CancelFunc
	available bool // true once cancelFn is safe to call
}

// Pool is a fixed-size pool of worker goroutines servicing tasks in
// FIFO order.
type Pool struct {
	tasks  chan Task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	workers []*workerState
}

// New creates a pool with n worker goroutines. n must be >= 1.
func New(n int) *Pool {
	if n < 1 {
		n = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		tasks:  make(chan Task),
		ctx:    ctx,
		cancel: cancel,
	}
	p.workers = make([]*workerState, n)
	for i := 0; i < n; i++ {
		ws := &workerState{}
		p.workers[i] = ws
		p.wg.Add(1)
		go p.runWorker(ws)
	}
	return p
}

func (p *Pool) runWorker(ws *workerState) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case t, ok := <-p.tasks:
			if !ok {
				return
			}
			p.runTask(ws, t)
		}
	}
}

func (p *Pool) runTask(ws *workerState, t Task) {
	taskCtx, cancel := context.WithCancel(p.ctx)

	ws.mu.Lock()
	ws.busy = true
	ws.taskID = t.ID
	ws.cancelFn = cancel
	ws.available = true
	ws.mu.Unlock()

	func() {
		defer func() {
			// A handler that panics must not take the worker down with
			// it; the task is simply abandoned and no reply is sent for
			// the fatal case.
			recover()
		}()
		t.Run(taskCtx)
	}()

	cancel()
	ws.mu.Lock()
	ws.busy = false
	ws.available = false
	ws.mu.Unlock()
}

// Submit enqueues a task for FIFO dispatch by the first idle worker.
// It returns false if the pool has been destroyed.
func (p *Pool) Submit(t Task) bool {
	select {
	case <-p.ctx.Done():
		return false
	default:
	}
	select {
	case p.tasks <- t:
		return true
	case <-p.ctx.Done():
		return false
	}
}

// Cancel aborts whichever worker is currently running taskID, if any.
// It is idempotent and safe to call from any goroutine, including a
// worker running a different task. Returns true if a worker was
// signalled.
func (p *Pool) Cancel(taskID uint64) bool {
	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()

	for _, ws := range workers {
		ws.mu.Lock()
		if ws.busy && ws.taskID == taskID && ws.available {
			cancel := ws.cancelFn
			ws.mu.Unlock()
			cancel()
			return true
		}
		ws.mu.Unlock()
	}
	return false
}

// Destroy stops accepting new tasks, cancels all running task
// contexts, and waits for every worker to return to idle and exit.
func (p *Pool) Destroy() {
	p.cancel()
	p.wg.Wait()
}

// Size returns the number of worker goroutines in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}

// CriticalBegin and CriticalEnd are the pool's critical-section
// bracket. Cooperative cancellation needs no signal masking, so both are
// no-ops, and the command handlers in package server do not call them.
func CriticalBegin() {}

// CriticalEnd pairs with CriticalBegin. See CriticalBegin for why both
// are no-ops under token-based cancellation.
func CriticalEnd() {}
