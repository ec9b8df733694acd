// File: internal/concurrency/executor.go
// Package concurrency implements a fixed-size task executor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor dispatches tasks across a fixed set of worker goroutines fed from
// one unbounded run queue. Submit never blocks; Close stops admission, lets
// every queued task run and waits for the workers to exit.

package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// TaskFunc is a unit of work to execute.
type TaskFunc func()

// PanicHandler receives values recovered from panicking tasks.
type PanicHandler func(recovered any)

// Executor manages a pool of worker goroutines.
type Executor struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   *queue.Queue // TaskFunc, guarded by mu
	closed  bool
	wg      sync.WaitGroup
	workers []*worker
	onPanic PanicHandler

	// statistics
	totalTasks     atomic.Int64
	completedTasks atomic.Int64
	panics         atomic.Int64
}

// NewExecutor creates a new Executor with the given number of workers.
// If numWorkers <= 0, defaults to runtime.NumCPU().
func NewExecutor(numWorkers int, onPanic PanicHandler) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	e := &Executor{
		queue:   queue.New(),
		onPanic: onPanic,
	}
	e.cond = sync.NewCond(&e.mu)
	e.workers = make([]*worker, numWorkers)
	for i := 0; i < numWorkers; i++ {
		w := &worker{id: i, executor: e}
		e.workers[i] = w
		e.wg.Add(1)
		go w.run()
	}
	return e
}

// Submit enqueues a task, returning ErrExecutorClosed if executor is closed.
func (e *Executor) Submit(task TaskFunc) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrExecutorClosed
	}
	e.queue.Add(task)
	e.mu.Unlock()
	e.totalTasks.Add(1)
	e.cond.Signal()
	return nil
}

// NumWorkers returns the number of worker goroutines.
func (e *Executor) NumWorkers() int {
	return len(e.workers)
}

// Close stops admission and waits until all queued tasks have run.
// Must not be called from a task running on this executor.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.wg.Wait()
		return
	}
	e.closed = true
	e.mu.Unlock()
	e.cond.Broadcast()
	e.wg.Wait()
}

// Stats returns basic executor metrics.
func (e *Executor) Stats() map[string]int64 {
	total := e.totalTasks.Load()
	completed := e.completedTasks.Load()
	return map[string]int64{
		"total_tasks":     total,
		"completed_tasks": completed,
		"pending_tasks":   total - completed,
		"task_panics":     e.panics.Load(),
		"num_workers":     int64(e.NumWorkers()),
	}
}

// next blocks until a task is available. ok is false once the executor is
// closed and the run queue is drained.
func (e *Executor) next() (TaskFunc, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.queue.Length() == 0 && !e.closed {
		e.cond.Wait()
	}
	if e.queue.Length() == 0 {
		return nil, false
	}
	return e.queue.Remove().(TaskFunc), true
}

// worker represents a single executor goroutine.
type worker struct {
	id       int
	executor *Executor
}

func (w *worker) run() {
	defer w.executor.wg.Done()
	for {
		task, ok := w.executor.next()
		if !ok {
			return
		}
		w.safeExecute(task)
	}
}

// safeExecute runs the task and updates statistics, recovering from panics.
func (w *worker) safeExecute(task TaskFunc) {
	e := w.executor
	defer func() {
		if r := recover(); r != nil {
			e.panics.Add(1)
			if e.onPanic != nil {
				e.onPanic(r)
			}
		}
		e.completedTasks.Add(1)
	}()
	task()
}
