// File: actor/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lock-free actor scheduler built on an atomic claim word per actor.

package actor

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/internal/concurrency"
)

var _ api.ActorScheduler[int] = (*Pool[int])(nil)

const (
	activeBit   uint64 = 1 << 63
	pendingMask        = activeBit - 1
)

// Pool is the lock-free scheduler.
type Pool[K comparable] struct {
	exec    *concurrency.Executor
	actors  sync.Map // K -> *mailbox[K]
	closed  atomic.Bool
	onPanic PanicHandler
}

// mailbox holds the per-actor claim word and task queue.
// state packs the number of tasks submitted since the last idle reset
// (low 63 bits) with the active flag (top bit).
type mailbox[K comparable] struct {
	key   K
	owner *Pool[K]
	state atomic.Uint64
	tasks *concurrency.LinkedQueue[func()]
}

// NewPool starts a lock-free scheduler with the given number of workers
// (runtime.NumCPU() when workers <= 0).
func NewPool[K comparable](workers int, opts ...Option) *Pool[K] {
	o := buildOptions(opts)
	log := o.log
	return &Pool[K]{
		exec: concurrency.NewExecutor(workers, func(r any) {
			log.Errorf("drain loop panicked: %v", r)
		}),
		onPanic: o.onPanic,
	}
}

// Submit enqueues task for actor and hands the actor to a worker if it was
// idle.
func (p *Pool[K]) Submit(actor K, task func()) error {
	if task == nil {
		return api.InvalidArgument("nil task")
	}
	if p.closed.Load() {
		return api.ErrSchedulerClosed
	}
	m := p.mailboxOf(actor)
	m.tasks.Enqueue(task)

	var old uint64
	for {
		old = m.state.Load()
		if m.state.CompareAndSwap(old, ((old&pendingMask)+1)|activeBit) {
			break
		}
	}
	if old&activeBit != 0 {
		// a drain loop owns this actor and will observe the new count
		return nil
	}
	if err := p.exec.Submit(m.drain); err != nil {
		// Only possible once Shutdown has begun. The task stays queued and
		// the mailbox stays active, so this and later tasks for the actor
		// never run.
		return fmt.Errorf("submit actor %v: %w", actor, api.ErrSchedulerClosed)
	}
	return nil
}

// Remove forgets actor. A drain already running keeps its own reference and
// finishes normally.
func (p *Pool[K]) Remove(actor K) {
	p.actors.Delete(actor)
}

// Shutdown stops admission and waits for queued work to finish.
func (p *Pool[K]) Shutdown() {
	p.closed.Store(true)
	p.exec.Close()
}

// Workers returns the worker count.
func (p *Pool[K]) Workers() int {
	return p.exec.NumWorkers()
}

func (p *Pool[K]) mailboxOf(actor K) *mailbox[K] {
	if v, ok := p.actors.Load(actor); ok {
		return v.(*mailbox[K])
	}
	m := &mailbox[K]{
		key:   actor,
		owner: p,
		tasks: concurrency.NewLinkedQueue[func()](),
	}
	v, _ := p.actors.LoadOrStore(actor, m)
	return v.(*mailbox[K])
}

// drain runs every task counted in the claim word, then tries to reset the
// word to idle. A failed CAS means Submit raced in more tasks; they are
// drained before the next attempt.
func (m *mailbox[K]) drain() {
	var done uint64
	for {
		old := m.state.Load()
		for pending := old & pendingMask; done < pending; done++ {
			task, ok := m.tasks.Dequeue()
			for !ok {
				// Submit enqueues before it counts; wait for the link
				runtime.Gosched()
				task, ok = m.tasks.Dequeue()
			}
			m.owner.run(m.key, task)
		}
		if m.state.CompareAndSwap(old, 0) {
			return
		}
	}
}

func (p *Pool[K]) run(actor K, task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.onPanic(actor, r)
		}
	}()
	task()
}
