// File: actor/synchronized.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lock-based actor scheduler: one critical section per actor.

package actor

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/internal/concurrency"
)

var _ api.ActorScheduler[int] = (*SynchronizedPool[int])(nil)

// SynchronizedPool serializes each actor with a mutex instead of atomics.
type SynchronizedPool[K comparable] struct {
	exec    *concurrency.Executor
	mu      sync.RWMutex
	actors  map[K]*syncActor
	closed  atomic.Bool
	onPanic PanicHandler
}

type syncActor struct {
	mu      sync.Mutex
	pending *queue.Queue // func(), guarded by mu
	playing bool
}

// NewSynchronizedPool starts a lock-based scheduler with the given number of
// workers (runtime.NumCPU() when workers <= 0).
func NewSynchronizedPool[K comparable](workers int, opts ...Option) *SynchronizedPool[K] {
	o := buildOptions(opts)
	log := o.log
	return &SynchronizedPool[K]{
		exec: concurrency.NewExecutor(workers, func(r any) {
			log.Errorf("worker task panicked: %v", r)
		}),
		actors:  make(map[K]*syncActor),
		onPanic: o.onPanic,
	}
}

// Submit runs task right away if the actor is idle, otherwise queues it
// behind the actor's pending tasks.
func (p *SynchronizedPool[K]) Submit(actor K, task func()) error {
	if task == nil {
		return api.InvalidArgument("nil task")
	}
	if p.closed.Load() {
		return api.ErrSchedulerClosed
	}
	a := p.actorOf(actor)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.playing {
		a.pending.Add(task)
		return nil
	}
	a.playing = true
	if err := p.execute(actor, a, task); err != nil {
		a.playing = false
		return fmt.Errorf("submit actor %v: %w", actor, api.ErrSchedulerClosed)
	}
	return nil
}

// Remove forgets actor.
func (p *SynchronizedPool[K]) Remove(actor K) {
	p.mu.Lock()
	delete(p.actors, actor)
	p.mu.Unlock()
}

// Shutdown stops admission and waits for queued work to finish.
func (p *SynchronizedPool[K]) Shutdown() {
	p.closed.Store(true)
	p.exec.Close()
}

// Workers returns the worker count.
func (p *SynchronizedPool[K]) Workers() int {
	return p.exec.NumWorkers()
}

func (p *SynchronizedPool[K]) actorOf(actor K) *syncActor {
	p.mu.RLock()
	a, ok := p.actors[actor]
	p.mu.RUnlock()
	if ok {
		return a
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok = p.actors[actor]; ok {
		return a
	}
	a = &syncActor{pending: queue.New()}
	p.actors[actor] = a
	return a
}

func (p *SynchronizedPool[K]) execute(actor K, a *syncActor, task func()) error {
	return p.exec.Submit(func() {
		p.run(actor, task)
		p.complete(actor, a)
	})
}

// complete hands the next pending task to the pool or marks the actor idle.
// Once the executor refuses new work (shutdown), the remaining tasks run on
// the current worker so nothing queued is lost.
func (p *SynchronizedPool[K]) complete(actor K, a *syncActor) {
	for {
		a.mu.Lock()
		if a.pending.Length() == 0 {
			a.playing = false
			a.mu.Unlock()
			return
		}
		next := a.pending.Remove().(func())
		if p.execute(actor, a, next) == nil {
			a.mu.Unlock()
			return
		}
		a.mu.Unlock()
		p.run(actor, next)
	}
}

func (p *SynchronizedPool[K]) run(actor K, task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.onPanic(actor, r)
		}
	}()
	task()
}
