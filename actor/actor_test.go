package actor

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/hioload-reactor/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scheduler interface {
	api.ActorScheduler[int]
	Workers() int
}

var implementations = []struct {
	name string
	new  func(workers int, opts ...Option) scheduler
}{
	{"lock-free", func(w int, opts ...Option) scheduler { return NewPool[int](w, opts...) }},
	{"synchronized", func(w int, opts ...Option) scheduler { return NewSynchronizedPool[int](w, opts...) }},
}

func forEachImpl(t *testing.T, fn func(t *testing.T, newSched func(workers int, opts ...Option) scheduler)) {
	for _, impl := range implementations {
		impl := impl
		t.Run(impl.name, func(t *testing.T) {
			fn(t, impl.new)
		})
	}
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("timed out after %v", d)
	}
}

// Tasks for one actor, submitted from several goroutines, run in submission
// order and never overlap.
func TestPerActorOrdering(t *testing.T) {
	forEachImpl(t, func(t *testing.T, newSched func(int, ...Option) scheduler) {
		s := newSched(8)
		defer s.Shutdown()

		const submitters = 8
		const perSubmitter = 500
		const total = submitters * perSubmitter

		var (
			ticketMu sync.Mutex
			next     int
			logMu    sync.Mutex
			log      = make([]int, 0, total)
			running  atomic.Int32
			overlap  atomic.Bool
			wg       sync.WaitGroup
		)
		wg.Add(total)

		var submitWg sync.WaitGroup
		for g := 0; g < submitters; g++ {
			submitWg.Add(1)
			go func() {
				defer submitWg.Done()
				for i := 0; i < perSubmitter; i++ {
					// the ticket is taken and submitted atomically, so ticket
					// order is submission order
					ticketMu.Lock()
					idx := next
					next++
					err := s.Submit(1, func() {
						defer wg.Done()
						if running.Add(1) != 1 {
							overlap.Store(true)
						}
						logMu.Lock()
						log = append(log, idx)
						logMu.Unlock()
						running.Add(-1)
					})
					ticketMu.Unlock()
					if err != nil {
						t.Errorf("submit: %v", err)
						wg.Done()
					}
				}
			}()
		}
		submitWg.Wait()
		waitTimeout(t, &wg, 10*time.Second)

		require.False(t, overlap.Load(), "two tasks of one actor ran concurrently")
		require.Len(t, log, total)
		for i, v := range log {
			require.Equal(t, i, v, "task order broken at position %d", i)
		}
	})
}

// Distinct actors run on different workers at the same time.
func TestCrossActorParallelism(t *testing.T) {
	forEachImpl(t, func(t *testing.T, newSched func(int, ...Option) scheduler) {
		s := newSched(4)
		defer s.Shutdown()

		const actors = 3
		var inside atomic.Int32
		var maxInside atomic.Int32
		release := make(chan struct{})

		var wg sync.WaitGroup
		wg.Add(actors)
		for a := 0; a < actors; a++ {
			require.NoError(t, s.Submit(a, func() {
				defer wg.Done()
				n := inside.Add(1)
				for {
					m := maxInside.Load()
					if n <= m || maxInside.CompareAndSwap(m, n) {
						break
					}
				}
				<-release
				inside.Add(-1)
			}))
		}

		require.Eventually(t, func() bool { return maxInside.Load() == actors },
			5*time.Second, time.Millisecond, "actors did not overlap")
		close(release)
		waitTimeout(t, &wg, 5*time.Second)
	})
}

// A task submitted while the actor is mid-drain is still executed.
func TestNoLostWakeups(t *testing.T) {
	forEachImpl(t, func(t *testing.T, newSched func(int, ...Option) scheduler) {
		s := newSched(2)
		defer s.Shutdown()

		for round := 0; round < 200; round++ {
			started := make(chan struct{})
			proceed := make(chan struct{})
			done := make(chan struct{})

			require.NoError(t, s.Submit(7, func() {
				close(started)
				<-proceed
				// widen the window between the last task and the idle reset
				time.Sleep(time.Duration(round%3) * 10 * time.Microsecond)
			}))
			<-started
			require.NoError(t, s.Submit(7, func() { close(done) }))
			close(proceed)

			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatalf("round %d: task submitted mid-drain never ran", round)
			}
		}
	})
}

// A panicking task neither kills the actor nor leaves it stuck active.
func TestPanicDoesNotStarveActor(t *testing.T) {
	forEachImpl(t, func(t *testing.T, newSched func(int, ...Option) scheduler) {
		var panics atomic.Int32
		var panickedActor atomic.Value
		s := newSched(2, WithPanicHandler(func(actor any, _ any) {
			panickedActor.Store(actor)
			panics.Add(1)
		}))
		defer s.Shutdown()

		var wg sync.WaitGroup
		wg.Add(2)
		var order []string
		var mu sync.Mutex
		require.NoError(t, s.Submit(3, func() {
			defer wg.Done()
			panic("decode failure")
		}))
		require.NoError(t, s.Submit(3, func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, "after-panic")
			mu.Unlock()
		}))
		waitTimeout(t, &wg, 5*time.Second)

		assert.Equal(t, int32(1), panics.Load())
		assert.Equal(t, 3, panickedActor.Load())
		mu.Lock()
		assert.Equal(t, []string{"after-panic"}, order)
		mu.Unlock()

		// the actor must have gone idle and accept new work
		done := make(chan struct{})
		require.NoError(t, s.Submit(3, func() { close(done) }))
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("actor stuck after panic")
		}
	})
}

func TestShutdownRunsQueuedTasksAndRejectsNewOnes(t *testing.T) {
	forEachImpl(t, func(t *testing.T, newSched func(int, ...Option) scheduler) {
		s := newSched(1)

		gate := make(chan struct{})
		var ran atomic.Int32
		require.NoError(t, s.Submit(1, func() { <-gate }))
		for i := 0; i < 10; i++ {
			require.NoError(t, s.Submit(1, func() { ran.Add(1) }))
		}

		go func() {
			time.Sleep(20 * time.Millisecond)
			close(gate)
		}()
		s.Shutdown()

		assert.Equal(t, int32(10), ran.Load())
		assert.ErrorIs(t, s.Submit(1, func() {}), api.ErrSchedulerClosed)
	})
}

func TestRemoveAndNilTask(t *testing.T) {
	forEachImpl(t, func(t *testing.T, newSched func(int, ...Option) scheduler) {
		s := newSched(2)
		defer s.Shutdown()

		assert.ErrorIs(t, s.Submit(1, nil), api.ErrInvalidArgument)
		assert.Equal(t, 2, s.Workers())

		done := make(chan struct{})
		require.NoError(t, s.Submit(1, func() { close(done) }))
		<-done
		s.Remove(1)
		s.Remove(42) // unknown keys are ignored

		again := make(chan struct{})
		require.NoError(t, s.Submit(1, func() { close(again) }))
		select {
		case <-again:
		case <-time.After(5 * time.Second):
			t.Fatal("fresh mailbox after Remove did not run")
		}
	})
}

func TestLockFreeRegistryIsExplicit(t *testing.T) {
	p := NewPool[int](1)
	defer p.Shutdown()

	done := make(chan struct{})
	require.NoError(t, p.Submit(5, func() { close(done) }))
	<-done

	_, ok := p.actors.Load(5)
	require.True(t, ok)
	p.Remove(5)
	_, ok = p.actors.Load(5)
	assert.False(t, ok)
}

func TestClaimWordPacking(t *testing.T) {
	p := NewPool[string](1)
	defer p.Shutdown()

	gate := make(chan struct{})
	require.NoError(t, p.Submit("a", func() { <-gate }))
	require.NoError(t, p.Submit("a", func() {}))
	require.NoError(t, p.Submit("a", func() {}))

	m := p.mailboxOf("a")
	st := m.state.Load()
	assert.NotZero(t, st&activeBit, "actor should be active while draining")
	assert.Equal(t, uint64(3), st&pendingMask)

	close(gate)
	require.Eventually(t, func() bool { return m.state.Load() == 0 },
		5*time.Second, time.Millisecond, "drain did not reset to idle")
}

// A drain refused by a closing executor leaves the task queued and the
// actor marked active instead of running or dropping it silently.
func TestLockFreeRefusedDrainIsStranded(t *testing.T) {
	p := NewPool[int](1)
	p.exec.Close() // executor gone, admission flag still open

	var ran atomic.Bool
	err := p.Submit(9, func() { ran.Store(true) })
	assert.ErrorIs(t, err, api.ErrSchedulerClosed)

	m := p.mailboxOf(9)
	assert.NotZero(t, m.state.Load()&activeBit)
	assert.Equal(t, 1, m.tasks.Len())
	assert.False(t, ran.Load())

	// later tasks join the stranded mailbox without a second hand-off
	require.NoError(t, p.Submit(9, func() { ran.Store(true) }))
	assert.Equal(t, uint64(2), m.state.Load()&pendingMask)
	p.Shutdown()
	assert.False(t, ran.Load())
}
