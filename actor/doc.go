// Package actor schedules tasks per actor key on a shared, fixed-size worker
// pool. For a single key, tasks run one at a time in submission order;
// different keys run fully in parallel. No goroutine is dedicated to a key.
//
// Two interchangeable implementations satisfy api.ActorScheduler:
//
//   - Pool: lock-free. Each actor carries an atomic {pending, active} word and
//     a lock-free FIFO. Exactly one drain loop is handed to the worker pool
//     per idle-to-active transition; the drain resets the word with a CAS and
//     keeps draining whenever a concurrent Submit beat it.
//   - SynchronizedPool: a per-actor mutex guards the pending queue and the
//     playing flag. Simpler to reason about, blocks briefly under contention.
package actor
