// Package api
// Author: momentics
//
// Actor scheduler contract: serialized, ordered execution per actor key on a
// shared worker pool.

package api

// ActorScheduler runs tasks such that, for any actor key, tasks execute one
// at a time in submission order, while different keys run in parallel.
type ActorScheduler[K comparable] interface {
	// Submit enqueues task for actor. It never blocks.
	Submit(actor K, task func()) error

	// Remove drops the bookkeeping for actor. The caller guarantees no
	// further Submit for the same key.
	Remove(actor K)

	// Shutdown stops admission, lets queued tasks finish and releases the
	// worker pool.
	Shutdown()
}
