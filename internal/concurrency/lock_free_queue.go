// File: internal/concurrency/lock_free_queue.go
// Package concurrency provides a lock-free queue for executors.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Unbounded multi-producer/multi-consumer FIFO (Michael & Scott).

package concurrency

import "sync/atomic"

type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// LinkedQueue is an unbounded lock-free FIFO queue. The zero value is not
// usable; create instances with NewLinkedQueue.
type LinkedQueue[T any] struct {
	head   atomic.Pointer[node[T]]
	_      [cacheLinePad]byte
	tail   atomic.Pointer[node[T]]
	_      [cacheLinePad]byte
	length atomic.Int64
}

const cacheLinePad = 64

// NewLinkedQueue creates an empty queue.
func NewLinkedQueue[T any]() *LinkedQueue[T] {
	q := &LinkedQueue[T]{}
	sentinel := &node[T]{}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q
}

// Enqueue appends val at the tail. It never fails and never blocks.
func (q *LinkedQueue[T]) Enqueue(val T) {
	n := &node[T]{value: val}
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}
		if next != nil {
			// tail is lagging, help it forward
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		if tail.next.CompareAndSwap(nil, n) {
			q.tail.CompareAndSwap(tail, n)
			q.length.Add(1)
			return
		}
	}
}

// Dequeue removes and returns the head item; ok is false if the queue is empty.
func (q *LinkedQueue[T]) Dequeue() (item T, ok bool) {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()
		if head != q.head.Load() {
			continue
		}
		if next == nil {
			return item, false
		}
		if head == tail {
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		item = next.value
		// next becomes the sentinel and keeps value reachable until the
		// following Dequeue. Clearing it here would race with dequeuers
		// still reading the old head.
		if q.head.CompareAndSwap(head, next) {
			q.length.Add(-1)
			return item, true
		}
	}
}

// Peek returns the head item without removing it.
// Only meaningful when the caller is the sole consumer.
func (q *LinkedQueue[T]) Peek() (item T, ok bool) {
	for {
		head := q.head.Load()
		next := head.next.Load()
		if head != q.head.Load() {
			continue
		}
		if next == nil {
			return item, false
		}
		return next.value, true
	}
}

// Empty reports whether the queue currently holds no items.
func (q *LinkedQueue[T]) Empty() bool {
	return q.head.Load().next.Load() == nil
}

// Len returns an approximate number of queued items.
func (q *LinkedQueue[T]) Len() int {
	n := q.length.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}
