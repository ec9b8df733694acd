// File: pool/bufferpool.go
// Package pool implements lock-free pooling of fixed-capacity read buffers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"sync/atomic"

	"github.com/momentics/hioload-reactor/internal/concurrency"
)

// DefaultBufferSize is the capacity of buffers handed out by Default().
const DefaultBufferSize = 8 * 1024

// Buffer is a leased, fixed-capacity byte buffer.
// B always has capacity equal to the owning pool's size; its length is the
// number of valid bytes.
type Buffer struct {
	B      []byte
	pool   *BufferPool
	leased atomic.Bool
}

// Bytes returns the valid portion of the buffer.
func (b *Buffer) Bytes() []byte { return b.B }

// Len returns the number of valid bytes.
func (b *Buffer) Len() int { return len(b.B) }

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int { return cap(b.B) }

// Full returns the whole backing array, for reading into.
func (b *Buffer) Full() []byte { return b.B[:cap(b.B)] }

// SetLen marks the first n bytes as valid.
func (b *Buffer) SetLen(n int) { b.B = b.B[:n] }

// Reset empties the buffer without releasing it.
func (b *Buffer) Reset() { b.B = b.B[:0] }

// Release returns the buffer to its pool. Releasing twice within the same
// lease is a no-op.
func (b *Buffer) Release() {
	if b.pool != nil {
		b.pool.Release(b)
	}
}

// Stats exposes pool accounting.
type Stats struct {
	Size      int   // capacity of every buffer
	Allocated int64 // buffers created on pool miss
	Leased    int64 // total Lease calls
	Released  int64 // total accepted Release calls
	Idle      int   // buffers currently pooled
}

// InUse returns the number of buffers currently leased out.
func (s Stats) InUse() int64 { return s.Leased - s.Released }

// BufferPool is an unbounded pool of equally sized buffers. Lease and
// Release are safe for concurrent use and never block.
type BufferPool struct {
	size int
	free *concurrency.LinkedQueue[*Buffer]

	allocated atomic.Int64
	leased    atomic.Int64
	released  atomic.Int64
}

// New creates a pool of buffers with the given capacity.
// size <= 0 selects DefaultBufferSize.
func New(size int) *BufferPool {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &BufferPool{
		size: size,
		free: concurrency.NewLinkedQueue[*Buffer](),
	}
}

// Size returns the capacity of buffers from this pool.
func (p *BufferPool) Size() int { return p.size }

// Lease returns an empty buffer, recycled when possible.
func (p *BufferPool) Lease() *Buffer {
	b, ok := p.free.Dequeue()
	if !ok {
		b = &Buffer{B: make([]byte, 0, p.size), pool: p}
		p.allocated.Add(1)
	}
	b.B = b.B[:0]
	b.leased.Store(true)
	p.leased.Add(1)
	return b
}

// Release returns b to the pool. The caller must not touch b afterwards.
// Buffers that belong to another pool are dropped.
func (p *BufferPool) Release(b *Buffer) {
	if b == nil || b.pool != p {
		return
	}
	if !b.leased.CompareAndSwap(true, false) {
		return
	}
	p.released.Add(1)
	p.free.Enqueue(b)
}

// Stats returns a snapshot of pool counters.
func (p *BufferPool) Stats() Stats {
	return Stats{
		Size:      p.size,
		Allocated: p.allocated.Load(),
		Leased:    p.leased.Load(),
		Released:  p.released.Load(),
		Idle:      p.free.Len(),
	}
}
