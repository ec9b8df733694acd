// Package pool
// Author: momentics <momentics@gmail.com>
//
// Buffer lifetime layer for hioload-reactor.
// Implements an unbounded, lock-free pool of fixed-capacity byte buffers that
// are leased for a single socket read and released once decoding finished.
// See bufferpool.go and default.go for implementation details.
package pool
