// File: server/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-connection state machine. Socket I/O and registration changes happen
// on the selector thread; decoding and protocol processing happen in read
// tasks run by the actor scheduler.

package server

import (
	"net"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/control"
	"github.com/momentics/hioload-reactor/internal/concurrency"
	"github.com/momentics/hioload-reactor/pool"
	"github.com/momentics/hioload-reactor/reactor"
)

// registrar owns the selector registrations of connections.
type registrar[T, R any] interface {
	// updateInterest may be called from any goroutine.
	updateInterest(h *connHandler[T, R], ops reactor.Ops)
	// deregister is called once, on the selector thread, before the fd closes.
	deregister(h *connHandler[T, R])
}

// outbound is an encoded response and how much of it was already written.
type outbound struct {
	data []byte
	off  int
}

type connHandler[T, R any] struct {
	id     uint64
	fd     int
	remote net.Addr

	codec api.EncoderDecoder[T, R]
	proto api.Protocol[T, R]

	srv     registrar[T, R]
	pool    *pool.BufferPool
	log     *logrus.Entry
	metrics *control.Metrics

	writeQueue *concurrency.LinkedQueue[*outbound]
	ops        reactor.Ops // current registration, selector thread only
	closed     atomic.Bool
	// set by the worker once the protocol terminated and its last
	// response is queued
	terminating atomic.Bool
}

func newConnHandler[T, R any](
	id uint64,
	fd int,
	remote net.Addr,
	codec api.EncoderDecoder[T, R],
	proto api.Protocol[T, R],
	srv registrar[T, R],
	bufPool *pool.BufferPool,
	log *logrus.Entry,
	metrics *control.Metrics,
) *connHandler[T, R] {
	return &connHandler[T, R]{
		id:         id,
		fd:         fd,
		remote:     remote,
		codec:      codec,
		proto:      proto,
		srv:        srv,
		pool:       bufPool,
		log:        log.WithFields(logrus.Fields{"conn": id, "remote": remote}),
		metrics:    metrics,
		writeQueue: concurrency.NewLinkedQueue[*outbound](),
	}
}

// readTask carries one read's bytes to a worker.
type readTask[T, R any] struct {
	h   *connHandler[T, R]
	buf *pool.Buffer
}

// continueRead performs one non-blocking read. It returns nil when there is
// nothing to process; end of stream and read errors close the connection.
func (h *connHandler[T, R]) continueRead() *readTask[T, R] {
	buf := h.pool.Lease()
	n, err := reactor.Read(h.fd, buf.Full())
	switch {
	case err != nil && reactor.WouldBlock(err):
		buf.Release()
		return nil
	case err != nil:
		buf.Release()
		h.log.WithError(err).Debug("read failed")
		h.close()
		return nil
	case n == 0:
		buf.Release()
		h.log.Debug("peer closed")
		h.close()
		return nil
	}
	buf.SetLen(n)
	h.metrics.BytesRead(n)
	return &readTask[T, R]{h: h, buf: buf}
}

// run decodes the buffered bytes, processes every complete message and
// queues the encoded responses. Bytes after a terminating message are
// dropped.
func (t *readTask[T, R]) run() {
	defer t.buf.Release()
	h := t.h
	if h.closed.Load() || h.terminating.Load() {
		return
	}
	for _, b := range t.buf.Bytes() {
		msg, ok := h.codec.Decode(b)
		if !ok {
			continue
		}
		resp, ok := h.proto.Process(msg)
		if ok {
			h.writeQueue.Enqueue(&outbound{data: h.codec.Encode(resp)})
		}
		// published only after the final response is queued, so the
		// selector never closes ahead of it
		stop := h.proto.ShouldTerminate()
		if stop {
			h.terminating.Store(true)
		}
		if ok || stop {
			h.srv.updateInterest(h, reactor.OpRead|reactor.OpWrite)
		}
		if stop {
			return
		}
	}
}

// discard drops a task that will never run.
func (t *readTask[T, R]) discard() {
	t.buf.Release()
}

// continueWrite flushes the write queue until it is empty or the socket
// stops accepting data. Selector thread only.
func (h *connHandler[T, R]) continueWrite() {
	for {
		out, ok := h.writeQueue.Peek()
		if !ok {
			break
		}
		if len(out.data) > out.off {
			n, err := reactor.Write(h.fd, out.data[out.off:])
			if err != nil {
				if reactor.WouldBlock(err) {
					return
				}
				h.log.WithError(err).Debug("write failed")
				h.close()
				return
			}
			out.off += n
			h.metrics.BytesWritten(n)
			if out.off < len(out.data) {
				// resumed on the next writability event
				return
			}
		}
		h.writeQueue.Dequeue()
	}

	if h.terminating.Load() {
		h.close()
		return
	}
	h.srv.updateInterest(h, reactor.OpRead)
	// a worker may have queued a response after the queue looked empty and
	// had its write interest overridden above
	if !h.writeQueue.Empty() {
		h.srv.updateInterest(h, reactor.OpRead|reactor.OpWrite)
	}
}

// close is idempotent: it drops the registration, closes the socket and
// discards pending writes. Selector thread only.
func (h *connHandler[T, R]) close() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	h.srv.deregister(h)
	if err := reactor.CloseFd(h.fd); err != nil {
		h.log.WithError(err).Debug("close failed")
	}
	for {
		if _, ok := h.writeQueue.Dequeue(); !ok {
			break
		}
	}
	h.log.Debug("connection closed")
}
