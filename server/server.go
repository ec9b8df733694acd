// File: server/server.go
// Package server implements the reactor TCP server: one selector thread
// owns every registration, a scheduler runs per-connection work.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/momentics/hioload-reactor/actor"
	"github.com/momentics/hioload-reactor/affinity"
	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/control"
	"github.com/momentics/hioload-reactor/internal/concurrency"
	"github.com/momentics/hioload-reactor/internal/logger"
	"github.com/momentics/hioload-reactor/pool"
	"github.com/momentics/hioload-reactor/reactor"
)

type state int

const (
	stateIdle state = iota
	stateRunning
	stateClosed
)

// Server is a reactor TCP server speaking codec T/R framed protocols.
type Server[T, R any] struct {
	cfg         Config
	newCodec    func() api.EncoderDecoder[T, R]
	newProtocol func() api.Protocol[T, R]

	selector reactor.Selector
	lfd      int
	addr     *net.TCPAddr
	sched    api.ActorScheduler[uint64]
	pool     *pool.BufferPool
	log      *logrus.Entry
	metrics  *control.Metrics
	limiter  *rate.Limiter // nil when accepts are unlimited

	// selector thread only
	conns  map[int]*connHandler[T, R]
	nextID uint64

	pending *concurrency.LinkedQueue[func()]
	loopTid atomic.Int64
	closing atomic.Bool

	mu           sync.Mutex
	state        state
	shutdownOnce sync.Once
	done         chan struct{}
}

// NewServer binds and listens on cfg.Host:cfg.Port and prepares the
// selector and the scheduler. Connections are accepted once Serve runs.
// A nil cfg selects DefaultConfig().
func NewServer[T, R any](
	cfg *Config,
	newCodec func() api.EncoderDecoder[T, R],
	newProtocol func() api.Protocol[T, R],
	opts ...ServerOption,
) (*Server[T, R], error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	st := &settings{cfg: *cfg}
	for _, o := range opts {
		o(st)
	}
	if newCodec == nil || newProtocol == nil {
		return nil, api.InvalidArgument("codec and protocol suppliers are required")
	}
	if err := st.cfg.normalize(); err != nil {
		return nil, err
	}
	if st.log == nil {
		st.log = logger.NewLogger("server")
	}
	if st.metrics == nil {
		st.metrics = control.NewMetrics(nil)
	}
	if st.pool == nil {
		if st.cfg.ReadBufferSize == pool.DefaultBufferSize {
			st.pool = pool.Default()
		} else {
			st.pool = pool.New(st.cfg.ReadBufferSize)
		}
	}

	sel, err := reactor.NewSelector()
	if err != nil {
		return nil, fmt.Errorf("create selector: %w", err)
	}
	lfd, addr, err := reactor.Listen(st.cfg.Host, st.cfg.Port, st.cfg.Backlog)
	if err != nil {
		_ = sel.Close()
		return nil, err
	}
	if err := sel.Add(lfd, reactor.OpRead); err != nil {
		_ = reactor.CloseFd(lfd)
		_ = sel.Close()
		return nil, fmt.Errorf("register listener: %w", err)
	}

	s := &Server[T, R]{
		cfg:         st.cfg,
		newCodec:    newCodec,
		newProtocol: newProtocol,
		selector:    sel,
		lfd:         lfd,
		addr:        addr,
		pool:        st.pool,
		log:         st.log,
		metrics:     st.metrics,
		conns:       make(map[int]*connHandler[T, R]),
		pending:     concurrency.NewLinkedQueue[func()](),
		done:        make(chan struct{}),
	}
	if st.cfg.AcceptRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(st.cfg.AcceptRate), st.cfg.AcceptBurst)
	}
	s.sched = s.newScheduler()
	s.metrics.ObservePool(s.pool)
	s.log.WithFields(logrus.Fields{
		"addr":          addr.String(),
		"workers":       st.cfg.Workers,
		"blocking_sync": st.cfg.BlockingSync,
	}).Info("listening")
	return s, nil
}

func (s *Server[T, R]) newScheduler() api.ActorScheduler[uint64] {
	opts := []actor.Option{
		actor.WithLogger(s.log),
		actor.WithPanicHandler(func(a any, r any) {
			s.metrics.TaskPanic()
			s.log.WithField("conn", a).Errorf("task panicked: %v", r)
		}),
	}
	if s.cfg.BlockingSync {
		return actor.NewSynchronizedPool[uint64](s.cfg.Workers, opts...)
	}
	return actor.NewPool[uint64](s.cfg.Workers, opts...)
}

// Addr returns the bound listening address.
func (s *Server[T, R]) Addr() net.Addr {
	return s.addr
}

// Metrics returns the server's metrics.
func (s *Server[T, R]) Metrics() *control.Metrics {
	return s.metrics
}

// Serve runs the event loop on the calling goroutine, locked to its OS
// thread, until Close is called, ctx is done or the selector fails. On
// return the scheduler has drained and every connection, the listener and
// the selector are closed. Serve may be called once.
func (s *Server[T, R]) Serve(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case stateClosed:
		s.mu.Unlock()
		return api.ErrServerClosed
	case stateRunning:
		s.mu.Unlock()
		return api.ErrAlreadyRunning
	}
	s.state = stateRunning
	s.mu.Unlock()
	defer close(s.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	s.loopTid.Store(int64(reactor.ThreadID()))
	if s.cfg.SelectorCPU >= 0 {
		restore, err := affinity.Pin(s.cfg.SelectorCPU)
		if err != nil {
			s.log.WithError(err).Warn("selector thread not pinned")
		}
		defer restore()
	}

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	err := s.loop()
	s.shutdown()
	if err != nil {
		s.log.WithError(err).Error("event loop failed")
		return err
	}
	s.log.Info("stopped")
	return nil
}

// Close stops the server. It is idempotent and does not wait for Serve to
// return; Done reports that.
func (s *Server[T, R]) Close() error {
	s.mu.Lock()
	prev := s.state
	s.state = stateClosed
	s.mu.Unlock()

	switch prev {
	case stateIdle:
		s.shutdown()
		close(s.done)
	case stateRunning:
		if s.closing.CompareAndSwap(false, true) {
			return s.selector.Wakeup()
		}
	}
	return nil
}

// Done is closed once the server has fully stopped.
func (s *Server[T, R]) Done() <-chan struct{} {
	return s.done
}

func (s *Server[T, R]) loop() error {
	events := make([]reactor.Event, s.cfg.MaxEvents)
	for !s.closing.Load() {
		n, err := s.selector.Wait(events, -1)
		if err != nil {
			return fmt.Errorf("selector wait: %w", err)
		}
		s.runPendingTasks()
		for i := 0; i < n; i++ {
			ev := events[i]
			if ev.Fd == s.lfd {
				s.acceptAll()
				continue
			}
			h, ok := s.conns[ev.Fd]
			if !ok {
				continue
			}
			s.dispatch(h, ev.Ops)
		}
	}
	return nil
}

func (s *Server[T, R]) runPendingTasks() {
	for {
		task, ok := s.pending.Dequeue()
		if !ok {
			return
		}
		task()
	}
}

func (s *Server[T, R]) acceptAll() {
	for {
		fd, remote, err := reactor.Accept(s.lfd)
		if err != nil {
			if !reactor.WouldBlock(err) {
				s.log.WithError(err).Warn("accept failed")
			}
			return
		}
		if s.limiter != nil && !s.limiter.Allow() {
			_ = reactor.CloseFd(fd)
			s.metrics.ConnRejected()
			s.log.WithField("remote", remote).Debug("accept rate exceeded")
			continue
		}
		if s.cfg.SendBufferSize > 0 {
			if err := reactor.SetSendBuffer(fd, s.cfg.SendBufferSize); err != nil {
				s.log.WithError(err).Debug("set send buffer")
			}
		}
		if err := s.selector.Add(fd, reactor.OpRead); err != nil {
			s.log.WithError(err).Warn("register connection")
			_ = reactor.CloseFd(fd)
			continue
		}
		s.nextID++
		h := newConnHandler(s.nextID, fd, remote, s.newCodec(), s.newProtocol(),
			registrar[T, R](s), s.pool, s.log, s.metrics)
		h.ops = reactor.OpRead
		s.conns[fd] = h
		s.metrics.ConnAccepted()
		h.log.Debug("accepted")
	}
}

func (s *Server[T, R]) dispatch(h *connHandler[T, R], ops reactor.Ops) {
	if ops&reactor.OpRead != 0 {
		if task := h.continueRead(); task != nil {
			if err := s.sched.Submit(h.id, task.run); err != nil {
				task.discard()
				s.metrics.TaskRejected()
				h.log.WithError(err).Debug("read task rejected")
				h.close()
				return
			}
			s.metrics.TaskSubmitted()
		}
	}
	if ops&reactor.OpWrite != 0 && !h.closed.Load() {
		h.continueWrite()
	}
}

// updateInterest applies ops right away on the selector thread and defers
// it to the next loop iteration anywhere else.
func (s *Server[T, R]) updateInterest(h *connHandler[T, R], ops reactor.Ops) {
	if h.closed.Load() {
		return
	}
	if int64(reactor.ThreadID()) == s.loopTid.Load() {
		s.applyInterest(h, ops)
		return
	}
	s.pending.Enqueue(func() { s.applyInterest(h, ops) })
	s.metrics.InterestDeferred()
	if err := s.selector.Wakeup(); err != nil {
		s.log.WithError(err).Warn("selector wakeup")
	}
}

func (s *Server[T, R]) applyInterest(h *connHandler[T, R], ops reactor.Ops) {
	// the fd may already belong to a newer connection
	if h.closed.Load() || s.conns[h.fd] != h || h.ops == ops {
		return
	}
	if err := s.selector.Modify(h.fd, ops); err != nil {
		h.log.WithError(err).Debug("modify interest")
		h.close()
		return
	}
	h.ops = ops
}

func (s *Server[T, R]) deregister(h *connHandler[T, R]) {
	if err := s.selector.Remove(h.fd); err != nil {
		h.log.WithError(err).Debug("remove registration")
	}
	if s.conns[h.fd] == h {
		delete(s.conns, h.fd)
	}
	s.sched.Remove(h.id)
	s.metrics.ConnClosed()
}

func (s *Server[T, R]) shutdown() {
	s.shutdownOnce.Do(func() {
		s.sched.Shutdown()
		// pending interest changes are moot now
		for {
			if _, ok := s.pending.Dequeue(); !ok {
				break
			}
		}
		for _, h := range s.conns {
			h.close()
		}
		if err := reactor.CloseFd(s.lfd); err != nil {
			s.log.WithError(err).Debug("close listener")
		}
		if err := s.selector.Close(); err != nil {
			s.log.WithError(err).Debug("close selector")
		}
	})
}
