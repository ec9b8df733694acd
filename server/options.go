// File: server/options.go
// Package server defines functional options for the reactor server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-reactor/control"
	"github.com/momentics/hioload-reactor/pool"
)

// ServerOption customizes server initialization.
type ServerOption func(*settings)

type settings struct {
	cfg     Config
	log     *logrus.Entry
	metrics *control.Metrics
	pool    *pool.BufferPool
}

// WithLogger replaces the "server" tagged logger.
func WithLogger(log *logrus.Entry) ServerOption {
	return func(s *settings) {
		s.log = log
	}
}

// WithMetrics records server activity into m.
func WithMetrics(m *control.Metrics) ServerOption {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithBufferPool leases read buffers from p instead of a pool sized by
// Config.ReadBufferSize.
func WithBufferPool(p *pool.BufferPool) ServerOption {
	return func(s *settings) {
		s.pool = p
	}
}

// WithWorkers sets the number of scheduler workers.
func WithWorkers(n int) ServerOption {
	return func(s *settings) {
		s.cfg.Workers = n
	}
}

// WithBlockingSync selects the lock-based actor scheduler.
func WithBlockingSync(enabled bool) ServerOption {
	return func(s *settings) {
		s.cfg.BlockingSync = enabled
	}
}

// WithSendBufferSize sets SO_SNDBUF on accepted sockets.
func WithSendBufferSize(n int) ServerOption {
	return func(s *settings) {
		s.cfg.SendBufferSize = n
	}
}

// WithAcceptRate limits new connections to perSecond with the given burst.
// Connections over the limit are closed right after accept.
func WithAcceptRate(perSecond, burst int) ServerOption {
	return func(s *settings) {
		s.cfg.AcceptRate = perSecond
		s.cfg.AcceptBurst = burst
	}
}

// WithSelectorCPU pins the selector thread to cpu; -1 disables pinning.
func WithSelectorCPU(cpu int) ServerOption {
	return func(s *settings) {
		s.cfg.SelectorCPU = cpu
	}
}
