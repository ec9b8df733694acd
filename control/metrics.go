// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for the reactor server. A nil *Metrics is valid and
// records nothing.

package control

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/momentics/hioload-reactor/pool"
)

const namespace = "reactor"

// Metrics holds the server collectors.
type Metrics struct {
	gatherer prometheus.Gatherer
	reg      prometheus.Registerer

	connsAccepted  prometheus.Counter
	connsClosed    prometheus.Counter
	connsRejected  prometheus.Counter
	connsActive    prometheus.Gauge
	bytesRead      prometheus.Counter
	bytesWritten   prometheus.Counter
	tasksSubmitted prometheus.Counter
	tasksRejected  prometheus.Counter
	taskPanics     prometheus.Counter
	interestQueued prometheus.Counter
}

// NewMetrics registers the server collectors with reg. A nil reg gets a
// private registry, which keeps several servers in one process apart.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{
		gatherer: gatherer,
		reg:      reg,
		connsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Total number of accepted connections",
		}),
		connsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_closed_total",
			Help:      "Total number of closed connections",
		}),
		connsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_rejected_total",
			Help:      "Connections closed on accept by the rate limit",
		}),
		connsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Currently registered connections",
		}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_read_total",
			Help:      "Bytes read from client sockets",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Bytes written to client sockets",
		}),
		tasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_submitted_total",
			Help:      "Read tasks handed to the actor scheduler",
		}),
		tasksRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_rejected_total",
			Help:      "Read tasks the scheduler refused",
		}),
		taskPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_panics_total",
			Help:      "Tasks that panicked on a worker",
		}),
		interestQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interest_updates_deferred_total",
			Help:      "Interest changes queued for the selector thread",
		}),
	}

	reg.MustRegister(
		m.connsAccepted,
		m.connsClosed,
		m.connsRejected,
		m.connsActive,
		m.bytesRead,
		m.bytesWritten,
		m.tasksSubmitted,
		m.tasksRejected,
		m.taskPanics,
		m.interestQueued,
	)
	return m
}

// ObservePool exports the buffer pool counters as gauges.
func (m *Metrics) ObservePool(p *pool.BufferPool) {
	if m == nil || p == nil {
		return
	}
	gauge := func(name, help string, fn func(pool.Stats) int64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "buffer_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(fn(p.Stats())) })
	}
	m.reg.MustRegister(
		gauge("allocated", "Buffers ever allocated", func(s pool.Stats) int64 { return s.Allocated }),
		gauge("in_use", "Buffers currently leased", func(s pool.Stats) int64 { return s.InUse() }),
		gauge("idle", "Buffers parked in the pool", func(s pool.Stats) int64 { return int64(s.Idle) }),
	)
}

func (m *Metrics) ConnAccepted() {
	if m == nil {
		return
	}
	m.connsAccepted.Inc()
	m.connsActive.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.connsClosed.Inc()
	m.connsActive.Dec()
}

func (m *Metrics) ConnRejected() {
	if m != nil {
		m.connsRejected.Inc()
	}
}

func (m *Metrics) BytesRead(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesRead.Add(float64(n))
}

func (m *Metrics) BytesWritten(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesWritten.Add(float64(n))
}

func (m *Metrics) TaskSubmitted() {
	if m != nil {
		m.tasksSubmitted.Inc()
	}
}

func (m *Metrics) TaskRejected() {
	if m != nil {
		m.tasksRejected.Inc()
	}
}

func (m *Metrics) TaskPanic() {
	if m != nil {
		m.taskPanics.Inc()
	}
}

func (m *Metrics) InterestDeferred() {
	if m != nil {
		m.interestQueued.Inc()
	}
}

// Gatherer returns the registry the collectors were registered with, or nil
// when the registerer cannot be gathered from.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return nil
	}
	return m.gatherer
}

// GetSnapshot returns the current value of every reactor metric keyed by
// its name without the namespace prefix.
func (m *Metrics) GetSnapshot() map[string]float64 {
	out := make(map[string]float64)
	if m == nil || m.gatherer == nil {
		return out
	}
	families, err := m.gatherer.Gather()
	if err != nil {
		return out
	}
	for _, mf := range families {
		name := mf.GetName()
		if !strings.HasPrefix(name, namespace+"_") {
			continue
		}
		for _, metric := range mf.GetMetric() {
			out[strings.TrimPrefix(name, namespace+"_")] += valueOf(mf.GetType(), metric)
		}
	}
	return out
}

func valueOf(t dto.MetricType, m *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	case dto.MetricType_UNTYPED:
		return m.GetUntyped().GetValue()
	}
	return 0
}
