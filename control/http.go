// control/http.go
// Author: momentics <momentics@gmail.com>
//
// HTTP endpoint exposing the metrics in the Prometheus text format.

package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-reactor/internal/logger"
)

// MetricsServer serves GET /metrics.
type MetricsServer struct {
	server       *http.Server
	listener     net.Listener
	log          *logrus.Entry
	shutdownOnce sync.Once
}

// NewMetricsServer binds listen and prepares the handler for g. Serving
// starts with Start.
func NewMetricsServer(listen string, g prometheus.Gatherer) (*MetricsServer, error) {
	if g == nil {
		return nil, fmt.Errorf("metrics server: nil gatherer")
	}
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", listen, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	return &MetricsServer{
		server: &http.Server{
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		listener: ln,
		log:      logger.NewLogger("metrics"),
	}, nil
}

// Addr returns the bound address.
func (s *MetricsServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *MetricsServer) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Infof("serving metrics on http://%s/metrics", s.listener.Addr())
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err, ok := <-errc:
		if ok {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}

// Stop shuts the server down. It is idempotent.
func (s *MetricsServer) Stop(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.server.Shutdown(ctx)
	})
	return err
}
