// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package monitor exposes engine counters over HTTP: Prometheus metrics on
// /metrics and the live summary document on /status.
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pdiddy/research-stream/pkg/types"
)

// Metrics holds the engine's Prometheus collectors. Each engine owns its
// own registry so tests can run engines side by side without collisions.
type Metrics struct {
	registry *prometheus.Registry

	RecordsIngested prometheus.Counter
	FetchFailures   *prometheus.CounterVec
	FlushRetries    prometheus.Counter
	BufferDepth     prometheus.Gauge
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RecordsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "research_stream_records_ingested_total",
			Help: "Records flushed to the output file.",
		}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "research_stream_fetch_failures_total",
			Help: "Poll cycles that ended in an error, labeled by failure category.",
		}, []string{"source", "category"}),
		FlushRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "research_stream_flush_retries_total",
			Help: "Failed flush write attempts.",
		}),
		BufferDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "research_stream_buffer_depth",
			Help: "Records currently held in the in-memory buffer.",
		}),
	}
}

// Registry returns the metrics registry for serving /metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Server serves the monitor endpoints until its context is cancelled.
type Server struct {
	srv *http.Server
}

// NewServer wires /metrics from the metrics registry and /status from the
// summary callback.
func NewServer(addr string, m *Metrics, summary func() types.Summary) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.Encode(summary())
	})

	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the server's handler, used by tests to exercise the
// endpoints without a listener.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Serve listens until ctx is cancelled, then shuts down gracefully. A closed
// listener is not an error.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
