package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves Prometheus metrics over HTTP.
type Server struct {
	httpServer *http.Server
}

// ReadyFunc reports whether the process is ready to serve traffic.
type ReadyFunc func() bool

// NewServer creates a new metrics HTTP server.
// The server exposes metrics at /metrics, liveness at /health and readiness at
// /ready on the given address (e.g., ":9090"). A nil ready func always reports ready.
func NewServer(addr string, gatherer prometheus.Gatherer, ready ReadyFunc) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok")) //nolint:errcheck // best-effort health response
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready")) //nolint:errcheck // best-effort readiness response
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready")) //nolint:errcheck // best-effort readiness response
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start begins serving metrics. This is non-blocking.
// Returns a channel that receives an error if the server fails.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully stops the metrics server, waiting for active connections
// to complete or until the context is cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
