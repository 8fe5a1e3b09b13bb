package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server provides HTTP endpoints for metrics and health checks
type Server struct {
	metrics *Metrics
	srv     *http.Server
}

// NewServer creates a new metrics server. /metrics speaks the Prometheus
// exposition format; /stats serves this package's own JSON summary.
func NewServer(metrics *Metrics, port int) *Server {
	mux := http.NewServeMux()

	s := &Server{
		metrics: metrics,
		srv: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	// Register handlers
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	mux.Handle("/stats", metrics)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)

	return s
}

// Start starts the metrics server
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Basic health check - just return 200 OK
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	// A scheduler is ready once it has finished starting up and isn't in a
	// run of consecutive job failures; idle (zero active workers) is a
	// normal resting state, not a readiness failure.
	m := s.metrics

	uptime := time.Since(m.startTime)
	recentErrors := m.ConsecutiveErrs

	if uptime < time.Minute {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, "System still starting up (uptime: %v)", uptime)
		return
	}

	if recentErrors > 10 {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, "High error rate detected (%d consecutive errors)", recentErrors)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "Ready")
}