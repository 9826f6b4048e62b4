// Package health exposes the liveness, readiness, metrics, and stats
// endpoints. It contains no pipeline logic.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"newsbot/internal/ratelimit"
	"newsbot/internal/storage"
)

// Server serves the operational HTTP surface.
type Server struct {
	srv     *http.Server
	ledger  storage.Ledger
	limiter *ratelimit.Limiter
	log     *slog.Logger

	started    time.Time
	ready      atomic.Bool
	lastIntake atomic.Int64
}

// New creates a Server listening on the given port, exposing the gatherer
// under /metrics and gating /ready on ledger reachability.
func New(port int, ledger storage.Ledger, limiter *ratelimit.Limiter, gatherer prometheus.Gatherer, log *slog.Logger) *Server {
	s := &Server{
		ledger:  ledger,
		limiter: limiter,
		log:     log,
		started: time.Now(),
	}

	r := chi.NewRouter()
	r.Get("/", s.handleHealth)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/stats", s.handleStats)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("health server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown health server: %w", err)
	}
	return <-errCh
}

// MarkReady flips the readiness probe to passing.
func (s *Server) MarkReady() {
	s.ready.Store(true)
	s.log.Info("service marked as ready")
}

// MarkNotReady flips the readiness probe to failing.
func (s *Server) MarkNotReady() {
	s.ready.Store(false)
	s.log.Warn("service marked as not ready")
}

// RecordIntake notes that an item was just received.
func (s *Server) RecordIntake() {
	s.lastIntake.Store(time.Now().Unix())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"reason": "service not initialized",
		})
		return
	}

	if _, err := s.ledger.TodayCount(r.Context()); err != nil {
		s.log.Error("readiness database check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"reason": "database not healthy",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ready",
		"database":         "healthy",
		"last_intake_time": s.lastIntakeTime(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"uptime_seconds":   int(time.Since(s.started).Seconds()),
		"ready":            s.ready.Load(),
		"last_intake_time": s.lastIntakeTime(),
		"rate_limiter":     s.limiter.Snapshot(),
	}

	if ledgerStats, err := s.ledger.Stats(r.Context()); err != nil {
		s.log.Error("stats query failed", "error", err)
		stats["database"] = map[string]string{"error": err.Error()}
	} else {
		stats["database"] = ledgerStats
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) lastIntakeTime() any {
	ts := s.lastIntake.Load()
	if ts == 0 {
		return nil
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
