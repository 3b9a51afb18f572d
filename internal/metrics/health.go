package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type lastTick struct {
	mu sync.RWMutex
	t  time.Time
}

func (l *lastTick) set(t time.Time) {
	l.mu.Lock()
	l.t = t
	l.mu.Unlock()
}

func (l *lastTick) get() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.t
}

// DependencyCheck checks one dependency (Redis, SQLite, the market data API).
type DependencyCheck func(ctx context.Context) error

// CheckResult is the outcome of one dependency check.
type CheckResult struct {
	OK        bool    `json:"ok"`
	LatencyMs float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// HealthStatus aggregates dependency checks and monitor liveness.
type HealthStatus struct {
	mu          sync.RWMutex
	checks      map[string]DependencyCheck
	results     map[string]CheckResult
	lastCheckAt time.Time
	startedAt   time.Time

	running  func() []string
	lastTick func() time.Time
}

// NewHealthStatus returns an empty health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		checks:    make(map[string]DependencyCheck),
		results:   make(map[string]CheckResult),
		startedAt: time.Now(),
	}
}

// AddCheck registers a named dependency check.
func (h *HealthStatus) AddCheck(name string, p DependencyCheck) {
	h.mu.Lock()
	h.checks[name] = p
	h.mu.Unlock()
}

// SetMonitor wires the monitored symbols and the last successful tick time
// into the report.
func (h *HealthStatus) SetMonitor(running func() []string, lastTick func() time.Time) {
	h.mu.Lock()
	h.running, h.lastTick = running, lastTick
	h.mu.Unlock()
}

// Check runs every dependency check once and records latency and outcome.
func (h *HealthStatus) Check(ctx context.Context) {
	h.mu.RLock()
	checks := make(map[string]DependencyCheck, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	h.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	for name, p := range checks {
		start := time.Now()
		err := p(ctx)
		r := CheckResult{
			OK:        err == nil,
			LatencyMs: float64(time.Since(start).Microseconds()) / 1000.0,
		}
		if err != nil {
			r.Error = err.Error()
		}
		results[name] = r
	}

	h.mu.Lock()
	h.results = results
	h.lastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs Check immediately and then every interval
// until ctx is cancelled.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			h.Check(checkCtx)
			cancel()
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Report is the JSON body served on /healthz.
type Report struct {
	Status       string                 `json:"status"` // healthy, degraded, unhealthy
	Uptime       string                 `json:"uptime"`
	Monitoring   []string               `json:"monitoring"`
	LastTickTime string                 `json:"last_tick_time,omitempty"`
	TickAge      string                 `json:"tick_age,omitempty"`
	Checks       map[string]CheckResult `json:"checks"`
	LastCheckAt  string                 `json:"last_check_at,omitempty"`
}

// Report builds the current health report. Any failing check degrades the
// status; all checks failing makes it unhealthy.
func (h *HealthStatus) Report() Report {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r := Report{
		Status: "healthy",
		Uptime: time.Since(h.startedAt).Round(time.Second).String(),
		Checks: make(map[string]CheckResult, len(h.results)),
	}
	failed := 0
	for name, c := range h.results {
		r.Checks[name] = c
		if !c.OK {
			failed++
		}
	}
	switch {
	case failed > 0 && failed == len(h.results):
		r.Status = "unhealthy"
	case failed > 0:
		r.Status = "degraded"
	}
	if h.running != nil {
		r.Monitoring = h.running()
		sort.Strings(r.Monitoring)
	}
	if h.lastTick != nil {
		if t := h.lastTick(); !t.IsZero() {
			r.LastTickTime = t.Format(time.RFC3339)
			r.TickAge = time.Since(t).Round(time.Millisecond).String()
		}
	}
	if !h.lastCheckAt.IsZero() {
		r.LastCheckAt = h.lastCheckAt.Format(time.RFC3339)
	}
	return r
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	r := h.Report()
	w.Header().Set("Content-Type", "application/json")
	if r.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(r)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
	log  *slog.Logger
}

// NewServer creates a metrics and health server. gatherer nil serves the
// default registry.
func NewServer(addr string, health *HealthStatus, gatherer prometheus.Gatherer) *Server {
	handler := promhttp.Handler()
	if gatherer != nil {
		handler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: slog.Default().With("component", "metrics"),
	}
}

// Handler returns the server's mux.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
