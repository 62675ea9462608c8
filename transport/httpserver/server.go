package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jonwraymond/toolexec/auth"
	"github.com/jonwraymond/toolexec/health"
	"github.com/jonwraymond/toolexec/observe"
	"github.com/jonwraymond/toolexec/pipeline"
	"github.com/jonwraymond/toolexec/resilience"
	"github.com/jonwraymond/toolexec/tool"
)

// Config tunes the HTTP transport.
type Config struct {
	// Addr is the listen address, e.g. "0.0.0.0:8080".
	Addr string

	// ShutdownGrace bounds how long Shutdown waits for in-flight requests
	// and executions to drain.
	ShutdownGrace time.Duration

	// RateLimiter, if non-nil, throttles /tools/{name}/execute at ingress,
	// ahead of the per-tool concurrency gate. A rejected request is answered
	// 429 and never reaches the pipeline, so it is not recorded as a tool
	// failure.
	RateLimiter *resilience.RateLimiter

	// Auth, if non-nil, gates every /tools route: callers must present a
	// provisioned API key and hold a role whose policy covers the tool and
	// action.
	Auth *AuthConfig

	// MetricsHandler, if non-nil, serves GET /metrics (e.g. the Prometheus
	// text exposition). When nil, /metrics falls back to a JSON snapshot of
	// the local per-tool aggregates.
	MetricsHandler http.Handler

	// EventInterval is the SSE health-event cadence. Defaults to 5s.
	EventInterval time.Duration
}

// Server is the HTTP adapter over a pipeline.
type Server struct {
	cfg      Config
	pipe     *pipeline.Pipeline
	registry *tool.Registry
	metrics  observe.Metrics
	agg      *health.Aggregator
	logger   observe.Logger

	httpServer *http.Server
}

// NewServer wires the HTTP adapter. agg should already hold one health
// checker per registered tool.
func NewServer(cfg Config, pipe *pipeline.Pipeline, registry *tool.Registry, metrics observe.Metrics, agg *health.Aggregator, logger observe.Logger) *Server {
	if cfg.EventInterval <= 0 {
		cfg.EventInterval = 5 * time.Second
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 30 * time.Second
	}
	s := &Server{
		cfg:      cfg,
		pipe:     pipe,
		registry: registry,
		metrics:  metrics,
		agg:      agg,
		logger:   logger,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the full route table. Exposed separately from
// ListenAndServe so tests can drive the transport through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /healthz", health.LivenessHandler())
	mux.HandleFunc("GET /readyz", health.ReadinessHandler(s.agg))
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.Handle("GET /metrics", s.metricsHandler())

	mux.Handle("GET /tools", s.guard(auth.ActionList, s.handleListTools))
	mux.Handle("POST /tools/{name}/execute", s.guard(auth.ActionCall, s.handleExecute))
	mux.Handle("POST /tools/{name}/enable", s.guard(auth.ActionManage, s.handleEnable))
	mux.Handle("POST /tools/{name}/disable", s.guard(auth.ActionManage, s.handleDisable))

	return mux
}

// AuthConfig pairs the credential check with the role policy applied to
// authenticated operators.
type AuthConfig struct {
	Authenticator auth.Authenticator
	Policy        auth.Policy
}

// ListenAndServe starts the pipeline's monitoring task and serves until ctx
// is canceled, then drains within the configured grace period.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.pipe.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return s.pipe.Shutdown(shutdownCtx, s.cfg.ShutdownGrace)
}

// handleHealth reports the aggregate health with per-check detail. 207
// signals a degraded-but-serving state so probes can distinguish it from
// both full health and a hard failure.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	results := s.agg.CheckAll(ctx)
	status := s.agg.OverallStatus(results)

	checks := make([]checkStatus, 0, len(results))
	for name, res := range results {
		checks = append(checks, checkStatus{
			Name:    name,
			Status:  res.Status.String(),
			Message: res.Message,
		})
	}

	code := http.StatusOK
	switch status {
	case health.StatusDegraded:
		code = http.StatusMultiStatus
	case health.StatusUnhealthy:
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, healthResponse{
		Status:    status.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Transport: "http",
		Checks:    checks,
	})
}

type healthResponse struct {
	Status    string        `json:"status"`
	Timestamp string        `json:"timestamp"`
	Transport string        `json:"transport"`
	Checks    []checkStatus `json:"checks"`
}

type checkStatus struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
