package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jonwraymond/toolexec/auth"
	"github.com/jonwraymond/toolexec/observe"
	"github.com/jonwraymond/toolexec/result"
	"github.com/jonwraymond/toolexec/validate"
)

// executeRequest is the JSON body for POST /tools/{name}/execute.
type executeRequest struct {
	Target        string  `json:"target"`
	ExtraArgs     string  `json:"extra_args"`
	TimeoutSec    float64 `json:"timeout_sec"`
	CorrelationID string  `json:"correlation_id"`
}

// toolListing mirrors tool.Listing for the /tools response.
type toolListing struct {
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Concurrency int    `json:"concurrency"`
	Timeout     string `json:"timeout"`
	HasMetrics  bool   `json:"has_metrics"`
	HasBreaker  bool   `json:"has_breaker"`
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	listings := s.registry.List()
	tools := make([]toolListing, 0, len(listings))
	for _, l := range listings {
		tools = append(tools, toolListing{
			Name:        l.Name,
			Enabled:     l.Enabled,
			Command:     l.Command,
			Description: l.Description,
			Concurrency: l.Concurrency,
			Timeout:     l.Timeout,
			HasMetrics:  l.HasMetrics,
			HasBreaker:  l.HasBreaker,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if s.cfg.RateLimiter != nil && !s.cfg.RateLimiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	// Unknown and disabled tools are distinguished up front so the adapter
	// can answer 404/403; the pipeline re-checks both under its own locks.
	if _, ok := s.registry.Get(name); !ok {
		writeError(w, http.StatusNotFound, "tool is not registered")
		return
	}
	if !s.registry.IsEnabled(name) {
		writeError(w, http.StatusForbidden, "tool is disabled")
		return
	}

	var body executeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	res := s.pipe.Execute(r.Context(), name, validate.Request{
		Target:        body.Target,
		ExtraArgs:     body.ExtraArgs,
		TimeoutSec:    body.TimeoutSec,
		CorrelationID: body.CorrelationID,
	})

	s.logger.Info(r.Context(), "tool executed",
		observe.Field{Key: "tool", Value: name},
		observe.Field{Key: "error_type", Value: res.ErrorType},
		observe.Field{Key: "correlation_id", Value: res.CorrelationID},
	)

	writeJSON(w, statusFor(res), res)
}

// statusFor maps a pipeline result onto an HTTP status. The result body is
// identical in every case; the status is a routing convenience for callers
// that do not inspect error_type.
func statusFor(res result.Result) int {
	switch res.ErrorType {
	case "", result.ErrorTypeTimeout:
		return http.StatusOK
	case result.ErrorTypeValidation:
		return http.StatusBadRequest
	case result.ErrorTypeNotFound:
		return http.StatusNotFound
	case result.ErrorTypeCircuitBreakerOpen:
		return http.StatusServiceUnavailable
	case result.ErrorTypeResourceExhausted:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, ok := s.registry.Get(name); !ok {
		writeError(w, http.StatusNotFound, "tool is not registered")
		return
	}
	s.registry.Enable(name)
	writeJSON(w, http.StatusOK, map[string]string{"message": "tool " + name + " enabled"})
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, ok := s.registry.Get(name); !ok {
		writeError(w, http.StatusNotFound, "tool is not registered")
		return
	}
	s.registry.Disable(name)
	writeJSON(w, http.StatusOK, map[string]string{"message": "tool " + name + " disabled"})
}

// metricsHandler serves the configured exposition (e.g. Prometheus), or a
// JSON snapshot of the local per-tool aggregates when none is configured.
func (s *Server) metricsHandler() http.Handler {
	if s.cfg.MetricsHandler != nil {
		return s.cfg.MetricsHandler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snapshot := s.metrics.Snapshot()
		out := make(map[string]toolStats, len(snapshot))
		for name, st := range snapshot {
			entry := toolStats{
				Count:         st.Count,
				SuccessCount:  st.SuccessCount,
				FailureCount:  st.FailureCount,
				RejectedCount: st.RejectedCount,
				SumSeconds:    st.SumSeconds,
				MinSeconds:    st.MinSeconds,
				MaxSeconds:    st.MaxSeconds,
			}
			if !st.LastAt.IsZero() {
				entry.LastAt = st.LastAt.UTC().Format(time.RFC3339Nano)
			}
			out[name] = entry
		}
		writeJSON(w, http.StatusOK, map[string]any{"tools": out})
	})
}

type toolStats struct {
	Count         int64   `json:"count"`
	SuccessCount  int64   `json:"success_count"`
	FailureCount  int64   `json:"failure_count"`
	RejectedCount int64   `json:"rejected_count"`
	SumSeconds    float64 `json:"sum_seconds"`
	MinSeconds    float64 `json:"min_seconds"`
	MaxSeconds    float64 `json:"max_seconds"`
	LastAt        string  `json:"last_at,omitempty"`
}

// guard wraps a /tools handler with the ingress auth gate when one is
// configured. With no gate the handler is served as-is: auth is an ingress
// option, not a pipeline concern.
func (s *Server) guard(action string, next http.HandlerFunc) http.Handler {
	if s.cfg.Auth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		op, err := s.cfg.Auth.Authenticator.Authenticate(r.Context(), r.Header)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrMissingCredentials),
			errors.Is(err, auth.ErrInvalidCredentials),
			errors.Is(err, auth.ErrKeyExpired):
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		default:
			writeError(w, http.StatusInternalServerError, "authentication backend unavailable")
			return
		}

		// GET /tools has no {name}; policy sees the wildcard so a role's
		// listing grant does not depend on naming every tool.
		tool := r.PathValue("name")
		if tool == "" {
			tool = "*"
		}
		if err := s.cfg.Auth.Policy.Authorize(op, tool, action); err != nil {
			writeError(w, http.StatusForbidden, "not authorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithOperator(r.Context(), op)))
	})
}
