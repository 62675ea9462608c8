package observe

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records execution metrics for tools.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordExecution records a tool execution with duration and error status.
	RecordExecution(ctx context.Context, meta ToolMeta, duration time.Duration, err error)

	// RecordOutcome records a pipeline execution outcome labeled by tool,
	// outcome class (success|failure|rejected), and error taxonomy tag
	// (empty for success). It also updates the local aggregate used by the
	// /metrics JSON fallback.
	RecordOutcome(ctx context.Context, tool string, duration time.Duration, outcome, errorType string)

	// RecordBreakerTransition records a circuit breaker state change.
	RecordBreakerTransition(ctx context.Context, tool, fromState, toState string)

	// SetActive adjusts the in-flight execution gauge for tool by delta
	// (+1 on acquire, -1 on release).
	SetActive(ctx context.Context, tool string, delta int64)

	// Snapshot returns the current local aggregate, keyed by tool name, for
	// a Prometheus-less /metrics JSON fallback.
	Snapshot() map[string]ToolStats
}

// ToolStats is a per-tool running aggregate: count, sum, min, max, and the
// timestamp of the most recent execution. It backs the local /stats-style
// readout; it is not a replacement for the OpenTelemetry exposition.
type ToolStats struct {
	Count         int64
	SuccessCount  int64
	FailureCount  int64
	RejectedCount int64
	SumSeconds    float64
	MinSeconds    float64
	MaxSeconds    float64
	LastAt        time.Time
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter        metric.Meter
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram

	outcomeCount    metric.Int64Counter
	transitionCount metric.Int64Counter
	activeGauge     metric.Int64UpDownCounter

	mu    sync.Mutex
	stats map[string]*ToolStats
}

// NewMetrics builds the Metrics implementation the pipeline records against,
// backed by obs's configured meter (a real OTel meter, or the no-op one when
// metrics are disabled).
func NewMetrics(obs Observer) (Metrics, error) {
	return newMetrics(obs.Meter())
}

// NewNoopMetrics returns a Metrics that discards everything, for tests and
// for callers that want the pipeline shape without an Observer.
func NewNoopMetrics() Metrics {
	return &noopMetrics{}
}

// newMetrics creates a new Metrics instance with the given meter.
func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	totalCount, err := meter.Int64Counter(
		"tool.exec.total",
		metric.WithDescription("Total number of tool executions"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"tool.exec.errors",
		metric.WithDescription("Total number of tool execution errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"tool.exec.duration_ms",
		metric.WithDescription("Tool execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	outcomeCount, err := meter.Int64Counter(
		"tool.exec.outcome",
		metric.WithDescription("Tool executions labeled by outcome and error_type"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	transitionCount, err := meter.Int64Counter(
		"tool.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	activeGauge, err := meter.Int64UpDownCounter(
		"tool.exec.active",
		metric.WithDescription("In-flight tool executions"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:           meter,
		totalCount:      totalCount,
		errorCount:      errorCount,
		durationHist:    durationHist,
		outcomeCount:    outcomeCount,
		transitionCount: transitionCount,
		activeGauge:     activeGauge,
		stats:           make(map[string]*ToolStats),
	}, nil
}

// RecordExecution records metrics for a tool execution.
func (m *metricsImpl) RecordExecution(ctx context.Context, meta ToolMeta, duration time.Duration, err error) {
	// Build common attributes
	attrs := []attribute.KeyValue{
		attribute.String("tool.id", meta.ToolID()),
		attribute.String("tool.name", meta.Name),
	}

	// Add namespace if present
	if meta.Namespace != "" {
		attrs = append(attrs, attribute.String("tool.namespace", meta.Namespace))
	}

	opt := metric.WithAttributes(attrs...)

	// Always increment total counter
	m.totalCount.Add(ctx, 1, opt)

	// Increment error counter on failure
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}

	// Record duration in milliseconds
	durationMs := float64(duration.Milliseconds())
	m.durationHist.Record(ctx, durationMs, opt)
}

// RecordOutcome records a pipeline-classified outcome and folds it into the
// local per-tool aggregate consumed by Snapshot.
func (m *metricsImpl) RecordOutcome(ctx context.Context, tool string, duration time.Duration, outcome, errorType string) {
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("outcome", outcome),
		attribute.String("error_type", errorType),
	)
	m.outcomeCount.Add(ctx, 1, attrs)

	seconds := duration.Seconds()
	m.mu.Lock()
	s, ok := m.stats[tool]
	if !ok {
		s = &ToolStats{MinSeconds: seconds, MaxSeconds: seconds}
		m.stats[tool] = s
	}
	s.Count++
	switch outcome {
	case "success":
		s.SuccessCount++
	case "failure":
		s.FailureCount++
	case "rejected":
		s.RejectedCount++
	}
	s.SumSeconds += seconds
	if s.Count == 1 || seconds < s.MinSeconds {
		s.MinSeconds = seconds
	}
	if s.Count == 1 || seconds > s.MaxSeconds {
		s.MaxSeconds = seconds
	}
	s.LastAt = time.Now()
	m.mu.Unlock()
}

// RecordBreakerTransition records one circuit breaker state change.
func (m *metricsImpl) RecordBreakerTransition(ctx context.Context, tool, fromState, toState string) {
	m.transitionCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("from_state", fromState),
		attribute.String("to_state", toState),
	))
}

// SetActive adjusts the in-flight execution gauge for tool.
func (m *metricsImpl) SetActive(ctx context.Context, tool string, delta int64) {
	m.activeGauge.Add(ctx, delta, metric.WithAttributes(attribute.String("tool", tool)))
}

// Snapshot returns a copy of the local per-tool aggregate, keyed by tool
// name.
func (m *metricsImpl) Snapshot() map[string]ToolStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]ToolStats, len(m.stats))
	names := make([]string, 0, len(m.stats))
	for name := range m.stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out[name] = *m.stats[name]
	}
	return out
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordExecution(ctx context.Context, meta ToolMeta, duration time.Duration, err error) {
}

func (m *noopMetrics) RecordOutcome(ctx context.Context, tool string, duration time.Duration, outcome, errorType string) {
}

func (m *noopMetrics) RecordBreakerTransition(ctx context.Context, tool, fromState, toState string) {
}

func (m *noopMetrics) SetActive(ctx context.Context, tool string, delta int64) {}

func (m *noopMetrics) Snapshot() map[string]ToolStats { return map[string]ToolStats{} }
