package observe

import (
	"context"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// TestMetrics_OutcomeCounterIncrements verifies tool.exec.outcome carries
// the outcome and error_type labels.
func TestMetrics_OutcomeCounterIncrements(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := newMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	m.RecordOutcome(context.Background(), "nmap", 50*time.Millisecond, "failure", "timeout")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	found := findMetric(rm, "tool.exec.outcome")
	if found == nil {
		t.Fatal("tool.exec.outcome metric not found")
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", found.Data)
	}
	if len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 1 {
		t.Fatalf("unexpected data points: %+v", sum.DataPoints)
	}

	attrs := sum.DataPoints[0].Attributes
	if v, ok := attrs.Value("outcome"); !ok || v.AsString() != "failure" {
		t.Error("outcome attribute missing or wrong")
	}
	if v, ok := attrs.Value("error_type"); !ok || v.AsString() != "timeout" {
		t.Error("error_type attribute missing or wrong")
	}
}

// TestMetrics_SnapshotAggregates verifies the local per-tool aggregate.
func TestMetrics_SnapshotAggregates(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	m, err := newMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	ctx := context.Background()
	m.RecordOutcome(ctx, "dig", 10*time.Millisecond, "success", "")
	m.RecordOutcome(ctx, "dig", 30*time.Millisecond, "success", "")
	m.RecordOutcome(ctx, "dig", 20*time.Millisecond, "failure", "timeout")
	m.RecordOutcome(ctx, "dig", 5*time.Millisecond, "rejected", "validation_error")

	stats, ok := m.Snapshot()["dig"]
	if !ok {
		t.Fatal("snapshot missing tool")
	}
	if stats.Count != 4 || stats.SuccessCount != 2 || stats.FailureCount != 1 || stats.RejectedCount != 1 {
		t.Errorf("counts = %+v", stats)
	}
	if stats.MinSeconds != 0.005 {
		t.Errorf("MinSeconds = %v, want 0.005", stats.MinSeconds)
	}
	if stats.MaxSeconds != 0.03 {
		t.Errorf("MaxSeconds = %v, want 0.03", stats.MaxSeconds)
	}
	if stats.LastAt.IsZero() {
		t.Error("LastAt must be set")
	}
}

// TestMetrics_BreakerTransitionCounter verifies tool.breaker.transitions
// carries from_state/to_state labels.
func TestMetrics_BreakerTransitionCounter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := newMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	m.RecordBreakerTransition(context.Background(), "nmap", "closed", "open")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	found := findMetric(rm, "tool.breaker.transitions")
	if found == nil {
		t.Fatal("tool.breaker.transitions metric not found")
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", found.Data)
	}
	attrs := sum.DataPoints[0].Attributes
	if v, ok := attrs.Value("from_state"); !ok || v.AsString() != "closed" {
		t.Error("from_state attribute missing or wrong")
	}
	if v, ok := attrs.Value("to_state"); !ok || v.AsString() != "open" {
		t.Error("to_state attribute missing or wrong")
	}
}

// TestMetrics_ActiveGaugeBalances verifies the in-flight gauge returns to
// zero once every +1 is matched by a -1.
func TestMetrics_ActiveGaugeBalances(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := newMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.SetActive(ctx, "nmap", 1)
			m.SetActive(ctx, "nmap", -1)
		}()
	}
	wg.Wait()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	found := findMetric(rm, "tool.exec.active")
	if found == nil {
		t.Fatal("tool.exec.active metric not found")
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", found.Data)
	}
	if len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 0 {
		t.Errorf("active gauge = %+v, want 0", sum.DataPoints)
	}
}
