// Package resilience provides the fault-isolation patterns the execution
// pipeline composes around each spawned tool.
//
// Three patterns cover the pipeline's needs:
//
//   - [CircuitBreaker]: guards each registered tool. Repeated failures
//     (non-zero exits, timeouts, spawn errors) open the circuit so a
//     misbehaving binary or unreachable target stops consuming workers;
//     timed HalfOpen probes test recovery, with exponential backoff on the
//     recovery timeout when probes keep failing.
//
//   - [Bulkhead]: the counting semaphore behind each tool's concurrency
//     gate, bounding how many children of one tool run at once.
//
//   - [RateLimiter]: a token bucket applied at HTTP ingress, ahead of the
//     per-tool gates, throttling abusive callers before they reach the
//     pipeline at all.
//
// # Quick Start
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    MaxFailures:  5,
//	    ResetTimeout: time.Minute,
//	})
//
//	err := cb.Execute(ctx, func(ctx context.Context) error {
//	    return runScan(ctx)
//	})
//	if errors.Is(err, resilience.ErrCircuitOpen) {
//	    // rejected without running; retry after cb.RetryAfter()
//	}
//
// # Thread Safety
//
// All exported types are safe for concurrent use after construction:
//
//   - [CircuitBreaker]: Execute() and State() are mutex-protected
//   - [Bulkhead]: Acquire()/Release() are safe for concurrent use
//   - [RateLimiter]: Allow()/Wait() are mutex-protected
//
// # Error Handling
//
// Sentinel errors (use errors.Is for checking):
//
//   - [ErrCircuitOpen]: Circuit breaker is open, request rejected
//   - [ErrRateLimitExceeded]: Rate limit exceeded and no wait configured
//   - [ErrBulkheadFull]: Bulkhead at maximum concurrency
//
// # Observability Integration
//
// Patterns support callbacks for observability integration:
//
//   - CircuitBreakerConfig.OnStateChange: Called on state transitions
//   - CircuitBreakerConfig.IsFailure: Custom failure classification
//
// # Integration
//
// resilience integrates with the rest of the repository:
//
//   - pipeline: Guard tool execution with the breaker and bulkhead
//   - observe: Connect callbacks to observability middleware
//   - health: Use CircuitBreaker.State() for health checks
package resilience
