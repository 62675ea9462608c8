package health

import (
	"context"
	"os/exec"
)

// BreakerStater is the minimal view of a circuit breaker the health probes
// need: just enough to tell whether a tool is currently tripped. Kept as an
// interface here (rather than importing package resilience) so health has
// no dependency on the pipeline's resilience choices.
type BreakerStater interface {
	// IsOpen reports whether the breaker is currently in its Open state.
	IsOpen() bool
}

// NewToolAvailabilityChecker returns a Checker reporting whether command
// resolves on PATH. It is read-only and never acquires the tool's
// concurrency gate.
func NewToolAvailabilityChecker(toolName, command string) Checker {
	return NewCheckerFunc(toolName, func(ctx context.Context) Result {
		if _, err := exec.LookPath(command); err != nil {
			return Unhealthy("command not found on PATH", err)
		}
		return Healthy("command resolves on PATH")
	})
}

// NewToolHealthChecker returns a Checker combining PATH availability with
// breaker state: Healthy (resolves, breaker not Open), Degraded (breaker
// Open), Unhealthy (command missing). breaker may be nil for a tool that
// has never executed yet (breaker state is created lazily); a nil breaker
// is treated as not-Open.
func NewToolHealthChecker(toolName, command string, breaker BreakerStater) Checker {
	return NewCheckerFunc(toolName, func(ctx context.Context) Result {
		if _, err := exec.LookPath(command); err != nil {
			return Unhealthy("command not found on PATH", err)
		}
		if breaker != nil && breaker.IsOpen() {
			return Degraded("circuit breaker is open")
		}
		return Healthy("command resolves and breaker is not open")
	})
}
