// Package result assembles the structured, caller-facing Result from a raw
// executor outcome, a validation failure, or a pipeline-level rejection.
// Every field is filled in deterministically, correlation and timing are
// always present, and metadata is never nil.
package result

import (
	"time"
)

// Error taxonomy tags. The strings are stable across releases; callers
// should match on these constants rather than hand-written literals.
const (
	ErrorTypeTimeout            = "timeout"
	ErrorTypeNotFound           = "not_found"
	ErrorTypeValidation         = "validation_error"
	ErrorTypeExecution          = "execution_error"
	ErrorTypeResourceExhausted  = "resource_exhausted"
	ErrorTypeCircuitBreakerOpen = "circuit_breaker_open"
	ErrorTypeUnknown            = "unknown"
)

// minExecutionTime floors ExecutionTime so it is always > 0, even for
// results built before any measurable work happened (e.g. an immediate
// validation rejection).
const minExecutionTime = 0.001

// Result is the structured outcome returned to every caller of execute().
// Every field is always populated; Error/ErrorType are the empty string on
// success.
type Result struct {
	Stdout          string         `json:"stdout"`
	Stderr          string         `json:"stderr"`
	TruncatedStdout bool           `json:"truncated_stdout"`
	TruncatedStderr bool           `json:"truncated_stderr"`
	ReturnCode      int            `json:"returncode"`
	TimedOut        bool           `json:"timed_out"`
	Error           string         `json:"error,omitempty"`
	ErrorType       string         `json:"error_type,omitempty"`
	ExecutionTime   float64        `json:"execution_time"`
	CorrelationID   string         `json:"correlation_id"`
	Metadata        map[string]any `json:"metadata"`
}

// recoverySuggestions maps each error taxonomy tag to the user-visible
// hint carried in metadata.recovery_suggestion.
var recoverySuggestions = map[string]string{
	ErrorTypeTimeout:            "Increase timeout_sec or narrow the scan scope",
	ErrorTypeNotFound:           "Install the required tool or check PATH",
	ErrorTypeValidation:         "Check target and extra_args against the tool's allow-list",
	ErrorTypeExecution:          "Check service logs; the executor could not spawn the child process",
	ErrorTypeResourceExhausted:  "Wait for an in-flight execution to finish or reduce concurrency",
	ErrorTypeCircuitBreakerOpen: "Wait for recovery timeout or check service health",
	ErrorTypeUnknown:            "Check service logs for the underlying fault",
}

// Success builds a Result from a clean (possibly non-zero-exit) executor
// run. ErrorType stays empty even for a non-zero exit: error_type marks a
// failure of the executor itself, never the child's own exit status.
func Success(stdout, stderr string, truncatedStdout, truncatedStderr bool, returnCode int, timedOut bool, elapsed time.Duration, correlationID string) Result {
	r := Result{
		Stdout:          stdout,
		Stderr:          stderr,
		TruncatedStdout: truncatedStdout,
		TruncatedStderr: truncatedStderr,
		ReturnCode:      returnCode,
		TimedOut:        timedOut,
		ExecutionTime:   floorExecutionTime(elapsed),
		CorrelationID:   correlationID,
		Metadata:        map[string]any{},
	}
	if timedOut {
		r.ErrorType = ErrorTypeTimeout
		r.Error = "execution exceeded the configured timeout"
		r.Metadata["recovery_suggestion"] = recoverySuggestions[ErrorTypeTimeout]
	}
	return r
}

// Failed builds an error-class Result for a specific taxonomy tag: spawn
// failures, not-found, resource exhaustion, or an unclassified fault. It is
// not used for validation_error or circuit_breaker_open, which carry extra
// metadata (see Validation and CircuitOpen below).
func Failed(errorType string, err error, returnCode int, elapsed time.Duration, correlationID string) Result {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Result{
		ReturnCode:    returnCode,
		Error:         msg,
		ErrorType:     errorType,
		ExecutionTime: floorExecutionTime(elapsed),
		CorrelationID: correlationID,
		Metadata: map[string]any{
			"recovery_suggestion": recoverySuggestions[errorType],
		},
	}
}

// Validation builds a validation_error Result. No child is ever spawned
// for these; returncode is fixed at 1.
func Validation(err error, elapsed time.Duration, correlationID string) Result {
	r := Failed(ErrorTypeValidation, err, 1, elapsed, correlationID)
	return r
}

// NotFound builds a not_found Result for an unregistered tool or a command
// that failed to resolve on PATH. returncode is fixed at 127.
func NotFound(err error, elapsed time.Duration, correlationID string) Result {
	return Failed(ErrorTypeNotFound, err, 127, elapsed, correlationID)
}

// CircuitOpen builds a circuit_breaker_open Result, attaching retry_after
// (seconds) to metadata so callers know when the next probe is due.
func CircuitOpen(retryAfter time.Duration, elapsed time.Duration, correlationID string) Result {
	r := Failed(ErrorTypeCircuitBreakerOpen, nil, 1, elapsed, correlationID)
	r.Error = "circuit breaker is open"
	r.Metadata["retry_after"] = retryAfter.Seconds()
	return r
}

// Disabled builds a validation_error Result for a tool that exists but is
// currently disabled.
func Disabled(elapsed time.Duration, correlationID string) Result {
	r := Failed(ErrorTypeValidation, nil, 1, elapsed, correlationID)
	r.Error = "tool is disabled"
	return r
}

// ExecutionError builds an execution_error Result for a spawn/OS failure
// the Executor itself raised (as opposed to the child's own exit status).
func ExecutionError(err error, elapsed time.Duration, correlationID string) Result {
	return Failed(ErrorTypeExecution, err, 1, elapsed, correlationID)
}

// Unknown builds an unknown-class Result for an unexpected internal fault
// the orchestrator caught but could not classify.
func Unknown(err error, elapsed time.Duration, correlationID string) Result {
	return Failed(ErrorTypeUnknown, err, 1, elapsed, correlationID)
}

func floorExecutionTime(elapsed time.Duration) float64 {
	seconds := elapsed.Seconds()
	if seconds < minExecutionTime {
		return minExecutionTime
	}
	return seconds
}
