package result

import (
	"errors"
	"testing"
	"time"
)

func TestSuccess_ZeroExitHasNoErrorType(t *testing.T) {
	r := Success("out", "", false, false, 0, false, 10*time.Millisecond, "abc")
	if r.ErrorType != "" {
		t.Errorf("ErrorType = %q, want empty", r.ErrorType)
	}
	if r.Error != "" {
		t.Errorf("Error = %q, want empty", r.Error)
	}
	if r.Metadata == nil {
		t.Error("Metadata must never be nil")
	}
}

func TestSuccess_NonZeroExitStillNoErrorType(t *testing.T) {
	r := Success("", "boom", false, false, 2, false, 10*time.Millisecond, "abc")
	if r.ErrorType != "" {
		t.Errorf("ErrorType = %q, want empty for a clean non-zero exit", r.ErrorType)
	}
	if r.ReturnCode != 2 {
		t.Errorf("ReturnCode = %d, want 2", r.ReturnCode)
	}
}

func TestSuccess_TimeoutSetsTaxonomy(t *testing.T) {
	r := Success("", "", false, false, 124, true, 2*time.Second, "abc")
	if r.ErrorType != ErrorTypeTimeout {
		t.Errorf("ErrorType = %q, want %q", r.ErrorType, ErrorTypeTimeout)
	}
	if !r.TimedOut {
		t.Error("TimedOut should be true")
	}
	if r.Metadata["recovery_suggestion"] == "" {
		t.Error("expected a recovery_suggestion in metadata")
	}
}

func TestExecutionTimeFloor(t *testing.T) {
	r := Success("", "", false, false, 0, false, 0, "abc")
	if r.ExecutionTime < minExecutionTime {
		t.Errorf("ExecutionTime = %v, want >= %v", r.ExecutionTime, minExecutionTime)
	}
}

func TestValidation_ReturnCodeAndTaxonomy(t *testing.T) {
	r := Validation(errors.New("bad target"), time.Microsecond, "xyz")
	if r.ErrorType != ErrorTypeValidation {
		t.Errorf("ErrorType = %q, want %q", r.ErrorType, ErrorTypeValidation)
	}
	if r.ReturnCode != 1 {
		t.Errorf("ReturnCode = %d, want 1", r.ReturnCode)
	}
	if r.CorrelationID != "xyz" {
		t.Errorf("CorrelationID = %q, want xyz", r.CorrelationID)
	}
}

func TestNotFound_ReturnCode127(t *testing.T) {
	r := NotFound(errors.New("nmap: not found"), time.Millisecond, "xyz")
	if r.ReturnCode != 127 {
		t.Errorf("ReturnCode = %d, want 127", r.ReturnCode)
	}
	if r.ErrorType != ErrorTypeNotFound {
		t.Errorf("ErrorType = %q, want %q", r.ErrorType, ErrorTypeNotFound)
	}
}

func TestCircuitOpen_SetsRetryAfter(t *testing.T) {
	r := CircuitOpen(30*time.Second, time.Microsecond, "xyz")
	if r.ErrorType != ErrorTypeCircuitBreakerOpen {
		t.Errorf("ErrorType = %q, want %q", r.ErrorType, ErrorTypeCircuitBreakerOpen)
	}
	ra, ok := r.Metadata["retry_after"].(float64)
	if !ok || ra != 30 {
		t.Errorf("retry_after = %v, want 30", r.Metadata["retry_after"])
	}
}

func TestMetadataNeverNil(t *testing.T) {
	results := []Result{
		Success("", "", false, false, 0, false, time.Millisecond, ""),
		Validation(nil, time.Millisecond, ""),
		NotFound(nil, time.Millisecond, ""),
		CircuitOpen(time.Second, time.Millisecond, ""),
		Disabled(time.Millisecond, ""),
		ExecutionError(errors.New("spawn failed"), time.Millisecond, ""),
		Unknown(errors.New("panic"), time.Millisecond, ""),
	}
	for i, r := range results {
		if r.Metadata == nil {
			t.Errorf("result[%d].Metadata is nil", i)
		}
	}
}
