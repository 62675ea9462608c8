package resilience

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the service recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of failures before opening the circuit.
	// Default: 5
	MaxFailures int

	// ResetTimeout is how long to wait before attempting recovery.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// HalfOpenMaxRequests is the max requests allowed in half-open state.
	// Default: 1
	HalfOpenMaxRequests int

	// SuccessThreshold is how many half-open successes are needed to close
	// the circuit. Declared per tool: 1 for cheap/fast probes, 2 for tools
	// whose single false-positive success is expensive to trust.
	// Default: 1
	SuccessThreshold int

	// TimeoutMultiplier scales ResetTimeout each time a HalfOpen probe fails,
	// so repeated trips back off exponentially instead of retrying at a
	// fixed cadence.
	// Default: 1.5
	TimeoutMultiplier float64

	// MaxTimeout caps the recovery timeout growth from TimeoutMultiplier.
	// Default: 300 seconds
	MaxTimeout time.Duration

	// EnableJitter adds up to ±10% jitter to the recovery timeout, clamped
	// non-negative, to avoid synchronized retries across many breakers.
	EnableJitter bool

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)

	// IsFailure determines if an error should count as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool
}

// CircuitBreaker implements the circuit breaker pattern.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu             sync.Mutex
	state          State
	failures       int
	successes      int
	lastFailure    time.Time
	halfOpenCount  int
	currentTimeout time.Duration // base timeout, grows with TimeoutMultiplier
	activeTimeout  time.Duration // jittered timeout in effect for the current Open period
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 1
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.TimeoutMultiplier <= 0 {
		config.TimeoutMultiplier = 1.5
	}
	if config.MaxTimeout <= 0 {
		config.MaxTimeout = 300 * time.Second
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}

	return &CircuitBreaker{
		config:         config,
		state:          StateClosed,
		currentTimeout: config.ResetTimeout,
		activeTimeout:  config.ResetTimeout,
	}
}

// Execute runs the operation through the circuit breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := op(ctx)
	cb.afterRequest(err)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// IsOpen reports whether the breaker is currently in its Open state. It
// satisfies health.BreakerStater so health probes can report Degraded
// without importing package resilience's full state machine.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// Reset resets the circuit breaker to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState := cb.state
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenCount = 0
	cb.currentTimeout = cb.config.ResetTimeout
	cb.activeTimeout = cb.config.ResetTimeout

	if oldState != StateClosed && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(oldState, StateClosed)
	}
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.currentStateLocked()

	switch state {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenCount >= cb.config.HalfOpenMaxRequests {
			return ErrCircuitOpen
		}
		cb.halfOpenCount++
	}

	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	isFailure := cb.config.IsFailure(err)
	oldState := cb.state

	switch cb.state {
	case StateClosed:
		if isFailure {
			cb.failures++
			cb.lastFailure = time.Now()
			if cb.failures >= cb.config.MaxFailures {
				cb.activeTimeout = cb.jitteredTimeout()
				cb.setState(StateOpen)
			}
		} else {
			// Reset failure count on success
			cb.failures = 0
		}

	case StateHalfOpen:
		// The probe that started this request has finished; free its slot
		// so a subsequent probe can be admitted even if this state persists
		// (SuccessThreshold > 1 keeps HalfOpen across several successes).
		if cb.halfOpenCount > 0 {
			cb.halfOpenCount--
		}
		if isFailure {
			// Failed during probe, go back to open with a longer timeout
			cb.lastFailure = time.Now()
			cb.currentTimeout = time.Duration(float64(cb.currentTimeout) * cb.config.TimeoutMultiplier)
			if cb.currentTimeout > cb.config.MaxTimeout {
				cb.currentTimeout = cb.config.MaxTimeout
			}
			cb.activeTimeout = cb.jitteredTimeout()
			cb.setState(StateOpen)
		} else {
			cb.successes++
			if cb.successes >= cb.config.SuccessThreshold {
				// Probe succeeded enough times, close the circuit
				cb.setState(StateClosed)
				cb.failures = 0
				cb.successes = 0
				cb.currentTimeout = cb.config.ResetTimeout
			}
		}
	}

	if oldState != cb.state && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(oldState, cb.state)
	}
}

func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.activeTimeout {
		cb.state = StateHalfOpen
		cb.halfOpenCount = 0
		cb.successes = 0
		if cb.config.OnStateChange != nil {
			cb.config.OnStateChange(StateOpen, StateHalfOpen)
		}
	}
	return cb.state
}

func (cb *CircuitBreaker) setState(state State) {
	cb.state = state
	if state == StateHalfOpen {
		cb.halfOpenCount = 0
	}
}

// jitteredTimeout returns the base currentTimeout adjusted by up to ±10%
// jitter when EnableJitter is set, clamped to [0, MaxTimeout]. Computed once
// at trip time so the deadline doesn't drift on every status read.
func (cb *CircuitBreaker) jitteredTimeout() time.Duration {
	timeout := cb.currentTimeout
	if !cb.config.EnableJitter || timeout <= 0 {
		return timeout
	}
	spread := float64(timeout) * 0.10
	delta := (rand.Float64()*2 - 1) * spread // #nosec G404 -- timing jitter, not security-sensitive
	jittered := time.Duration(float64(timeout) + delta)
	if jittered < 0 {
		jittered = 0
	}
	if jittered > cb.config.MaxTimeout {
		jittered = cb.config.MaxTimeout
	}
	return jittered
}

// RetryAfter returns the remaining duration before an Open breaker will
// admit a HalfOpen probe. Zero if the breaker is not Open.
func (cb *CircuitBreaker) RetryAfter() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.currentStateLocked() != StateOpen {
		return 0
	}
	remaining := cb.activeTimeout - time.Since(cb.lastFailure)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerMetrics{
		State:          cb.currentStateLocked(),
		Failures:       cb.failures,
		Successes:      cb.successes,
		LastFailure:    cb.lastFailure,
		CurrentTimeout: cb.currentTimeout,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State          State
	Failures       int
	Successes      int
	LastFailure    time.Time
	CurrentTimeout time.Duration
}
