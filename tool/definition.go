package tool

import "time"

// BreakerConfig declares the per-tool circuit breaker tuning from the
// registry. It mirrors resilience.CircuitBreakerConfig's numeric fields
// without importing resilience, so a Definition stays plain data.
type BreakerConfig struct {
	FailureThreshold  int
	RecoveryTimeout   time.Duration
	SuccessThreshold  int
	TimeoutMultiplier float64
	MaxTimeout        time.Duration
	EnableJitter      bool
}

// Definition is the immutable, per-process description of a registered
// tool: the binary it wraps, the flags it accepts, and its resource limits.
type Definition struct {
	// Name is the tool's registry key, e.g. "nmap".
	Name string

	// CommandName is the binary resolved via PATH at execution time. It may
	// differ from Name (e.g. a "port-scan" tool wrapping the "nmap" binary).
	CommandName string

	// Description is a short human-readable summary, surfaced by list_tools.
	Description string

	// Category groups tools for observability (e.g. "scanner", "enumerator").
	Category string

	// AllowedFlags is a prefix allow-list for tokens beginning with '-'. A
	// nil/empty slice means the tool accepts no flag tokens at all.
	AllowedFlags []string

	// DefaultTimeout is used when a request omits timeout_sec.
	DefaultTimeout time.Duration

	// Concurrency bounds simultaneous in-flight executions of this tool.
	Concurrency int

	// Breaker tunes the per-tool circuit breaker.
	Breaker BreakerConfig

	// Unsafe tools are never eligible for the optional result cache: their
	// output reflects live, mutable external state (e.g. a port scan) that
	// a stale cache entry would misrepresent.
	Unsafe bool
}

// excludedPrefixes lists name prefixes that Registry.Discover never
// registers, matching the conventional markers for test/scaffold tools.
var excludedPrefixes = []string{"Test", "Mock", "Base", "Abstract", "Example", "_"}

func hasExcludedPrefix(name string) bool {
	for _, p := range excludedPrefixes {
		if len(name) >= len(p) && name[:len(p)] == p {
			return true
		}
	}
	return false
}
