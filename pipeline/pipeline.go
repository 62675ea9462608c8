package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/toolexec/cache"
	"github.com/jonwraymond/toolexec/observe"
	"github.com/jonwraymond/toolexec/procexec"
	"github.com/jonwraymond/toolexec/resilience"
	"github.com/jonwraymond/toolexec/result"
	"github.com/jonwraymond/toolexec/tool"
	"github.com/jonwraymond/toolexec/validate"
)

// errExecutionFailed marks a completed-but-unsuccessful run (non-zero exit
// or timeout) to the circuit breaker. It never reaches a caller: Execute
// always replaces it with the already-built result.Result before returning.
var errExecutionFailed = errors.New("pipeline: tool execution did not succeed")

// CacheConfig bundles the optional result cache with the policy and keyer
// governing it. A nil Cache disables caching regardless of Policy.
type CacheConfig struct {
	Cache  cache.Cache
	Policy cache.Policy
	Keyer  cache.Keyer
}

// ToolSnapshot is a point-in-time view of one registered tool, consumed by
// the HTTP transport's /tools listing and /events SSE loop.
type ToolSnapshot struct {
	Name         string
	Enabled      bool
	BreakerState string
	Stats        observe.ToolStats
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithExecOptions overrides the default procexec.Options (stdout/stderr caps
// and resource limits) applied to every spawned process.
func WithExecOptions(opts procexec.Options) Option {
	return func(p *Pipeline) { p.execOpts = opts }
}

// WithCache enables the optional idempotency cache.
func WithCache(cfg CacheConfig) Option {
	return func(p *Pipeline) { p.cacheCfg = cfg }
}

// WithTracer overrides the default no-op Tracer.
func WithTracer(t observe.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithLogger overrides the default stderr Logger.
func WithLogger(l observe.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithMonitorInterval overrides the default 5s monitoring tick cadence.
func WithMonitorInterval(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.monitorInterval = d
		}
	}
}

// Pipeline is the execution orchestrator: it owns no tool state itself,
// composing the registry, gate manager, and metrics sink that do.
type Pipeline struct {
	registry *tool.Registry
	gates    *tool.GateManager
	metrics  observe.Metrics
	tracer   observe.Tracer
	logger   observe.Logger
	execOpts procexec.Options
	cacheCfg CacheConfig

	monitorInterval time.Duration
	startOnce       sync.Once
	monitorCancel   context.CancelFunc
	monitorDone     chan struct{}

	inFlight atomic.Int64
	seq      atomic.Int64
}

// New builds a Pipeline over an already-populated registry and gate manager.
// It installs itself as the registry's breaker-transition hook, so
// constructing a second Pipeline over the same registry replaces the first
// one's metrics wiring.
func New(registry *tool.Registry, gates *tool.GateManager, metrics observe.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry:        registry,
		gates:           gates,
		metrics:         metrics,
		tracer:          observe.NewNoopTracer(),
		logger:          observe.NewLogger("info"),
		execOpts:        procexec.DefaultOptions(),
		cacheCfg:        CacheConfig{Policy: cache.NoCachePolicy()},
		monitorInterval: 5 * time.Second,
	}
	for _, o := range opts {
		o(p)
	}

	registry.SetTransitionHook(func(name string, from, to resilience.State) {
		metrics.RecordBreakerTransition(context.Background(), name, from.String(), to.String())
		p.logger.Info(context.Background(), "breaker transition",
			observe.Field{Key: "tool", Value: name},
			observe.Field{Key: "from", Value: from.String()},
			observe.Field{Key: "to", Value: to.String()},
		)
	})

	return p
}

// Start launches the monitoring task. No background goroutine runs before
// a transport explicitly calls Start. Idempotent; subsequent calls are
// no-ops.
func (p *Pipeline) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		monitorCtx, cancel := context.WithCancel(ctx)
		p.monitorCancel = cancel
		p.monitorDone = make(chan struct{})
		go p.monitorLoop(monitorCtx)
	})
}

func (p *Pipeline) monitorLoop(ctx context.Context) {
	defer close(p.monitorDone)
	ticker := time.NewTicker(p.monitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.logger.Debug(ctx, "pipeline monitor tick",
				observe.Field{Key: "in_flight", Value: p.inFlight.Load()},
			)
		}
	}
}

// Shutdown stops the monitoring task and waits up to grace for in-flight
// executions to drain. It returns ctx.Err() if the context is canceled
// first, or an error if grace elapses with executions still outstanding.
func (p *Pipeline) Shutdown(ctx context.Context, grace time.Duration) error {
	if p.monitorCancel != nil {
		p.monitorCancel()
		<-p.monitorDone
	}

	deadline := time.NewTimer(grace)
	defer deadline.Stop()
	poll := time.NewTicker(20 * time.Millisecond)
	defer poll.Stop()

	for {
		if p.inFlight.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return errors.New("pipeline: shutdown grace period elapsed with executions still in flight")
		case <-poll.C:
		}
	}
}

// Snapshot returns a point-in-time view of every registered tool, for the
// HTTP transport's /tools listing and /events SSE loop.
func (p *Pipeline) Snapshot() []ToolSnapshot {
	stats := p.metrics.Snapshot()
	listings := p.registry.List()
	out := make([]ToolSnapshot, 0, len(listings))
	for _, l := range listings {
		breaker := p.registry.Breaker(l.Name)
		out = append(out, ToolSnapshot{
			Name:         l.Name,
			Enabled:      l.Enabled,
			BreakerState: breaker.State().String(),
			Stats:        stats[l.Name],
		})
	}
	return out
}

// Execute runs the full pipeline for one request against toolName. It
// always returns a result.Result, never a Go error: every request produces
// exactly one structured Result, with failures embedded in ErrorType.
func (p *Pipeline) Execute(ctx context.Context, toolName string, req validate.Request) result.Result {
	start := time.Now()
	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = strconv.FormatInt(p.seq.Add(1), 10) + "-" + strconv.FormatInt(time.Now().UnixMilli(), 10)
	}

	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	p.metrics.SetActive(ctx, toolName, 1)
	defer p.metrics.SetActive(ctx, toolName, -1)

	meta := observe.ToolMeta{Name: toolName}
	ctx, span := p.tracer.StartSpan(ctx, meta)

	final := p.execute(ctx, toolName, req, correlationID, start, &meta)

	var spanErr error
	if final.Error != "" {
		spanErr = errors.New(final.Error)
	}
	p.tracer.EndSpan(span, spanErr)
	p.metrics.RecordExecution(ctx, meta, time.Since(start), spanErr)

	return final
}

func (p *Pipeline) execute(ctx context.Context, toolName string, req validate.Request, correlationID string, start time.Time, meta *observe.ToolMeta) result.Result {
	// Step: registry lookup.
	def, ok := p.registry.Get(toolName)
	if !ok {
		final := result.NotFound(errors.New("tool is not registered"), time.Since(start), correlationID)
		p.recordOutcome(ctx, toolName, start, final)
		return final
	}
	meta.Category = def.Category
	meta.ID = def.Name

	if !p.registry.IsEnabled(toolName) {
		final := result.Disabled(time.Since(start), correlationID)
		p.recordOutcome(ctx, toolName, start, final)
		return final
	}

	// Step: optional cache lookup, consulted right after tool lookup. A hit
	// never touches the breaker, gate, or executor.
	cacheEligible := p.cacheEligible(def)
	var cacheKey string
	if cacheEligible {
		cacheKey = p.cacheCfg.Keyer.Key(toolName, req.Target, req.ExtraArgs)
		if raw, hit := p.cacheCfg.Cache.Get(ctx, cacheKey); hit {
			var cached result.Result
			if json.Unmarshal(raw, &cached) == nil {
				cached.CorrelationID = correlationID
				if cached.Metadata == nil {
					cached.Metadata = map[string]any{}
				}
				cached.Metadata["cache_hit"] = true
				p.recordOutcome(ctx, toolName, start, cached)
				return cached
			}
		}
	}

	breaker := p.registry.Breaker(toolName)

	// Step: breaker pre-check, before the (potentially slow) gate wait.
	if breaker.State() == resilience.StateOpen {
		final := result.CircuitOpen(breaker.RetryAfter(), time.Since(start), correlationID)
		p.recordOutcome(ctx, toolName, start, final)
		return final
	}

	// Step: gate acquire.
	if err := p.gates.Acquire(ctx, toolName, def.Concurrency); err != nil {
		final := result.Failed(result.ErrorTypeResourceExhausted, err, 1, time.Since(start), correlationID)
		p.recordOutcome(ctx, toolName, start, final)
		return final
	}
	defer p.gates.Release(toolName, def.Concurrency)

	var final result.Result
	breakerErr := breaker.Execute(ctx, func(bctx context.Context) error {
		// Step: validate, inline inside the breaker call and after gate
		// acquire. Validation itself has no side effects, but a validation
		// failure still counts as a completed breaker call (a success).
		validated, verr := validate.Validate(req, validate.Constraints{
			AllowedFlags:   def.AllowedFlags,
			DefaultTimeout: def.DefaultTimeout,
		})
		if verr != nil {
			final = result.Validation(verr, time.Since(start), correlationID)
			return nil
		}

		argv := make([]string, 0, len(validated.Args)+1)
		argv = append(argv, validated.Args...)
		argv = append(argv, validated.Target)

		raw := procexec.Execute(bctx, def.CommandName, argv, validated.Timeout, p.execOpts)
		switch {
		case errors.Is(raw.Err, procexec.ErrNotFound):
			final = result.NotFound(raw.Err, time.Since(start), correlationID)
			return nil
		case raw.Err != nil:
			final = result.ExecutionError(raw.Err, time.Since(start), correlationID)
			return raw.Err
		default:
			success := raw.ReturnCode == 0 && !raw.TimedOut
			final = result.Success(raw.Stdout, raw.Stderr, raw.TruncatedStdout, raw.TruncatedStderr,
				raw.ReturnCode, raw.TimedOut, time.Since(start), correlationID)
			if !success {
				return errExecutionFailed
			}
			return nil
		}
	})

	if errors.Is(breakerErr, resilience.ErrCircuitOpen) {
		final = result.CircuitOpen(breaker.RetryAfter(), time.Since(start), correlationID)
	}

	if cacheEligible && final.ErrorType == "" && cacheKey != "" {
		p.writeCache(ctx, cacheKey, final)
	}

	p.recordOutcome(ctx, toolName, start, final)
	return final
}

func (p *Pipeline) cacheEligible(def tool.Definition) bool {
	if p.cacheCfg.Cache == nil || p.cacheCfg.Keyer == nil {
		return false
	}
	if !p.cacheCfg.Policy.ShouldCache() {
		return false
	}
	if def.Unsafe && !p.cacheCfg.Policy.AllowUnsafe {
		return false
	}
	return true
}

func (p *Pipeline) writeCache(ctx context.Context, key string, final result.Result) {
	if err := cache.ValidateKey(key); err != nil {
		return
	}
	payload, err := json.Marshal(final)
	if err != nil {
		return
	}
	ttl := p.cacheCfg.Policy.EffectiveTTL(0)
	_ = p.cacheCfg.Cache.Set(ctx, key, payload, ttl)
}

func (p *Pipeline) recordOutcome(ctx context.Context, toolName string, start time.Time, final result.Result) {
	p.metrics.RecordOutcome(ctx, toolName, time.Since(start), classifyOutcome(final.ErrorType), final.ErrorType)
}

// classifyOutcome buckets a Result's error taxonomy tag into the coarse
// success/failure/rejected label RecordOutcome expects. "Rejected" covers
// everything the pipeline declined before or without a real execution
// attempt (bad input, no capacity, breaker open), none of which trip the
// breaker; "failure" covers an execution that was attempted and did not
// succeed.
func classifyOutcome(errorType string) string {
	switch errorType {
	case "":
		return "success"
	case result.ErrorTypeResourceExhausted, result.ErrorTypeCircuitBreakerOpen, result.ErrorTypeValidation, result.ErrorTypeNotFound:
		return "rejected"
	default:
		return "failure"
	}
}
