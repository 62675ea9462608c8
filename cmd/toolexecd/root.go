package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolexec/auth"
	"github.com/jonwraymond/toolexec/cache"
	"github.com/jonwraymond/toolexec/health"
	"github.com/jonwraymond/toolexec/internal/config"
	"github.com/jonwraymond/toolexec/observe"
	"github.com/jonwraymond/toolexec/pipeline"
	"github.com/jonwraymond/toolexec/procexec"
	"github.com/jonwraymond/toolexec/resilience"
	"github.com/jonwraymond/toolexec/secret"
	"github.com/jonwraymond/toolexec/tool"
	"github.com/jonwraymond/toolexec/transport/httpserver"
	"github.com/jonwraymond/toolexec/transport/stdio"
)

func newRootCmd() *cobra.Command {
	var (
		transportFlag string
		hostFlag      string
		portFlag      int
		logLevelFlag  string
	)

	cmd := &cobra.Command{
		Use:   "toolexecd",
		Short: "Tool execution orchestration service",
		Long: `toolexecd safely invokes registered security and network utilities
against private targets on behalf of remote callers, with per-tool
concurrency caps, circuit breaking, and supervised subprocess execution.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			// Flags win over environment when set explicitly.
			if cmd.Flags().Changed("transport") {
				cfg.ServerTransport = transportFlag
			}
			if cmd.Flags().Changed("host") {
				cfg.ServerHost = hostFlag
			}
			if cmd.Flags().Changed("port") {
				cfg.ServerPort = portFlag
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevelFlag
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&transportFlag, "transport", "stdio", "transport to serve (stdio|http)")
	cmd.Flags().StringVar(&hostFlag, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().IntVar(&portFlag, "port", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&logLevelFlag, "log-level", "info", "log level (debug|info|warn|error)")

	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver := secret.NewResolver(true)
	cfg, err := cfg.Resolve(ctx, resolver)
	if err != nil {
		return err
	}

	logger := observe.NewLogger(cfg.LogLevel)

	obs, err := observe.NewObserver(ctx, observe.Config{
		ServiceName: "toolexecd",
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   cfg.TracingExporter != "none",
			Exporter:  cfg.TracingExporter,
			SamplePct: 1.0,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  cfg.MetricsExporter != "none",
			Exporter: cfg.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   cfg.LogLevel,
		},
	})
	if err != nil {
		return fmt.Errorf("toolexecd: observability init: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	metrics, err := observe.NewMetrics(obs)
	if err != nil {
		return fmt.Errorf("toolexecd: metrics init: %w", err)
	}
	tracer := observe.NewTracer(obs)

	registry := tool.NewRegistry()
	if err := registry.Discover(tool.Builtin(), cfg.ToolInclude, cfg.ToolExclude); err != nil {
		return err
	}
	gates := tool.NewGateManager()

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithTracer(tracer),
		pipeline.WithExecOptions(procexec.Options{
			MaxStdoutBytes: cfg.MaxStdoutBytes,
			MaxStderrBytes: cfg.MaxStderrBytes,
			Limits: procexec.ResourceLimits{
				CPUSeconds:         cfg.DefaultTimeoutSec,
				MaxMemoryMB:        cfg.MaxMemoryMB,
				MaxFileDescriptors: cfg.MaxFileDescriptors,
			},
		}),
	}
	if cfg.CacheEnabled {
		policy := cache.Policy{DefaultTTL: cfg.CacheTTL, MaxTTL: cfg.CacheTTL}
		opts = append(opts, pipeline.WithCache(pipeline.CacheConfig{
			Cache:  cache.NewMemoryCache(policy),
			Policy: policy,
			Keyer:  cache.RequestKeyer{},
		}))
	}
	pipe := pipeline.New(registry, gates, metrics, opts...)

	agg := health.NewAggregator()
	agg.Register("memory", health.NewMemoryChecker(health.MemoryCheckerConfig{}))
	for _, l := range registry.List() {
		agg.Register(l.Name, health.NewToolHealthChecker(l.Name, l.Command, registry.Breaker(l.Name)))
	}

	logger.Info(ctx, "toolexecd starting",
		observe.Field{Key: "transport", Value: cfg.ServerTransport},
		observe.Field{Key: "tools", Value: len(registry.List())},
	)

	switch cfg.ServerTransport {
	case "stdio":
		srv := stdio.NewServer(pipe, registry, logger)
		if err := srv.Run(ctx, os.Stdin, os.Stdout); err != nil {
			return err
		}
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
		defer cancel()
		return pipe.Shutdown(drainCtx, cfg.ShutdownGracePeriod)

	case "http":
		httpCfg := httpserver.Config{
			Addr:          fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
			ShutdownGrace: cfg.ShutdownGracePeriod,
			RateLimiter: resilience.NewRateLimiter(resilience.RateLimiterConfig{
				Rate:  float64(cfg.DefaultConcurrency * 10),
				Burst: cfg.DefaultConcurrency * 20,
			}),
		}
		if cfg.MetricsExporter == "prometheus" {
			httpCfg.MetricsHandler = promhttp.Handler()
		}
		if cfg.AuthEnabled {
			authCfg, err := buildAuth(cfg)
			if err != nil {
				return err
			}
			httpCfg.Auth = authCfg
		}
		srv := httpserver.NewServer(httpCfg, pipe, registry, metrics, agg, logger)
		return srv.ListenAndServe(ctx)

	default:
		return fmt.Errorf("toolexecd: unsupported transport %q", cfg.ServerTransport)
	}
}

// buildAuth assembles the ingress gate: the seed API key maps to a full
// operator, and operators that carry no roles fall back to a list-only
// reader policy.
func buildAuth(cfg config.Config) (*httpserver.AuthConfig, error) {
	if cfg.APIKeySeed == "" {
		return nil, fmt.Errorf("toolexecd: AUTH_ENABLED is set but API_KEY_SEED is not configured")
	}

	store := auth.NewMemoryKeyStore()
	store.Add(&auth.KeyRecord{
		KeyHash:  auth.HashAPIKey(cfg.APIKeySeed),
		Operator: "operator",
		Roles:    []string{"operator"},
	})

	return &httpserver.AuthConfig{
		Authenticator: auth.NewAPIKeyAuthenticator(store),
		Policy: auth.Policy{
			Roles: map[string]auth.RolePolicy{
				"operator": {
					AllowedTools: []string{"*"},
					Actions:      []string{auth.ActionCall, auth.ActionList, auth.ActionManage},
				},
				"reader": {
					AllowedTools: []string{"*"},
					Actions:      []string{auth.ActionList},
				},
			},
			DefaultRole: "reader",
		},
	}, nil
}
