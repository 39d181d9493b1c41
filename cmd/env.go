package main

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contentmix/internal/asset"
	"github.com/sells-group/contentmix/internal/config"
	"github.com/sells-group/contentmix/internal/cost"
	"github.com/sells-group/contentmix/internal/flow"
	"github.com/sells-group/contentmix/internal/media"
	"github.com/sells-group/contentmix/internal/metrics"
	"github.com/sells-group/contentmix/internal/perception"
	"github.com/sells-group/contentmix/internal/resilience"
	"github.com/sells-group/contentmix/internal/store"
	"github.com/sells-group/contentmix/pkg/anthropic"
)

// appEnv holds the collaborators a command needs, built from cfg.
type appEnv struct {
	Store      store.Store
	Client     anthropic.Client
	Inferencer *flow.AnthropicInferencer
	Executor   *flow.Executor
	Analyzer   *asset.Analyzer
	Metrics    *metrics.Metrics
	Calc       *cost.Calculator

	closers []func() error
}

// Close releases everything the env opened, newest first.
func (e *appEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			zap.L().Warn("close failed", zap.Error(err))
		}
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "contentmix.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate(config.ModeStore); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// pricingRates overlays configured prices on the built-in rate table.
func pricingRates(p config.PricingConfig) cost.Rates {
	rates := cost.DefaultRates()
	for model, r := range p.Anthropic {
		rates.Anthropic[model] = cost.ModelRate{
			Input:         r.Input,
			Output:        r.Output,
			BatchDiscount: r.BatchDiscount,
			CacheWriteMul: r.CacheWriteMul,
			CacheReadMul:  r.CacheReadMul,
		}
	}
	if p.Perception.VisionPerFeature > 0 {
		rates.Perception.VisionPerFeature = p.Perception.VisionPerFeature
	}
	if p.Perception.VideoPerMinute > 0 {
		rates.Perception.VideoPerMinute = p.Perception.VideoPerMinute
	}
	if p.Perception.SpeechPer15s > 0 {
		rates.Perception.SpeechPer15s = p.Perception.SpeechPer15s
	}
	return rates
}

func breakerConfig(c config.CircuitConfig) resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		FailureThreshold:  c.FailureThreshold,
		ResetTimeout:      time.Duration(c.ResetTimeoutSecs) * time.Second,
		HalfOpenMaxTrials: c.HalfOpenTrials,
	}
}

// initEnv wires the store, inference client, flows and the upload
// pipeline. Perception and the media archive are attached when configured.
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &appEnv{
		Metrics: metrics.New(),
		Calc:    cost.NewCalculator(pricingRates(cfg.Pricing)),
	}
	fail := func(err error) (*appEnv, error) {
		env.Close()
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return fail(err)
	}
	env.Store = st
	env.closers = append(env.closers, st.Close)

	var clientOpts []anthropic.ClientOption
	if cfg.Anthropic.BaseURL != "" {
		clientOpts = append(clientOpts, anthropic.WithBaseURL(cfg.Anthropic.BaseURL))
	}
	env.Client = anthropic.NewClient(cfg.Anthropic.Key, clientOpts...)

	bc := breakerConfig(cfg.Circuit)
	bc.OnStateChange = func(from, to resilience.CircuitState) {
		env.Metrics.CircuitChanged("anthropic", from, to)
		zap.L().Warn("circuit state changed",
			zap.String("service", "anthropic"), zap.Stringer("from", from), zap.Stringer("to", to))
	}
	env.Inferencer = flow.NewAnthropicInferencer(env.Client, cfg.Anthropic, resilience.NewCircuitBreaker(bc), env.Calc)

	env.Executor = flow.NewExecutor(env.Inferencer,
		flow.WithRecorder(st),
		flow.WithRecorder(env.Metrics),
		flow.WithSumTolerance(cfg.Attribution.Tolerance),
		flow.WithTotalRevenue(cfg.Attribution.TotalRevenue),
	)

	opts := []asset.Option{asset.WithMaxBytes(cfg.Media.MaxBytes)}

	breakers := resilience.NewServiceBreakers(breakerConfig(cfg.Circuit), env.Metrics.CircuitChanged)
	px, err := perception.NewExtractor(ctx, cfg.Perception, breakers, env.Calc)
	if err != nil {
		return fail(err)
	}
	env.closers = append(env.closers, px.Close)
	opts = append(opts, asset.WithPerception(px))

	if cfg.Media.Bucket != "" {
		ar, err := media.NewGCSArchive(ctx, cfg.Media.Bucket, cfg.Media.Prefix, perception.ClientOptions(cfg.Perception)...)
		if err != nil {
			return fail(err)
		}
		env.closers = append(env.closers, ar.Close)
		opts = append(opts, asset.WithArchive(ar))
	}

	env.Analyzer = asset.NewAnalyzer(env.Executor, st, opts...)
	return env, nil
}

// exitCode maps a command error to a process exit status: 2 for invalid
// input, 3 for schema failures, 4 for collaborator failures.
func exitCode(err error) int {
	var fe *flow.FlowError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &fe):
		switch fe.Kind {
		case flow.KindInput:
			return 2
		case flow.KindSchema:
			return 3
		default:
			return 4
		}
	case errors.Is(err, asset.ErrInvalidUpload):
		return 2
	default:
		return 1
	}
}
