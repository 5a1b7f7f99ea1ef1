package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/credit-scorer/internal/cache"
	"github.com/sells-group/credit-scorer/internal/monitoring"
	"github.com/sells-group/credit-scorer/internal/predictor"
	"github.com/sells-group/credit-scorer/internal/resilience"
	"github.com/sells-group/credit-scorer/internal/scoring"
	"github.com/sells-group/credit-scorer/internal/store"
)

// scoringEnv holds everything a command needs to score applicants.
type scoringEnv struct {
	Engine  *scoring.Engine
	Model   *predictor.Adapter
	Metrics *monitoring.Recorder
	Store   store.Store // may be nil
	Cache   cache.Cache // may be nil
}

// envOptions selects the optional dependencies to open.
type envOptions struct {
	Store bool
	Cache bool
}

// Close releases resources held by the environment.
func (se *scoringEnv) Close() {
	if se.Store != nil {
		_ = se.Store.Close()
	}
}

// initEngine validates the configuration, loads the model, and builds the
// engine plus the requested store and cache. Callers should defer env.Close().
func initEngine(ctx context.Context, opts envOptions) (*scoringEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	adapter, err := loadModel()
	if err != nil {
		return nil, err
	}

	metrics := monitoring.NewRecorder()
	engine, err := scoring.NewEngine(cfg.Scoring, adapter, scoring.WithObserver(metrics))
	if err != nil {
		return nil, err
	}

	env := &scoringEnv{Engine: engine, Model: adapter, Metrics: metrics}
	if opts.Store {
		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return nil, eris.Wrap(err, "open store")
		}
		env.Store = st
	}
	if opts.Cache {
		c, err := cache.Open(ctx, cfg.Cache)
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "open cache")
		}
		env.Cache = c
	}
	return env, nil
}

// loadModel loads the configured artifact. When the artifact cannot be
// loaded the adapter is built without one and every score is degraded,
// unless model.required is set.
func loadModel() (*predictor.Adapter, error) {
	opts := predictor.Options{
		Timeout: time.Duration(cfg.Model.TimeoutMs) * time.Millisecond,
		Breaker: resilience.FromBreakerConfig(cfg.Model.Breaker),
	}

	if cfg.Model.Path == "" {
		zap.L().Warn("no model configured, scores are rule-only")
		return predictor.NewAdapter(nil, opts), nil
	}

	a, err := predictor.Load(cfg.Model.Path)
	if err != nil {
		if cfg.Model.Required {
			return nil, eris.Wrap(err, "load model")
		}
		zap.L().Warn("model unavailable, scores are rule-only",
			zap.String("path", cfg.Model.Path),
			zap.Error(err),
		)
		return predictor.NewAdapter(nil, opts), nil
	}

	zap.L().Info("model loaded",
		zap.String("id", a.ID),
		zap.String("version", a.Version),
		zap.String("kind", a.Kind),
	)
	return predictor.NewAdapter(a, opts), nil
}
