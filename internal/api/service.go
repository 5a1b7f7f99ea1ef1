// Package api serves the scoring engine over HTTP and coordinates the
// cache and store around each evaluation.
package api

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/credit-scorer/internal/cache"
	"github.com/sells-group/credit-scorer/internal/model"
	"github.com/sells-group/credit-scorer/internal/monitoring"
	"github.com/sells-group/credit-scorer/internal/predictor"
	"github.com/sells-group/credit-scorer/internal/scoring"
	"github.com/sells-group/credit-scorer/internal/store"
)

// Service scores applicants and records the results. Cache, Store and
// Metrics are optional.
type Service struct {
	Engine  *scoring.Engine
	Model   *predictor.Adapter
	Cache   cache.Cache
	Store   store.Store
	Metrics *monitoring.Recorder

	namespace string
}

// NewService wires a Service. The cache namespace is derived from the
// loaded artifact and the engine's resolved configuration.
func NewService(engine *scoring.Engine, adapter *predictor.Adapter, c cache.Cache, st store.Store, m *monitoring.Recorder) (*Service, error) {
	id, version := "rules", "0"
	if adapter != nil && adapter.Artifact() != nil {
		id, version = adapter.Artifact().ID, adapter.Artifact().Version
	}
	ns, err := cache.Namespace(id, version, engine.Config())
	if err != nil {
		return nil, err
	}
	return &Service{Engine: engine, Model: adapter, Cache: c, Store: st, Metrics: m, namespace: ns}, nil
}

// Outcome is the result of Service.Score.
type Outcome struct {
	Application *model.Application
	Cached      bool
	Persisted   bool
}

// Score evaluates p, consulting the cache first. Degraded results are never
// cached. A failed write is logged and does not fail the call.
func (s *Service) Score(ctx context.Context, p model.ApplicantProfile) (Outcome, error) {
	log := zap.L().With(zap.String("applicant", p.DisplayName()))

	res, cached := s.lookup(ctx, p)
	if !cached {
		var err error
		res, err = s.Engine.Score(ctx, p)
		if err != nil {
			return Outcome{}, err
		}
		if !res.Degraded {
			s.remember(ctx, p, res)
		}
	}

	out := Outcome{
		Application: &model.Application{Profile: p, Result: res},
		Cached:      cached,
	}
	if s.Store == nil {
		return out, nil
	}
	if err := s.Store.SaveApplication(ctx, out.Application); err != nil {
		log.Error("api: persist application failed", zap.Error(err))
		if s.Metrics != nil {
			s.Metrics.ObserveStoreError()
		}
		out.Application.ID = ""
		out.Application.CreatedAt = time.Time{}
		return out, nil
	}
	out.Persisted = true
	return out, nil
}

func (s *Service) lookup(ctx context.Context, p model.ApplicantProfile) (model.ScoreResult, bool) {
	if s.Cache == nil {
		return model.ScoreResult{}, false
	}
	key, err := cache.Key(s.namespace, p)
	if err != nil {
		return model.ScoreResult{}, false
	}
	res, ok, err := s.Cache.Get(ctx, key)
	if err != nil {
		zap.L().Warn("api: cache get failed", zap.Error(err))
	}
	if s.Metrics != nil {
		s.Metrics.ObserveCache(ok)
	}
	if !ok {
		return model.ScoreResult{}, false
	}
	return *res, true
}

func (s *Service) remember(ctx context.Context, p model.ApplicantProfile, res model.ScoreResult) {
	if s.Cache == nil {
		return
	}
	key, err := cache.Key(s.namespace, p)
	if err != nil {
		return
	}
	if err := s.Cache.Set(ctx, key, res); err != nil {
		zap.L().Warn("api: cache set failed", zap.Error(err))
	}
}
