// Package scoring turns an applicant profile into a credit score, a risk
// tier, and an explanation of the factors behind them.
package scoring

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/credit-scorer/internal/config"
	"github.com/sells-group/credit-scorer/internal/model"
)

// errModelNotLoaded is the degraded reason when the engine has no predictor.
var errModelNotLoaded = eris.New("model not loaded")

// Predictor produces a probability of good credit for a feature vector.
type Predictor interface {
	Predict(ctx context.Context, fv model.FeatureVector) (model.Prediction, error)
}

// Observer receives the outcome of every evaluation.
type Observer interface {
	ObserveScore(res model.ScoreResult, elapsed time.Duration)
	ObserveFailure(stage string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithRules replaces the rule registry. Mostly useful in tests.
func WithRules(rules []Rule) Option {
	return func(e *Engine) { e.registry = rules }
}

// Engine is the scoring orchestrator. It holds only immutable tables and a
// predictor, so one Engine serves concurrent evaluations.
type Engine struct {
	cfg        config.ScoringConfig
	registry   []Rule
	normalizer *Normalizer
	rules      *RuleEngine
	weights    BlendWeights
	tiers      TierThresholds
	explainer  *Explainer
	predictor  Predictor
	observer   Observer
}

// NewEngine resolves and validates cfg and builds an Engine. predictor may
// be nil, in which case every result is degraded.
func NewEngine(cfg config.ScoringConfig, predictor Predictor, opts ...Option) (*Engine, error) {
	cfg = ResolveConfig(cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		registry:  DefaultRules(),
		predictor: predictor,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.normalizer = NewNormalizer(cfg.Encodings)
	e.rules = NewRuleEngine(cfg.RuleBase, e.registry, cfg.Rules)
	e.weights = BlendWeights{Rule: cfg.Blend.RuleWeight, Model: cfg.Blend.ModelWeight}
	e.tiers = TierThresholds{LowMin: cfg.Tiers.LowMin, MediumMin: cfg.Tiers.MediumMin}
	e.explainer = NewExplainer(cfg.Explain.TopK, cfg.Explain.Locale)
	return e, nil
}

// Config returns the resolved scoring configuration.
func (e *Engine) Config() config.ScoringConfig { return e.cfg }

// Tiers returns the configured tier thresholds.
func (e *Engine) Tiers() TierThresholds { return e.tiers }

// Rules returns the names of the enabled rules in evaluation order.
func (e *Engine) Rules() []string { return e.rules.Rules() }

// Score evaluates one profile. Validation and rule failures abort with an
// error and no result; a model failure degrades to the rule score.
func (e *Engine) Score(ctx context.Context, profile model.ApplicantProfile) (model.ScoreResult, error) {
	start := time.Now()
	log := zap.L().With(zap.String("applicant", profile.DisplayName()))

	fv, err := e.normalizer.Normalize(profile)
	if err != nil {
		e.fail("validation")
		return model.ScoreResult{}, eris.Wrap(err, "scoring: normalize")
	}

	var (
		rules   RuleOutcome
		pred    *model.Prediction
		predErr = errModelNotLoaded
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := e.rules.Evaluate(fv)
		if err != nil {
			return err
		}
		rules = out
		return nil
	})
	if e.predictor != nil {
		g.Go(func() error {
			p, err := e.predictor.Predict(gctx, fv)
			if err == nil {
				err = checkPrediction(p)
			}
			if err != nil {
				predErr = err
				return nil
			}
			pred = &p
			predErr = nil
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.fail("rules")
		return model.ScoreResult{}, eris.Wrap(err, "scoring: evaluate rules")
	}

	blend := Blend(rules.Score, pred, e.weights)

	contribs := make([]model.FactorContribution, 0, len(rules.Contributions))
	for _, c := range rules.Contributions {
		contribs = append(contribs, scaleContribution(c, blend.RuleScale))
	}

	res := model.ScoreResult{
		Score:      blend.Score,
		Degraded:   blend.Degraded,
		RuleScore:  rules.Score,
		ModelScore: blend.ModelScore,
	}
	if pred != nil {
		res.ModelVersion = pred.ModelVersion
		contribs = append(contribs, attributionFactors(fv, pred.Attributions, blend.ModelScale)...)
	} else {
		res.DegradedReason = predErr.Error()
		log.Warn("scoring: model unavailable, using rule score only",
			zap.Error(predErr),
			zap.Float64("rule_score", rules.Score),
		)
	}

	res.Tier = e.tiers.Classify(res.Score)
	res.Factors, res.Recommendations = e.explainer.Explain(contribs, res.Score, res.Tier)

	elapsed := time.Since(start)
	log.Debug("scoring: scored",
		zap.Int("score", res.Score),
		zap.String("tier", string(res.Tier)),
		zap.Bool("degraded", res.Degraded),
		zap.Duration("elapsed", elapsed),
	)
	if e.observer != nil {
		e.observer.ObserveScore(res, elapsed)
	}
	return res, nil
}

func (e *Engine) fail(stage string) {
	if e.observer != nil {
		e.observer.ObserveFailure(stage)
	}
}

// checkPrediction rejects predictions the blender cannot use.
func checkPrediction(p model.Prediction) error {
	if math.IsNaN(p.Probability) || p.Probability < 0 || p.Probability > 1 {
		return eris.Errorf("prediction probability %v outside [0,1]", p.Probability)
	}
	return nil
}

// scaleContribution converts a rule contribution into final-score points.
func scaleContribution(c model.FactorContribution, scale float64) model.FactorContribution {
	c.Value *= scale
	if c.Direction != model.DirectionStronglyNegative {
		c.Direction = directionOf(c.Value, false)
	}
	return c
}

// attributionFactors turns model attributions into contributions in
// final-score points, in input-name order.
func attributionFactors(fv model.FeatureVector, attrs map[string]float64, scale float64) []model.FactorContribution {
	names := make([]string, 0, len(attrs))
	for name, v := range attrs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]model.FactorContribution, 0, len(names))
	for _, name := range names {
		value := attrs[name] * scale
		feature := FeatureOf(name)
		observed, _ := fv.Lookup(name)
		undefined := model.IsRatio(feature) && !model.Ratio(observed).Defined()
		if undefined {
			observed = 0
		}
		out = append(out, model.FactorContribution{
			Name:      name,
			Feature:   feature,
			Label:     FeatureLabel(name),
			Value:     value,
			Direction: directionOf(value, false),
			Source:    model.SourceModel,
			Observed:  observed,
			Undefined: undefined,
		})
	}
	return out
}
