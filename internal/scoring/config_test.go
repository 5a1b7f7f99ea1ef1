package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/credit-scorer/internal/config"
	"github.com/sells-group/credit-scorer/internal/model"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, ValidateConfig(cfg))
	assert.Len(t, cfg.Rules, len(DefaultRules()))
	assert.Len(t, cfg.Encodings, 3)
}

func TestResolveConfig_FillsGaps(t *testing.T) {
	cfg := ResolveConfig(config.ScoringConfig{
		Rules: map[string]config.RuleConfig{
			"dependents":     {Disabled: true},
			"debt_to_income": {},
		},
	})

	assert.InDelta(t, 0.5, cfg.Blend.RuleWeight, 0.0001)
	assert.Equal(t, 70, cfg.Tiers.LowMin)
	assert.Equal(t, 3, cfg.Explain.TopK)
	assert.Equal(t, "en", cfg.Explain.Locale)
	assert.True(t, cfg.Rules["dependents"].Disabled)
	assert.InDelta(t, 1, cfg.Rules["debt_to_income"].Weight, 0.0001)
	assert.InDelta(t, 1, cfg.Rules["payment_history"].Weight, 0.0001)
	assert.Contains(t, cfg.Encodings, model.FeatureSpending)
	require.NoError(t, ValidateConfig(cfg))
}

func TestResolveConfig_DoesNotMutateDefaults(t *testing.T) {
	in := config.ScoringConfig{Rules: map[string]config.RuleConfig{"age_profile": {Weight: 2}}}
	_ = ResolveConfig(in)
	assert.Len(t, in.Rules, 1)
	assert.InDelta(t, 1, DefaultConfig().Rules["age_profile"].Weight, 0.0001)
}

func TestValidateConfig_Problems(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.ScoringConfig)
		wantMsg string
	}{
		{"weights do not sum", func(c *config.ScoringConfig) { c.Blend.ModelWeight = 0.6 }, "sum to 1"},
		{"negative weight", func(c *config.ScoringConfig) {
			c.Blend = config.BlendConfig{RuleWeight: -0.5, ModelWeight: 1.5}
		}, "blend.rule_weight"},
		{"inverted tiers", func(c *config.ScoringConfig) { c.Tiers = config.TierConfig{LowMin: 40, MediumMin: 70} }, "tiers.low_min"},
		{"low min above 100", func(c *config.ScoringConfig) { c.Tiers.LowMin = 120 }, "<= 100"},
		{"rule base", func(c *config.ScoringConfig) { c.RuleBase = 150 }, "rule_base"},
		{"unknown rule", func(c *config.ScoringConfig) { c.Rules["zodiac_sign"] = config.RuleConfig{Weight: 1} }, "unknown rule"},
		{"negative rule weight", func(c *config.ScoringConfig) { c.Rules["dependents"] = config.RuleConfig{Weight: -1} }, "weight must be >= 0"},
		{"top k", func(c *config.ScoringConfig) { c.Explain.TopK = 0 }, "top_k"},
		{"locale", func(c *config.ScoringConfig) { c.Explain.Locale = "not a tag!" }, "locale"},
		{"unknown encoding field", func(c *config.ScoringConfig) {
			c.Encodings["zodiac"] = config.EncodingConfig{Categories: []string{"leo"}}
		}, "unknown categorical field"},
		{"reserved other", func(c *config.ScoringConfig) {
			enc := c.Encodings[model.FeatureSpending]
			enc.Categories = append([]string{"other"}, enc.Categories...)
			c.Encodings[model.FeatureSpending] = enc
		}, "reserved"},
		{"alias to unknown", func(c *config.ScoringConfig) {
			c.Encodings[model.FeatureMarital] = config.EncodingConfig{
				Categories: []string{"single"},
				Aliases:    map[string]string{"wed": "married"},
				Ordinals:   map[string]float64{"single": 0.5},
			}
		}, "targets unknown category"},
		{"ordinal range", func(c *config.ScoringConfig) {
			c.Encodings[model.FeatureMarital] = config.EncodingConfig{
				Categories: []string{"single"},
				Ordinals:   map[string]float64{"single": 2},
			}
		}, "between 0 and 1"},
		{"category not in key form", func(c *config.ScoringConfig) {
			c.Encodings[model.FeatureEmployment] = config.EncodingConfig{
				Categories: []string{"Full-Time"},
				Ordinals:   map[string]float64{"Full-Time": 1},
			}
		}, `category "Full-Time" must be written as "full_time"`},
		{"alias not in key form", func(c *config.ScoringConfig) {
			c.Encodings[model.FeatureEmployment] = config.EncodingConfig{
				Categories: []string{"employed"},
				Aliases:    map[string]string{"Salaried": "employed"},
				Ordinals:   map[string]float64{"employed": 1},
			}
		}, `alias "Salaried" must be written as "salaried"`},
		{"missing ordinal", func(c *config.ScoringConfig) {
			c.Encodings[model.FeatureMarital] = config.EncodingConfig{Categories: []string{"single"}}
		}, "has no ordinal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)

			var cfgErr *config.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}
