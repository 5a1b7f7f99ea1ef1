package scoring

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/text/language"

	"github.com/sells-group/credit-scorer/internal/config"
	"github.com/sells-group/credit-scorer/internal/model"
)

// weightTolerance bounds floating-point drift in w_rule + w_model.
const weightTolerance = 1e-6

// DefaultEncodings returns the built-in categorical encoding tables.
// Spanish aliases cover the applicant forms of the first deployment.
func DefaultEncodings() map[string]config.EncodingConfig {
	return map[string]config.EncodingConfig{
		model.FeatureEmployment: {
			Categories: []string{"employed", "self_employed", "contract", "retired", "student", "unemployed"},
			Aliases: map[string]string{
				"full_time":      "employed",
				"fulltime":       "employed",
				"salaried":       "employed",
				"permanent":      "employed",
				"empleado":       "employed",
				"selfemployed":   "self_employed",
				"business_owner": "self_employed",
				"freelancer":     "self_employed",
				"independiente":  "self_employed",
				"part_time":      "contract",
				"temporary":      "contract",
				"seasonal":       "contract",
				"temporal":       "contract",
				"pensioner":      "retired",
				"jubilado":       "retired",
				"estudiante":     "student",
				"jobless":        "unemployed",
				"not_employed":   "unemployed",
				"desempleado":    "unemployed",
			},
			Ordinals: map[string]float64{
				"employed":      1.0,
				"self_employed": 0.75,
				"contract":      0.5,
				"retired":       0.7,
				"student":       0.3,
				"unemployed":    0.0,
			},
			OtherOrdinal: 0.4,
		},
		model.FeatureMarital: {
			Categories: []string{"single", "married", "divorced", "widowed"},
			Aliases: map[string]string{
				"soltero":          "single",
				"soltera":          "single",
				"casado":           "married",
				"casada":           "married",
				"civil_union":      "married",
				"domestic_partner": "married",
				"separated":        "divorced",
				"divorciado":       "divorced",
				"divorciada":       "divorced",
				"viudo":            "widowed",
				"viuda":            "widowed",
			},
			Ordinals: map[string]float64{
				"single":   0.5,
				"married":  1.0,
				"divorced": 0.4,
				"widowed":  0.5,
			},
			OtherOrdinal: 0.5,
		},
		model.FeatureSpending: {
			Categories: []string{"conservative", "moderate", "impulsive"},
			Aliases: map[string]string{
				"frugal":     "conservative",
				"saver":      "conservative",
				"ahorrador":  "conservative",
				"balanced":   "moderate",
				"normal":     "moderate",
				"moderado":   "moderate",
				"spender":    "impulsive",
				"high":       "impulsive",
				"impulsivo":  "impulsive",
				"compulsive": "impulsive",
			},
			Ordinals: map[string]float64{
				"conservative": 1.0,
				"moderate":     0.6,
				"impulsive":    0.0,
			},
			OtherOrdinal: 0.5,
		},
	}
}

// DefaultConfig returns a complete ScoringConfig with the built-in tables.
func DefaultConfig() config.ScoringConfig {
	rules := make(map[string]config.RuleConfig)
	for _, r := range DefaultRules() {
		rules[r.Name] = config.RuleConfig{Weight: 1}
	}
	return config.ScoringConfig{
		RuleBase:  50,
		Blend:     config.BlendConfig{RuleWeight: 0.5, ModelWeight: 0.5},
		Tiers:     config.TierConfig{LowMin: 70, MediumMin: 40},
		Rules:     rules,
		Encodings: DefaultEncodings(),
		Explain:   config.ExplainConfig{TopK: 3, Locale: "en"},
	}
}

// ResolveConfig fills the parts of c left empty with defaults. Rule entries
// with a zero weight that are not disabled get weight 1; to silence a rule,
// set disabled.
func ResolveConfig(c config.ScoringConfig) config.ScoringConfig {
	def := DefaultConfig()

	if c.Blend.RuleWeight == 0 && c.Blend.ModelWeight == 0 {
		c.Blend = def.Blend
	}
	if c.Tiers.LowMin == 0 && c.Tiers.MediumMin == 0 {
		c.Tiers = def.Tiers
	}
	if c.Explain.TopK == 0 {
		c.Explain.TopK = def.Explain.TopK
	}
	if c.Explain.Locale == "" {
		c.Explain.Locale = def.Explain.Locale
	}

	rules := make(map[string]config.RuleConfig, len(def.Rules))
	for name, rc := range def.Rules {
		rules[name] = rc
	}
	for name, rc := range c.Rules {
		if rc.Weight == 0 && !rc.Disabled {
			rc.Weight = 1
		}
		rules[name] = rc
	}
	c.Rules = rules

	encodings := make(map[string]config.EncodingConfig, len(def.Encodings))
	for field, enc := range def.Encodings {
		encodings[field] = enc
	}
	for field, enc := range c.Encodings {
		encodings[field] = enc
	}
	c.Encodings = encodings

	return c
}

// ValidateConfig checks that a resolved ScoringConfig is internally
// consistent. It returns a *config.ConfigurationError listing every problem.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	// Blend weights.
	if c.Blend.RuleWeight < 0 || c.Blend.RuleWeight > 1 {
		errs = append(errs, "blend.rule_weight must be between 0 and 1")
	}
	if c.Blend.ModelWeight < 0 || c.Blend.ModelWeight > 1 {
		errs = append(errs, "blend.model_weight must be between 0 and 1")
	}
	if sum := c.Blend.RuleWeight + c.Blend.ModelWeight; math.Abs(sum-1) > weightTolerance {
		errs = append(errs, fmt.Sprintf("blend weights must sum to 1, got %.4f", sum))
	}

	// Tiers.
	errs = append(errs, TierThresholds{LowMin: c.Tiers.LowMin, MediumMin: c.Tiers.MediumMin}.problems()...)

	if c.RuleBase < 0 || c.RuleBase > 100 {
		errs = append(errs, "rule_base must be between 0 and 100")
	}

	// Rules.
	known := make(map[string]bool)
	for _, r := range DefaultRules() {
		known[r.Name] = true
	}
	for _, name := range sortedKeys(c.Rules) {
		if !known[name] {
			errs = append(errs, fmt.Sprintf("rules.%s: unknown rule", name))
			continue
		}
		if c.Rules[name].Weight < 0 {
			errs = append(errs, fmt.Sprintf("rules.%s: weight must be >= 0", name))
		}
	}

	// Encodings.
	for _, field := range sortedKeys(c.Encodings) {
		errs = append(errs, validateEncoding(field, c.Encodings[field])...)
	}

	if c.Explain.TopK < 1 {
		errs = append(errs, "explain.top_k must be >= 1")
	}
	if _, err := language.Parse(c.Explain.Locale); err != nil {
		errs = append(errs, fmt.Sprintf("explain.locale %q is not a valid language tag", c.Explain.Locale))
	}

	if len(errs) > 0 {
		return &config.ConfigurationError{Problems: errs}
	}
	return nil
}

func validateEncoding(field string, enc config.EncodingConfig) []string {
	var errs []string
	prefix := "encodings." + field

	switch field {
	case model.FeatureEmployment, model.FeatureMarital, model.FeatureSpending:
	default:
		return []string{prefix + ": unknown categorical field"}
	}

	if len(enc.Categories) == 0 {
		errs = append(errs, prefix+": categories must not be empty")
	}
	seen := make(map[string]bool, len(enc.Categories))
	for _, cat := range enc.Categories {
		switch {
		case cat == otherCategory:
			errs = append(errs, fmt.Sprintf("%s: %q is reserved", prefix, otherCategory))
		case normalizeKey(cat) != cat:
			errs = append(errs, fmt.Sprintf("%s: category %q must be written as %q", prefix, cat, normalizeKey(cat)))
		case seen[cat]:
			errs = append(errs, fmt.Sprintf("%s: duplicate category %q", prefix, cat))
		}
		seen[cat] = true

		ord, ok := enc.Ordinals[cat]
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: category %q has no ordinal", prefix, cat))
		} else if ord < 0 || ord > 1 {
			errs = append(errs, fmt.Sprintf("%s: ordinal for %q must be between 0 and 1", prefix, cat))
		}
	}
	for _, alias := range sortedKeys(enc.Aliases) {
		if normalizeKey(alias) != alias {
			errs = append(errs, fmt.Sprintf("%s: alias %q must be written as %q", prefix, alias, normalizeKey(alias)))
		}
		if target := enc.Aliases[alias]; !seen[target] {
			errs = append(errs, fmt.Sprintf("%s: alias %q targets unknown category %q", prefix, alias, target))
		}
	}
	if enc.OtherOrdinal < 0 || enc.OtherOrdinal > 1 {
		errs = append(errs, prefix+": other_ordinal must be between 0 and 1")
	}
	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
