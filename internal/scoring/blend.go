package scoring

import (
	"math"

	"github.com/sells-group/credit-scorer/internal/model"
)

// BlendWeights weights the rule score against the model score.
type BlendWeights struct {
	Rule  float64
	Model float64
}

// BlendOutcome is the blended score and the factors that scale rule and
// model contributions into final-score points.
type BlendOutcome struct {
	Score      int
	Degraded   bool
	RuleScale  float64
	ModelScale float64
	// ModelScore is the model probability on the 0 to 100 scale, nil when
	// degraded.
	ModelScore *float64
}

// Blend combines ruleScore with pred. A nil pred falls back to the rule
// score alone.
func Blend(ruleScore float64, pred *model.Prediction, w BlendWeights) BlendOutcome {
	if pred == nil {
		return BlendOutcome{
			Score:     int(math.Round(clamp(ruleScore, 0, 100))),
			Degraded:  true,
			RuleScale: 1,
		}
	}

	modelScore := pred.Probability * 100
	final := w.Rule*ruleScore + w.Model*modelScore
	return BlendOutcome{
		Score:      int(math.Round(clamp(final, 0, 100))),
		RuleScale:  w.Rule,
		ModelScale: w.Model * 100,
		ModelScore: &modelScore,
	}
}
