package model

import "math"

// RiskTier is the coarse bucket derived from a score.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// Direction is the qualitative sign of a factor contribution.
type Direction string

const (
	DirectionPositive         Direction = "positive"
	DirectionNeutral          Direction = "neutral"
	DirectionNegative         Direction = "negative"
	DirectionStronglyNegative Direction = "strongly_negative"
)

// IsNegative reports whether d lowers the score.
func (d Direction) IsNegative() bool {
	return d == DirectionNegative || d == DirectionStronglyNegative
}

// Source identifies which component produced a contribution.
type Source string

const (
	SourceRule  Source = "rule"
	SourceModel Source = "model"
)

// FactorContribution is the signed effect of one factor on the final score,
// expressed in score points.
type FactorContribution struct {
	Name      string    `json:"name"`
	Feature   string    `json:"feature"`
	Label     string    `json:"label"`
	Value     float64   `json:"value"`
	Direction Direction `json:"direction"`
	Source    Source    `json:"source"`
	Observed  float64   `json:"observed"`
	Undefined bool      `json:"undefined,omitempty"`
}

// Magnitude returns |Value|.
func (c FactorContribution) Magnitude() float64 { return math.Abs(c.Value) }

// Prediction is the model adapter's output for one feature vector.
type Prediction struct {
	// Probability of good credit, in [0,1].
	Probability float64 `json:"probability"`
	// Attributions maps input feature names to the change in Probability
	// caused by that input relative to its baseline.
	Attributions map[string]float64 `json:"attributions,omitempty"`
	ModelID      string             `json:"model_id"`
	ModelVersion string             `json:"model_version"`
}

// ScoreResult is the composite output of one evaluation.
type ScoreResult struct {
	Score           int                  `json:"score"`
	Tier            RiskTier             `json:"tier"`
	Factors         []FactorContribution `json:"factors"`
	Recommendations []string             `json:"recommendations"`
	Degraded        bool                 `json:"degraded"`
	DegradedReason  string               `json:"degraded_reason,omitempty"`
	RuleScore       float64              `json:"rule_score"`
	ModelScore      *float64             `json:"model_score,omitempty"`
	ModelVersion    string               `json:"model_version,omitempty"`
}

// TopFactor returns the highest-ranked factor, if any.
func (r ScoreResult) TopFactor() (FactorContribution, bool) {
	if len(r.Factors) == 0 {
		return FactorContribution{}, false
	}
	return r.Factors[0], true
}
