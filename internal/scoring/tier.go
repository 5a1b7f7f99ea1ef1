package scoring

import (
	"fmt"

	"github.com/sells-group/credit-scorer/internal/model"
)

// TierThresholds partitions [0,100] into risk tiers. Scores at or above
// LowMin are Low risk, scores at or above MediumMin are Medium, the rest
// are High.
type TierThresholds struct {
	LowMin    int
	MediumMin int
}

// Classify maps a score to its risk tier.
func (t TierThresholds) Classify(score int) model.RiskTier {
	switch {
	case score >= t.LowMin:
		return model.RiskLow
	case score >= t.MediumMin:
		return model.RiskMedium
	default:
		return model.RiskHigh
	}
}

// problems lists why t would not partition [0,100] into three non-empty,
// ordered tiers.
func (t TierThresholds) problems() []string {
	var errs []string
	if t.MediumMin <= 0 {
		errs = append(errs, fmt.Sprintf("tiers.medium_min must be > 0, got %d", t.MediumMin))
	}
	if t.LowMin <= t.MediumMin {
		errs = append(errs, fmt.Sprintf("tiers.low_min (%d) must be greater than tiers.medium_min (%d)", t.LowMin, t.MediumMin))
	}
	if t.LowMin > 100 {
		errs = append(errs, fmt.Sprintf("tiers.low_min must be <= 100, got %d", t.LowMin))
	}
	return errs
}
