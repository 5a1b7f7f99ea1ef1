package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/credit-scorer/internal/model"
)

func TestClassify_Boundaries(t *testing.T) {
	tiers := TierThresholds{LowMin: 70, MediumMin: 40}
	tests := []struct {
		score int
		want  model.RiskTier
	}{
		{0, model.RiskHigh},
		{39, model.RiskHigh},
		{40, model.RiskMedium},
		{69, model.RiskMedium},
		{70, model.RiskLow},
		{100, model.RiskLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tiers.Classify(tt.score), "score %d", tt.score)
	}
}

func TestClassify_Partition(t *testing.T) {
	tiers := TierThresholds{LowMin: 70, MediumMin: 40}
	rank := map[model.RiskTier]int{model.RiskHigh: 0, model.RiskMedium: 1, model.RiskLow: 2}

	prev := -1
	counts := make(map[model.RiskTier]int)
	for score := 0; score <= 100; score++ {
		tier := tiers.Classify(score)
		r, ok := rank[tier]
		assert.True(t, ok, "score %d has no tier", score)
		assert.GreaterOrEqual(t, r, prev, "tier regressed at score %d", score)
		prev = r
		counts[tier]++
	}
	assert.Equal(t, 40, counts[model.RiskHigh])
	assert.Equal(t, 30, counts[model.RiskMedium])
	assert.Equal(t, 31, counts[model.RiskLow])
}

func TestTierThresholds_Problems(t *testing.T) {
	assert.Empty(t, TierThresholds{LowMin: 70, MediumMin: 40}.problems())
	assert.Empty(t, TierThresholds{LowMin: 100, MediumMin: 1}.problems())
	assert.NotEmpty(t, TierThresholds{LowMin: 40, MediumMin: 70}.problems())
	assert.NotEmpty(t, TierThresholds{LowMin: 50, MediumMin: 50}.problems())
	assert.NotEmpty(t, TierThresholds{LowMin: 101, MediumMin: 40}.problems())
	assert.NotEmpty(t, TierThresholds{LowMin: 70, MediumMin: 0}.problems())
}
