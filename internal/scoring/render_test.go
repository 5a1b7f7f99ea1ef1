package scoring

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/credit-scorer/internal/model"
)

func TestRenderExplanation(t *testing.T) {
	e := newTestEngine(t, stubPredictor{prob: 0.2})
	res, err := e.Score(context.Background(), weakApplicant())
	require.NoError(t, err)

	text := RenderExplanation(res)
	assert.True(t, strings.HasPrefix(text, "Credit score: 12/100 (high risk)\n"))
	assert.Contains(t, text, "Positive factors:\n")
	assert.Contains(t, text, "Negative factors:\n")
	assert.Contains(t, text, "  - Debt-to-income ratio (-7.5) !\n")
	assert.Contains(t, text, "  - Late payment history (+5.0)\n")
	assert.Contains(t, text, "Recommendations:\n  1. Reduce monthly debt payments")
	assert.NotContains(t, text, "Note: model unavailable")

	// Negative section lists factors in ranked order.
	assert.Less(t, strings.Index(text, "Debt-to-income"), strings.Index(text, "Expense-to-income"))
}

func TestRenderExplanation_Degraded(t *testing.T) {
	res := model.ScoreResult{
		Score:          64,
		Tier:           model.RiskMedium,
		Degraded:       true,
		DegradedReason: "timeout",
		Factors: []model.FactorContribution{
			{Label: "Age profile", Value: 0.01, Direction: model.DirectionNeutral},
		},
	}
	text := RenderExplanation(res)
	assert.Contains(t, text, "(medium risk)")
	assert.Contains(t, text, "Neutral factors:\n  - Age profile (+0.0)\n")
	assert.NotContains(t, text, "Positive factors")
	assert.NotContains(t, text, "Recommendations")
	assert.Contains(t, text, "Note: model unavailable (timeout)")
}
