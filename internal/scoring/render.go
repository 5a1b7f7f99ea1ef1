package scoring

import (
	"fmt"
	"strings"

	"github.com/sells-group/credit-scorer/internal/model"
)

// RenderExplanation formats a result as plain text: the score, the factors
// grouped by direction, the recommendations, and a note when the model was
// unavailable.
func RenderExplanation(res model.ScoreResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Credit score: %d/100 (%s risk)\n", res.Score, res.Tier)

	var positive, negative, neutral []model.FactorContribution
	for _, f := range res.Factors {
		switch {
		case f.Direction.IsNegative():
			negative = append(negative, f)
		case f.Direction == model.DirectionPositive:
			positive = append(positive, f)
		default:
			neutral = append(neutral, f)
		}
	}

	writeGroup(&b, "Positive factors", positive)
	writeGroup(&b, "Negative factors", negative)
	writeGroup(&b, "Neutral factors", neutral)

	if len(res.Recommendations) > 0 {
		b.WriteString("\nRecommendations:\n")
		for i, r := range res.Recommendations {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, r)
		}
	}

	if res.Degraded {
		fmt.Fprintf(&b, "\nNote: model unavailable (%s); score is based on policy rules only.\n", res.DegradedReason)
	}
	return b.String()
}

func writeGroup(b *strings.Builder, title string, factors []model.FactorContribution) {
	if len(factors) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, f := range factors {
		marker := ""
		if f.Direction == model.DirectionStronglyNegative {
			marker = " !"
		}
		fmt.Fprintf(b, "  - %s (%+.1f)%s\n", f.Label, f.Value, marker)
	}
}
