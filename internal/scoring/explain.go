package scoring

import (
	"math"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/credit-scorer/internal/model"
)

// featureLabels names features for factors that do not come from a rule.
var featureLabels = map[string]string{
	model.FeatureAge:                 "Age",
	model.FeatureIncome:              "Income",
	model.FeatureExpenses:            "Expenses",
	model.FeatureDebtPayments:        "Debt payments",
	model.FeatureOutstandingDebt:     "Outstanding debt",
	model.FeatureEmploymentYears:     "Years in current employment",
	model.FeatureDependents:          "Number of dependents",
	model.FeatureCreditLines:         "Open credit lines",
	model.FeaturePreviousLoans:       "Previous loans",
	model.FeatureLatePayments:        "Late payment history",
	model.FeaturePaymentDelayDays:    "Payment delays",
	model.FeatureAverageBalance:      "Average account balance",
	model.FeatureRequestedAmount:     "Requested amount",
	model.FeatureAssets:              "Assets",
	model.FeatureLiabilities:         "Liabilities",
	model.FeatureDebtToIncome:        "Debt-to-income ratio",
	model.FeatureExpenseRatio:        "Expense-to-income ratio",
	model.FeatureLeverage:            "Outstanding debt relative to income",
	model.FeatureLoanToIncome:        "Requested amount relative to income",
	model.FeatureNetWorthToIncome:    "Net worth relative to income",
	model.FeatureEmploymentStability: "Employment stability",
	model.FeatureEmployment:          "Employment status",
	model.FeatureMarital:             "Marital status",
	model.FeatureSpending:            "Spending behavior",
}

// FeatureOf returns the feature key an input name refers to. One-hot inputs
// ("employment_status=unemployed") map to their categorical field.
func FeatureOf(input string) string {
	field, _, _ := strings.Cut(input, "=")
	return field
}

// FeatureLabel returns human text for a feature or model input name.
func FeatureLabel(input string) string {
	field, value, oneHot := strings.Cut(input, "=")
	label, ok := featureLabels[field]
	if !ok {
		label = strings.ReplaceAll(field, "_", " ")
	}
	if oneHot {
		label += " (" + strings.ReplaceAll(value, "_", " ") + ")"
	}
	return label
}

// recommend renders the advice for one negative factor.
type recommend func(p *message.Printer, c model.FactorContribution) string

const undefinedIncomeAdvice = "Provide verifiable income: ratios against zero income are treated as maximum risk."

var recommendations = map[string]recommend{
	model.FeatureDebtToIncome: func(p *message.Printer, c model.FactorContribution) string {
		return p.Sprintf("Reduce monthly debt payments, which take %.0f%% of income; aim for below 25%%.", c.Observed*100)
	},
	model.FeatureExpenseRatio: func(p *message.Printer, c model.FactorContribution) string {
		return p.Sprintf("Lower recurring expenses, currently %.0f%% of income, to below 60%%.", c.Observed*100)
	},
	model.FeatureEmploymentStability: func(p *message.Printer, _ model.FactorContribution) string {
		return p.Sprintf("Build a longer, stable employment history before applying for new credit.")
	},
	model.FeatureEmployment: func(p *message.Printer, _ model.FactorContribution) string {
		return p.Sprintf("Stable employment improves creditworthiness; document any regular source of income.")
	},
	model.FeatureEmploymentYears: func(p *message.Printer, _ model.FactorContribution) string {
		return p.Sprintf("Build a longer, stable employment history before applying for new credit.")
	},
	model.FeatureLatePayments: func(p *message.Printer, c model.FactorContribution) string {
		return p.Sprintf("Avoid late payments; %d were recorded. Set up automatic payments for recurring bills.", int(c.Observed))
	},
	model.FeaturePaymentDelayDays: func(p *message.Printer, c model.FactorContribution) string {
		return p.Sprintf("Settle obligations on time; payments were delayed by %.0f days.", c.Observed)
	},
	model.FeatureLeverage: func(p *message.Printer, c model.FactorContribution) string {
		return p.Sprintf("Pay down outstanding debt, currently %.1f times income.", c.Observed)
	},
	model.FeatureOutstandingDebt: func(p *message.Printer, c model.FactorContribution) string {
		return p.Sprintf("Pay down outstanding debt of %.0f.", c.Observed)
	},
	model.FeatureDebtPayments: func(p *message.Printer, _ model.FactorContribution) string {
		return p.Sprintf("Reduce monthly debt payments by consolidating or paying off smaller balances.")
	},
	model.FeatureAge: func(p *message.Printer, _ model.FactorContribution) string {
		return p.Sprintf("Keep building a consistent credit history over time.")
	},
	model.FeaturePreviousLoans: func(p *message.Printer, c model.FactorContribution) string {
		return p.Sprintf("Avoid taking on many loans; %d previous loans were recorded.", int(c.Observed))
	},
	model.FeatureCreditLines: func(p *message.Printer, c model.FactorContribution) string {
		if c.Observed == 0 {
			return p.Sprintf("Open and responsibly use a credit line to establish a credit history.")
		}
		return p.Sprintf("Keep the number of active credit lines small; %d are open.", int(c.Observed))
	},
	model.FeatureLoanToIncome: func(p *message.Printer, c model.FactorContribution) string {
		return p.Sprintf("Consider requesting a smaller amount; the request is %.1f times income.", c.Observed)
	},
	model.FeatureRequestedAmount: func(p *message.Printer, c model.FactorContribution) string {
		return p.Sprintf("Consider requesting less than %.0f.", c.Observed)
	},
	model.FeatureNetWorthToIncome: func(p *message.Printer, _ model.FactorContribution) string {
		return p.Sprintf("Grow savings and assets relative to liabilities.")
	},
	model.FeatureDependents: func(p *message.Printer, c model.FactorContribution) string {
		return p.Sprintf("Budget for household obligations; %d dependents were reported.", int(c.Observed))
	},
	model.FeatureSpending: func(p *message.Printer, _ model.FactorContribution) string {
		return p.Sprintf("Adopt more conservative spending habits and track discretionary expenses.")
	},
	model.FeatureIncome: func(p *message.Printer, _ model.FactorContribution) string {
		return p.Sprintf("Increase or document additional sources of income.")
	},
	model.FeatureAverageBalance: func(p *message.Printer, _ model.FactorContribution) string {
		return p.Sprintf("Maintain a higher average account balance.")
	},
}

// personalFeatures describe the applicant rather than their finances.
// They still appear as factors but never produce advice.
var personalFeatures = map[string]bool{
	model.FeatureMarital: true,
}

// tierAdvice is used when no top factor yields advice.
var tierAdvice = map[model.RiskTier]string{
	model.RiskLow:    "Your credit profile is strong. Maintain your current financial habits.",
	model.RiskMedium: "Your credit profile is fair. Keep reducing debt and paying on time to improve it.",
	model.RiskHigh:   "Your credit profile shows elevated risk. Review debts and spending before taking on new credit.",
}

// Explainer ranks factor contributions and derives recommendations.
type Explainer struct {
	topK    int
	printer *message.Printer
}

// NewExplainer creates an Explainer. An unparsable locale falls back to
// English.
func NewExplainer(topK int, locale string) *Explainer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	if topK < 1 {
		topK = 1
	}
	return &Explainer{topK: topK, printer: message.NewPrinter(tag)}
}

// Explain merges contributions that share a feature, ranks them by
// magnitude and renders one recommendation per negative factor among the
// top K.
func (x *Explainer) Explain(contribs []model.FactorContribution, score int, tier model.RiskTier) ([]model.FactorContribution, []string) {
	ranked := Rank(contribs)

	var recs []string
	seen := make(map[string]bool)
	top := ranked
	if len(top) > x.topK {
		top = top[:x.topK]
	}
	for _, c := range top {
		if !c.Direction.IsNegative() || personalFeatures[c.Feature] {
			continue
		}
		r := x.recommendation(c)
		if seen[r] {
			continue
		}
		seen[r] = true
		recs = append(recs, r)
	}
	if len(recs) == 0 {
		recs = append(recs, x.printer.Sprintf("%s (score %d)", tierAdvice[tier], score))
	}
	return ranked, recs
}

func (x *Explainer) recommendation(c model.FactorContribution) string {
	if c.Undefined {
		return x.printer.Sprintf(undefinedIncomeAdvice)
	}
	if r, ok := recommendations[c.Feature]; ok {
		return r(x.printer, c)
	}
	return x.printer.Sprintf("Improve %s.", strings.ToLower(c.Label))
}

// Rank merges contributions sharing a Feature (the larger magnitude wins,
// ties keep the rule factor), drops neutral noise and sorts by magnitude
// descending with Name as tie breaker. The input slice is not modified.
func Rank(contribs []model.FactorContribution) []model.FactorContribution {
	byFeature := make(map[string]int, len(contribs))
	merged := make([]model.FactorContribution, 0, len(contribs))
	for _, c := range contribs {
		if c.Magnitude() < directionEpsilon && !c.Undefined {
			continue
		}
		i, seen := byFeature[c.Feature]
		if !seen {
			byFeature[c.Feature] = len(merged)
			merged = append(merged, c)
			continue
		}
		if wins(c, merged[i]) {
			merged[i] = c
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		mi, mj := merged[i].Magnitude(), merged[j].Magnitude()
		if mi != mj {
			return mi > mj
		}
		return merged[i].Name < merged[j].Name
	})
	return merged
}

// wins reports whether c should replace cur for the same feature.
func wins(c, cur model.FactorContribution) bool {
	mc, mcur := c.Magnitude(), cur.Magnitude()
	if math.Abs(mc-mcur) > 1e-9 {
		return mc > mcur
	}
	return c.Source == model.SourceRule && cur.Source != model.SourceRule
}
