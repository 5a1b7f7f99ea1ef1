package scoring

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/credit-scorer/internal/config"
	"github.com/sells-group/credit-scorer/internal/model"
)

// directionEpsilon is the smallest |value| in score points that counts as
// a positive or negative effect.
const directionEpsilon = 0.05

// RuleInput is what a rule reads off a feature vector.
type RuleInput struct {
	Raw       float64 // unclamped, unweighted rule output
	Observed  float64 // feature value the rule looked at
	Undefined bool    // input ratio hit UndefinedRatio
}

// Rule is one named policy rule. Rules are pure functions of the feature
// vector and independent of each other.
type Rule struct {
	Name    string
	Feature string
	Label   string
	Min     float64
	Max     float64
	Eval    func(model.FeatureVector) RuleInput
}

// ratioInput evaluates f on a defined ratio, or flags the sentinel.
func ratioInput(r model.Ratio, f func(float64) float64) RuleInput {
	if !r.Defined() {
		return RuleInput{Undefined: true}
	}
	v := float64(r)
	return RuleInput{Raw: f(v), Observed: v}
}

func plain(observed, raw float64) RuleInput {
	return RuleInput{Raw: raw, Observed: observed}
}

// DefaultRules returns the built-in rule registry in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "debt_to_income", Feature: model.FeatureDebtToIncome, Label: "Debt-to-income ratio",
			Min: -15, Max: 15,
			Eval: func(fv model.FeatureVector) RuleInput {
				return ratioInput(fv.DebtToIncome, func(dti float64) float64 { return 15 - 60*dti })
			},
		},
		{
			Name: "expense_ratio", Feature: model.FeatureExpenseRatio, Label: "Expense-to-income ratio",
			Min: -15, Max: 15,
			Eval: func(fv model.FeatureVector) RuleInput {
				return ratioInput(fv.ExpenseRatio, func(er float64) float64 { return 15 * (0.75 - er) / 0.25 })
			},
		},
		{
			Name: "employment_stability", Feature: model.FeatureEmploymentStability, Label: "Employment stability",
			Min: -10, Max: 10,
			Eval: func(fv model.FeatureVector) RuleInput {
				return plain(fv.EmploymentStability, -10+20*fv.EmploymentStability)
			},
		},
		{
			Name: "payment_history", Feature: model.FeatureLatePayments, Label: "Late payment history",
			Min: -15, Max: 10,
			Eval: func(fv model.FeatureVector) RuleInput {
				return plain(fv.LatePayments, 10-6*fv.LatePayments)
			},
		},
		{
			Name: "payment_delay", Feature: model.FeaturePaymentDelayDays, Label: "Payment delays",
			Min: -10, Max: 0,
			Eval: func(fv model.FeatureVector) RuleInput {
				return plain(fv.PaymentDelayDays, -0.5*fv.PaymentDelayDays)
			},
		},
		{
			Name: "outstanding_debt", Feature: model.FeatureLeverage, Label: "Outstanding debt relative to income",
			Min: -15, Max: 5,
			Eval: func(fv model.FeatureVector) RuleInput {
				return ratioInput(fv.Leverage, func(lev float64) float64 { return 5 - 10*lev })
			},
		},
		{
			Name: "age_profile", Feature: model.FeatureAge, Label: "Age profile",
			Min: -3, Max: 5,
			Eval: func(fv model.FeatureVector) RuleInput {
				switch {
				case fv.Age < 25:
					return plain(fv.Age, -3)
				case fv.Age <= 55:
					return plain(fv.Age, 5)
				case fv.Age > 65:
					return plain(fv.Age, -2)
				}
				return plain(fv.Age, 0)
			},
		},
		{
			Name: "credit_experience", Feature: model.FeaturePreviousLoans, Label: "Previous loans",
			Min: -6, Max: 4,
			Eval: func(fv model.FeatureVector) RuleInput {
				switch {
				case fv.PreviousLoans >= 1 && fv.PreviousLoans <= 3:
					return plain(fv.PreviousLoans, 4)
				case fv.PreviousLoans > 5:
					return plain(fv.PreviousLoans, -6)
				}
				return plain(fv.PreviousLoans, 0)
			},
		},
		{
			Name: "credit_lines", Feature: model.FeatureCreditLines, Label: "Open credit lines",
			Min: -5, Max: 2,
			Eval: func(fv model.FeatureVector) RuleInput {
				switch {
				case fv.CreditLines == 0:
					return plain(0, -2)
				case fv.CreditLines <= 4:
					return plain(fv.CreditLines, 2)
				case fv.CreditLines > 6:
					return plain(fv.CreditLines, -5)
				}
				return plain(fv.CreditLines, 0)
			},
		},
		{
			Name: "loan_to_income", Feature: model.FeatureLoanToIncome, Label: "Requested amount relative to income",
			Min: -10, Max: 3,
			Eval: func(fv model.FeatureVector) RuleInput {
				if fv.RequestedAmount == 0 {
					return plain(0, 0)
				}
				return ratioInput(fv.LoanToIncome, func(lti float64) float64 { return 3 - 6*lti })
			},
		},
		{
			Name: "net_worth", Feature: model.FeatureNetWorthToIncome, Label: "Net worth relative to income",
			Min: -8, Max: 8,
			Eval: func(fv model.FeatureVector) RuleInput {
				return ratioInput(fv.NetWorthToIncome, func(nw float64) float64 { return 4 * nw })
			},
		},
		{
			Name: "dependents", Feature: model.FeatureDependents, Label: "Number of dependents",
			Min: -6, Max: 0,
			Eval: func(fv model.FeatureVector) RuleInput {
				return plain(fv.Dependents, -1.5*math.Max(0, fv.Dependents-2))
			},
		},
		{
			Name: "spending_behavior", Feature: model.FeatureSpending, Label: "Spending behavior",
			Min: -5, Max: 5,
			Eval: func(fv model.FeatureVector) RuleInput {
				return plain(fv.Spending.Ordinal, -5+10*fv.Spending.Ordinal)
			},
		},
	}
}

// RuleOutcome is the rule engine's output for one feature vector.
type RuleOutcome struct {
	// Score is base + Σ contributions, clamped to [0,100].
	Score         float64
	Contributions []model.FactorContribution
}

type weightedRule struct {
	Rule
	weight float64
}

// RuleEngine evaluates the enabled rules of a rule table.
type RuleEngine struct {
	base  float64
	rules []weightedRule
}

// NewRuleEngine builds a RuleEngine from the registry and a rule table.
// Rules missing from the table run with weight 1; disabled rules are skipped.
func NewRuleEngine(base float64, registry []Rule, table map[string]config.RuleConfig) *RuleEngine {
	e := &RuleEngine{base: base}
	for _, r := range registry {
		weight := 1.0
		if rc, ok := table[r.Name]; ok {
			if rc.Disabled {
				continue
			}
			weight = rc.Weight
		}
		e.rules = append(e.rules, weightedRule{Rule: r, weight: weight})
	}
	return e
}

// Rules returns the names of the enabled rules in evaluation order.
func (e *RuleEngine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}

// Evaluate runs every enabled rule against fv. A rule that panics or
// produces a non-finite value fails the whole evaluation.
func (e *RuleEngine) Evaluate(fv model.FeatureVector) (RuleOutcome, error) {
	total := e.base
	contribs := make([]model.FactorContribution, 0, len(e.rules))
	for _, r := range e.rules {
		c, err := r.apply(fv)
		if err != nil {
			return RuleOutcome{}, err
		}
		total += c.Value
		contribs = append(contribs, c)
	}
	return RuleOutcome{Score: clamp(total, 0, 100), Contributions: contribs}, nil
}

func (r weightedRule) apply(fv model.FeatureVector) (c model.FactorContribution, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = eris.Errorf("scoring: rule %s panicked: %v", r.Name, p)
		}
	}()

	in := r.Eval(fv)
	c = model.FactorContribution{
		Name:      r.Name,
		Feature:   r.Feature,
		Label:     r.Label,
		Source:    model.SourceRule,
		Observed:  in.Observed,
		Undefined: in.Undefined,
	}
	if in.Undefined {
		c.Value = r.Min
		c.Direction = model.DirectionStronglyNegative
		return c, nil
	}

	v := r.weight * in.Raw
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return c, eris.Errorf("scoring: rule %s produced non-finite value", r.Name)
	}
	c.Value = clamp(v, r.Min, r.Max)
	c.Direction = directionOf(c.Value, r.Min < 0 && c.Value <= r.Min)
	return c, nil
}

// directionOf classifies a contribution in score points. floor marks a
// contribution pinned at its rule's most conservative value.
func directionOf(v float64, floor bool) model.Direction {
	switch {
	case floor:
		return model.DirectionStronglyNegative
	case v > directionEpsilon:
		return model.DirectionPositive
	case v < -directionEpsilon:
		return model.DirectionNegative
	}
	return model.DirectionNeutral
}
