package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/credit-scorer/internal/config"
	"github.com/sells-group/credit-scorer/internal/model"
)

func ruleByName(t *testing.T, name string) Rule {
	t.Helper()
	for _, r := range DefaultRules() {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("rule %s not registered", name)
	return Rule{}
}

func contribution(t *testing.T, out RuleOutcome, name string) model.FactorContribution {
	t.Helper()
	for _, c := range out.Contributions {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no contribution for %s", name)
	return model.FactorContribution{}
}

func TestDefaultRules_Registry(t *testing.T) {
	rules := DefaultRules()
	require.Len(t, rules, 13)

	seen := make(map[string]bool)
	for _, r := range rules {
		assert.False(t, seen[r.Name], "duplicate rule %s", r.Name)
		seen[r.Name] = true
		assert.Less(t, r.Min, r.Max, r.Name)
		assert.NotEmpty(t, r.Label, r.Name)
		assert.NotNil(t, r.Eval, r.Name)
	}
}

func TestDefaultRules_Values(t *testing.T) {
	tests := []struct {
		rule string
		fv   model.FeatureVector
		want float64
	}{
		{"debt_to_income", model.FeatureVector{DebtToIncome: 0.1}, 9},
		{"debt_to_income", model.FeatureVector{DebtToIncome: 0.5}, -15},
		{"debt_to_income", model.FeatureVector{DebtToIncome: 0}, 15},
		{"expense_ratio", model.FeatureVector{ExpenseRatio: 0.5}, 15},
		{"expense_ratio", model.FeatureVector{ExpenseRatio: 0.75}, 0},
		{"expense_ratio", model.FeatureVector{ExpenseRatio: 0.95}, -12},
		{"employment_stability", model.FeatureVector{EmploymentStability: 1}, 10},
		{"employment_stability", model.FeatureVector{EmploymentStability: 0.25}, -5},
		{"payment_history", model.FeatureVector{LatePayments: 0}, 10},
		{"payment_history", model.FeatureVector{LatePayments: 2}, -2},
		{"payment_history", model.FeatureVector{LatePayments: 9}, -15},
		{"payment_delay", model.FeatureVector{PaymentDelayDays: 6}, -3},
		{"payment_delay", model.FeatureVector{PaymentDelayDays: 60}, -10},
		{"outstanding_debt", model.FeatureVector{Leverage: 0.2}, 3},
		{"outstanding_debt", model.FeatureVector{Leverage: 3}, -15},
		{"age_profile", model.FeatureVector{Age: 20}, -3},
		{"age_profile", model.FeatureVector{Age: 25}, 5},
		{"age_profile", model.FeatureVector{Age: 60}, 0},
		{"age_profile", model.FeatureVector{Age: 70}, -2},
		{"credit_experience", model.FeatureVector{PreviousLoans: 0}, 0},
		{"credit_experience", model.FeatureVector{PreviousLoans: 2}, 4},
		{"credit_experience", model.FeatureVector{PreviousLoans: 7}, -6},
		{"credit_lines", model.FeatureVector{CreditLines: 0}, -2},
		{"credit_lines", model.FeatureVector{CreditLines: 3}, 2},
		{"credit_lines", model.FeatureVector{CreditLines: 6}, 0},
		{"credit_lines", model.FeatureVector{CreditLines: 9}, -5},
		{"loan_to_income", model.FeatureVector{}, 0},
		{"loan_to_income", model.FeatureVector{RequestedAmount: 1000, LoanToIncome: 0.25}, 1.5},
		{"loan_to_income", model.FeatureVector{RequestedAmount: 1000, LoanToIncome: 4}, -10},
		{"net_worth", model.FeatureVector{NetWorthToIncome: 1}, 4},
		{"net_worth", model.FeatureVector{NetWorthToIncome: 5}, 8},
		{"net_worth", model.FeatureVector{NetWorthToIncome: -3}, -8},
		{"dependents", model.FeatureVector{Dependents: 2}, 0},
		{"dependents", model.FeatureVector{Dependents: 4}, -3},
		{"dependents", model.FeatureVector{Dependents: 10}, -6},
		{"spending_behavior", model.FeatureVector{Spending: model.Category{Ordinal: 1}}, 5},
		{"spending_behavior", model.FeatureVector{Spending: model.Category{Ordinal: 0}}, -5},
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			engine := NewRuleEngine(0, []Rule{ruleByName(t, tt.rule)}, nil)
			out, err := engine.Evaluate(tt.fv)
			require.NoError(t, err)
			c := contribution(t, out, tt.rule)
			assert.InDelta(t, tt.want, c.Value, 0.0001)
			assert.Equal(t, model.SourceRule, c.Source)
		})
	}
}

func TestRuleEngine_UndefinedRatioTakesMin(t *testing.T) {
	fv := model.FeatureVector{
		DebtToIncome:     model.UndefinedRatio,
		ExpenseRatio:     model.UndefinedRatio,
		Leverage:         model.UndefinedRatio,
		LoanToIncome:     model.UndefinedRatio,
		NetWorthToIncome: model.UndefinedRatio,
		RequestedAmount:  500,
	}
	engine := NewRuleEngine(50, DefaultRules(), nil)
	out, err := engine.Evaluate(fv)
	require.NoError(t, err)

	for _, name := range []string{"debt_to_income", "expense_ratio", "outstanding_debt", "loan_to_income", "net_worth"} {
		c := contribution(t, out, name)
		assert.InDelta(t, ruleByName(t, name).Min, c.Value, 0.0001, name)
		assert.Equal(t, model.DirectionStronglyNegative, c.Direction, name)
		assert.True(t, c.Undefined, name)
	}
}

func TestRuleEngine_NetWorthMinusOneIsReal(t *testing.T) {
	engine := NewRuleEngine(0, []Rule{ruleByName(t, "net_worth")}, nil)
	out, err := engine.Evaluate(model.FeatureVector{NetWorthToIncome: -1})
	require.NoError(t, err)

	c := contribution(t, out, "net_worth")
	assert.False(t, c.Undefined)
	assert.InDelta(t, -4, c.Value, 0.0001)
	assert.InDelta(t, -1, c.Observed, 0.0001)
	assert.Equal(t, model.DirectionNegative, c.Direction)
}

func TestRuleEngine_LoanToIncomeNothingRequested(t *testing.T) {
	fv := model.FeatureVector{LoanToIncome: model.UndefinedRatio}
	engine := NewRuleEngine(0, []Rule{ruleByName(t, "loan_to_income")}, nil)
	out, err := engine.Evaluate(fv)
	require.NoError(t, err)
	c := contribution(t, out, "loan_to_income")
	assert.Zero(t, c.Value)
	assert.False(t, c.Undefined)
	assert.Equal(t, model.DirectionNeutral, c.Direction)
}

func TestRuleEngine_ScoreClamped(t *testing.T) {
	good := model.FeatureVector{
		Age: 35, EmploymentStability: 1, CreditLines: 2, PreviousLoans: 2,
		NetWorthToIncome: 3, Spending: model.Category{Ordinal: 1},
	}
	out, err := NewRuleEngine(50, DefaultRules(), nil).Evaluate(good)
	require.NoError(t, err)
	assert.InDelta(t, 100, out.Score, 0.0001)

	bad := model.FeatureVector{
		Age: 19, DebtToIncome: 2, ExpenseRatio: 2, Leverage: 5, LatePayments: 10,
		PaymentDelayDays: 90, CreditLines: 10, PreviousLoans: 8, Dependents: 8,
		NetWorthToIncome: -4,
	}
	out, err = NewRuleEngine(50, DefaultRules(), nil).Evaluate(bad)
	require.NoError(t, err)
	assert.InDelta(t, 0, out.Score, 0.0001)
}

func TestRuleEngine_WeightsAndDisabled(t *testing.T) {
	fv := model.FeatureVector{DebtToIncome: 0.2, Dependents: 5}
	table := map[string]config.RuleConfig{
		"debt_to_income": {Weight: 0.5},
		"dependents":     {Disabled: true},
	}
	engine := NewRuleEngine(0, []Rule{ruleByName(t, "debt_to_income"), ruleByName(t, "dependents")}, table)
	assert.Equal(t, []string{"debt_to_income"}, engine.Rules())

	out, err := engine.Evaluate(fv)
	require.NoError(t, err)
	require.Len(t, out.Contributions, 1)
	// raw 3, weighted 1.5
	assert.InDelta(t, 1.5, out.Contributions[0].Value, 0.0001)
}

func TestRuleEngine_WeightClampsToBounds(t *testing.T) {
	table := map[string]config.RuleConfig{"debt_to_income": {Weight: 3}}
	engine := NewRuleEngine(0, []Rule{ruleByName(t, "debt_to_income")}, table)
	out, err := engine.Evaluate(model.FeatureVector{DebtToIncome: 0})
	require.NoError(t, err)
	assert.InDelta(t, 15, out.Contributions[0].Value, 0.0001)
}

func TestRuleEngine_OrderIndependent(t *testing.T) {
	fv := model.FeatureVector{Age: 30, DebtToIncome: 0.3, ExpenseRatio: 0.6, LatePayments: 1, Dependents: 3}
	rules := DefaultRules()
	reversed := make([]Rule, len(rules))
	for i, r := range rules {
		reversed[len(rules)-1-i] = r
	}

	a, err := NewRuleEngine(50, rules, nil).Evaluate(fv)
	require.NoError(t, err)
	b, err := NewRuleEngine(50, reversed, nil).Evaluate(fv)
	require.NoError(t, err)
	assert.InDelta(t, a.Score, b.Score, 1e-9)
}

func TestRuleEngine_FailingRule(t *testing.T) {
	panicky := Rule{Name: "boom", Min: -1, Max: 1, Eval: func(model.FeatureVector) RuleInput { panic("bad table") }}
	_, err := NewRuleEngine(50, []Rule{panicky}, nil).Evaluate(model.FeatureVector{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule boom panicked")

	nan := Rule{Name: "nan", Min: -1, Max: 1, Eval: func(model.FeatureVector) RuleInput { return RuleInput{Raw: math.NaN()} }}
	_, err = NewRuleEngine(50, []Rule{nan}, nil).Evaluate(model.FeatureVector{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-finite")
}

func TestDirectionOf(t *testing.T) {
	assert.Equal(t, model.DirectionPositive, directionOf(1, false))
	assert.Equal(t, model.DirectionNegative, directionOf(-1, false))
	assert.Equal(t, model.DirectionNeutral, directionOf(0.01, false))
	assert.Equal(t, model.DirectionNeutral, directionOf(-0.05, false))
	assert.Equal(t, model.DirectionStronglyNegative, directionOf(-10, true))
}
