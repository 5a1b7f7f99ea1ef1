package model

import (
	"math"
	"strings"
)

// Ratio is a derived quotient. A zero denominator produces UndefinedRatio,
// which consumers must treat as a maximal-risk signal.
type Ratio float64

// UndefinedRatio marks a ratio whose denominator was zero. It is NaN so
// that no real quotient, negative ones included, can collide with it.
var UndefinedRatio = Ratio(math.NaN())

// Defined reports whether r carries a real quotient.
func (r Ratio) Defined() bool { return !math.IsNaN(float64(r)) }

// NewRatio divides num by den, returning UndefinedRatio when den is zero.
func NewRatio(num, den float64) Ratio {
	if den == 0 {
		return UndefinedRatio
	}
	return Ratio(num / den)
}

// Category is one encoded categorical field.
type Category struct {
	Value   string    `json:"value"`
	Ordinal float64   `json:"ordinal"`
	OneHot  []float64 `json:"one_hot"`
	Labels  []string  `json:"labels"` // category names aligned with OneHot
}

// Is reports whether the encoded value equals name.
func (c Category) Is(name string) bool { return c.Value == name }

// Feature keys. These are the names rules, attributions, and model inputs
// refer to.
const (
	FeatureAge                 = "age"
	FeatureIncome              = "income"
	FeatureExpenses            = "expenses"
	FeatureDebtPayments        = "debt_payments"
	FeatureOutstandingDebt     = "outstanding_debt"
	FeatureEmploymentYears     = "employment_years"
	FeatureDependents          = "dependents"
	FeatureCreditLines         = "credit_lines"
	FeaturePreviousLoans       = "previous_loans"
	FeatureLatePayments        = "late_payments"
	FeaturePaymentDelayDays    = "payment_delay_days"
	FeatureAverageBalance      = "average_balance"
	FeatureRequestedAmount     = "requested_amount"
	FeatureAssets              = "assets"
	FeatureLiabilities         = "liabilities"
	FeatureDebtToIncome        = "debt_to_income"
	FeatureExpenseRatio        = "expense_ratio"
	FeatureLeverage            = "leverage"
	FeatureLoanToIncome        = "loan_to_income"
	FeatureNetWorthToIncome    = "net_worth_to_income"
	FeatureEmploymentStability = "employment_stability"
	FeatureEmployment          = "employment_status"
	FeatureMarital             = "marital_status"
	FeatureSpending            = "spending_behavior"
)

// FeatureVector is the normalized, engine-internal view of one applicant.
// It is created fresh per evaluation and never persisted.
type FeatureVector struct {
	Age              float64
	Income           float64
	Expenses         float64
	DebtPayments     float64
	OutstandingDebt  float64
	EmploymentYears  float64
	Dependents       float64
	CreditLines      float64
	PreviousLoans    float64
	LatePayments     float64
	PaymentDelayDays float64
	AverageBalance   float64
	RequestedAmount  float64
	Assets           float64
	Liabilities      float64

	DebtToIncome     Ratio
	ExpenseRatio     Ratio
	Leverage         Ratio
	LoanToIncome     Ratio
	NetWorthToIncome Ratio

	EmploymentStability float64

	Employment Category
	Marital    Category
	Spending   Category
}

// Lookup resolves a feature by name. Plain names return numeric features,
// a categorical field name returns its ordinal, and "field=value" returns
// the matching one-hot bit. Undefined ratios are returned as NaN with
// ok=true; callers check Defined themselves.
func (f FeatureVector) Lookup(name string) (float64, bool) {
	if field, value, found := strings.Cut(name, "="); found {
		c, ok := f.category(field)
		if !ok {
			return 0, false
		}
		for i, label := range c.Labels {
			if label == value {
				return c.OneHot[i], true
			}
		}
		return 0, false
	}

	switch name {
	case FeatureAge:
		return f.Age, true
	case FeatureIncome:
		return f.Income, true
	case FeatureExpenses:
		return f.Expenses, true
	case FeatureDebtPayments:
		return f.DebtPayments, true
	case FeatureOutstandingDebt:
		return f.OutstandingDebt, true
	case FeatureEmploymentYears:
		return f.EmploymentYears, true
	case FeatureDependents:
		return f.Dependents, true
	case FeatureCreditLines:
		return f.CreditLines, true
	case FeaturePreviousLoans:
		return f.PreviousLoans, true
	case FeatureLatePayments:
		return f.LatePayments, true
	case FeaturePaymentDelayDays:
		return f.PaymentDelayDays, true
	case FeatureAverageBalance:
		return f.AverageBalance, true
	case FeatureRequestedAmount:
		return f.RequestedAmount, true
	case FeatureAssets:
		return f.Assets, true
	case FeatureLiabilities:
		return f.Liabilities, true
	case FeatureDebtToIncome:
		return float64(f.DebtToIncome), true
	case FeatureExpenseRatio:
		return float64(f.ExpenseRatio), true
	case FeatureLeverage:
		return float64(f.Leverage), true
	case FeatureLoanToIncome:
		return float64(f.LoanToIncome), true
	case FeatureNetWorthToIncome:
		return float64(f.NetWorthToIncome), true
	case FeatureEmploymentStability:
		return f.EmploymentStability, true
	}
	if c, ok := f.category(name); ok {
		return c.Ordinal, true
	}
	return 0, false
}

// IsRatio reports whether the named feature is a Ratio that may be undefined.
func IsRatio(name string) bool {
	switch name {
	case FeatureDebtToIncome, FeatureExpenseRatio, FeatureLeverage,
		FeatureLoanToIncome, FeatureNetWorthToIncome:
		return true
	}
	return false
}

func (f FeatureVector) category(field string) (Category, bool) {
	switch field {
	case FeatureEmployment:
		return f.Employment, true
	case FeatureMarital:
		return f.Marital, true
	case FeatureSpending:
		return f.Spending, true
	}
	return Category{}, false
}

// KnownFeature reports whether name can be resolved by Lookup on some
// feature vector. One-hot names are accepted for any value of a
// categorical field, since categories come from configuration.
func KnownFeature(name string) bool {
	if field, value, found := strings.Cut(name, "="); found {
		_, ok := FeatureVector{}.category(field)
		return ok && value != ""
	}
	_, ok := FeatureVector{}.Lookup(name)
	return ok
}
