package scoring

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/credit-scorer/internal/config"
	"github.com/sells-group/credit-scorer/internal/model"
)

const (
	otherCategory = "other"

	minAge        = 18
	maxAge        = 120
	maxNameLength = 100

	// stableTenureYears is the tenure at which the tenure factor saturates.
	stableTenureYears = 5.0
)

// encoder maps raw categorical strings onto a fixed encoding table.
type encoder struct {
	categories []string
	labels     []string // categories + "other", aligned with one-hot output
	aliases    map[string]string
	ordinals   map[string]float64
	other      float64
}

func newEncoder(enc config.EncodingConfig) encoder {
	labels := make([]string, 0, len(enc.Categories)+1)
	labels = append(labels, enc.Categories...)
	labels = append(labels, otherCategory)
	return encoder{
		categories: enc.Categories,
		labels:     labels,
		aliases:    enc.Aliases,
		ordinals:   enc.Ordinals,
		other:      enc.OtherOrdinal,
	}
}

// encode resolves raw to a canonical category. Unseen values land in the
// "other" bucket instead of failing.
func (e encoder) encode(raw string) model.Category {
	key := normalizeKey(raw)
	value := otherCategory
	for _, cat := range e.categories {
		if cat == key {
			value = cat
			break
		}
	}
	if value == otherCategory {
		if target, ok := e.aliases[key]; ok {
			value = target
		}
	}

	ordinal := e.other
	if v, ok := e.ordinals[value]; ok && value != otherCategory {
		ordinal = v
	}

	oneHot := make([]float64, len(e.labels))
	for i, label := range e.labels {
		if label == value {
			oneHot[i] = 1
		}
	}

	labels := make([]string, len(e.labels))
	copy(labels, e.labels)

	return model.Category{Value: value, Ordinal: ordinal, OneHot: oneHot, Labels: labels}
}

// normalizeKey lowercases, trims and folds separators to underscores.
func normalizeKey(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	return key
}

// Normalizer is the single validation boundary of the engine. It turns an
// ApplicantProfile into a FeatureVector or a *ValidationError.
type Normalizer struct {
	employment encoder
	marital    encoder
	spending   encoder
}

// NewNormalizer builds a Normalizer from resolved encoding tables.
func NewNormalizer(encodings map[string]config.EncodingConfig) *Normalizer {
	return &Normalizer{
		employment: newEncoder(encodings[model.FeatureEmployment]),
		marital:    newEncoder(encodings[model.FeatureMarital]),
		spending:   newEncoder(encodings[model.FeatureSpending]),
	}
}

// Normalize validates p and derives its feature vector. All field problems
// are collected into one *ValidationError.
func (n *Normalizer) Normalize(p model.ApplicantProfile) (model.FeatureVector, error) {
	verr := &ValidationError{}

	if utf8.RuneCountInString(p.Name) > maxNameLength {
		verr.add("name", "must be at most 100 characters")
	}

	var age float64
	switch {
	case p.Age == nil:
		verr.add("age", "is required")
	case *p.Age < minAge:
		verr.add("age", "applicant must be at least 18")
	case *p.Age > maxAge:
		verr.add("age", "must be at most 120")
	default:
		age = float64(*p.Age)
	}

	var income float64
	if p.Income == nil {
		verr.add("income", "is required")
	} else {
		income = amount(verr, "income", p.Income)
	}

	fv := model.FeatureVector{
		Age:              age,
		Income:           income,
		Expenses:         amount(verr, "expenses", p.Expenses),
		DebtPayments:     amount(verr, "debt_payments", p.DebtPayments),
		OutstandingDebt:  amount(verr, "outstanding_debt", p.OutstandingDebt),
		EmploymentYears:  amount(verr, "employment_years", p.EmploymentYears),
		Dependents:       count(verr, "dependents", p.Dependents),
		CreditLines:      count(verr, "credit_lines", p.CreditLines),
		PreviousLoans:    count(verr, "previous_loans", p.PreviousLoans),
		LatePayments:     count(verr, "late_payments", p.LatePayments),
		PaymentDelayDays: amount(verr, "payment_delay_days", p.PaymentDelayDays),
		AverageBalance:   amount(verr, "average_balance", p.AverageBalance),
		RequestedAmount:  amount(verr, "requested_amount", p.RequestedAmount),
		Assets:           amount(verr, "assets", p.Assets),
		Liabilities:      amount(verr, "liabilities", p.Liabilities),
		Employment:       n.employment.encode(p.EmploymentStatus),
		Marital:          n.marital.encode(p.MaritalStatus),
		Spending:         n.spending.encode(p.SpendingBehavior),
	}

	if !verr.empty() {
		return model.FeatureVector{}, verr
	}

	fv.DebtToIncome = model.NewRatio(fv.DebtPayments, fv.Income)
	fv.ExpenseRatio = model.NewRatio(fv.Expenses, fv.Income)
	fv.Leverage = model.NewRatio(fv.OutstandingDebt+fv.Liabilities, fv.Income)
	fv.LoanToIncome = model.NewRatio(fv.RequestedAmount, fv.Income)
	fv.NetWorthToIncome = model.NewRatio(fv.Assets-fv.Liabilities-fv.OutstandingDebt, fv.Income)
	fv.EmploymentStability = stability(fv.Employment.Ordinal, fv.EmploymentYears)

	return fv, nil
}

// stability combines the employment ordinal with a tenure factor that
// ranges from 0.5 (new job) to 1 (stableTenureYears or more).
func stability(ordinal, years float64) float64 {
	tenure := 0.5 + 0.5*math.Min(years/stableTenureYears, 1)
	return clamp(ordinal*tenure, 0, 1)
}

// amount returns *v or 0, recording a problem for negative or non-finite values.
func amount(verr *ValidationError, field string, v *float64) float64 {
	if v == nil {
		return 0
	}
	switch {
	case math.IsNaN(*v) || math.IsInf(*v, 0):
		verr.add(field, "must be a finite number")
		return 0
	case *v < 0:
		verr.add(field, "must be non-negative")
		return 0
	}
	return *v
}

// count returns *v or 0, recording a problem for negative values.
func count(verr *ValidationError, field string, v *int) float64 {
	if v == nil {
		return 0
	}
	if *v < 0 {
		verr.add(field, "must be non-negative")
		return 0
	}
	return float64(*v)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
