// Package model holds the domain types shared by the scoring engine, the
// predictor, and the outer surfaces (HTTP, store, batch).
package model

// ApplicantProfile is the raw input to one evaluation. Optional numeric
// fields are pointers so an absent value is distinguishable from zero.
// Age and Income are mandatory.
type ApplicantProfile struct {
	Name             string   `json:"name" yaml:"name" csv:"name"`
	Age              *int     `json:"age" yaml:"age" csv:"age,omitempty"`
	Income           *float64 `json:"income" yaml:"income" csv:"income,omitempty"`
	Expenses         *float64 `json:"expenses,omitempty" yaml:"expenses" csv:"expenses,omitempty"`
	DebtPayments     *float64 `json:"debt_payments,omitempty" yaml:"debt_payments" csv:"debt_payments,omitempty"`
	OutstandingDebt  *float64 `json:"outstanding_debt,omitempty" yaml:"outstanding_debt" csv:"outstanding_debt,omitempty"`
	EmploymentStatus string   `json:"employment_status,omitempty" yaml:"employment_status" csv:"employment_status,omitempty"`
	EmploymentYears  *float64 `json:"employment_years,omitempty" yaml:"employment_years" csv:"employment_years,omitempty"`
	MaritalStatus    string   `json:"marital_status,omitempty" yaml:"marital_status" csv:"marital_status,omitempty"`
	Dependents       *int     `json:"dependents,omitempty" yaml:"dependents" csv:"dependents,omitempty"`
	CreditLines      *int     `json:"credit_lines,omitempty" yaml:"credit_lines" csv:"credit_lines,omitempty"`
	PreviousLoans    *int     `json:"previous_loans,omitempty" yaml:"previous_loans" csv:"previous_loans,omitempty"`
	LatePayments     *int     `json:"late_payments,omitempty" yaml:"late_payments" csv:"late_payments,omitempty"`
	PaymentDelayDays *float64 `json:"payment_delay_days,omitempty" yaml:"payment_delay_days" csv:"payment_delay_days,omitempty"`
	AverageBalance   *float64 `json:"average_balance,omitempty" yaml:"average_balance" csv:"average_balance,omitempty"`
	RequestedAmount  *float64 `json:"requested_amount,omitempty" yaml:"requested_amount" csv:"requested_amount,omitempty"`
	Assets           *float64 `json:"assets,omitempty" yaml:"assets" csv:"assets,omitempty"`
	Liabilities      *float64 `json:"liabilities,omitempty" yaml:"liabilities" csv:"liabilities,omitempty"`
	SpendingBehavior string   `json:"spending_behavior,omitempty" yaml:"spending_behavior" csv:"spending_behavior,omitempty"`
}

// DefaultApplicantName is used when a profile carries no name.
const DefaultApplicantName = "applicant"

// DisplayName returns the applicant name or DefaultApplicantName.
func (p ApplicantProfile) DisplayName() string {
	if p.Name == "" {
		return DefaultApplicantName
	}
	return p.Name
}

// Int returns a pointer to v. Convenience for building profiles.
func Int(v int) *int { return &v }

// Float returns a pointer to v. Convenience for building profiles.
func Float(v float64) *float64 { return &v }
