package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		num, den    float64
		want        Ratio
		wantDefined bool
	}{
		{"simple", 1, 4, 0.25, true},
		{"zero numerator", 0, 10, 0, true},
		{"zero denominator", 5, 0, UndefinedRatio, false},
		{"zero over zero", 0, 0, UndefinedRatio, false},
		{"minus one is a real quotient", -5, 5, -1, true},
		{"negative", -7, 2, -3.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NewRatio(tt.num, tt.den)
			assert.Equal(t, tt.wantDefined, got.Defined())
			if tt.wantDefined {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFeatureVectorLookup(t *testing.T) {
	t.Parallel()

	fv := FeatureVector{
		Age:                 40,
		Income:              5000,
		DebtToIncome:        0.2,
		ExpenseRatio:        UndefinedRatio,
		EmploymentStability: 0.9,
		Employment: Category{
			Value:   "employed",
			Ordinal: 1,
			OneHot:  []float64{1, 0, 0},
			Labels:  []string{"employed", "unemployed", "other"},
		},
	}

	v, ok := fv.Lookup(FeatureAge)
	assert.True(t, ok)
	assert.InDelta(t, 40, v, 0.001)

	v, ok = fv.Lookup(FeatureDebtToIncome)
	assert.True(t, ok)
	assert.InDelta(t, 0.2, v, 0.001)

	v, ok = fv.Lookup(FeatureExpenseRatio)
	assert.True(t, ok)
	assert.False(t, Ratio(v).Defined())

	v, ok = fv.Lookup(FeatureEmployment)
	assert.True(t, ok)
	assert.InDelta(t, 1, v, 0.001)

	v, ok = fv.Lookup("employment_status=employed")
	assert.True(t, ok)
	assert.InDelta(t, 1, v, 0.001)

	v, ok = fv.Lookup("employment_status=unemployed")
	assert.True(t, ok)
	assert.InDelta(t, 0, v, 0.001)

	_, ok = fv.Lookup("employment_status=astronaut")
	assert.False(t, ok)

	_, ok = fv.Lookup("shoe_size")
	assert.False(t, ok)
}

func TestIsRatio(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRatio(FeatureDebtToIncome))
	assert.True(t, IsRatio(FeatureNetWorthToIncome))
	assert.False(t, IsRatio(FeatureAge))
	assert.False(t, IsRatio(FeatureEmploymentStability))
}

func TestDirectionIsNegative(t *testing.T) {
	t.Parallel()

	assert.True(t, DirectionNegative.IsNegative())
	assert.True(t, DirectionStronglyNegative.IsNegative())
	assert.False(t, DirectionPositive.IsNegative())
	assert.False(t, DirectionNeutral.IsNegative())
}

func TestApplicationSummary(t *testing.T) {
	t.Parallel()

	app := Application{
		ID:      "abc",
		Profile: ApplicantProfile{Age: Int(30), Income: Float(1000)},
		Result:  ScoreResult{Score: 55, Tier: RiskMedium, Degraded: true},
	}
	s := app.Summary()
	assert.Equal(t, "abc", s.ID)
	assert.Equal(t, DefaultApplicantName, s.Name)
	assert.Equal(t, 55, s.Score)
	assert.Equal(t, RiskMedium, s.Tier)
	assert.True(t, s.Degraded)
}

func TestScoreResultTopFactor(t *testing.T) {
	t.Parallel()

	_, ok := ScoreResult{}.TopFactor()
	assert.False(t, ok)

	r := ScoreResult{Factors: []FactorContribution{{Name: "a", Value: -3}, {Name: "b", Value: 1}}}
	top, ok := r.TopFactor()
	assert.True(t, ok)
	assert.Equal(t, "a", top.Name)
	assert.InDelta(t, 3, top.Magnitude(), 0.001)
}

func TestKnownFeature(t *testing.T) {
	assert.True(t, KnownFeature(FeatureDebtToIncome))
	assert.True(t, KnownFeature(FeatureEmployment))
	assert.True(t, KnownFeature("employment_status=retired"))
	assert.False(t, KnownFeature("employment_status="))
	assert.False(t, KnownFeature("income=high"))
	assert.False(t, KnownFeature("shoe_size"))
}
