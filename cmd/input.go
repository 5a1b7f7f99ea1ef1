package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/credit-scorer/internal/model"
)

// readProfiles loads applicant profiles from a .json, .yaml/.yml or .csv
// file. JSON and YAML files may hold a single profile or a list.
func readProfiles(path string) ([]model.ApplicantProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	profiles, err := decodeProfiles(data, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, eris.Wrapf(err, "decode %s", path)
	}
	if len(profiles) == 0 {
		return nil, eris.Errorf("%s holds no profiles", path)
	}
	return profiles, nil
}

func decodeProfiles(data []byte, ext string) ([]model.ApplicantProfile, error) {
	switch ext {
	case ".csv":
		var profiles []model.ApplicantProfile
		if err := csvutil.Unmarshal(data, &profiles); err != nil {
			return nil, eris.Wrap(err, "csv")
		}
		return profiles, nil

	case ".json":
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var profiles []model.ApplicantProfile
			if err := json.Unmarshal(trimmed, &profiles); err != nil {
				return nil, eris.Wrap(err, "json")
			}
			return profiles, nil
		}
		var p model.ApplicantProfile
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return nil, eris.Wrap(err, "json")
		}
		return []model.ApplicantProfile{p}, nil

	case ".yaml", ".yml":
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, eris.Wrap(err, "yaml")
		}
		if len(doc.Content) == 0 {
			return nil, nil
		}
		root := doc.Content[0]
		if root.Kind == yaml.SequenceNode {
			var profiles []model.ApplicantProfile
			if err := root.Decode(&profiles); err != nil {
				return nil, eris.Wrap(err, "yaml")
			}
			return profiles, nil
		}
		var p model.ApplicantProfile
		if err := root.Decode(&p); err != nil {
			return nil, eris.Wrap(err, "yaml")
		}
		return []model.ApplicantProfile{p}, nil

	default:
		return nil, eris.Errorf("unsupported input format %q (want .json, .yaml, .yml or .csv)", ext)
	}
}

// Profile flags. Each optional field is set only when its flag is given.
var (
	floatProfileFlags = []struct {
		name, usage string
		field       func(*model.ApplicantProfile) **float64
	}{
		{"income", "monthly income", func(p *model.ApplicantProfile) **float64 { return &p.Income }},
		{"expenses", "monthly expenses", func(p *model.ApplicantProfile) **float64 { return &p.Expenses }},
		{"debt-payments", "monthly debt payments", func(p *model.ApplicantProfile) **float64 { return &p.DebtPayments }},
		{"outstanding-debt", "total outstanding debt", func(p *model.ApplicantProfile) **float64 { return &p.OutstandingDebt }},
		{"employment-years", "years in current employment", func(p *model.ApplicantProfile) **float64 { return &p.EmploymentYears }},
		{"payment-delay-days", "average payment delay in days", func(p *model.ApplicantProfile) **float64 { return &p.PaymentDelayDays }},
		{"average-balance", "average account balance", func(p *model.ApplicantProfile) **float64 { return &p.AverageBalance }},
		{"requested-amount", "requested loan amount", func(p *model.ApplicantProfile) **float64 { return &p.RequestedAmount }},
		{"assets", "total assets", func(p *model.ApplicantProfile) **float64 { return &p.Assets }},
		{"liabilities", "total liabilities", func(p *model.ApplicantProfile) **float64 { return &p.Liabilities }},
	}

	intProfileFlags = []struct {
		name, usage string
		field       func(*model.ApplicantProfile) **int
	}{
		{"age", "applicant age in years", func(p *model.ApplicantProfile) **int { return &p.Age }},
		{"dependents", "number of dependents", func(p *model.ApplicantProfile) **int { return &p.Dependents }},
		{"credit-lines", "open credit lines", func(p *model.ApplicantProfile) **int { return &p.CreditLines }},
		{"previous-loans", "previously repaid loans", func(p *model.ApplicantProfile) **int { return &p.PreviousLoans }},
		{"late-payments", "late payments on record", func(p *model.ApplicantProfile) **int { return &p.LatePayments }},
	}

	stringProfileFlags = []struct {
		name, usage string
		field       func(*model.ApplicantProfile) *string
	}{
		{"name", "applicant name", func(p *model.ApplicantProfile) *string { return &p.Name }},
		{"employment-status", "employment status", func(p *model.ApplicantProfile) *string { return &p.EmploymentStatus }},
		{"marital-status", "marital status", func(p *model.ApplicantProfile) *string { return &p.MaritalStatus }},
		{"spending-behavior", "spending behavior", func(p *model.ApplicantProfile) *string { return &p.SpendingBehavior }},
	}
)

func addProfileFlags(fs *pflag.FlagSet) {
	for _, f := range floatProfileFlags {
		fs.Float64(f.name, 0, f.usage)
	}
	for _, f := range intProfileFlags {
		fs.Int(f.name, 0, f.usage)
	}
	for _, f := range stringProfileFlags {
		fs.String(f.name, "", f.usage)
	}
}

// profileFromFlags builds a profile from the flags that were set. It
// reports false when no profile flag was given.
func profileFromFlags(fs *pflag.FlagSet) (model.ApplicantProfile, bool, error) {
	var p model.ApplicantProfile
	var set bool
	for _, f := range floatProfileFlags {
		if !fs.Changed(f.name) {
			continue
		}
		v, err := fs.GetFloat64(f.name)
		if err != nil {
			return p, false, err
		}
		*f.field(&p) = &v
		set = true
	}
	for _, f := range intProfileFlags {
		if !fs.Changed(f.name) {
			continue
		}
		v, err := fs.GetInt(f.name)
		if err != nil {
			return p, false, err
		}
		*f.field(&p) = &v
		set = true
	}
	for _, f := range stringProfileFlags {
		if !fs.Changed(f.name) {
			continue
		}
		v, err := fs.GetString(f.name)
		if err != nil {
			return p, false, err
		}
		*f.field(&p) = v
		set = true
	}
	return p, set, nil
}
