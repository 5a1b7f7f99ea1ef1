// Package predictor loads a frozen credit model artifact and runs
// inference on feature vectors.
package predictor

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/credit-scorer/internal/model"
)

// Artifact kinds.
const (
	KindLogistic = "logistic"
	KindForest   = "forest"
)

// Positive classes. The engine always wants P(good); artifacts trained
// on the default label are flipped at inference.
const (
	ClassGood    = "good"
	ClassDefault = "default"
)

// leaf marks a tree node without a split.
const leaf = -1

// Input is one model input with its standard scaler.
type Input struct {
	Name  string  `yaml:"name" json:"name"`
	Mean  float64 `yaml:"mean" json:"mean"`
	Scale float64 `yaml:"scale" json:"scale"`
	// Undefined is the raw value substituted for an undefined ratio.
	Undefined *float64 `yaml:"undefined,omitempty" json:"undefined,omitempty"`
}

// Node is one node of a flattened decision tree. Internal nodes route on
// the standardized value of Inputs[Feature]: <= Threshold goes Left.
// Leaves have Feature -1 and carry the positive-class probability in Value.
type Node struct {
	Feature   int     `yaml:"feature" json:"feature"`
	Threshold float64 `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Left      int     `yaml:"left,omitempty" json:"left,omitempty"`
	Right     int     `yaml:"right,omitempty" json:"right,omitempty"`
	Value     float64 `yaml:"value,omitempty" json:"value,omitempty"`
}

// Tree is a decision tree stored as a node array rooted at index 0.
type Tree struct {
	Nodes []Node `yaml:"nodes" json:"nodes"`
}

// Artifact is a loaded, validated model. It is immutable after Load and
// safe to share between goroutines.
type Artifact struct {
	ID            string    `yaml:"id" json:"id"`
	Version       string    `yaml:"version" json:"version"`
	Kind          string    `yaml:"kind" json:"kind"`
	PositiveClass string    `yaml:"positive_class" json:"positive_class"`
	Inputs        []Input   `yaml:"inputs" json:"inputs"`
	Intercept     float64   `yaml:"intercept,omitempty" json:"intercept,omitempty"`
	Coefficients  []float64 `yaml:"coefficients,omitempty" json:"coefficients,omitempty"`
	Trees         []Tree    `yaml:"trees,omitempty" json:"trees,omitempty"`
}

// Load reads and validates an artifact. Files ending in .json are decoded
// as JSON, everything else as YAML.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "predictor: read artifact %s", path)
	}
	a, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, eris.Wrapf(err, "predictor: load %s", path)
	}
	return a, nil
}

// Parse decodes and validates an artifact from memory.
func Parse(data []byte, isJSON bool) (*Artifact, error) {
	var a Artifact
	if isJSON {
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, eris.Wrap(err, "predictor: decode json")
		}
	} else {
		if err := yaml.Unmarshal(data, &a); err != nil {
			return nil, eris.Wrap(err, "predictor: decode yaml")
		}
	}
	if a.PositiveClass == "" {
		a.PositiveClass = ClassGood
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Validate checks the artifact's structure. It collects every problem.
func (a *Artifact) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if a.ID == "" {
		add("id is required")
	}
	if a.Version == "" {
		add("version is required")
	}
	if a.PositiveClass != ClassGood && a.PositiveClass != ClassDefault {
		add("positive_class must be %q or %q", ClassGood, ClassDefault)
	}
	if len(a.Inputs) == 0 {
		add("at least one input is required")
	}
	seen := make(map[string]bool, len(a.Inputs))
	for i, in := range a.Inputs {
		switch {
		case !model.KnownFeature(in.Name):
			add("inputs[%d]: unknown feature %q", i, in.Name)
		case seen[in.Name]:
			add("inputs[%d]: duplicate feature %q", i, in.Name)
		}
		seen[in.Name] = true
		if in.Scale <= 0 || !finite(in.Scale) || !finite(in.Mean) {
			add("inputs[%d]: scaler for %q must have finite mean and positive scale", i, in.Name)
		}
		if model.IsRatio(in.Name) && in.Undefined == nil {
			add("inputs[%d]: ratio %q needs an undefined fill value", i, in.Name)
		}
	}

	switch a.Kind {
	case KindLogistic:
		if len(a.Coefficients) != len(a.Inputs) {
			add("logistic model has %d coefficients for %d inputs", len(a.Coefficients), len(a.Inputs))
		}
		for i, c := range a.Coefficients {
			if !finite(c) {
				add("coefficients[%d] is not finite", i)
			}
		}
		if !finite(a.Intercept) {
			add("intercept is not finite")
		}
	case KindForest:
		if len(a.Trees) == 0 {
			add("forest model needs at least one tree")
		}
		for t, tree := range a.Trees {
			for _, p := range tree.problems(len(a.Inputs)) {
				add("trees[%d]: %s", t, p)
			}
		}
	default:
		add("kind must be %q or %q", KindLogistic, KindForest)
	}

	if len(problems) > 0 {
		return eris.Errorf("predictor: invalid artifact: %s", strings.Join(problems, "; "))
	}
	return nil
}

// problems checks node references. Children must point forward, which
// rules out cycles and guarantees every walk terminates.
func (t Tree) problems(inputs int) []string {
	if len(t.Nodes) == 0 {
		return []string{"no nodes"}
	}
	var errs []string
	for i, n := range t.Nodes {
		if n.Feature == leaf {
			if n.Value < 0 || n.Value > 1 {
				errs = append(errs, fmt.Sprintf("node %d: leaf value must be in [0,1]", i))
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= inputs {
			errs = append(errs, fmt.Sprintf("node %d: feature index %d out of range", i, n.Feature))
		}
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			errs = append(errs, fmt.Sprintf("node %d: children must point forward within the tree", i))
		}
	}
	return errs
}

// Vector extracts and standardizes the artifact's inputs from fv.
func (a *Artifact) Vector(fv model.FeatureVector) ([]float64, error) {
	x := make([]float64, len(a.Inputs))
	for i, in := range a.Inputs {
		v, ok := fv.Lookup(in.Name)
		if !ok {
			// One-hot for a category outside the configured table.
			if strings.Contains(in.Name, "=") {
				v = 0
			} else {
				return nil, eris.Errorf("predictor: feature %q not available", in.Name)
			}
		}
		if model.IsRatio(in.Name) && !model.Ratio(v).Defined() {
			v = *in.Undefined
		}
		x[i] = (v - in.Mean) / in.Scale
	}
	return x, nil
}

// Probability returns P(good) for a standardized input vector.
func (a *Artifact) Probability(x []float64) float64 {
	var p float64
	switch a.Kind {
	case KindLogistic:
		z := a.Intercept
		for i, c := range a.Coefficients {
			z += c * x[i]
		}
		p = 1 / (1 + math.Exp(-z))
	case KindForest:
		for _, t := range a.Trees {
			p += t.walk(x)
		}
		p /= float64(len(a.Trees))
	}
	if a.PositiveClass == ClassDefault {
		p = 1 - p
	}
	return p
}

func (t Tree) walk(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature == leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Predict scores fv and attributes the result to each input by occlusion:
// the attribution of an input is how much the probability moves when that
// input is replaced by its training mean.
func (a *Artifact) Predict(fv model.FeatureVector) (model.Prediction, error) {
	x, err := a.Vector(fv)
	if err != nil {
		return model.Prediction{}, err
	}
	p := a.Probability(x)
	if !finite(p) {
		return model.Prediction{}, eris.Errorf("predictor: non-finite probability %v", p)
	}

	attrs := make(map[string]float64, len(a.Inputs))
	occluded := make([]float64, len(x))
	for i, in := range a.Inputs {
		copy(occluded, x)
		occluded[i] = 0
		attrs[in.Name] = p - a.Probability(occluded)
	}

	return model.Prediction{
		Probability:  p,
		Attributions: attrs,
		ModelID:      a.ID,
		ModelVersion: a.Version,
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
