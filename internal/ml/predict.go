package ml

import (
	"fmt"

	"churn-serving/internal/common"
	"churn-serving/internal/model"
)

// Output selects what a prediction reports.
type Output string

const (
	OutputProbability Output = common.OutputProbability
	OutputLabel       Output = common.OutputLabel
	OutputRaw         Output = common.OutputRaw
)

// ParseOutput parses s, returning def when s is empty.
func ParseOutput(s string, def Output) (Output, error) {
	if s == "" {
		return def, nil
	}
	switch o := Output(s); o {
	case OutputProbability, OutputLabel, OutputRaw:
		return o, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOutput, s)
}

// Prediction is the result of applying an artifact to one feature vector.
// Exactly one of Probability, Label or Probabilities is set, per Output.
type Prediction struct {
	Version       string
	Kind          model.Kind
	Output        Output
	Probability   float64
	Label         int
	Probabilities []float64
}

// Predict applies a to features. Feature vectors of the wrong arity fail
// with model.ErrFeatureArity; they are never truncated or padded.
func Predict(a *model.Artifact, features []float64, out Output) (*Prediction, error) {
	p := &Prediction{Version: a.Version, Kind: a.Kind, Output: out}

	switch out {
	case OutputLabel:
		label, err := a.Classifier.Predict(features)
		if err != nil {
			return nil, err
		}
		p.Label = label
	case OutputProbability, OutputRaw:
		pc, ok := a.Probabilistic()
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProbabilityUnsupported, a.Kind)
		}
		proba, err := pc.PredictProba(features)
		if err != nil {
			return nil, err
		}
		if out == OutputRaw {
			p.Probabilities = proba
		} else {
			p.Probability = proba[1]
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidOutput, out)
	}

	return p, nil
}

// FeaturesByName orders named values by the artifact's feature names.
// Unknown names are ignored.
func FeaturesByName(a *model.Artifact, named map[string]float64) ([]float64, error) {
	if len(a.Features) == 0 {
		return nil, fmt.Errorf("%w: model %s records no feature names", ErrMissingFeature, a.Version)
	}
	out := make([]float64, len(a.Features))
	for i, name := range a.Features {
		v, ok := named[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingFeature, name)
		}
		out[i] = v
	}
	return out, nil
}
