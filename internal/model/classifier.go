// Package model defines the classifier capabilities used by the churn
// pipeline, the two classifiers shipped with it, and the JSON envelope a
// fitted classifier is persisted in.
//
// A Classifier can always produce a class label. Classifiers that can also
// produce class probabilities implement ProbabilisticClassifier; callers that
// need a probability must type-assert and fail explicitly when it is missing.
package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFeatureArity is returned when a feature vector does not have the
	// number of features the classifier was fitted on.
	ErrFeatureArity = errors.New("feature arity mismatch")

	// ErrNotFitted is returned when predicting with a classifier that has no
	// fitted parameters.
	ErrNotFitted = errors.New("model not fitted")

	// ErrArtifactCorrupt wraps every failure to decode a persisted artifact.
	ErrArtifactCorrupt = errors.New("artifact corrupt")

	// ErrUnknownKind is returned for a classifier kind with no implementation.
	ErrUnknownKind = errors.New("unknown model kind")

	// ErrInvalidTrainingSet is returned by Fit for unusable training data.
	ErrInvalidTrainingSet = errors.New("invalid training set")
)

// Classifier is the label-only capability.
type Classifier interface {
	// Fit trains the classifier on rows X with binary labels y.
	Fit(X [][]float64, y []int) error

	// Predict returns the class label (0 or 1) for one feature vector.
	Predict(features []float64) (int, error)

	// NumFeatures returns the arity the classifier was fitted on, or 0.
	NumFeatures() int
}

// ProbabilisticClassifier is a Classifier that also reports class
// probabilities as [p0, p1].
type ProbabilisticClassifier interface {
	Classifier
	PredictProba(features []float64) ([]float64, error)
}

// Kind names a classifier implementation inside a persisted artifact.
type Kind string

const (
	KindLogisticRegression Kind = "logistic_regression"
	KindNearestCentroid    Kind = "nearest_centroid"
)

// ParseKind maps a configuration string onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindLogisticRegression, KindNearestCentroid:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// New returns an unfitted classifier of the given kind.
func New(kind Kind) (Classifier, error) {
	switch kind {
	case KindLogisticRegression:
		return NewLogisticRegression(), nil
	case KindNearestCentroid:
		return NewNearestCentroid(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func checkArity(want, got int) error {
	if want == 0 {
		return ErrNotFitted
	}
	if want != got {
		return fmt.Errorf("%w: model expects %d features, got %d", ErrFeatureArity, want, got)
	}
	return nil
}

// validateTrainingSet checks shape and labels and returns the row arity.
func validateTrainingSet(X [][]float64, y []int) (int, error) {
	if len(X) == 0 {
		return 0, fmt.Errorf("%w: no rows", ErrInvalidTrainingSet)
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("%w: %d rows but %d labels", ErrInvalidTrainingSet, len(X), len(y))
	}

	arity := len(X[0])
	if arity == 0 {
		return 0, fmt.Errorf("%w: rows have no features", ErrInvalidTrainingSet)
	}

	var seen [2]bool
	for i, row := range X {
		if len(row) != arity {
			return 0, fmt.Errorf("%w: row %d has %d features, want %d", ErrInvalidTrainingSet, i, len(row), arity)
		}
		if y[i] != 0 && y[i] != 1 {
			return 0, fmt.Errorf("%w: row %d has label %d, want 0 or 1", ErrInvalidTrainingSet, i, y[i])
		}
		seen[y[i]] = true
	}
	if !seen[0] || !seen[1] {
		return 0, fmt.Errorf("%w: both classes must be present", ErrInvalidTrainingSet)
	}

	return arity, nil
}
