package model

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// FormatVersion is the envelope layout written by Encode.
const FormatVersion = 1

// Metrics are the evaluation results recorded with an artifact.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
}

// Artifact is a fitted classifier together with the version it was trained
// under and the feature names it expects, in order.
type Artifact struct {
	Version    string
	Kind       Kind
	Features   []string
	TrainedAt  time.Time
	Metrics    Metrics
	Classifier Classifier
}

type envelope struct {
	Format    int             `json:"format"`
	Kind      Kind            `json:"kind"`
	Version   string          `json:"version"`
	Features  []string        `json:"features"`
	TrainedAt time.Time       `json:"trained_at"`
	Metrics   Metrics         `json:"metrics"`
	Model     json.RawMessage `json:"model"`
}

// Probabilistic returns the probability capability when the classifier has one.
func (a *Artifact) Probabilistic() (ProbabilisticClassifier, bool) {
	p, ok := a.Classifier.(ProbabilisticClassifier)
	return p, ok
}

// NumFeatures returns the arity of the wrapped classifier.
func (a *Artifact) NumFeatures() int {
	if a.Classifier == nil {
		return 0
	}
	return a.Classifier.NumFeatures()
}

// Encode writes the artifact as an indented JSON envelope.
func (a *Artifact) Encode(w io.Writer) error {
	if a.Classifier == nil || a.Classifier.NumFeatures() == 0 {
		return ErrNotFitted
	}

	params, err := json.Marshal(a.Classifier)
	if err != nil {
		return fmt.Errorf("marshal %s parameters: %w", a.Kind, err)
	}

	env := envelope{
		Format:    FormatVersion,
		Kind:      a.Kind,
		Version:   a.Version,
		Features:  a.Features,
		TrainedAt: a.TrainedAt,
		Metrics:   a.Metrics,
		Model:     params,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	return nil
}

// Decode reads an artifact written by Encode. Every failure wraps
// ErrArtifactCorrupt.
func Decode(r io.Reader) (*Artifact, error) {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
	}
	if env.Format != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format %d", ErrArtifactCorrupt, env.Format)
	}

	clf, err := New(env.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
	}
	if err := json.Unmarshal(env.Model, clf); err != nil {
		return nil, fmt.Errorf("%w: %s parameters: %v", ErrArtifactCorrupt, env.Kind, err)
	}
	if clf.NumFeatures() == 0 {
		return nil, fmt.Errorf("%w: %s has no fitted parameters", ErrArtifactCorrupt, env.Kind)
	}
	if len(env.Features) != 0 && len(env.Features) != clf.NumFeatures() {
		return nil, fmt.Errorf("%w: %d feature names for %d weights",
			ErrArtifactCorrupt, len(env.Features), clf.NumFeatures())
	}

	return &Artifact{
		Version:    env.Version,
		Kind:       env.Kind,
		Features:   env.Features,
		TrainedAt:  env.TrainedAt,
		Metrics:    env.Metrics,
		Classifier: clf,
	}, nil
}
