package ml

import (
	"fmt"
	"time"

	"churn-serving/internal/common"
	"churn-serving/internal/model"

	"github.com/rs/zerolog/log"
)

// Preloaded holds the single artifact loaded at startup in preload mode.
// It is assigned once before the server starts and never changes.
type Preloaded struct {
	location string
	artifact *model.Artifact
	loadedAt time.Time
}

// Preload loads the artifact at location. A missing artifact yields an
// unavailable handle and no error; an unreadable or corrupt one is an error.
func Preload(s ArtifactStore, location string) (*Preloaded, error) {
	p := &Preloaded{location: location}

	ok, err := s.Exists(location)
	if err != nil {
		return nil, fmt.Errorf("check preload artifact: %w", err)
	}
	if !ok {
		log.Warn().Str("path", location).Msg("no model artifact found, predictions will return the sentinel")
		return p, nil
	}

	a, err := s.Read(location)
	if err != nil {
		return nil, fmt.Errorf("preload artifact: %w", err)
	}
	p.artifact = a
	p.loadedAt = time.Now()

	log.Info().
		Str("path", location).
		Str("version", a.Version).
		Str("kind", string(a.Kind)).
		Msg("model artifact preloaded")
	return p, nil
}

// Available reports whether an artifact was loaded.
func (p *Preloaded) Available() bool {
	return p != nil && p.artifact != nil
}

// Location returns the path the handle was loaded from.
func (p *Preloaded) Location() string {
	if p == nil {
		return ""
	}
	return p.location
}

// Artifact returns the loaded artifact or ErrModelUnavailable.
func (p *Preloaded) Artifact() (*model.Artifact, error) {
	if !p.Available() {
		return nil, ErrModelUnavailable
	}
	return p.artifact, nil
}

// Age returns how long ago the artifact was trained, or zero when unknown.
func (p *Preloaded) Age() time.Duration {
	if !p.Available() || p.artifact.TrainedAt.IsZero() {
		return 0
	}
	return time.Since(p.artifact.TrainedAt)
}

// ChurnProbability returns P(churn) for features, or the sentinel
// probability when no artifact is loaded.
func (p *Preloaded) ChurnProbability(features []float64) (float64, error) {
	a, err := p.Artifact()
	if err != nil {
		return common.SentinelProbability, nil
	}
	pred, err := Predict(a, features, OutputProbability)
	if err != nil {
		return 0, err
	}
	return pred.Probability, nil
}
