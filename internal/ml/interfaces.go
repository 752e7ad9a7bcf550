// Package ml serves versioned churn models. A Resolver turns a version
// identifier into a loaded artifact from the artifact store; Predict applies
// an artifact to a feature vector; ModelServer exposes both over HTTP.
//
// The service runs under one of two policies chosen at startup:
//
//   - versioned: every request names a version (or gets the default) and an
//     unknown version is a not-found error;
//   - preload: a single unversioned artifact is loaded once at startup and,
//     when it is absent, every prediction returns a sentinel probability.
package ml

import (
	"errors"
	"fmt"

	"churn-serving/internal/model"
)

var (
	// ErrModelNotFound matches every *NotFoundError.
	ErrModelNotFound = errors.New("model not found")

	// ErrModelUnavailable is reported by a Preloaded handle with no artifact.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrProbabilityUnsupported is returned when a probability is requested
	// from a label-only model.
	ErrProbabilityUnsupported = errors.New("model does not support probability output")

	// ErrInvalidOutput is returned for an unknown prediction output.
	ErrInvalidOutput = errors.New("invalid prediction output")

	// ErrMissingFeature is returned when a named feature the model needs was
	// not supplied.
	ErrMissingFeature = errors.New("missing feature")
)

// NotFoundError reports a version with no artifact in the store.
type NotFoundError struct {
	Version string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("model version %q not found", e.Version)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrModelNotFound
}

// ArtifactStore is the read side of the artifact store.
type ArtifactStore interface {
	LocationFor(version string) string
	Exists(location string) (bool, error)
	Read(location string) (*model.Artifact, error)
}

// VersionLister lists the versions present in the store.
type VersionLister interface {
	Versions() ([]string, error)
}

// MetricsInterface defines the metrics the resolver and server report.
type MetricsInterface interface {
	PredictionsInc()
	PredictionFailuresInc()
	SentinelInc()
	LatencyObserve(float64)
	ScoreObserve(float64)
	ModelNotFoundInc()
	ArtifactLoadsInc()
	CacheHitInc()
	CacheMissInc()
	ModelAgeSet(float64)
	HTTPRequest(route string, code int)
}

type noopMetrics struct{}

func (noopMetrics) PredictionsInc() {}
func (noopMetrics) PredictionFailuresInc() {}
func (noopMetrics) SentinelInc() {}
func (noopMetrics) LatencyObserve(float64) {}
func (noopMetrics) ScoreObserve(float64) {}
func (noopMetrics) ModelNotFoundInc() {}
func (noopMetrics) ArtifactLoadsInc() {}
func (noopMetrics) CacheHitInc() {}
func (noopMetrics) CacheMissInc() {}
func (noopMetrics) ModelAgeSet(float64) {}
func (noopMetrics) HTTPRequest(string, int) {}
