// Package training turns a dataset into a persisted, versioned model
// artifact: split, fit, evaluate, write. A run is a one-shot batch job and
// any failure aborts it.
package training

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"churn-serving/internal/model"
	"churn-serving/internal/storage"
	"churn-serving/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ArtifactWriter is the part of the artifact store the producer needs.
type ArtifactWriter interface {
	LocationFor(version string) string
	Unversioned() string
	Write(location string, artifact *model.Artifact) error
}

// RunRecorder receives one record per successful run.
type RunRecorder interface {
	RecordRun(run storage.Run) error
}

// Options configure a training run.
type Options struct {
	Version     string
	Kind        model.Kind
	TestRatio   float64
	Seed        int64
	Unversioned bool
}

// Result describes a completed run.
type Result struct {
	RunID     string
	Version   string
	Location  string
	Accuracy  float64
	TrainRows int
	TestRows  int
	Duration  time.Duration
	Artifact  *model.Artifact
}

// Producer fits classifiers and publishes them to an artifact store.
type Producer struct {
	store    ArtifactWriter
	recorder RunRecorder
	now      func() time.Time
}

// NewProducer creates a producer. recorder may be nil.
func NewProducer(w ArtifactWriter, recorder RunRecorder) *Producer {
	return &Producer{
		store:    w,
		recorder: recorder,
		now:      time.Now,
	}
}

// Run trains on ds and writes the fitted model under opts.Version.
func (p *Producer) Run(ctx context.Context, ds Dataset, opts Options) (*Result, error) {
	if err := store.ValidateVersion(opts.Version); err != nil {
		return nil, err
	}
	if len(ds.Features) == 0 || ds.Len() == 0 {
		return nil, fmt.Errorf("empty dataset")
	}

	started := p.now()
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Str("version", opts.Version).Logger()

	clf, err := model.New(opts.Kind)
	if err != nil {
		return nil, err
	}

	train, test := ds.Split(opts.TestRatio, opts.Seed)
	logger.Debug().
		Int("train_rows", train.Len()).
		Int("test_rows", test.Len()).
		Int64("seed", opts.Seed).
		Msg("dataset split")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := clf.Fit(train.X, train.Y); err != nil {
		return nil, fmt.Errorf("fit %s: %w", opts.Kind, err)
	}

	// With no held-out rows the model is scored on its training data.
	eval := test
	if eval.Len() == 0 {
		eval = train
	}
	accuracy, err := Accuracy(clf, eval)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	artifact := &model.Artifact{
		Version:   opts.Version,
		Kind:      opts.Kind,
		Features:  ds.Features,
		TrainedAt: started.UTC(),
		Metrics: model.Metrics{
			Accuracy:  accuracy,
			TrainRows: train.Len(),
			TestRows:  test.Len(),
		},
		Classifier: clf,
	}

	location := p.store.LocationFor(opts.Version)
	if opts.Unversioned {
		location = p.store.Unversioned()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.store.Write(location, artifact); err != nil {
		return nil, err
	}

	res := &Result{
		RunID:     runID,
		Version:   opts.Version,
		Location:  location,
		Accuracy:  accuracy,
		TrainRows: train.Len(),
		TestRows:  test.Len(),
		Duration:  p.now().Sub(started),
		Artifact:  artifact,
	}

	if p.recorder != nil {
		run := storage.Run{
			ID:        runID,
			Version:   opts.Version,
			Kind:      string(opts.Kind),
			Location:  location,
			Features:  ds.Features,
			Accuracy:  accuracy,
			TrainRows: res.TrainRows,
			TestRows:  res.TestRows,
			Params: map[string]string{
				"test_ratio":  strconv.FormatFloat(opts.TestRatio, 'f', -1, 64),
				"seed":        strconv.FormatInt(opts.Seed, 10),
				"unversioned": strconv.FormatBool(opts.Unversioned),
			},
			StartedAt:  started,
			DurationMS: res.Duration.Milliseconds(),
		}
		if err := p.recorder.RecordRun(run); err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
	}

	logger.Info().
		Str("path", location).
		Float64("accuracy", accuracy).
		Msg("training completed")

	return res, nil
}

// Accuracy is the fraction of rows in d that clf labels correctly.
func Accuracy(clf model.Classifier, d Dataset) (float64, error) {
	if d.Len() == 0 {
		return 0, fmt.Errorf("no rows to evaluate")
	}

	var correct int
	for i, row := range d.X {
		label, err := clf.Predict(row)
		if err != nil {
			return 0, err
		}
		if label == d.Y[i] {
			correct++
		}
	}
	return float64(correct) / float64(d.Len()), nil
}
