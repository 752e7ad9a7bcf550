package ml

import (
	"context"
	"errors"
	"testing"

	"churn-serving/internal/model"
	"churn-serving/internal/store"
	"churn-serving/internal/training"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *store.Store {
	return store.New(memfs.New(), "models", "model.json")
}

func train(t *testing.T, s *store.Store, version string, kind model.Kind) *training.Result {
	t.Helper()
	res, err := training.NewProducer(s, nil).Run(context.Background(), training.DemoChurn(), training.Options{
		Version:   version,
		Kind:      kind,
		TestRatio: 0.2,
		Seed:      42,
	})
	require.NoError(t, err)
	return res
}

func TestResolver_ResolvesTrainedVersion(t *testing.T) {
	s := newTestStore()
	train(t, s, "v1", model.KindLogisticRegression)

	r, err := NewResolver(s, ResolverConfig{CacheSize: 4}, nil)
	require.NoError(t, err)

	a, err := r.Resolve("v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", a.Version)
	assert.Equal(t, model.KindLogisticRegression, a.Kind)
}

func TestResolver_MissingVersionNeverFallsBack(t *testing.T) {
	s := newTestStore()
	train(t, s, "v1", model.KindLogisticRegression)
	train(t, s, "latest", model.KindLogisticRegression)

	mm := &MockMetrics{}
	r, err := NewResolver(s, ResolverConfig{}, mm)
	require.NoError(t, err)

	_, err = r.Resolve("v2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelNotFound))

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "v2", nf.Version)
	assert.Contains(t, err.Error(), "v2")
	assert.Equal(t, 1, mm.notFound)
}

func TestResolver_DefaultIsLiteralLatest(t *testing.T) {
	s := newTestStore()
	train(t, s, "v1", model.KindLogisticRegression)

	r, err := NewResolver(s, ResolverConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "latest", r.DefaultVersion())
	assert.Equal(t, "latest", r.Effective(""))
	assert.Equal(t, "v1", r.Effective("v1"))

	// v1 exists but "latest" does not; no alias is derived.
	_, err = r.Resolve("")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "latest", nf.Version)

	train(t, s, "latest", model.KindNearestCentroid)
	a, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "latest", a.Version)

	explicit, err := r.Resolve("latest")
	require.NoError(t, err)
	assert.Equal(t, a.Kind, explicit.Kind)
}

func TestResolver_CustomDefault(t *testing.T) {
	s := newTestStore()
	train(t, s, "v1", model.KindLogisticRegression)

	r, err := NewResolver(s, ResolverConfig{DefaultVersion: "v1"}, nil)
	require.NoError(t, err)

	a, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "v1", a.Version)
}

func TestResolver_InvalidVersion(t *testing.T) {
	r, err := NewResolver(newTestStore(), ResolverConfig{}, nil)
	require.NoError(t, err)

	for _, v := range []string{"..", "../v1", "a/b", ".hidden"} {
		_, err := r.Resolve(v)
		assert.ErrorIs(t, err, store.ErrInvalidVersion, v)
	}

	_, err = NewResolver(newTestStore(), ResolverConfig{DefaultVersion: "../x"}, nil)
	assert.ErrorIs(t, err, store.ErrInvalidVersion)
}

func TestResolver_CachesOnlySuccesses(t *testing.T) {
	s := newTestStore()
	mm := &MockMetrics{}
	r, err := NewResolver(s, ResolverConfig{CacheSize: 2}, mm)
	require.NoError(t, err)

	_, err = r.Resolve("v1")
	require.ErrorIs(t, err, ErrModelNotFound)

	train(t, s, "v1", model.KindLogisticRegression)

	_, err = r.Resolve("v1")
	require.NoError(t, err)
	_, err = r.Resolve("v1")
	require.NoError(t, err)

	assert.Equal(t, 1, mm.loads)
	assert.Equal(t, 1, mm.cacheHits)
	assert.Equal(t, 2, mm.cacheMisses)

	r.Purge()
	_, err = r.Resolve("v1")
	require.NoError(t, err)
	assert.Equal(t, 2, mm.loads)
}

func TestResolver_NoCacheReadsEveryTime(t *testing.T) {
	s := newTestStore()
	train(t, s, "v1", model.KindLogisticRegression)

	mm := &MockMetrics{}
	r, err := NewResolver(s, ResolverConfig{CacheSize: 0}, mm)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := r.Resolve("v1")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, mm.loads)
	assert.Zero(t, mm.cacheHits)
}

func TestResolver_CorruptArtifact(t *testing.T) {
	fs := memfs.New()
	s := store.New(fs, "models", "model.json")
	f, err := fs.Create(s.LocationFor("v1"))
	require.NoError(t, err)
	_, err = f.Write([]byte("not json"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r, err := NewResolver(s, ResolverConfig{CacheSize: 2}, nil)
	require.NoError(t, err)

	_, err = r.Resolve("v1")
	assert.ErrorIs(t, err, model.ErrArtifactCorrupt)
	assert.NotErrorIs(t, err, ErrModelNotFound)
}

func TestPredict_Outputs(t *testing.T) {
	s := newTestStore()
	train(t, s, "v1", model.KindLogisticRegression)
	a, err := s.Read(s.LocationFor("v1"))
	require.NoError(t, err)

	p, err := Predict(a, []float64{6, 90}, OutputProbability)
	require.NoError(t, err)
	assert.Greater(t, p.Probability, 0.5)

	l, err := Predict(a, []float64{6, 90}, OutputLabel)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Label)

	raw, err := Predict(a, []float64{6, 90}, OutputRaw)
	require.NoError(t, err)
	require.Len(t, raw.Probabilities, 2)
	assert.InDelta(t, 1.0, raw.Probabilities[0]+raw.Probabilities[1], 1e-9)
	assert.InDelta(t, p.Probability, raw.Probabilities[1], 1e-12)

	_, err = Predict(a, []float64{6}, OutputProbability)
	assert.ErrorIs(t, err, model.ErrFeatureArity)

	_, err = Predict(a, []float64{6, 90, 1}, OutputLabel)
	assert.ErrorIs(t, err, model.ErrFeatureArity)

	_, err = Predict(a, []float64{6, 90}, Output("score"))
	assert.ErrorIs(t, err, ErrInvalidOutput)
}

func TestPredict_LabelOnlyModel(t *testing.T) {
	s := newTestStore()
	train(t, s, "v1", model.KindNearestCentroid)
	a, err := s.Read(s.LocationFor("v1"))
	require.NoError(t, err)

	_, err = Predict(a, []float64{6, 90}, OutputProbability)
	assert.ErrorIs(t, err, ErrProbabilityUnsupported)

	l, err := Predict(a, []float64{6, 90}, OutputLabel)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Label)
}

func TestParseOutput(t *testing.T) {
	o, err := ParseOutput("", OutputLabel)
	require.NoError(t, err)
	assert.Equal(t, OutputLabel, o)

	o, err = ParseOutput("raw", OutputLabel)
	require.NoError(t, err)
	assert.Equal(t, OutputRaw, o)

	_, err = ParseOutput("proba", OutputLabel)
	assert.ErrorIs(t, err, ErrInvalidOutput)
}

func TestFeaturesByName(t *testing.T) {
	a := &model.Artifact{Version: "v1", Features: []string{"tenure", "monthly_charges"}}

	f, err := FeaturesByName(a, map[string]float64{"monthly_charges": 90, "tenure": 6, "extra": 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 90}, f)

	_, err = FeaturesByName(a, map[string]float64{"tenure": 6})
	assert.ErrorIs(t, err, ErrMissingFeature)

	_, err = FeaturesByName(&model.Artifact{Version: "v1"}, map[string]float64{"tenure": 6})
	assert.ErrorIs(t, err, ErrMissingFeature)
}
