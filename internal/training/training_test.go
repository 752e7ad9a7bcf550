package training

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"churn-serving/internal/model"
	"churn-serving/internal/storage"
	"churn-serving/internal/store"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	runs []storage.Run
	err  error
}

func (f *fakeRecorder) RecordRun(run storage.Run) error {
	if f.err != nil {
		return f.err
	}
	f.runs = append(f.runs, run)
	return nil
}

func countLabels(y []int) (zeros, ones int) {
	for _, l := range y {
		if l == 1 {
			ones++
		} else {
			zeros++
		}
	}
	return zeros, ones
}

func TestSplit_DeterministicAndStratified(t *testing.T) {
	ds := DemoChurn()

	train1, test1 := ds.Split(0.2, 42)
	train2, test2 := ds.Split(0.2, 42)
	assert.Equal(t, train1, train2)
	assert.Equal(t, test1, test2)

	assert.Equal(t, 16, train1.Len())
	assert.Equal(t, 4, test1.Len())

	zeros, ones := countLabels(test1.Y)
	assert.Equal(t, 2, zeros)
	assert.Equal(t, 2, ones)
	assert.Equal(t, ds.Features, train1.Features)
	assert.Equal(t, ds.Features, test1.Features)
}

func TestSplit_ZeroRatioKeepsEverything(t *testing.T) {
	ds := DemoChurn()

	train, test := ds.Split(0, 7)
	assert.Equal(t, ds.Len(), train.Len())
	assert.Equal(t, 0, test.Len())
}

func TestSplit_KeepsOneTrainingRowPerClass(t *testing.T) {
	ds := DemoSingleFeature()

	train, test := ds.Split(0.9, 1)
	zeros, ones := countLabels(train.Y)
	assert.Equal(t, 1, zeros)
	assert.Equal(t, 1, ones)
	assert.Equal(t, 4, test.Len())
}

func TestReadCSV(t *testing.T) {
	input := "tenure, monthly_charges, churn\n1, 95, 1\n48, 30, 0\n"

	ds, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"tenure", "monthly_charges"}, ds.Features)
	assert.Equal(t, [][]float64{{1, 95}, {48, 30}}, ds.X)
	assert.Equal(t, []int{1, 0}, ds.Y)
}

func TestReadCSV_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"label only", "churn\n1\n"},
		{"no rows", "tenure,churn\n"},
		{"bad feature", "tenure,churn\nabc,1\n"},
		{"bad label", "tenure,churn\n1,yes\n"},
		{"ragged", "tenure,charges,churn\n1,2\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tc.input))
			assert.Error(t, err)
		})
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "churn.csv")
	require.NoError(t, os.WriteFile(path, []byte("x,y\n1,0\n2,0\n5,1\n6,1\n"), 0o600))

	ds, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, 4, ds.Len())

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestProducer_RunWritesVersionedArtifact(t *testing.T) {
	s := store.New(memfs.New(), "models", "model.json")
	rec := &fakeRecorder{}
	p := NewProducer(s, rec)

	res, err := p.Run(context.Background(), DemoChurn(), Options{
		Version:   "v1",
		Kind:      model.KindLogisticRegression,
		TestRatio: 0.2,
		Seed:      42,
	})
	require.NoError(t, err)

	assert.Equal(t, "v1", res.Version)
	assert.Equal(t, s.LocationFor("v1"), res.Location)
	assert.Equal(t, 16, res.TrainRows)
	assert.Equal(t, 4, res.TestRows)
	assert.GreaterOrEqual(t, res.Accuracy, 0.5)
	assert.NotEmpty(t, res.RunID)

	ok, err := s.Exists(res.Location)
	require.NoError(t, err)
	require.True(t, ok)

	a, err := s.Read(res.Location)
	require.NoError(t, err)
	assert.Equal(t, "v1", a.Version)
	assert.Equal(t, []string{"tenure", "monthly_charges"}, a.Features)
	assert.Equal(t, res.Accuracy, a.Metrics.Accuracy)

	pc, ok := a.Probabilistic()
	require.True(t, ok)
	proba, err := pc.PredictProba([]float64{6, 90})
	require.NoError(t, err)
	assert.Greater(t, proba[1], 0.5)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, res.RunID, rec.runs[0].ID)
	assert.Equal(t, "42", rec.runs[0].Params["seed"])
}

func TestProducer_ZeroRatioScoresTrainingSet(t *testing.T) {
	s := store.New(memfs.New(), "models", "model.json")

	res, err := NewProducer(s, nil).Run(context.Background(), DemoSingleFeature(), Options{
		Version: "v1",
		Kind:    model.KindLogisticRegression,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, res.TrainRows)
	assert.Equal(t, 0, res.TestRows)
	assert.Equal(t, 1.0, res.Accuracy)
}

func TestProducer_Unversioned(t *testing.T) {
	s := store.New(memfs.New(), "artifacts", "churn_model.json")

	res, err := NewProducer(s, nil).Run(context.Background(), DemoChurn(), Options{
		Version:     "v1",
		Kind:        model.KindLogisticRegression,
		Unversioned: true,
	})
	require.NoError(t, err)
	assert.Equal(t, s.Unversioned(), res.Location)

	ok, err := s.Exists(s.LocationFor("v1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProducer_RetrainOverwrites(t *testing.T) {
	mem := memfs.New()
	s := store.New(mem, "models", "model.json")
	p := NewProducer(s, nil)

	_, err := p.Run(context.Background(), DemoChurn(), Options{Version: "v1", Kind: model.KindLogisticRegression})
	require.NoError(t, err)
	_, err = p.Run(context.Background(), DemoChurn(), Options{Version: "v1", Kind: model.KindNearestCentroid})
	require.NoError(t, err)

	entries, err := mem.ReadDir(filepath.Join("models", "v1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	a, err := s.Read(s.LocationFor("v1"))
	require.NoError(t, err)
	assert.Equal(t, model.KindNearestCentroid, a.Kind)
}

func TestProducer_Failures(t *testing.T) {
	s := store.New(memfs.New(), "models", "model.json")

	_, err := NewProducer(s, nil).Run(context.Background(), DemoChurn(), Options{Version: "../x", Kind: model.KindLogisticRegression})
	assert.ErrorIs(t, err, store.ErrInvalidVersion)

	_, err = NewProducer(s, nil).Run(context.Background(), DemoChurn(), Options{Version: "v1", Kind: "svm"})
	assert.ErrorIs(t, err, model.ErrUnknownKind)

	_, err = NewProducer(s, nil).Run(context.Background(), Dataset{}, Options{Version: "v1", Kind: model.KindLogisticRegression})
	assert.Error(t, err)

	oneClass := Dataset{Features: []string{"x"}, X: [][]float64{{1}, {2}}, Y: []int{1, 1}}
	_, err = NewProducer(s, nil).Run(context.Background(), oneClass, Options{Version: "v1", Kind: model.KindLogisticRegression})
	assert.ErrorIs(t, err, model.ErrInvalidTrainingSet)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewProducer(s, nil).Run(ctx, DemoChurn(), Options{Version: "v1", Kind: model.KindLogisticRegression})
	assert.ErrorIs(t, err, context.Canceled)

	boom := errors.New("ledger down")
	_, err = NewProducer(s, &fakeRecorder{err: boom}).Run(context.Background(), DemoChurn(), Options{Version: "v1", Kind: model.KindLogisticRegression})
	assert.ErrorIs(t, err, boom)
}

func TestAccuracy(t *testing.T) {
	ds := DemoSingleFeature()
	clf := model.NewLogisticRegression()
	require.NoError(t, clf.Fit(ds.X, ds.Y))

	acc, err := Accuracy(clf, ds)
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)

	_, err = Accuracy(clf, Dataset{})
	assert.Error(t, err)

	_, err = Accuracy(clf, Dataset{X: [][]float64{{1, 2}}, Y: []int{0}})
	assert.ErrorIs(t, err, model.ErrFeatureArity)
}
