package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"churn-serving/internal/ml"
	"churn-serving/internal/model"
	"churn-serving/internal/store"
	"churn-serving/internal/training"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	s := store.New(memfs.New(), "models", "model.json")
	_, err := training.NewProducer(s, nil).Run(context.Background(), training.DemoChurn(), training.Options{
		Version:   "v1",
		Kind:      model.KindLogisticRegression,
		TestRatio: 0.2,
		Seed:      42,
	})
	require.NoError(t, err)

	r, err := ml.NewResolver(s, ml.ResolverConfig{CacheSize: 4}, nil)
	require.NoError(t, err)
	srv := httptest.NewServer(ml.NewVersionedServer(r, s, ml.ServerConfig{}, nil, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func float(v float64) *float64 { return &v }

func TestClient_Health(t *testing.T) {
	c := NewClient(newTestAPI(t).URL, time.Second)

	status, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", status)
}

func TestClient_Predict(t *testing.T) {
	c := NewClient(newTestAPI(t).URL+"/", time.Second)

	resp, err := c.Predict(context.Background(), ml.PredictionRequest{
		Tenure:         float(6),
		MonthlyCharges: float(90),
		Version:        "v1",
	})
	require.NoError(t, err)
	assert.Equal(t, "v1", resp.Version)
	require.NotNil(t, resp.ChurnProbability)
	assert.Greater(t, *resp.ChurnProbability, 0.5)
}

func TestClient_PredictUnknownVersion(t *testing.T) {
	c := NewClient(newTestAPI(t).URL, time.Second)

	_, err := c.Predict(context.Background(), ml.PredictionRequest{
		Features: []float64{6, 90},
		Version:  "v2",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ml.ErrModelNotFound))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "v2", apiErr.Version)
	assert.Contains(t, err.Error(), "v2")
}

func TestClient_PredictBadArity(t *testing.T) {
	c := NewClient(newTestAPI(t).URL, time.Second)

	_, err := c.Predict(context.Background(), ml.PredictionRequest{Features: []float64{6}, Version: "v1"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.False(t, errors.Is(err, ml.ErrModelNotFound))
}

func TestClient_Models(t *testing.T) {
	c := NewClient(newTestAPI(t).URL, time.Second)

	def, versions, err := c.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "latest", def)
	assert.Equal(t, []string{"v1"}, versions)

	info, err := c.Model(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, model.KindLogisticRegression, info.Kind)
	assert.True(t, info.Probabilistic)
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Health(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream unavailable", apiErr.Message)
}

func TestClient_ConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).Health(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
