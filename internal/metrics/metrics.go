// Package metrics provides Prometheus metrics collection for the churn
// prediction service. It defines the resolver, prediction and HTTP metrics
// exposed on the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Prediction metrics
	Predictions        prometheus.Counter   // Total number of predictions served
	PredictionFailures prometheus.Counter   // Predictions that returned an error
	SentinelResponses  prometheus.Counter   // Predictions answered with the no-model sentinel
	PredictionLatency  prometheus.Histogram // Resolve + predict latency in seconds
	PredictionScores   prometheus.Histogram // Distribution of churn probabilities

	// Artifact resolution metrics
	ModelNotFound prometheus.Counter // Requests for versions with no artifact
	ArtifactLoads prometheus.Counter // Artifacts read and decoded from the store
	CacheHits     prometheus.Counter // Resolutions served from the read-through cache
	CacheMisses   prometheus.Counter // Resolutions that went to the store
	ModelAge      prometheus.Gauge   // Age of the preloaded model in seconds

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec // Requests by route and status code
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics on a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "churn_predictions_total",
			Help: "Total number of predictions served",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "churn_prediction_failures_total",
			Help: "Total number of predictions that returned an error",
		}),
		SentinelResponses: factory.NewCounter(prometheus.CounterOpts{
			Name: "churn_sentinel_responses_total",
			Help: "Total number of predictions answered with the no-model sentinel",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "churn_prediction_latency_seconds",
			Help:    "Model resolution and prediction latency in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		PredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "churn_prediction_scores",
			Help:    "Distribution of predicted churn probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ModelNotFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "churn_model_not_found_total",
			Help: "Total number of requests for model versions with no artifact",
		}),
		ArtifactLoads: factory.NewCounter(prometheus.CounterOpts{
			Name: "churn_artifact_loads_total",
			Help: "Total number of artifacts read from the store",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "churn_resolver_cache_hits_total",
			Help: "Total number of model resolutions served from cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "churn_resolver_cache_misses_total",
			Help: "Total number of model resolutions that read the store",
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "churn_model_age_seconds",
			Help: "Age of the preloaded model in seconds",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "churn_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
}
