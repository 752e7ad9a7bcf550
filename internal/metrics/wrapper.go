package metrics

import "strconv"

// MetricsWrapper adapts Metrics to the narrow interfaces used by the
// resolver and the HTTP server, so those packages do not import Prometheus.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionsInc() {
	w.m.Predictions.Inc()
}

func (w *MetricsWrapper) PredictionFailuresInc() {
	w.m.PredictionFailures.Inc()
}

func (w *MetricsWrapper) SentinelInc() {
	w.m.SentinelResponses.Inc()
}

func (w *MetricsWrapper) LatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}

func (w *MetricsWrapper) ScoreObserve(p float64) {
	w.m.PredictionScores.Observe(p)
}

func (w *MetricsWrapper) ModelNotFoundInc() {
	w.m.ModelNotFound.Inc()
}

func (w *MetricsWrapper) ArtifactLoadsInc() {
	w.m.ArtifactLoads.Inc()
}

func (w *MetricsWrapper) CacheHitInc() {
	w.m.CacheHits.Inc()
}

func (w *MetricsWrapper) CacheMissInc() {
	w.m.CacheMisses.Inc()
}

func (w *MetricsWrapper) ModelAgeSet(seconds float64) {
	w.m.ModelAge.Set(seconds)
}

// HTTPRequest counts one served request.
func (w *MetricsWrapper) HTTPRequest(route string, code int) {
	w.m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
