package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu               sync.Mutex
	predictions      int
	failures         int
	sentinels        int
	latencySum       float64
	predictionScores []float64
	notFound         int
	loads            int
	cacheHits        int
	cacheMisses      int
	modelAge         float64
	requests         map[string]int
}

func (m *MockMetrics) PredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) PredictionFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) SentinelInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentinels++
}

func (m *MockMetrics) LatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
}

func (m *MockMetrics) ScoreObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionScores = append(m.predictionScores, v)
}

func (m *MockMetrics) ModelNotFoundInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notFound++
}

func (m *MockMetrics) ArtifactLoadsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
}

func (m *MockMetrics) CacheHitInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits++
}

func (m *MockMetrics) CacheMissInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheMisses++
}

func (m *MockMetrics) ModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) HTTPRequest(route string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.requests == nil {
		m.requests = make(map[string]int)
	}
	m.requests[route]++
}
