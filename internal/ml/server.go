package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"churn-serving/internal/common"
	"churn-serving/internal/model"
	"churn-serving/internal/store"

	"github.com/rs/zerolog/log"
)

// ServiceName is reported by the info endpoint.
const ServiceName = "churn-api"

const maxRequestBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	Port           int
	RequestTimeout time.Duration
	DefaultOutput  Output
}

// ModelServer provides the HTTP API for model predictions. It serves either
// a Resolver (versioned mode) or a Preloaded handle (preload mode).
type ModelServer struct {
	mode      string
	resolver  *Resolver
	versions  VersionLister
	preloaded *Preloaded
	config    ServerConfig
	metrics   MetricsInterface
	handler   http.Handler
	server    *http.Server
}

// PredictionRequest is the POST /predict body. Features may be given either
// by name (tenure, monthly_charges) or as an ordered vector.
type PredictionRequest struct {
	Tenure         *float64  `json:"tenure,omitempty"`
	MonthlyCharges *float64  `json:"monthly_charges,omitempty"`
	Features       []float64 `json:"features,omitempty"`
	Version        string    `json:"version,omitempty"`
	Output         string    `json:"output,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
}

// PredictionResponse is the prediction result.
type PredictionResponse struct {
	Version          string    `json:"version"`
	ChurnProbability *float64  `json:"churn_probability,omitempty"`
	Label            *int      `json:"label,omitempty"`
	Probabilities    []float64 `json:"probabilities,omitempty"`
	ModelKind        string    `json:"model_kind,omitempty"`
	RequestID        string    `json:"request_id,omitempty"`
	Latency          float64   `json:"latency_ms"`
	Timestamp        time.Time `json:"timestamp"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Version string `json:"version,omitempty"`
}

// ModelInfo describes a stored artifact.
type ModelInfo struct {
	Version       string        `json:"version"`
	Kind          model.Kind    `json:"kind"`
	Features      []string      `json:"features"`
	Probabilistic bool          `json:"probabilistic"`
	TrainedAt     time.Time     `json:"trained_at"`
	Metrics       model.Metrics `json:"metrics"`
}

// NewVersionedServer creates a server that resolves a model version per
// request. versions and metricsHandler may be nil.
func NewVersionedServer(resolver *Resolver, versions VersionLister, config ServerConfig, metrics MetricsInterface, metricsHandler http.Handler) *ModelServer {
	ms := newServer(common.ServeModeVersioned, config, metrics)
	ms.resolver = resolver
	ms.versions = versions

	mux := ms.baseMux(metricsHandler)
	mux.HandleFunc("GET /models", ms.handleListModels)
	mux.HandleFunc("GET /models/{version}", ms.handleModelInfo)
	ms.finish(mux)
	return ms
}

// NewPreloadServer creates a server around a single preloaded artifact.
func NewPreloadServer(preloaded *Preloaded, config ServerConfig, metrics MetricsInterface, metricsHandler http.Handler) *ModelServer {
	ms := newServer(common.ServeModePreload, config, metrics)
	ms.preloaded = preloaded
	if age := preloaded.Age(); age > 0 {
		ms.metrics.ModelAgeSet(age.Seconds())
	}

	ms.finish(ms.baseMux(metricsHandler))
	return ms
}

func newServer(mode string, config ServerConfig, metrics MetricsInterface) *ModelServer {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if config.DefaultOutput == "" {
		config.DefaultOutput = OutputProbability
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}
	return &ModelServer{mode: mode, config: config, metrics: metrics}
}

func (ms *ModelServer) baseMux(metricsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", ms.handleInfo)
	mux.HandleFunc("GET /health", ms.handleHealth)
	mux.HandleFunc("GET /predict", ms.handlePredict)
	mux.HandleFunc("POST /predict", ms.handlePredict)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	return mux
}

func (ms *ModelServer) finish(mux *http.ServeMux) {
	ms.handler = Chain(LoggerMiddleware(ms.metrics), RecoveryMiddleware)(mux)
	ms.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", ms.config.Port),
		Handler:      ms.handler,
		ReadTimeout:  ms.config.RequestTimeout,
		WriteTimeout: ms.config.RequestTimeout,
		IdleTimeout:  120 * time.Second,
	}
}

// Handler returns the routed handler with middleware applied.
func (ms *ModelServer) Handler() http.Handler {
	return ms.handler
}

// Start begins serving HTTP requests. It returns http.ErrServerClosed after
// Shutdown.
func (ms *ModelServer) Start() error {
	log.Info().Str("addr", ms.server.Addr).Str("mode", ms.mode).Msg("starting model server")
	return ms.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (ms *ModelServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

func (ms *ModelServer) handleInfo(w http.ResponseWriter, r *http.Request) {
	endpoints := []string{"GET /health", "GET /predict", "POST /predict"}
	info := map[string]interface{}{
		"service": ServiceName,
		"mode":    ms.mode,
	}
	if ms.mode == common.ServeModeVersioned {
		info["default_version"] = ms.resolver.DefaultVersion()
		endpoints = append(endpoints, "GET /models", "GET /models/{version}")
	} else {
		info["model_available"] = ms.preloaded.Available()
		info["artifact"] = ms.preloaded.Location()
	}
	info["endpoints"] = endpoints

	writeJSON(w, http.StatusOK, info)
}

func (ms *ModelServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (ms *ModelServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req, err := parsePredictionRequest(w, r)
	if err != nil {
		ms.metrics.PredictionFailuresInc()
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	if req.RequestID == "" {
		req.RequestID = RequestID(r.Context())
	}

	out, err := ParseOutput(req.Output, ms.config.DefaultOutput)
	if err != nil {
		ms.metrics.PredictionFailuresInc()
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	var resp *PredictionResponse
	if ms.mode == common.ServeModePreload {
		resp, err = ms.predictPreloaded(req, out)
	} else {
		resp, err = ms.predictVersioned(req, out)
	}
	if err != nil {
		ms.metrics.PredictionFailuresInc()
		status := statusFor(err)
		version := ""
		var nf *NotFoundError
		if errors.As(err, &nf) {
			version = nf.Version
		}
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("request_id", req.RequestID).Msg("prediction failed")
		}
		writeError(w, status, err.Error(), version)
		return
	}

	elapsed := time.Since(start)
	ms.metrics.PredictionsInc()
	ms.metrics.LatencyObserve(elapsed.Seconds())

	resp.RequestID = req.RequestID
	resp.Latency = float64(elapsed.Microseconds()) / 1000
	resp.Timestamp = time.Now()
	writeJSON(w, http.StatusOK, resp)
}

func (ms *ModelServer) predictVersioned(req *PredictionRequest, out Output) (*PredictionResponse, error) {
	a, err := ms.resolver.Resolve(req.Version)
	if err != nil {
		return nil, err
	}
	features, err := requestFeatures(a, req)
	if err != nil {
		return nil, err
	}
	pred, err := Predict(a, features, out)
	if err != nil {
		return nil, err
	}
	return ms.toResponse(ms.resolver.Effective(req.Version), pred), nil
}

// predictPreloaded ignores the requested version; the process serves the
// one artifact it loaded at startup.
func (ms *ModelServer) predictPreloaded(req *PredictionRequest, out Output) (*PredictionResponse, error) {
	a, err := ms.preloaded.Artifact()
	if errors.Is(err, ErrModelUnavailable) {
		ms.metrics.SentinelInc()
		p := common.SentinelProbability
		return &PredictionResponse{ChurnProbability: &p}, nil
	}
	if err != nil {
		return nil, err
	}
	features, err := requestFeatures(a, req)
	if err != nil {
		return nil, err
	}
	pred, err := Predict(a, features, out)
	if err != nil {
		return nil, err
	}
	return ms.toResponse(a.Version, pred), nil
}

func (ms *ModelServer) toResponse(version string, pred *Prediction) *PredictionResponse {
	resp := &PredictionResponse{Version: version, ModelKind: string(pred.Kind)}
	switch pred.Output {
	case OutputProbability:
		p := pred.Probability
		resp.ChurnProbability = &p
		ms.metrics.ScoreObserve(p)
	case OutputLabel:
		l := pred.Label
		resp.Label = &l
	case OutputRaw:
		resp.Probabilities = pred.Probabilities
		ms.metrics.ScoreObserve(pred.Probabilities[1])
	}
	return resp
}

func (ms *ModelServer) handleListModels(w http.ResponseWriter, r *http.Request) {
	versions := []string{}
	if ms.versions != nil {
		v, err := ms.versions.Versions()
		if err != nil {
			log.Error().Err(err).Msg("failed to list model versions")
			writeError(w, http.StatusInternalServerError, err.Error(), "")
			return
		}
		versions = append(versions, v...)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"default_version": ms.resolver.DefaultVersion(),
		"versions":        versions,
	})
}

func (ms *ModelServer) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	version := r.PathValue("version")
	a, err := ms.resolver.Resolve(version)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("version", version).Msg("failed to load model info")
		}
		writeError(w, status, err.Error(), version)
		return
	}

	_, probabilistic := a.Probabilistic()
	writeJSON(w, http.StatusOK, ModelInfo{
		Version:       version,
		Kind:          a.Kind,
		Features:      a.Features,
		Probabilistic: probabilistic,
		TrainedAt:     a.TrainedAt,
		Metrics:       a.Metrics,
	})
}

func parsePredictionRequest(w http.ResponseWriter, r *http.Request) (*PredictionRequest, error) {
	if r.Method == http.MethodGet {
		return parsePredictionQuery(r.URL.Query())
	}

	var req PredictionRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %v", err)
	}
	return &req, nil
}

func parsePredictionQuery(q url.Values) (*PredictionRequest, error) {
	req := &PredictionRequest{
		Version:   q.Get("version"),
		Output:    q.Get("output"),
		RequestID: q.Get("request_id"),
	}

	var raw []string
	if v := q.Get("feature"); v != "" {
		raw = append(raw, v)
	}
	for _, v := range q["features"] {
		raw = append(raw, strings.Split(v, ",")...)
	}
	for _, v := range raw {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid feature %q", v)
		}
		req.Features = append(req.Features, f)
	}

	for name, dst := range map[string]**float64{
		"tenure":          &req.Tenure,
		"monthly_charges": &req.MonthlyCharges,
	} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", name, v)
		}
		*dst = &f
	}

	return req, nil
}

// requestFeatures prefers an explicit vector and otherwise orders the named
// fields by the artifact's feature names.
func requestFeatures(a *model.Artifact, req *PredictionRequest) ([]float64, error) {
	if len(req.Features) > 0 {
		return req.Features, nil
	}

	named := make(map[string]float64)
	if req.Tenure != nil {
		named["tenure"] = *req.Tenure
	}
	if req.MonthlyCharges != nil {
		named["monthly_charges"] = *req.MonthlyCharges
	}
	if len(named) == 0 {
		return nil, fmt.Errorf("%w: no features supplied", errBadRequest)
	}
	return FeaturesByName(a, named)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrModelNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidVersion),
		errors.Is(err, model.ErrFeatureArity),
		errors.Is(err, ErrInvalidOutput),
		errors.Is(err, ErrMissingFeature),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrProbabilityUnsupported):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg, version string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Version: version})
}
