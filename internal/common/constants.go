package common

// Environment variable keys
const (
	EnvConfigFile     = "CONFIG_FILE"
	EnvModelsRoot     = "MODELS_ROOT"
	EnvArtifactName   = "ARTIFACT_NAME"
	EnvDefaultVersion = "DEFAULT_MODEL_VERSION"
	EnvModelVersion   = "MODEL_VERSION"
	EnvModelKind      = "MODEL_KIND"
	EnvArtifactsRoot  = "ARTIFACTS_ROOT"
	EnvPreloadName    = "PRELOAD_ARTIFACT"
	EnvServeMode      = "SERVE_MODE"
	EnvPredictOutput  = "PREDICT_OUTPUT"
	EnvPort           = "PORT"
	EnvCacheSize      = "RESOLVER_CACHE_SIZE"
	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvDataPath       = "DATA_PATH"
	EnvDatasetPath    = "DATASET_PATH"
	EnvTestRatio      = "TEST_RATIO"
	EnvSeed           = "SEED"
	EnvLogLevel       = "LOG_LEVEL"
	EnvAPIURL         = "CHURN_API_URL"
)

// Serving modes
const (
	ServeModeVersioned = "versioned"
	ServeModePreload   = "preload"
)

// Prediction outputs
const (
	OutputProbability = "probability"
	OutputLabel       = "label"
	OutputRaw         = "raw"
)

// Configuration defaults
const (
	DefaultModelsRoot     = "models"
	DefaultArtifactName   = "model.json"
	DefaultVersion        = "latest"
	DefaultModelVersion   = "v1"
	DefaultModelKind      = "logistic_regression"
	DefaultArtifactsRoot  = "artifacts"
	DefaultPreloadName    = "churn_model.json"
	DefaultServeMode      = ServeModeVersioned
	DefaultPredictOutput  = OutputProbability
	DefaultPort           = 8000
	DefaultCacheSize      = 32
	DefaultTestRatio      = 0.2
	DefaultSeed           = 42
	DefaultLogLevel       = "info"
	DefaultAPIURL         = "http://localhost:8000"
	DefaultLedgerFileName = "churn-runs.db"
)

// SentinelProbability is returned in place of a churn probability when no
// model could be loaded at startup.
const SentinelProbability = -1.0

// Validation constants
const (
	MinPort         = 1024
	MaxPort         = 65535
	MaxCacheSize    = 4096
	MaxTestRatio    = 0.9
	MaxModelVersion = 128
)
