package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"churn-serving/internal/common"
	"churn-serving/internal/model"
	"churn-serving/internal/store"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	// Artifact store
	ModelsRoot      string
	ArtifactName    string
	DefaultVersion  string
	ArtifactsRoot   string
	PreloadArtifact string

	// Training
	ModelVersion string
	ModelKind    string
	DatasetPath  string
	TestRatio    float64
	Seed         int64

	// Serving
	ServeMode      string
	PredictOutput  string
	Port           int
	CacheSize      int
	RequestTimeout time.Duration

	// System
	DataPath string
	LogLevel string
}

type ConfigFile struct {
	Store struct {
		ModelsRoot      string `yaml:"modelsRoot"`
		ArtifactName    string `yaml:"artifactName"`
		DefaultVersion  string `yaml:"defaultVersion"`
		ArtifactsRoot   string `yaml:"artifactsRoot"`
		PreloadArtifact string `yaml:"preloadArtifact"`
	} `yaml:"store"`

	Training struct {
		ModelVersion string   `yaml:"modelVersion"`
		ModelKind    string   `yaml:"modelKind"`
		DatasetPath  string   `yaml:"datasetPath"`
		TestRatio    *float64 `yaml:"testRatio"`
		Seed         *int64   `yaml:"seed"`
	} `yaml:"training"`

	Server struct {
		ServeMode      string `yaml:"serveMode"`
		PredictOutput  string `yaml:"predictOutput"`
		Port           int    `yaml:"port"`
		CacheSize      *int   `yaml:"cacheSize"`
		RequestTimeout string `yaml:"requestTimeout"`
	} `yaml:"server"`

	System struct {
		DataPath string `yaml:"dataPath"`
		LogLevel string `yaml:"logLevel"`
	} `yaml:"system"`
}

// Load reads an optional .env file, then the YAML file named by CONFIG_FILE
// when set, and finally the environment, which overrides file values.
func Load() (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	requestTimeout, err := time.ParseDuration(config.Server.RequestTimeout)
	if err != nil {
		requestTimeout = 10 * time.Second
	}

	settings := Settings{
		ModelsRoot:      getEnvOrDefault(common.EnvModelsRoot, orDefault(config.Store.ModelsRoot, common.DefaultModelsRoot)),
		ArtifactName:    getEnvOrDefault(common.EnvArtifactName, orDefault(config.Store.ArtifactName, common.DefaultArtifactName)),
		DefaultVersion:  getEnvOrDefault(common.EnvDefaultVersion, orDefault(config.Store.DefaultVersion, common.DefaultVersion)),
		ArtifactsRoot:   getEnvOrDefault(common.EnvArtifactsRoot, orDefault(config.Store.ArtifactsRoot, common.DefaultArtifactsRoot)),
		PreloadArtifact: getEnvOrDefault(common.EnvPreloadName, orDefault(config.Store.PreloadArtifact, common.DefaultPreloadName)),
		ModelVersion:    getEnvOrDefault(common.EnvModelVersion, orDefault(config.Training.ModelVersion, common.DefaultModelVersion)),
		ModelKind:       getEnvOrDefault(common.EnvModelKind, orDefault(config.Training.ModelKind, common.DefaultModelKind)),
		DatasetPath:     getEnvOrDefault(common.EnvDatasetPath, config.Training.DatasetPath),
		TestRatio:       getFloatOrDefault(common.EnvTestRatio, floatOr(config.Training.TestRatio, common.DefaultTestRatio)),
		Seed:            getInt64OrDefault(common.EnvSeed, int64Or(config.Training.Seed, common.DefaultSeed)),
		ServeMode:       getEnvOrDefault(common.EnvServeMode, orDefault(config.Server.ServeMode, common.DefaultServeMode)),
		PredictOutput:   getEnvOrDefault(common.EnvPredictOutput, orDefault(config.Server.PredictOutput, common.DefaultPredictOutput)),
		Port:            getIntFromEnvOrConfig(common.EnvPort, config.Server.Port, common.DefaultPort),
		CacheSize:       getIntOrDefault(common.EnvCacheSize, intOr(config.Server.CacheSize, common.DefaultCacheSize)),
		RequestTimeout:  getDurationOrDefault(common.EnvRequestTimeout, requestTimeout),
		DataPath:        getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, orDefault(config.System.LogLevel, common.DefaultLogLevel)),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ModelsRoot:      getEnvOrDefault(common.EnvModelsRoot, common.DefaultModelsRoot),
		ArtifactName:    getEnvOrDefault(common.EnvArtifactName, common.DefaultArtifactName),
		DefaultVersion:  getEnvOrDefault(common.EnvDefaultVersion, common.DefaultVersion),
		ArtifactsRoot:   getEnvOrDefault(common.EnvArtifactsRoot, common.DefaultArtifactsRoot),
		PreloadArtifact: getEnvOrDefault(common.EnvPreloadName, common.DefaultPreloadName),
		ModelVersion:    getEnvOrDefault(common.EnvModelVersion, common.DefaultModelVersion),
		ModelKind:       getEnvOrDefault(common.EnvModelKind, common.DefaultModelKind),
		DatasetPath:     os.Getenv(common.EnvDatasetPath), // optional, demo set when empty
		TestRatio:       getFloatOrDefault(common.EnvTestRatio, common.DefaultTestRatio),
		Seed:            getInt64OrDefault(common.EnvSeed, common.DefaultSeed),
		ServeMode:       getEnvOrDefault(common.EnvServeMode, common.DefaultServeMode),
		PredictOutput:   getEnvOrDefault(common.EnvPredictOutput, common.DefaultPredictOutput),
		Port:            getIntOrDefault(common.EnvPort, common.DefaultPort),
		CacheSize:       getIntOrDefault(common.EnvCacheSize, common.DefaultCacheSize),
		RequestTimeout:  getDurationOrDefault(common.EnvRequestTimeout, 10*time.Second),
		DataPath:        os.Getenv(common.EnvDataPath), // optional, ledger off when empty
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// Level returns the parsed log level.
func (s *Settings) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(s.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func intOr(p *int, def int) int {
	if p != nil {
		return *p
	}
	return def
}

func int64Or(p *int64, def int64) int64 {
	if p != nil {
		return *p
	}
	return def
}

func floatOr(p *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	return def
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	// Validate store layout
	if settings.ModelsRoot == "" {
		return fmt.Errorf("models root cannot be empty")
	}
	if settings.ArtifactsRoot == "" {
		return fmt.Errorf("artifacts root cannot be empty")
	}
	if err := validateFileName("artifact name", settings.ArtifactName); err != nil {
		return err
	}
	if err := validateFileName("preload artifact", settings.PreloadArtifact); err != nil {
		return err
	}

	// Validate versions
	if err := store.ValidateVersion(settings.DefaultVersion); err != nil {
		return fmt.Errorf("default model version: %w", err)
	}
	if err := store.ValidateVersion(settings.ModelVersion); err != nil {
		return fmt.Errorf("model version: %w", err)
	}
	if _, err := model.ParseKind(settings.ModelKind); err != nil {
		return err
	}

	// Validate serving options
	switch settings.ServeMode {
	case common.ServeModeVersioned, common.ServeModePreload:
	default:
		return fmt.Errorf("serve mode must be %q or %q, got %q",
			common.ServeModeVersioned, common.ServeModePreload, settings.ServeMode)
	}
	switch settings.PredictOutput {
	case common.OutputProbability, common.OutputLabel, common.OutputRaw:
	default:
		return fmt.Errorf("predict output must be one of probability, label, raw, got %q", settings.PredictOutput)
	}

	// Validate integer values
	if settings.Port < common.MinPort || settings.Port > common.MaxPort {
		return fmt.Errorf("port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.Port)
	}
	if settings.CacheSize < 0 || settings.CacheSize > common.MaxCacheSize {
		return fmt.Errorf("resolver cache size must be between 0 and %d, got %d", common.MaxCacheSize, settings.CacheSize)
	}

	// Validate time durations
	if settings.RequestTimeout < time.Second || settings.RequestTimeout > time.Minute {
		return fmt.Errorf("request timeout must be between 1s and 1m, got %v", settings.RequestTimeout)
	}

	// Validate training parameters
	if settings.TestRatio < 0 || settings.TestRatio > common.MaxTestRatio {
		return fmt.Errorf("test ratio must be between 0 and %.1f, got %f", common.MaxTestRatio, settings.TestRatio)
	}

	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}

	return nil
}

func validateFileName(what, name string) error {
	if name == "" {
		return fmt.Errorf("%s cannot be empty", what)
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("%s must be a plain file name, got %q", what, name)
	}
	return nil
}
