package ml

import (
	"fmt"

	"churn-serving/internal/common"
	"churn-serving/internal/model"
	"churn-serving/internal/store"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// ResolverConfig contains configuration for the resolver.
type ResolverConfig struct {
	// DefaultVersion is used when a request names no version. It is a
	// literal directory name, never derived from the other versions.
	DefaultVersion string

	// CacheSize bounds the read-through cache; 0 disables it.
	CacheSize int
}

// Resolver maps version identifiers to loaded artifacts.
//
// A Resolver is safe for concurrent use. Only successful resolutions are
// cached, so a version trained after a failed lookup is found next time.
type Resolver struct {
	store          ArtifactStore
	defaultVersion string
	cache          *lru.Cache[string, *model.Artifact]
	metrics        MetricsInterface
}

// NewResolver creates a resolver over s. metrics may be nil.
func NewResolver(s ArtifactStore, config ResolverConfig, metrics MetricsInterface) (*Resolver, error) {
	if config.DefaultVersion == "" {
		config.DefaultVersion = common.DefaultVersion
	}
	if err := store.ValidateVersion(config.DefaultVersion); err != nil {
		return nil, fmt.Errorf("default version: %w", err)
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	r := &Resolver{
		store:          s,
		defaultVersion: config.DefaultVersion,
		metrics:        metrics,
	}

	if config.CacheSize > 0 {
		cache, err := lru.New[string, *model.Artifact](config.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create resolver cache: %w", err)
		}
		r.cache = cache
	}

	return r, nil
}

// DefaultVersion returns the version used when none is requested.
func (r *Resolver) DefaultVersion() string {
	return r.defaultVersion
}

// Effective returns the version a request for version resolves under.
func (r *Resolver) Effective(version string) string {
	if version == "" {
		return r.defaultVersion
	}
	return version
}

// Resolve loads the artifact for version, or the default version when
// version is empty. A version with no artifact fails with *NotFoundError;
// there is no fallback to any other version.
func (r *Resolver) Resolve(version string) (*model.Artifact, error) {
	v := r.Effective(version)
	if err := store.ValidateVersion(v); err != nil {
		return nil, err
	}

	if r.cache != nil {
		if a, ok := r.cache.Get(v); ok {
			r.metrics.CacheHitInc()
			return a, nil
		}
		r.metrics.CacheMissInc()
	}

	location := r.store.LocationFor(v)
	ok, err := r.store.Exists(location)
	if err != nil {
		return nil, err
	}
	if !ok {
		r.metrics.ModelNotFoundInc()
		return nil, &NotFoundError{Version: v}
	}

	a, err := r.store.Read(location)
	if err != nil {
		return nil, err
	}
	r.metrics.ArtifactLoadsInc()
	log.Debug().Str("version", v).Str("path", location).Str("kind", string(a.Kind)).Msg("model artifact loaded")

	if r.cache != nil {
		r.cache.Add(v, a)
	}
	return a, nil
}

// Purge drops every cached artifact.
func (r *Resolver) Purge() {
	if r.cache != nil {
		r.cache.Purge()
	}
}
