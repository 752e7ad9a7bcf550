package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"churn-serving/internal/cfg"
	"churn-serving/internal/common"
	"churn-serving/internal/metrics"
	"churn-serving/internal/ml"
	"churn-serving/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	zerolog.SetGlobalLevel(c.Level())

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mw := metrics.NewWrapper(metrics.NewWithRegistry(registry))
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	serverConfig := ml.ServerConfig{
		Port:           c.Port,
		RequestTimeout: c.RequestTimeout,
		DefaultOutput:  ml.Output(c.PredictOutput),
	}

	var server *ml.ModelServer
	switch c.ServeMode {
	case common.ServeModePreload:
		server, err = newPreloadServer(c, serverConfig, mw, metricsHandler)
	default:
		server, err = newVersionedServer(c, serverConfig, mw, metricsHandler)
	}
	if err != nil {
		log.Fatal().Err(err).Str("mode", c.ServeMode).Msg("server initialization failed")
	}

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("model server failed")
			cancel()
		}
	}()

	// Wait for shutdown signal
	waitForShutdown(ctx, server)
}

// newVersionedServer resolves the requested model version on every request.
func newVersionedServer(c cfg.Settings, config ml.ServerConfig, mw *metrics.MetricsWrapper, metricsHandler http.Handler) (*ml.ModelServer, error) {
	s, err := store.NewOS(c.ModelsRoot, c.ArtifactName)
	if err != nil {
		return nil, err
	}

	resolver, err := ml.NewResolver(s, ml.ResolverConfig{
		DefaultVersion: c.DefaultVersion,
		CacheSize:      c.CacheSize,
	}, mw)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("root", s.Root()).
		Str("default_version", resolver.DefaultVersion()).
		Int("cache_size", c.CacheSize).
		Msg("serving versioned models")
	return ml.NewVersionedServer(resolver, s, config, mw, metricsHandler), nil
}

// newPreloadServer loads the single unversioned artifact once. A missing
// artifact is tolerated; a corrupt one stops startup.
func newPreloadServer(c cfg.Settings, config ml.ServerConfig, mw *metrics.MetricsWrapper, metricsHandler http.Handler) (*ml.ModelServer, error) {
	s, err := store.NewOS(c.ArtifactsRoot, c.PreloadArtifact)
	if err != nil {
		return nil, err
	}

	preloaded, err := ml.Preload(s, s.Unversioned())
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("path", filepath.Clean(preloaded.Location())).
		Bool("available", preloaded.Available()).
		Msg("serving preloaded model")
	return ml.NewPreloadServer(preloaded, config, mw, metricsHandler), nil
}

// waitForShutdown blocks until a signal or server failure, then drains
// in-flight requests.
func waitForShutdown(ctx context.Context, server *ml.ModelServer) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
		return
	}
	log.Info().Msg("server stopped")
}
