package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"spycats/internal/config"
	"spycats/internal/core"
	"spycats/internal/infra/catapi"
)

// app holds the wired service and everything that must be released on exit.
type app struct {
	cfg      config.Config
	logger   *logrus.Logger
	log      core.Logger
	registry *prometheus.Registry
	store    core.PersistentStore
	svc      *core.Service

	closers []func(context.Context) error
}

func newTracerProvider(cfg config.Config) (trace.TracerProvider, func(context.Context) error, error) {
	if !cfg.Tracing {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	if err != nil {
		return nil, nil, fmt.Errorf("stdout trace exporter: %w", err)
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	return provider, provider.Shutdown, nil
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg, logger: cfg.NewLogger(), registry: prometheus.NewRegistry()}
	a.log = core.NewLogrusLogger(a.logger)
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	provider, shutdownTracer, err := newTracerProvider(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdownTracer)

	store, closeStore, err := core.OpenPersistentStore(ctx, core.StorageOptions{
		Driver:      core.StorageDriver(cfg.StorageDriver),
		SQLitePath:  cfg.SQLitePath,
		PostgresDSN: cfg.PostgresDSN,
	}, nil)
	if err != nil {
		_ = a.close(ctx)
		return nil, fmt.Errorf("open %s store: %w", cfg.StorageDriver, err)
	}
	a.store = store
	a.closers = append(a.closers, func(context.Context) error { return closeStore() })

	breeds := catapi.New(catapi.Config{
		BaseURL:       cfg.BreedAPIURL,
		APIKey:        cfg.BreedAPIKey,
		Timeout:       cfg.BreedTimeout,
		CacheTTL:      cfg.BreedCacheTTL,
		RatePerSecond: cfg.BreedRatePerSec,
	})
	a.svc = core.NewService(store,
		core.WithLogger(a.log),
		core.WithMetricsRecorder(core.NewPrometheusMetricsRecorder(a.registry)),
		core.WithTracer(core.NewOTelTracer(provider)),
		core.WithAuditRecorder(core.NewLogAuditRecorder(a.log)),
		core.WithBreedValidator(breeds),
	)
	a.logger.WithFields(logrus.Fields{"storage": cfg.StorageDriver, "tracing": cfg.Tracing}).Info("service initialised")
	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
