// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/dynamic-handlers/internal/client"
	"github.com/JakeFAU/dynamic-handlers/internal/config"
	"github.com/JakeFAU/dynamic-handlers/internal/progress"
	"github.com/JakeFAU/dynamic-handlers/internal/progress/sinks"
	"github.com/JakeFAU/dynamic-handlers/internal/registry"

	// Linked in for its registration of external.Worker; the client never
	// references it directly.
	_ "github.com/JakeFAU/dynamic-handlers/internal/worker"
)

// App holds the shared services for one process: configuration, logger, type
// registry, the run event hub and its metrics registry.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *registry.Registry
	hub      *progress.Hub
	metrics  *prometheus.Registry
}

// NewApp wires the services described by cfg. A nil reg uses registry.Default.
func NewApp(cfg config.Config, logger *zap.Logger, reg *registry.Registry) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = registry.Default
	}

	var runSinks []progress.Sink
	metrics := prometheus.NewRegistry()
	if cfg.Progress.Metrics {
		promSink, err := sinks.NewPrometheusSink(metrics)
		if err != nil {
			return nil, fmt.Errorf("init metrics sink: %w", err)
		}
		runSinks = append(runSinks, promSink)
	}
	if cfg.Progress.LogEvents {
		runSinks = append(runSinks, sinks.NewLogSink(logger.Named("events")))
	}

	hub := progress.NewHub(progress.Config{
		BufferSize:     cfg.Progress.BufferSize,
		MaxBatchEvents: cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   cfg.MaxBatchWait(),
		Logger:         logger.Named("hub"),
	}, runSinks...)

	logger.Debug("application services initialized",
		zap.Strings("worker_types", reg.Names()),
		zap.Int("sinks", len(runSinks)))

	return &App{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		hub:      hub,
		metrics:  metrics,
	}, nil
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the loaded configuration.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetRegistry exposes the worker type registry.
func (a *App) GetRegistry() *registry.Registry {
	return a.registry
}

// NewClient builds a WorkerClient that writes progress lines to out and
// reports run events to the hub.
func (a *App) NewClient(out io.Writer) *client.WorkerClient {
	return client.New(
		a.registry,
		out,
		a.hub,
		nil,
		nil,
		client.Options{
			TypeName:    a.cfg.Worker.TypeName,
			EventName:   a.cfg.Worker.EventName,
			HandlerName: a.cfg.Worker.HandlerName,
			Method:      a.cfg.Worker.Method,
		},
		a.logger.Named("client"),
	)
}

// MetricSummary flattens every counter and gauge in the metrics registry into
// name{labels} => value pairs, sorted by key.
func (a *App) MetricSummary() ([]MetricValue, error) {
	families, err := a.metrics.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	var out []MetricValue
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			if labels := m.GetLabel(); len(labels) > 0 {
				key += "{"
				for i, lp := range labels {
					if i > 0 {
						key += ","
					}
					key += lp.GetName() + "=" + lp.GetValue()
				}
				key += "}"
			}
			switch {
			case m.GetCounter() != nil:
				out = append(out, MetricValue{Key: key, Value: m.GetCounter().GetValue()})
			case m.GetGauge() != nil:
				out = append(out, MetricValue{Key: key, Value: m.GetGauge().GetValue()})
			case m.GetHistogram() != nil:
				out = append(out, MetricValue{Key: key + "_count", Value: float64(m.GetHistogram().GetSampleCount())})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// MetricValue is one flattened sample.
type MetricValue struct {
	Key   string
	Value float64
}

// Close drains the run event hub and flushes the logger.
func (a *App) Close(ctx context.Context) error {
	err := a.hub.Close(ctx)
	if err != nil {
		a.logger.Warn("error closing run event hub", zap.Error(err))
	}
	// Sync commonly fails on stderr; best effort only.
	_ = a.logger.Sync()
	return err
}
