// FILE: yetitel/src/internal/telemetry/telemetry.go

// Package telemetry is the pipeline extension: it owns the durable stores,
// the live-update hub, the sinks, and the dispatch writer, and claims the
// host's event queue as its single consumer.
package telemetry

import (
	"fmt"
	"path/filepath"
	"time"

	"yetitel/src/internal/dispatch"
	"yetitel/src/internal/extension"
	"yetitel/src/internal/hub"
	"yetitel/src/internal/sink"
	"yetitel/src/internal/storage"

	"github.com/lixenwraith/log"
)

// drainTimeout bounds how long Close waits for the writer to finish the
// queue backlog before stores are released anyway.
const drainTimeout = 10 * time.Second

// Extension implements extension.Extension and extension.Closer.
type Extension struct {
	logger *log.Logger

	logStore    storage.Store
	spanStore   storage.Store
	metricStore storage.Store
	hub         *hub.Hub
	writer      *dispatch.Writer
}

func New(logger *log.Logger) *Extension {
	return &Extension{logger: logger}
}

func (e *Extension) Name() string {
	return "telemetry"
}

// Initialize opens the durable stores and the hub. The log store is
// required; span and metric stores follow the storage config flags and
// stay nil when disabled, which makes the writer discard those kinds.
func (e *Extension) Initialize(ctx *extension.Context) error {
	cfg := ctx.Config

	dir := cfg.Storage.Directory
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(ctx.RootDir, dir)
	}

	open := func(name string) (storage.Store, error) {
		return storage.OpenBadger(storage.BadgerConfig{
			Path:       filepath.Join(dir, name),
			SyncWrites: cfg.Storage.SyncWrites,
			GCInterval: 5 * time.Minute,
		}, e.logger)
	}

	logStore, err := open("logs")
	if err != nil {
		return fmt.Errorf("open log store: %w", err)
	}
	e.logStore = logStore

	if cfg.Storage.Spans {
		spanStore, err := open("spans")
		if err != nil {
			e.closeStores()
			return fmt.Errorf("open span store: %w", err)
		}
		e.spanStore = spanStore
	}

	if cfg.Storage.Metrics {
		metricStore, err := open("metrics")
		if err != nil {
			e.closeStores()
			return fmt.Errorf("open metric store: %w", err)
		}
		e.metricStore = metricStore
	}

	e.hub = hub.New(e.logger)

	e.logger.Info("msg", "Telemetry stores opened",
		"component", "telemetry",
		"directory", dir,
		"spans", cfg.Storage.Spans,
		"metrics", cfg.Storage.Metrics)
	return nil
}

// OnReady builds the sinks and the writer, claims the event queue, and
// starts the dispatch loop.
func (e *Extension) OnReady(ctx *extension.Context) error {
	cfg := ctx.Config

	e.writer = dispatch.New(e.logStore, e.spanStore, e.metricStore, e.hub, e.logger)

	if cfg.Files.Directory != "" {
		dir := cfg.Files.Directory
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(ctx.RootDir, dir)
		}
		fileSink := sink.NewFileSink(sink.FileSinkOptions{
			Directory:     dir,
			MaxFileSize:   cfg.Files.MaxSizeMB * 1024 * 1024,
			RetentionDays: int(cfg.Files.RetentionDays),
		}, e.logger)
		e.writer.AddSink(fileSink)
	}

	if cfg.Telemetry.OTLPEndpoint != "" {
		otlpSink := sink.NewOTLPSink(sink.OTLPOptions{
			Endpoint:       cfg.Telemetry.OTLPEndpoint,
			ServiceName:    cfg.Telemetry.ServiceName,
			MetricsEnabled: cfg.Telemetry.Metrics,
		}, e.logger)
		if otlpSink != nil {
			e.writer.AddSink(otlpSink)
		}
	}

	events, err := ctx.Events()
	if err != nil {
		return err
	}

	go e.writer.Run(events)

	e.logger.Info("msg", "Telemetry pipeline running",
		"component", "telemetry",
		"sinks", len(e.writer.Sinks()))
	return nil
}

// Hub exposes the live-update fabric for the SSE server.
func (e *Extension) Hub() *hub.Hub {
	return e.hub
}

// Status reports pipeline counters for the status endpoint.
func (e *Extension) Status() map[string]any {
	status := map[string]any{}

	if e.writer != nil {
		stats := e.writer.Stats()
		status["pipeline"] = map[string]any{
			"logs":    stats.Logs,
			"spans":   stats.Spans,
			"metrics": stats.Metrics,
			"total":   stats.Total,
		}

		sinks := make([]map[string]any, 0, len(e.writer.Sinks()))
		for _, s := range e.writer.Sinks() {
			st := s.GetStats()
			sinks = append(sinks, map[string]any{
				"type":            st.Type,
				"total_processed": st.TotalProcessed,
				"details":         st.Details,
			})
		}
		status["sinks"] = sinks
	}

	if e.hub != nil {
		status["hub"] = e.hub.GetStats()
	}

	return status
}

// Close waits for the writer to drain the closed queue, then releases the
// hub and the stores. Safe to call before OnReady.
func (e *Extension) Close() error {
	if e.writer != nil {
		select {
		case <-e.writer.Done():
		case <-time.After(drainTimeout):
			e.logger.Warn("msg", "Writer drain timed out, closing stores anyway",
				"component", "telemetry")
		}
	}

	if e.hub != nil {
		e.hub.Close()
	}
	return e.closeStores()
}

func (e *Extension) closeStores() error {
	var firstErr error
	for _, store := range []storage.Store{e.logStore, e.spanStore, e.metricStore} {
		if store == nil {
			continue
		}
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.logStore, e.spanStore, e.metricStore = nil, nil, nil
	return firstErr
}
