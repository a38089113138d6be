// FILE: src/cmd/yetitel/bootstrap.go
package main

import (
	"fmt"

	"yetitel/src/internal/config"
	"yetitel/src/internal/core"
	"yetitel/src/internal/extension"
	"yetitel/src/internal/server"
	"yetitel/src/internal/source"
	"yetitel/src/internal/telemetry"
	"yetitel/src/internal/version"

	"github.com/lixenwraith/log"
)

// runtime holds everything bootstrap started, in the order shutdown must
// unwind it: server, sources, queue, extensions.
type runtime struct {
	queue    chan core.Event
	registry *extension.Registry
	tel      *telemetry.Extension
	sources  []source.Source
	server   *server.Server
}

// bootstrap assembles the pipeline: queue, telemetry extension, ingestion
// sources, live server.
func bootstrap(cfg *config.Config, root string) (*runtime, error) {
	queue := make(chan core.Event, cfg.Queue.Capacity)

	rt := &runtime{
		queue:    queue,
		registry: extension.NewRegistry(),
		tel:      telemetry.New(logger),
	}

	if err := rt.registry.Register(rt.tel); err != nil {
		return nil, err
	}

	extCtx := extension.NewContext(root, cfg, queue, logger)
	if err := rt.registry.InitializeAll(extCtx); err != nil {
		return nil, err
	}
	if err := rt.registry.NotifyReady(extCtx); err != nil {
		rt.registry.CloseAll(logger)
		return nil, err
	}

	if cfg.Ingest.HTTP.Enabled {
		httpSource, err := source.NewHTTPSource(cfg.Ingest.HTTP, queue, logger)
		if err != nil {
			return nil, fmt.Errorf("http source: %w", err)
		}
		rt.sources = append(rt.sources, httpSource)
	}

	if cfg.Ingest.TCP.Enabled {
		tcpSource, err := source.NewTCPSource(cfg.Ingest.TCP, queue, logger)
		if err != nil {
			return nil, fmt.Errorf("tcp source: %w", err)
		}
		rt.sources = append(rt.sources, tcpSource)
	}

	for _, src := range rt.sources {
		if err := src.Start(); err != nil {
			rt.stopSources()
			return nil, fmt.Errorf("start source: %w", err)
		}
	}

	if cfg.Server.Enabled {
		rt.server = server.New(cfg.Server, rt.tel.Hub(), rt.statusFn, logger)
		if err := rt.server.Start(); err != nil {
			rt.stopSources()
			return nil, fmt.Errorf("start server: %w", err)
		}
	}

	logger.Info("msg", "yetitel started",
		"version", version.Short(),
		"sources", len(rt.sources),
		"server_enabled", cfg.Server.Enabled)
	return rt, nil
}

// statusFn merges pipeline and source counters into the status document.
func (rt *runtime) statusFn() map[string]any {
	status := rt.tel.Status()

	sources := make([]map[string]any, 0, len(rt.sources))
	for _, src := range rt.sources {
		st := src.GetStats()
		sources = append(sources, map[string]any{
			"type":           st.Type,
			"total_events":   st.TotalEvents,
			"dropped_events": st.DroppedEvents,
			"invalid_events": st.InvalidEvents,
			"details":        st.Details,
		})
	}
	status["sources"] = sources
	return status
}

func (rt *runtime) stopSources() {
	for _, src := range rt.sources {
		src.Stop()
	}
}

// shutdown unwinds the runtime: no new connections, no new events, drain
// the queue, release the stores.
func (rt *runtime) shutdown() {
	if rt.server != nil {
		rt.server.Stop()
	}
	rt.stopSources()
	close(rt.queue)
	rt.registry.CloseAll(logger)
}

// initializeLogger sets up the logger based on configuration
func initializeLogger(cfg *config.Config) error {
	logger = log.NewLogger()

	var configArgs []string

	if *quiet {
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=false",
			"level=255")

		if err := logger.ApplyConfigString(configArgs...); err != nil {
			return err
		}
		return logger.Start()
	}

	level := cfg.Logging.Level
	if *logLevel != "" {
		level = *logLevel
	}
	levelValue, err := parseLogLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	configArgs = append(configArgs, fmt.Sprintf("level=%d", levelValue))

	output := cfg.Logging.Output
	if *logOutput != "" {
		output = *logOutput
	}

	switch output {
	case "none":
		configArgs = append(configArgs, "disable_file=true", "enable_stdout=false")

	case "stdout":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=true",
			"stdout_target=stdout")

	case "stderr":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=true",
			"stdout_target=stderr")

	case "file":
		configArgs = append(configArgs, "enable_stdout=false")
		configureFileLogging(&configArgs, cfg)

	default:
		return fmt.Errorf("invalid log output mode: %s", output)
	}

	if err := logger.ApplyConfigString(configArgs...); err != nil {
		return err
	}
	return logger.Start()
}

// configureFileLogging sets up file-based logging parameters
func configureFileLogging(configArgs *[]string, cfg *config.Config) {
	if cfg.Logging.File != nil {
		*configArgs = append(*configArgs,
			fmt.Sprintf("directory=%s", cfg.Logging.File.Directory),
			fmt.Sprintf("name=%s", cfg.Logging.File.Name),
			fmt.Sprintf("max_size_mb=%d", cfg.Logging.File.MaxSizeMB))

		if cfg.Logging.File.RetentionHours > 0 {
			*configArgs = append(*configArgs,
				fmt.Sprintf("retention_period_hrs=%.1f", cfg.Logging.File.RetentionHours))
		}
	}
}
