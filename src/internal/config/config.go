// FILE: yetitel/src/internal/config/config.go
package config

import (
	"fmt"
)

// Config is the full daemon configuration, loaded from TOML with
// environment and CLI overlays.
type Config struct {
	Logging   LogConfig       `toml:"logging"`
	Queue     QueueConfig     `toml:"queue"`
	Storage   StorageConfig   `toml:"storage"`
	Files     FilesConfig     `toml:"files"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Ingest    IngestConfig    `toml:"ingest"`
	Server    ServerConfig    `toml:"server"`
}

// QueueConfig shapes the inbound event queue.
type QueueConfig struct {
	// Capacity of the bounded queue between sources and the writer
	Capacity int64 `toml:"capacity"`
}

// StorageConfig controls the durable record store.
type StorageConfig struct {
	// Directory for the embedded key-value store
	Directory string `toml:"directory"`

	// SyncWrites makes every record write durable before returning
	SyncWrites bool `toml:"sync_writes"`

	// Spans enables the span table. Without it, span events are discarded.
	Spans bool `toml:"spans"`

	// Metrics enables the metric table
	Metrics bool `toml:"metrics"`
}

// FilesConfig controls the rotating JSON Lines archive.
// An empty directory disables the file sink.
type FilesConfig struct {
	Directory     string `toml:"directory"`
	MaxSizeMB     int64  `toml:"max_size_mb"`
	RetentionDays int64  `toml:"retention_days"`
}

// TelemetryConfig is the metrics-export section. Export is enabled only
// when an endpoint is configured.
type TelemetryConfig struct {
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
	Metrics      bool   `toml:"metrics"`
}

// IngestConfig groups the event sources.
type IngestConfig struct {
	HTTP HTTPIngestConfig `toml:"http"`
	TCP  TCPIngestConfig  `toml:"tcp"`
}

// HTTPIngestConfig is the HTTP POST event source.
type HTTPIngestConfig struct {
	Enabled    bool            `toml:"enabled"`
	Host       string          `toml:"host"`
	Port       int64           `toml:"port"`
	IngestPath string          `toml:"ingest_path"`
	RateLimit  RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig is per-client request limiting on the ingest path.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	BurstSize         int64   `toml:"burst_size"`
}

// TCPIngestConfig is the newline-delimited JSON TCP event source.
type TCPIngestConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int64  `toml:"port"`
}

// ServerConfig is the live-view server: SSE streams plus status.
type ServerConfig struct {
	Enabled    bool   `toml:"enabled"`
	Host       string `toml:"host"`
	Port       int64  `toml:"port"`
	StreamPath string `toml:"stream_path"`
	StatusPath string `toml:"status_path"`
}

func defaults() *Config {
	return &Config{
		Logging: LogConfig{
			Output: "stderr",
			Level:  "info",
		},
		Queue: QueueConfig{
			Capacity: 1024,
		},
		Storage: StorageConfig{
			Directory:  "./data",
			SyncWrites: false,
			Spans:      true,
			Metrics:    true,
		},
		Files: FilesConfig{
			Directory:     "./logs",
			MaxSizeMB:     100,
			RetentionDays: 7,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "yeti",
			Metrics:     true,
		},
		Ingest: IngestConfig{
			HTTP: HTTPIngestConfig{
				Enabled:    true,
				Host:       "127.0.0.1",
				Port:       8480,
				IngestPath: "/ingest",
				RateLimit: RateLimitConfig{
					Enabled:           false,
					RequestsPerSecond: 1000,
					BurstSize:         2000,
				},
			},
			TCP: TCPIngestConfig{
				Enabled: false,
				Host:    "127.0.0.1",
				Port:    8481,
			},
		},
		Server: ServerConfig{
			Enabled:    true,
			Host:       "127.0.0.1",
			Port:       8482,
			StreamPath: "/stream",
			StatusPath: "/status",
		},
	}
}

func (c *Config) validate() error {
	if c.Queue.Capacity < 1 {
		return fmt.Errorf("queue capacity must be positive, got %d", c.Queue.Capacity)
	}
	if c.Storage.Directory == "" {
		return fmt.Errorf("storage directory is required")
	}
	if c.Files.Directory != "" {
		if c.Files.MaxSizeMB < 1 {
			return fmt.Errorf("files max_size_mb must be positive, got %d", c.Files.MaxSizeMB)
		}
		if c.Files.RetentionDays < 1 {
			return fmt.Errorf("files retention_days must be positive, got %d", c.Files.RetentionDays)
		}
	}
	if c.Ingest.HTTP.Enabled {
		if err := validatePort(c.Ingest.HTTP.Port); err != nil {
			return fmt.Errorf("ingest.http: %w", err)
		}
	}
	if c.Ingest.TCP.Enabled {
		if err := validatePort(c.Ingest.TCP.Port); err != nil {
			return fmt.Errorf("ingest.tcp: %w", err)
		}
	}
	if c.Server.Enabled {
		if err := validatePort(c.Server.Port); err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}
	return validateLogConfig(&c.Logging)
}

func validatePort(port int64) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}
	return nil
}
