// FILE: yetitel/src/internal/sink/otlp.go
package sink

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"yetitel/src/internal/core"

	"github.com/lixenwraith/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const (
	exportTimeout  = 10 * time.Second
	exportInterval = 15 * time.Second
)

// OTLPOptions is the metrics-export configuration from the host config.
type OTLPOptions struct {
	// Endpoint of the OTLP gRPC collector. Required; a sink is not
	// constructed without one.
	Endpoint string

	// ServiceName reported in the resource attributes.
	ServiceName string

	// MetricsEnabled gates initialization entirely.
	MetricsEnabled bool
}

// OTLPSink derives HTTP request metrics from span records and exports them
// to an OTLP collector.
//
// The meter provider is created lazily on the first HTTP-request span
// rather than at construction time: the sink may be built during extension
// setup, outside the execution context that hosts the periodic export
// machinery. Spans with any other target return before initialization, so
// a deployment with no HTTP spans never opens a connection.
type OTLPSink struct {
	config OTLPOptions
	logger *log.Logger

	provider        *sdkmetric.MeterProvider
	requestsTotal   metric.Int64Counter
	requestDuration metric.Float64Histogram
	errorsTotal     metric.Int64Counter

	// newReader builds the export reader; tests substitute a manual reader
	// to observe instruments without a collector.
	newReader func() (sdkmetric.Reader, error)

	// Statistics
	totalProcessed atomic.Uint64
	lastProcessed  atomic.Value // time.Time
	startTime      time.Time
}

// NewOTLPSink creates the sink. Returns nil when no endpoint is
// configured: absent configuration is a disabled feature, not an error.
func NewOTLPSink(opts OTLPOptions, logger *log.Logger) *OTLPSink {
	if opts.Endpoint == "" {
		return nil
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "yeti"
	}

	s := &OTLPSink{
		config:    opts,
		logger:    logger,
		startTime: time.Now(),
	}
	s.lastProcessed.Store(time.Time{})
	s.newReader = s.newExportReader

	logger.Info("msg", "OTLP output configured",
		"component", "otlp_sink",
		"endpoint", opts.Endpoint,
		"service", opts.ServiceName,
		"metrics", opts.MetricsEnabled)
	return s
}

// WriteLog is a no-op: export here is span-derived only.
func (s *OTLPSink) WriteLog(*core.LogRecord) {}

// WriteMetric is a no-op: custom metrics are persisted, not exported.
func (s *OTLPSink) WriteMetric(*core.MetricRecord) {}

func (s *OTLPSink) WriteSpan(record *core.SpanRecord) {
	// Filter before initializing so non-HTTP workloads never trigger a
	// connection attempt.
	if record.Target != core.HTTPRequestTarget {
		return
	}

	s.ensureInitialized()
	if s.provider == nil {
		return
	}

	s.totalProcessed.Add(1)
	s.lastProcessed.Store(time.Now())

	var fields map[string]any
	if err := json.Unmarshal([]byte(record.Fields), &fields); err != nil {
		fields = map[string]any{}
	}

	method := stringField(fields, "http.method", "UNKNOWN")
	route := stringField(fields, "http.route", "/")
	status := stringField(fields, "http.status_code", "0")
	isError := stringField(fields, "status", "") == "ERROR"

	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.String("http.status_code", status),
	)

	ctx := context.Background()
	s.requestsTotal.Add(ctx, 1, attrs)
	s.requestDuration.Record(ctx, record.DurationMs/1000.0, attrs)
	if isError {
		s.errorsTotal.Add(ctx, 1, attrs)
	}
}

// Stop shuts the meter provider down, flushing buffered metrics.
// Shutdown errors are logged, never propagated.
func (s *OTLPSink) Stop() {
	if s.provider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
	defer cancel()

	if err := s.provider.Shutdown(ctx); err != nil {
		s.logger.Error("msg", "OTLP meter provider shutdown failed",
			"component", "otlp_sink",
			"error", err)
	}
	s.provider = nil
}

func (s *OTLPSink) GetStats() SinkStats {
	lastProc, _ := s.lastProcessed.Load().(time.Time)

	return SinkStats{
		Type:           "otlp",
		TotalProcessed: s.totalProcessed.Load(),
		StartTime:      s.startTime,
		LastProcessed:  lastProc,
		Details: map[string]any{
			"endpoint":    s.config.Endpoint,
			"service":     s.config.ServiceName,
			"initialized": s.provider != nil,
		},
	}
}

// ensureInitialized builds the meter provider and instruments exactly once.
// A no-op when already initialized or when metrics export is disabled; a
// failed attempt leaves the sink uninitialized and is retried on the next
// matching span.
func (s *OTLPSink) ensureInitialized() {
	if s.provider != nil || !s.config.MetricsEnabled {
		return
	}

	reader, err := s.newReader()
	if err != nil {
		s.logger.Error("msg", "Failed to create metric export reader",
			"component", "otlp_sink",
			"endpoint", s.config.Endpoint,
			"error", err)
		return
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", s.config.ServiceName),
		attribute.String("deployment.environment", deploymentEnv()),
	)

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	meter := provider.Meter("yetitel")

	s.requestsTotal, err = meter.Int64Counter("http.server.requests",
		metric.WithDescription("Total number of HTTP requests"))
	if err != nil {
		s.logger.Error("msg", "Failed to create request counter",
			"component", "otlp_sink", "error", err)
		return
	}
	s.requestDuration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		s.logger.Error("msg", "Failed to create duration histogram",
			"component", "otlp_sink", "error", err)
		return
	}
	s.errorsTotal, err = meter.Int64Counter("http.server.errors",
		metric.WithDescription("Total number of HTTP errors"))
	if err != nil {
		s.logger.Error("msg", "Failed to create error counter",
			"component", "otlp_sink", "error", err)
		return
	}

	s.provider = provider
	s.logger.Info("msg", "OTLP meter provider initialized",
		"component", "otlp_sink",
		"endpoint", s.config.Endpoint)
}

// newExportReader is the production reader factory: an OTLP gRPC exporter
// behind a periodic reader.
func (s *OTLPSink) newExportReader() (sdkmetric.Reader, error) {
	exporter, err := otlpmetricgrpc.New(context.Background(),
		otlpmetricgrpc.WithEndpoint(trimScheme(s.config.Endpoint)),
		otlpmetricgrpc.WithInsecure(),
		otlpmetricgrpc.WithTimeout(exportTimeout),
	)
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(exportInterval)), nil
}

func trimScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return strings.TrimPrefix(endpoint, "https://")
}

func deploymentEnv() string {
	if env := os.Getenv("YETI_ENV"); env != "" {
		return env
	}
	return "development"
}

func stringField(fields map[string]any, key, fallback string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return fallback
}
