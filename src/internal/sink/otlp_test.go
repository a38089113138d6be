// FILE: yetitel/src/internal/sink/otlp_test.go
package sink

import (
	"context"
	"testing"

	"yetitel/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestOTLPSink(t *testing.T, opts OTLPOptions) (*OTLPSink, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()

	s := NewOTLPSink(opts, newTestLogger())
	require.NotNil(t, s)
	s.newReader = func() (sdkmetric.Reader, error) { return reader, nil }
	t.Cleanup(s.Stop)
	return s, reader
}

func httpSpan(durationMs float64, fields string) *core.SpanRecord {
	return &core.SpanRecord{
		ID:         "0192d9f0-0000-7000-8000-000000000002",
		Name:       "request",
		Target:     core.HTTPRequestTarget,
		Level:      "INFO",
		DurationMs: durationMs,
		Fields:     fields,
	}
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			found[m.Name] = m
		}
	}
	return found
}

func counterValue(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum data")
	require.Len(t, sum.DataPoints, 1)
	return sum.DataPoints[0].Value
}

func TestNewOTLPSink_NoEndpoint(t *testing.T) {
	assert.Nil(t, NewOTLPSink(OTLPOptions{}, newTestLogger()),
		"missing endpoint disables the sink entirely")
}

func TestOTLPSink_NonHTTPSpanSkipsInitialization(t *testing.T) {
	s, _ := newTestOTLPSink(t, OTLPOptions{
		Endpoint:       "localhost:4317",
		MetricsEnabled: true,
	})

	span := httpSpan(100, "{}")
	span.Target = "db.query"
	s.WriteSpan(span)

	assert.Nil(t, s.provider, "non-matching spans must not trigger a connection attempt")
}

func TestOTLPSink_MetricsDisabled(t *testing.T) {
	s, _ := newTestOTLPSink(t, OTLPOptions{
		Endpoint:       "localhost:4317",
		MetricsEnabled: false,
	})

	s.WriteSpan(httpSpan(100, "{}"))

	assert.Nil(t, s.provider)
}

func TestOTLPSink_RequestMetrics(t *testing.T) {
	s, reader := newTestOTLPSink(t, OTLPOptions{
		Endpoint:       "localhost:4317",
		MetricsEnabled: true,
	})

	s.WriteSpan(httpSpan(500,
		`{"http.method":"GET","http.route":"/health","http.status_code":"200"}`))

	metrics := collect(t, reader)

	requests, ok := metrics["http.server.requests"]
	require.True(t, ok)
	assert.Equal(t, int64(1), counterValue(t, requests))

	duration, ok := metrics["http.server.request.duration"]
	require.True(t, ok)
	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	dp := hist.DataPoints[0]
	assert.Equal(t, uint64(1), dp.Count)
	assert.InDelta(t, 0.5, dp.Sum, 1e-9, "durationMs is converted to seconds")

	wantAttrs := attribute.NewSet(
		attribute.String("http.method", "GET"),
		attribute.String("http.route", "/health"),
		attribute.String("http.status_code", "200"),
	)
	assert.True(t, dp.Attributes.Equals(&wantAttrs))

	if errors, ok := metrics["http.server.errors"]; ok {
		sum := errors.Data.(metricdata.Sum[int64])
		assert.Empty(t, sum.DataPoints, "no error counted for a success span")
	}
}

func TestOTLPSink_ErrorSpanCountsBoth(t *testing.T) {
	s, reader := newTestOTLPSink(t, OTLPOptions{
		Endpoint:       "localhost:4317",
		MetricsEnabled: true,
	})

	s.WriteSpan(httpSpan(250,
		`{"http.method":"POST","http.route":"/items","http.status_code":"500","status":"ERROR"}`))

	metrics := collect(t, reader)
	assert.Equal(t, int64(1), counterValue(t, metrics["http.server.requests"]))
	assert.Equal(t, int64(1), counterValue(t, metrics["http.server.errors"]))
}

func TestOTLPSink_PermissiveFieldDefaults(t *testing.T) {
	s, reader := newTestOTLPSink(t, OTLPOptions{
		Endpoint:       "localhost:4317",
		MetricsEnabled: true,
	})

	// Malformed field maps degrade to defaults instead of failing.
	s.WriteSpan(httpSpan(100, "not json"))

	metrics := collect(t, reader)
	requests := metrics["http.server.requests"]
	sum := requests.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)

	wantAttrs := attribute.NewSet(
		attribute.String("http.method", "UNKNOWN"),
		attribute.String("http.route", "/"),
		attribute.String("http.status_code", "0"),
	)
	assert.True(t, sum.DataPoints[0].Attributes.Equals(&wantAttrs))
}

func TestOTLPSink_InitializationIsIdempotent(t *testing.T) {
	s, _ := newTestOTLPSink(t, OTLPOptions{
		Endpoint:       "localhost:4317",
		MetricsEnabled: true,
	})

	s.WriteSpan(httpSpan(100, "{}"))
	first := s.provider
	require.NotNil(t, first)

	s.WriteSpan(httpSpan(100, "{}"))
	assert.Same(t, first, s.provider)
}
