// FILE: yetitel/src/internal/normalize/normalize.go

// Package normalize turns raw host events into typed, persistable records.
// Extraction is permissive: missing strings default to empty, a missing
// level defaults to "INFO", missing numerics to zero. Nothing here fails;
// malformed nested data degrades to an empty object.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"

	"yetitel/src/internal/core"
	"yetitel/src/internal/ident"
)

const defaultLevel = "INFO"

// Log builds a log record from a raw event, assigning a fresh identifier.
func Log(ev *core.Event) *core.LogRecord {
	return &core.LogRecord{
		ID:        ident.New(),
		Timestamp: FormatEpochMillis(ev.Timestamp),
		Level:     levelOrDefault(ev.Level),
		Target:    ev.Target,
		Message:   ev.Message,
		Fields:    serializeMap(ev.Fields),
	}
}

// Span builds a span record. DurationMs is end minus start with no
// clamping; out-of-order host timestamps yield a negative duration, which
// is a data-quality condition rather than an error.
func Span(ev *core.Event) *core.SpanRecord {
	return &core.SpanRecord{
		ID:         ident.New(),
		Name:       ev.Name,
		Target:     ev.Target,
		Level:      levelOrDefault(ev.Level),
		StartTime:  FormatEpochMillis(ev.StartTime),
		EndTime:    FormatEpochMillis(ev.EndTime),
		DurationMs: ev.EndTime - ev.StartTime,
		Fields:     serializeMap(ev.Fields),
	}
}

// Metric builds a metric record.
func Metric(ev *core.Event) *core.MetricRecord {
	return &core.MetricRecord{
		ID:         ident.New(),
		Name:       ev.Name,
		Value:      ev.Value,
		Attributes: serializeMap(ev.Attributes),
		Timestamp:  FormatEpochMillis(ev.Timestamp),
	}
}

// FormatEpochMillis renders epoch milliseconds as a fixed-point
// "seconds.milliseconds" string, e.g. 1700000000000 -> "1700000000.000".
func FormatEpochMillis(ms float64) string {
	secs := uint64(ms / 1000.0)
	millis := uint32(math.Mod(ms, 1000.0))
	return fmt.Sprintf("%d.%03d", secs, millis)
}

func levelOrDefault(level string) string {
	if level == "" {
		return defaultLevel
	}
	return level
}

// serializeMap renders a field map as a compact JSON string. A nil map or
// marshal failure yields "{}" rather than an error.
func serializeMap(m map[string]any) string {
	if m == nil {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}
