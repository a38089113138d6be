// FILE: yetitel/src/internal/sink/sink.go
package sink

import (
	"time"

	"yetitel/src/internal/core"
)

// Sink is a pluggable output destination for normalized records.
// The dispatch loop invokes sinks in registration order, fire-and-forget:
// a sink logs its own failures and never returns them past the loop.
// Sink write-path state is owned by the dispatch loop's goroutine, so
// implementations need no internal locking for it.
type Sink interface {
	// WriteLog receives a normalized log record
	WriteLog(record *core.LogRecord)

	// WriteSpan receives a normalized span record
	WriteSpan(record *core.SpanRecord)

	// WriteMetric receives a normalized metric record
	WriteMetric(record *core.MetricRecord)

	// Stop flushes buffers and releases resources
	Stop()

	// GetStats returns sink statistics
	GetStats() SinkStats
}

// SinkStats contains statistics about a sink
type SinkStats struct {
	Type           string
	TotalProcessed uint64
	StartTime      time.Time
	LastProcessed  time.Time
	Details        map[string]any
}
