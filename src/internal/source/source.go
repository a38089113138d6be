// FILE: yetitel/src/internal/source/source.go
package source

import (
	"time"
)

// Source is an inbound producer of telemetry events. Sources publish into
// the shared bounded queue consumed by the dispatch writer; when the queue
// is full the event is dropped and counted, never blocking the transport.
type Source interface {
	// Start begins accepting events
	Start() error

	// Stop gracefully shuts down the source
	Stop()

	// GetStats returns source statistics
	GetStats() SourceStats
}

// SourceStats contains statistics about a source
type SourceStats struct {
	Type          string
	TotalEvents   uint64
	DroppedEvents uint64
	InvalidEvents uint64
	StartTime     time.Time
	LastEventTime time.Time
	Details       map[string]any
}
