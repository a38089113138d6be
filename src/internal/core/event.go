// FILE: yetitel/src/internal/core/event.go
package core

// Event kinds delivered by the instrumentation layer.
const (
	KindLog    = "log"
	KindSpan   = "span"
	KindMetric = "metric"
)

// HTTPRequestTarget marks spans emitted by the HTTP request layer.
// Only spans with this target are turned into export metrics.
const HTTPRequestTarget = "http.request"

// Event is the loosely-typed envelope produced by the host instrumentation.
// Kind selects which of the remaining fields carry meaning; everything else
// is ignored. Unknown kinds are dropped without error.
type Event struct {
	Kind string `json:"kind"`

	// Log and span fields
	Level   string `json:"level,omitempty"`
	Target  string `json:"target,omitempty"`
	Message string `json:"message,omitempty"`

	// Span and metric fields
	Name string `json:"name,omitempty"`

	// Epoch milliseconds
	Timestamp float64 `json:"timestamp,omitempty"`
	StartTime float64 `json:"startTime,omitempty"`
	EndTime   float64 `json:"endTime,omitempty"`

	// Metric value
	Value float64 `json:"value,omitempty"`

	// Free-form attribute maps, preserved opaquely
	Fields     map[string]any `json:"fields,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}
