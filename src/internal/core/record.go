// FILE: yetitel/src/internal/core/record.go
package core

// LogRecord is the normalized, persisted form of a log event.
// Fields holds the JSON-serialized field map for storage compactness.
type LogRecord struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Target    string `json:"target"`
	Message   string `json:"message"`
	Fields    string `json:"fields"`
}

// SpanRecord is the normalized form of a span-completion event.
// DurationMs is end minus start; a negative value means the host supplied
// out-of-order timestamps and is preserved as-is.
type SpanRecord struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Target     string  `json:"target"`
	Level      string  `json:"level"`
	StartTime  string  `json:"startTime"`
	EndTime    string  `json:"endTime"`
	DurationMs float64 `json:"durationMs"`
	Fields     string  `json:"fields"`
}

// MetricRecord is the normalized form of a metric event.
type MetricRecord struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Attributes string  `json:"attributes"`
	Timestamp  string  `json:"timestamp"`
}
