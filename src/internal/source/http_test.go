// FILE: yetitel/src/internal/source/http_test.go
package source

import (
	"testing"

	"yetitel/src/internal/config"
	"yetitel/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHTTPSource(t *testing.T, buffer int) (*HTTPSource, chan core.Event) {
	t.Helper()
	events := make(chan core.Event, buffer)
	src, err := NewHTTPSource(config.HTTPIngestConfig{
		Host:       "127.0.0.1",
		Port:       8480,
		IngestPath: "/ingest",
	}, events, log.NewLogger())
	require.NoError(t, err)
	return src, events
}

func TestNewHTTPSourceValidation(t *testing.T) {
	events := make(chan core.Event, 1)
	_, err := NewHTTPSource(config.HTTPIngestConfig{Port: 0}, events, log.NewLogger())
	assert.Error(t, err)

	src, err := NewHTTPSource(config.HTTPIngestConfig{Port: 8480}, events, log.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, "/ingest", src.ingestPath)
}

func TestHTTPIngestSingleEvent(t *testing.T) {
	src, events := newTestHTTPSource(t, 4)

	accepted, invalid := src.ingest([]byte(`{"kind":"log","level":"INFO","message":"hello"}`))
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 0, invalid)

	ev := <-events
	assert.Equal(t, core.KindLog, ev.Kind)
	assert.Equal(t, "hello", ev.Message)
}

func TestHTTPIngestBatch(t *testing.T) {
	src, events := newTestHTTPSource(t, 4)

	body := []byte(`{"kind":"log","message":"one"}
{"kind":"span","name":"req","target":"http.request"}

not json
{"kind":"metric","name":"mem","value":42}`)

	accepted, invalid := src.ingest(body)
	assert.Equal(t, 3, accepted)
	assert.Equal(t, 1, invalid)

	kinds := []string{(<-events).Kind, (<-events).Kind, (<-events).Kind}
	assert.Equal(t, []string{core.KindLog, core.KindSpan, core.KindMetric}, kinds)

	stats := src.GetStats()
	assert.Equal(t, uint64(3), stats.TotalEvents)
	assert.Equal(t, uint64(1), stats.InvalidEvents)
}

func TestHTTPIngestDropsWhenQueueFull(t *testing.T) {
	src, events := newTestHTTPSource(t, 1)

	accepted, invalid := src.ingest([]byte(`{"kind":"log","message":"a"}
{"kind":"log","message":"b"}`))
	assert.Equal(t, 2, accepted)
	assert.Equal(t, 0, invalid)

	stats := src.GetStats()
	assert.Equal(t, uint64(1), stats.DroppedEvents)

	ev := <-events
	assert.Equal(t, "a", ev.Message)
}
