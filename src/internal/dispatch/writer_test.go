// FILE: yetitel/src/internal/dispatch/writer_test.go
package dispatch

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"yetitel/src/internal/core"
	"yetitel/src/internal/hub"
	"yetitel/src/internal/sink"
	"yetitel/src/internal/storage"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func newTestStore(t *testing.T) *storage.BadgerStore {
	t.Helper()
	s, err := storage.OpenBadger(storage.BadgerConfig{InMemory: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// captureSink records everything written to it, in order.
type captureSink struct {
	kinds   []string
	logs    []*core.LogRecord
	spans   []*core.SpanRecord
	metrics []*core.MetricRecord
	stopped bool
}

func (c *captureSink) WriteLog(r *core.LogRecord) {
	c.kinds = append(c.kinds, core.KindLog)
	c.logs = append(c.logs, r)
}

func (c *captureSink) WriteSpan(r *core.SpanRecord) {
	c.kinds = append(c.kinds, core.KindSpan)
	c.spans = append(c.spans, r)
}

func (c *captureSink) WriteMetric(r *core.MetricRecord) {
	c.kinds = append(c.kinds, core.KindMetric)
	c.metrics = append(c.metrics, r)
}

func (c *captureSink) Stop() { c.stopped = true }

func (c *captureSink) GetStats() sink.SinkStats {
	return sink.SinkStats{Type: "capture"}
}

// failStore rejects every put.
type failStore struct{}

func (failStore) Put(_, _ []byte) error      { return errors.New("backend unavailable") }
func (failStore) Get([]byte) ([]byte, error) { return nil, storage.ErrNotFound }
func (failStore) Close() error               { return nil }

func runWriter(t *testing.T, w *Writer, events []core.Event) {
	t.Helper()
	ch := make(chan core.Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)

	go w.Run(ch)

	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("writer did not terminate after queue closure")
	}
}

func TestWriter_LogEventPersisted(t *testing.T) {
	logStore := newTestStore(t)
	capture := &captureSink{}

	w := New(logStore, nil, nil, nil, newTestLogger()).AddSink(capture)
	runWriter(t, w, []core.Event{{
		Kind:      core.KindLog,
		Level:     "WARN",
		Message:   "disk low",
		Timestamp: 1700000000000,
	}})

	require.Len(t, capture.logs, 1)
	rec := capture.logs[0]
	assert.Equal(t, "WARN", rec.Level)
	assert.Equal(t, "disk low", rec.Message)
	assert.Equal(t, "1700000000.000", rec.Timestamp)

	stored, err := logStore.Get([]byte(rec.ID))
	require.NoError(t, err)

	var persisted core.LogRecord
	require.NoError(t, json.Unmarshal(stored, &persisted))
	assert.Equal(t, *rec, persisted)
}

func TestWriter_ArrivalOrderPreserved(t *testing.T) {
	logStore := newTestStore(t)
	spanStore := newTestStore(t)
	metricStore := newTestStore(t)
	capture := &captureSink{}

	w := New(logStore, spanStore, metricStore, nil, newTestLogger()).AddSink(capture)
	runWriter(t, w, []core.Event{
		{Kind: core.KindLog, Message: "first"},
		{Kind: core.KindSpan, Name: "second"},
		{Kind: core.KindMetric, Name: "third"},
		{Kind: core.KindLog, Message: "fourth"},
	})

	// Records reach sinks in exactly arrival order, not segregated by kind.
	assert.Equal(t, []string{
		core.KindLog, core.KindSpan, core.KindMetric, core.KindLog,
	}, capture.kinds)
	assert.Equal(t, "first", capture.logs[0].Message)
	assert.Equal(t, "fourth", capture.logs[1].Message)
}

func TestWriter_IdentifiersAreOrderedAndUnique(t *testing.T) {
	logStore := newTestStore(t)
	capture := &captureSink{}

	events := make([]core.Event, 100)
	for i := range events {
		events[i] = core.Event{Kind: core.KindLog, Message: "m"}
	}

	w := New(logStore, nil, nil, nil, newTestLogger()).AddSink(capture)
	runWriter(t, w, events)

	require.Len(t, capture.logs, 100)
	prev := ""
	for _, rec := range capture.logs {
		assert.NotEmpty(t, rec.ID)
		assert.Greater(t, rec.ID, prev, "identifiers follow creation order")
		prev = rec.ID
	}
}

func TestWriter_SpanWithoutStoreDiscarded(t *testing.T) {
	logStore := newTestStore(t)
	capture := &captureSink{}
	h := hub.New(nil)
	_, updates := h.Subscribe(core.KindSpan, 4)

	w := New(logStore, nil, nil, h, newTestLogger()).AddSink(capture)
	runWriter(t, w, []core.Event{
		{Kind: core.KindSpan, Name: "dropped"},
	})

	// Discarded before persistence, notification, and sink fan-out.
	assert.Empty(t, capture.spans)
	assert.Empty(t, updates)
	assert.Equal(t, uint64(1), w.Stats().Spans, "still counted for progress reporting")
}

func TestWriter_NegativeDurationPersisted(t *testing.T) {
	logStore := newTestStore(t)
	spanStore := newTestStore(t)
	capture := &captureSink{}

	w := New(logStore, spanStore, nil, nil, newTestLogger()).AddSink(capture)
	runWriter(t, w, []core.Event{{
		Kind:      core.KindSpan,
		StartTime: 2000,
		EndTime:   1500,
	}})

	require.Len(t, capture.spans, 1)
	stored, err := spanStore.Get([]byte(capture.spans[0].ID))
	require.NoError(t, err)

	var persisted core.SpanRecord
	require.NoError(t, json.Unmarshal(stored, &persisted))
	assert.Equal(t, -500.0, persisted.DurationMs)
}

func TestWriter_PersistenceFailureIsNotFatal(t *testing.T) {
	capture := &captureSink{}

	w := New(failStore{}, nil, nil, nil, newTestLogger()).AddSink(capture)
	runWriter(t, w, []core.Event{
		{Kind: core.KindLog, Message: "a"},
		{Kind: core.KindLog, Message: "b"},
	})

	// Store failures are swallowed; sinks still receive both records.
	assert.Len(t, capture.logs, 2)
	assert.Equal(t, uint64(2), w.Stats().Logs)
}

func TestWriter_UnknownKindIgnored(t *testing.T) {
	logStore := newTestStore(t)
	capture := &captureSink{}

	w := New(logStore, nil, nil, nil, newTestLogger()).AddSink(capture)
	runWriter(t, w, []core.Event{
		{Kind: "trace"},
		{Kind: core.KindLog, Message: "kept"},
		{Kind: ""},
	})

	assert.Len(t, capture.logs, 1)
	assert.Equal(t, uint64(1), w.Stats().Total)
}

func TestWriter_NotifiesHub(t *testing.T) {
	logStore := newTestStore(t)
	h := hub.New(nil)
	_, updates := h.Subscribe(core.KindLog, 4)

	w := New(logStore, nil, nil, h, newTestLogger())
	runWriter(t, w, []core.Event{
		{Kind: core.KindLog, Message: "live"},
	})

	require.Len(t, updates, 1)
	u := <-updates
	assert.Equal(t, core.KindLog, u.Kind)
	rec, ok := u.Record.(*core.LogRecord)
	require.True(t, ok)
	assert.Equal(t, "live", rec.Message)
	assert.Equal(t, rec.ID, u.ID)
}

func TestWriter_StopsSinksOnClosure(t *testing.T) {
	logStore := newTestStore(t)
	capture := &captureSink{}

	w := New(logStore, nil, nil, nil, newTestLogger()).AddSink(capture)
	runWriter(t, w, nil)

	assert.True(t, capture.stopped, "sinks are flushed and stopped when the queue closes")
}
