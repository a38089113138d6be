// FILE: yetitel/src/internal/dispatch/writer.go

// Package dispatch hosts the single-consumer event loop: events are read
// from the inbound queue in arrival order, normalized, persisted,
// published to live viewers, and fanned out to every registered sink.
package dispatch

import (
	"encoding/json"
	"sync/atomic"

	"yetitel/src/internal/core"
	"yetitel/src/internal/hub"
	"yetitel/src/internal/normalize"
	"yetitel/src/internal/sink"
	"yetitel/src/internal/storage"

	"github.com/lixenwraith/log"
)

// Progress line interval, in processed events.
const statusEvery = 1000

// Writer owns the receiving end of the inbound queue and the mutable
// state of every registered sink. Exactly one goroutine runs Run; that
// exclusivity is what lets sinks go lock-free.
//
// No failure below is fatal: malformed events, store write errors, and
// notify errors are logged and swallowed. The loop terminates only when
// the inbound queue is closed.
type Writer struct {
	logStore    storage.Store
	spanStore   storage.Store
	metricStore storage.Store
	hub         *hub.Hub
	sinks       []sink.Sink
	logger      *log.Logger

	// Counters are written only by the loop goroutine; atomics let the
	// status endpoint read them concurrently.
	logCount    atomic.Uint64
	spanCount   atomic.Uint64
	metricCount atomic.Uint64

	done chan struct{}
}

// Stats is a snapshot of the writer's per-kind counters.
type Stats struct {
	Logs    uint64 `json:"logs"`
	Spans   uint64 `json:"spans"`
	Metrics uint64 `json:"metrics"`
	Total   uint64 `json:"total"`
}

// New creates a writer. logStore is required; spanStore and metricStore
// may be nil, in which case events of that kind are discarded before
// normalization (storage and sink fan-out are coupled per kind).
func New(logStore, spanStore, metricStore storage.Store, h *hub.Hub, logger *log.Logger) *Writer {
	return &Writer{
		logStore:    logStore,
		spanStore:   spanStore,
		metricStore: metricStore,
		hub:         h,
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// AddSink registers an output sink. Sinks are invoked in registration
// order. Not safe to call once Run has started.
func (w *Writer) AddSink(s sink.Sink) *Writer {
	w.sinks = append(w.sinks, s)
	return w
}

// Sinks returns the registered sinks, for stats collection.
func (w *Writer) Sinks() []sink.Sink {
	return w.sinks
}

// Done is closed when Run returns.
func (w *Writer) Done() <-chan struct{} {
	return w.done
}

// Stats returns the current per-kind counters.
func (w *Writer) Stats() Stats {
	logs := w.logCount.Load()
	spans := w.spanCount.Load()
	metrics := w.metricCount.Load()
	return Stats{
		Logs:    logs,
		Spans:   spans,
		Metrics: metrics,
		Total:   logs + spans + metrics,
	}
}

// Run consumes events until the channel is closed — the loop's only
// termination path — then stops every sink in registration order.
func (w *Writer) Run(events <-chan core.Event) {
	defer close(w.done)

	w.logger.Info("msg", "Telemetry writer started", "component", "writer")

	for ev := range events {
		switch ev.Kind {
		case core.KindLog:
			w.logCount.Add(1)
			w.writeLog(&ev)
		case core.KindSpan:
			w.spanCount.Add(1)
			w.writeSpan(&ev)
		case core.KindMetric:
			w.metricCount.Add(1)
			w.writeMetric(&ev)
		default:
			// Unknown kinds are dropped without error.
			continue
		}

		stats := w.Stats()
		if stats.Total%statusEvery == 0 {
			w.logger.Info("msg", "Processed events",
				"component", "writer",
				"total", stats.Total,
				"logs", stats.Logs,
				"spans", stats.Spans,
				"metrics", stats.Metrics)
		}
	}

	for _, s := range w.sinks {
		s.Stop()
	}

	stats := w.Stats()
	w.logger.Info("msg", "Telemetry writer shutting down",
		"component", "writer",
		"logs", stats.Logs,
		"spans", stats.Spans,
		"metrics", stats.Metrics)
}

func (w *Writer) writeLog(ev *core.Event) {
	rec := normalize.Log(ev)

	w.persist(w.logStore, rec.ID, rec)
	w.notify(core.KindLog, rec.ID, rec)

	for _, s := range w.sinks {
		s.WriteLog(rec)
	}
}

func (w *Writer) writeSpan(ev *core.Event) {
	// No span table configured: the event is discarded entirely.
	if w.spanStore == nil {
		return
	}

	rec := normalize.Span(ev)

	w.persist(w.spanStore, rec.ID, rec)
	w.notify(core.KindSpan, rec.ID, rec)

	for _, s := range w.sinks {
		s.WriteSpan(rec)
	}
}

func (w *Writer) writeMetric(ev *core.Event) {
	if w.metricStore == nil {
		return
	}

	rec := normalize.Metric(ev)

	w.persist(w.metricStore, rec.ID, rec)
	w.notify(core.KindMetric, rec.ID, rec)

	for _, s := range w.sinks {
		s.WriteMetric(rec)
	}
}

// persist writes a record under its identifier. Best-effort: failures are
// logged for the operator and otherwise swallowed.
func (w *Writer) persist(store storage.Store, id string, record any) {
	value, err := json.Marshal(record)
	if err != nil {
		w.logger.Error("msg", "Failed to encode record for storage",
			"component", "writer",
			"id", id,
			"error", err)
		return
	}
	if err := store.Put([]byte(id), value); err != nil {
		w.logger.Error("msg", "Failed to persist record",
			"component", "writer",
			"id", id,
			"error", err)
	}
}

func (w *Writer) notify(kind, id string, record any) {
	if w.hub == nil {
		return
	}
	w.hub.Notify(kind, id, record)
}
