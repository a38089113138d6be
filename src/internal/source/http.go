// FILE: yetitel/src/internal/source/http.go
package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"yetitel/src/internal/config"
	"yetitel/src/internal/core"
	"yetitel/src/internal/limit"

	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/valyala/fasthttp"
)

// HTTPSource receives telemetry events via HTTP POST. Bodies are either a
// single JSON event object or newline-delimited JSON, one event per line.
type HTTPSource struct {
	host       string
	port       int64
	ingestPath string
	server     *fasthttp.Server
	events     chan<- core.Event
	done       chan struct{}
	wg         sync.WaitGroup
	limiter    *limit.ClientLimiter
	logger     *log.Logger

	// Statistics
	totalEvents   atomic.Uint64
	droppedEvents atomic.Uint64
	invalidEvents atomic.Uint64
	startTime     time.Time
	lastEventTime atomic.Value // time.Time
}

// NewHTTPSource creates an HTTP ingest source publishing into events.
func NewHTTPSource(cfg config.HTTPIngestConfig, events chan<- core.Event, logger *log.Logger) (*HTTPSource, error) {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("http source requires a valid port, got %d", cfg.Port)
	}

	ingestPath := cfg.IngestPath
	if ingestPath == "" {
		ingestPath = "/ingest"
	}

	h := &HTTPSource{
		host:       cfg.Host,
		port:       cfg.Port,
		ingestPath: ingestPath,
		events:     events,
		done:       make(chan struct{}),
		limiter:    limit.New(cfg.RateLimit),
		logger:     logger,
		startTime:  time.Now(),
	}
	h.lastEventTime.Store(time.Time{})
	return h, nil
}

func (h *HTTPSource) Start() error {
	h.server = &fasthttp.Server{
		Handler:           h.requestHandler,
		Logger:            compat.NewFastHTTPAdapter(h.logger),
		DisableKeepalive:  false,
		StreamRequestBody: true,
		CloseOnShutdown:   true,
	}

	addr := fmt.Sprintf("%s:%d", h.host, h.port)

	errChan := make(chan error, 1)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.logger.Info("msg", "HTTP ingest server starting",
			"component", "http_source",
			"host", h.host,
			"port", h.port,
			"ingest_path", h.ingestPath)

		if err := h.server.ListenAndServe(addr); err != nil {
			h.logger.Error("msg", "HTTP ingest server failed",
				"component", "http_source",
				"port", h.port,
				"error", err)
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func (h *HTTPSource) Stop() {
	h.logger.Info("msg", "Stopping HTTP source")
	close(h.done)

	if h.server != nil {
		if err := h.server.Shutdown(); err != nil {
			h.logger.Error("msg", "Error shutting down HTTP ingest server",
				"component", "http_source",
				"error", err)
		}
	}
	if h.limiter != nil {
		h.limiter.Stop()
	}

	h.wg.Wait()
	h.logger.Info("msg", "HTTP source stopped")
}

func (h *HTTPSource) GetStats() SourceStats {
	lastEvent, _ := h.lastEventTime.Load().(time.Time)

	var limitStats map[string]any
	if h.limiter != nil {
		limitStats = h.limiter.GetStats()
	}

	return SourceStats{
		Type:          "http",
		TotalEvents:   h.totalEvents.Load(),
		DroppedEvents: h.droppedEvents.Load(),
		InvalidEvents: h.invalidEvents.Load(),
		StartTime:     h.startTime,
		LastEventTime: lastEvent,
		Details: map[string]any{
			"port":        h.port,
			"ingest_path": h.ingestPath,
			"rate_limit":  limitStats,
		},
	}
}

func (h *HTTPSource) requestHandler(ctx *fasthttp.RequestCtx) {
	if h.limiter != nil && !h.limiter.Allow(ctx.RemoteIP().String()) {
		ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
		ctx.SetContentType("application/json")
		json.NewEncoder(ctx).Encode(map[string]any{
			"error": "Too many requests",
		})
		return
	}

	if string(ctx.Path()) != h.ingestPath || !ctx.IsPost() {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		ctx.SetContentType("application/json")
		json.NewEncoder(ctx).Encode(map[string]any{
			"error": "Not Found",
		})
		return
	}

	body := ctx.PostBody()
	accepted, invalid := h.ingest(body)

	ctx.SetStatusCode(fasthttp.StatusAccepted)
	ctx.SetContentType("application/json")
	json.NewEncoder(ctx).Encode(map[string]any{
		"accepted": accepted,
		"invalid":  invalid,
	})
}

// ingest parses one or more events from a request body and publishes them.
func (h *HTTPSource) ingest(body []byte) (accepted, invalid int) {
	for line := range bytes.Lines(body) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var ev core.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			invalid++
			h.invalidEvents.Add(1)
			h.logger.Debug("msg", "Invalid JSON event",
				"component", "http_source",
				"error", err)
			continue
		}

		h.publish(ev)
		accepted++
	}
	return accepted, invalid
}

func (h *HTTPSource) publish(ev core.Event) {
	h.totalEvents.Add(1)
	h.lastEventTime.Store(time.Now())

	select {
	case h.events <- ev:
	default:
		// Queue full: drop rather than stall the transport.
		h.droppedEvents.Add(1)
		h.logger.Debug("msg", "Dropped event - queue full",
			"component", "http_source")
	}
}
