// FILE: yetitel/src/internal/server/server.go

// Package server exposes the live view: per-kind SSE record streams and a
// JSON status endpoint over a single fasthttp listener.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"yetitel/src/internal/config"
	"yetitel/src/internal/core"
	"yetitel/src/internal/hub"
	"yetitel/src/internal/version"

	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/valyala/fasthttp"
)

// streamBuffer is the per-client update buffer. A client that falls this
// far behind starts missing updates.
const streamBuffer = 64

// StatusFunc supplies the pipeline sections of the status document.
type StatusFunc func() map[string]any

// Server streams live records over SSE and reports pipeline status.
type Server struct {
	cfg      config.ServerConfig
	hub      *hub.Hub
	statusFn StatusFunc
	server   *fasthttp.Server
	done     chan struct{}
	wg       sync.WaitGroup
	logger   *log.Logger

	// Statistics
	activeClients atomic.Int64
	totalClients  atomic.Uint64
	startTime     time.Time
}

func New(cfg config.ServerConfig, h *hub.Hub, statusFn StatusFunc, logger *log.Logger) *Server {
	return &Server{
		cfg:       cfg,
		hub:       h,
		statusFn:  statusFn,
		done:      make(chan struct{}),
		logger:    logger,
		startTime: time.Now(),
	}
}

func (s *Server) Start() error {
	s.server = &fasthttp.Server{
		Name:             fmt.Sprintf("yetitel/%s", version.Short()),
		Handler:          s.requestHandler,
		Logger:           compat.NewFastHTTPAdapter(s.logger),
		DisableKeepalive: false,
		CloseOnShutdown:  true,
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("msg", "Live server started",
			"component", "server",
			"host", s.cfg.Host,
			"port", s.cfg.Port,
			"stream_path", s.cfg.StreamPath,
			"status_path", s.cfg.StatusPath)

		if err := s.server.ListenAndServe(addr); err != nil {
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

func (s *Server) Stop() {
	s.logger.Info("msg", "Stopping live server")
	close(s.done)

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.server.ShutdownWithContext(ctx)
	}

	s.wg.Wait()
	s.logger.Info("msg", "Live server stopped")
}

func (s *Server) requestHandler(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() {
		writeJSONError(ctx, fasthttp.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	path := string(ctx.Path())

	if path == s.cfg.StatusPath {
		s.handleStatus(ctx)
		return
	}

	if kind, ok := s.streamKind(path); ok {
		s.handleStream(ctx, kind)
		return
	}

	writeJSONError(ctx, fasthttp.StatusNotFound, "Not Found")
}

// streamKind maps "<stream_path>/<kind>" to a record kind.
func (s *Server) streamKind(path string) (string, bool) {
	prefix := s.cfg.StreamPath + "/"
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}

	switch kind := path[len(prefix):]; kind {
	case core.KindLog, core.KindSpan, core.KindMetric:
		return kind, true
	default:
		return "", false
	}
}

func (s *Server) handleStream(ctx *fasthttp.RequestCtx, kind string) {
	remoteAddr := ctx.RemoteAddr().String()

	ctx.Response.Header.Set("Content-Type", "text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
	ctx.Response.Header.Set("X-Accel-Buffering", "no")

	subID, updates := s.hub.Subscribe(kind, streamBuffer)

	streamFunc := func(w *bufio.Writer) {
		connectCount := s.activeClients.Add(1)
		s.totalClients.Add(1)
		s.logger.Debug("msg", "Stream client connected",
			"component", "server",
			"remote_addr", remoteAddr,
			"kind", kind,
			"subscriber_id", subID,
			"active_clients", connectCount)

		s.wg.Add(1)
		defer func() {
			disconnectCount := s.activeClients.Add(-1)
			s.logger.Debug("msg", "Stream client disconnected",
				"component", "server",
				"remote_addr", remoteAddr,
				"kind", kind,
				"subscriber_id", subID,
				"active_clients", disconnectCount)

			s.hub.Unsubscribe(kind, subID)
			s.wg.Done()
		}()

		connectionInfo := map[string]any{
			"kind":        kind,
			"stream_path": s.cfg.StreamPath,
			"status_path": s.cfg.StatusPath,
		}
		data, _ := json.Marshal(connectionInfo)
		fmt.Fprintf(w, "event: connected\ndata: %s\n\n", data)
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}

				if err := writeSSERecord(w, update); err != nil {
					s.logger.Error("msg", "Failed to encode record",
						"component", "server",
						"kind", kind,
						"record_id", update.ID,
						"error", err)
					continue
				}

				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-s.done:
				fmt.Fprintf(w, "event: disconnect\ndata: {\"reason\":\"server_shutdown\"}\n\n")
				w.Flush()
				return
			}
		}
	}

	ctx.SetBodyStreamWriter(streamFunc)
}

// writeSSERecord frames one record as an SSE event named after its kind.
func writeSSERecord(w *bufio.Writer, update hub.Update) error {
	data, err := json.Marshal(update.Record)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", update.Kind)
	fmt.Fprintf(w, "id: %s\n", update.ID)
	fmt.Fprintf(w, "data: %s\n\n", data)
	return nil
}

func (s *Server) handleStatus(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("application/json")

	status := map[string]any{
		"service": "yetitel",
		"version": version.Short(),
		"server": map[string]any{
			"port":           s.cfg.Port,
			"active_clients": s.activeClients.Load(),
			"total_clients":  s.totalClients.Load(),
			"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		},
		"endpoints": map[string]string{
			"stream": s.cfg.StreamPath,
			"status": s.cfg.StatusPath,
		},
	}

	if s.statusFn != nil {
		for section, value := range s.statusFn() {
			status[section] = value
		}
	}

	data, _ := json.Marshal(status)
	ctx.SetBody(data)
}

func writeJSONError(ctx *fasthttp.RequestCtx, statusCode int, message string) {
	ctx.SetStatusCode(statusCode)
	ctx.SetContentType("application/json")
	json.NewEncoder(ctx).Encode(map[string]any{
		"error": message,
	})
}
