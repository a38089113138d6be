// FILE: yetitel/src/internal/source/tcp.go
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"yetitel/src/internal/config"
	"yetitel/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/panjf2000/gnet/v2"
)

const (
	maxClientBufferSize = 10 * 1024 * 1024 // 10MB max per client
	maxLineLength       = 1 * 1024 * 1024  // 1MB max per event line
)

// TCPSource receives newline-delimited JSON events over raw TCP.
type TCPSource struct {
	host     string
	port     int64
	events   chan<- core.Event
	server   *tcpEventServer
	done     chan struct{}
	engine   *gnet.Engine
	engineMu sync.Mutex
	wg       sync.WaitGroup
	logger   *log.Logger

	// Statistics
	totalEvents   atomic.Uint64
	droppedEvents atomic.Uint64
	invalidEvents atomic.Uint64
	activeConns   atomic.Int64
	startTime     time.Time
	lastEventTime atomic.Value // time.Time
}

// NewTCPSource creates a TCP ingest source publishing into events.
func NewTCPSource(cfg config.TCPIngestConfig, events chan<- core.Event, logger *log.Logger) (*TCPSource, error) {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("tcp source requires a valid port, got %d", cfg.Port)
	}

	host := cfg.Host
	if host == "" {
		host = "0.0.0.0"
	}

	t := &TCPSource{
		host:      host,
		port:      cfg.Port,
		events:    events,
		done:      make(chan struct{}),
		logger:    logger,
		startTime: time.Now(),
	}
	t.lastEventTime.Store(time.Time{})
	return t, nil
}

func (t *TCPSource) Start() error {
	t.server = &tcpEventServer{
		source:  t,
		clients: make(map[gnet.Conn]*tcpClient),
	}

	addr := fmt.Sprintf("tcp://%s:%d", t.host, t.port)
	gnetLogger := compat.NewGnetAdapter(t.logger)

	errChan := make(chan error, 1)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.logger.Info("msg", "TCP ingest server starting",
			"component", "tcp_source",
			"port", t.port)

		err := gnet.Run(t.server, addr,
			gnet.WithLogger(gnetLogger),
			gnet.WithMulticore(true),
			gnet.WithReusePort(true),
		)
		if err != nil {
			t.logger.Error("msg", "TCP ingest server failed",
				"component", "tcp_source",
				"port", t.port,
				"error", err)
		}
		errChan <- err
	}()

	select {
	case err := <-errChan:
		close(t.done)
		t.wg.Wait()
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func (t *TCPSource) Stop() {
	t.logger.Info("msg", "Stopping TCP source")
	close(t.done)

	t.engineMu.Lock()
	engine := t.engine
	t.engineMu.Unlock()

	if engine != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		(*engine).Stop(ctx)
	}

	t.wg.Wait()
	t.logger.Info("msg", "TCP source stopped")
}

func (t *TCPSource) GetStats() SourceStats {
	lastEvent, _ := t.lastEventTime.Load().(time.Time)

	return SourceStats{
		Type:          "tcp",
		TotalEvents:   t.totalEvents.Load(),
		DroppedEvents: t.droppedEvents.Load(),
		InvalidEvents: t.invalidEvents.Load(),
		StartTime:     t.startTime,
		LastEventTime: lastEvent,
		Details: map[string]any{
			"port":               t.port,
			"active_connections": t.activeConns.Load(),
		},
	}
}

func (t *TCPSource) publish(ev core.Event) {
	t.totalEvents.Add(1)
	t.lastEventTime.Store(time.Now())

	select {
	case t.events <- ev:
	default:
		t.droppedEvents.Add(1)
		t.logger.Debug("msg", "Dropped event - queue full",
			"component", "tcp_source")
	}
}

// tcpClient holds per-connection parse state.
type tcpClient struct {
	conn   gnet.Conn
	buffer bytes.Buffer
}

// tcpEventServer handles gnet events.
type tcpEventServer struct {
	gnet.BuiltinEventEngine
	source  *TCPSource
	clients map[gnet.Conn]*tcpClient
	mu      sync.RWMutex
}

func (s *tcpEventServer) OnBoot(eng gnet.Engine) gnet.Action {
	s.source.engineMu.Lock()
	s.source.engine = &eng
	s.source.engineMu.Unlock()

	s.source.logger.Debug("msg", "TCP ingest server booted",
		"component", "tcp_source",
		"port", s.source.port)
	return gnet.None
}

func (s *tcpEventServer) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	s.mu.Lock()
	s.clients[c] = &tcpClient{conn: c}
	s.mu.Unlock()

	newCount := s.source.activeConns.Add(1)
	s.source.logger.Debug("msg", "TCP connection opened",
		"component", "tcp_source",
		"remote_addr", c.RemoteAddr().String(),
		"active_connections", newCount)
	return nil, gnet.None
}

func (s *tcpEventServer) OnClose(c gnet.Conn, err error) gnet.Action {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()

	newCount := s.source.activeConns.Add(-1)
	s.source.logger.Debug("msg", "TCP connection closed",
		"component", "tcp_source",
		"remote_addr", c.RemoteAddr().String(),
		"active_connections", newCount,
		"error", err)
	return gnet.None
}

func (s *tcpEventServer) OnTraffic(c gnet.Conn) gnet.Action {
	s.mu.RLock()
	client, exists := s.clients[c]
	s.mu.RUnlock()

	if !exists {
		return gnet.Close
	}

	data, err := c.Next(-1)
	if err != nil {
		s.source.logger.Error("msg", "Error reading from connection",
			"component", "tcp_source",
			"error", err)
		return gnet.Close
	}

	if client.buffer.Len()+len(data) > maxClientBufferSize {
		s.source.logger.Warn("msg", "Client buffer limit exceeded, closing connection",
			"component", "tcp_source",
			"remote_addr", c.RemoteAddr().String(),
			"buffer_size", client.buffer.Len(),
			"incoming_size", len(data))
		s.source.invalidEvents.Add(1)
		return gnet.Close
	}
	client.buffer.Write(data)

	// A buffer past the line cap with no newline means a runaway line.
	if client.buffer.Len() > maxLineLength &&
		!bytes.ContainsRune(client.buffer.Bytes(), '\n') {
		s.source.logger.Warn("msg", "Line too long without newline",
			"component", "tcp_source",
			"remote_addr", c.RemoteAddr().String(),
			"buffer_size", client.buffer.Len())
		s.source.invalidEvents.Add(1)
		return gnet.Close
	}

	for {
		line, err := client.buffer.ReadBytes('\n')
		if err != nil {
			// No complete line available
			break
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			continue
		}

		var ev core.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			s.source.invalidEvents.Add(1)
			s.source.logger.Debug("msg", "Invalid JSON event",
				"component", "tcp_source",
				"error", err)
			continue
		}

		s.source.publish(ev)
	}

	return gnet.None
}
