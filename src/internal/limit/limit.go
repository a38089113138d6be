// FILE: yetitel/src/internal/limit/limit.go

// Package limit provides per-client request limiting for the ingest path.
package limit

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"yetitel/src/internal/config"
)

const cleanupInterval = 1 * time.Minute

// ClientLimiter tracks a token bucket per remote address. Idle entries
// are swept periodically so one-shot clients do not accumulate.
type ClientLimiter struct {
	clients sync.Map // map[string]*clientEntry
	limit   rate.Limit
	burst   int
	done    chan struct{}

	// Statistics
	totalAllowed atomic.Uint64
	totalDenied  atomic.Uint64
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// New returns nil when limiting is disabled, which callers treat as
// unlimited.
func New(cfg config.RateLimitConfig) *ClientLimiter {
	if !cfg.Enabled {
		return nil
	}

	l := &ClientLimiter{
		limit: rate.Limit(cfg.RequestsPerSecond),
		burst: int(cfg.BurstSize),
		done:  make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether one request from addr may proceed.
func (l *ClientLimiter) Allow(addr string) bool {
	entry := l.entryFor(addr)
	entry.lastSeen.Store(time.Now().UnixNano())

	if entry.limiter.Allow() {
		l.totalAllowed.Add(1)
		return true
	}
	l.totalDenied.Add(1)
	return false
}

// Stop halts the cleanup goroutine.
func (l *ClientLimiter) Stop() {
	close(l.done)
}

// GetStats returns limiter statistics for the status endpoint.
func (l *ClientLimiter) GetStats() map[string]any {
	clients := 0
	l.clients.Range(func(_, _ any) bool {
		clients++
		return true
	})
	return map[string]any{
		"active_clients": clients,
		"total_allowed":  l.totalAllowed.Load(),
		"total_denied":   l.totalDenied.Load(),
	}
}

func (l *ClientLimiter) entryFor(addr string) *clientEntry {
	if val, ok := l.clients.Load(addr); ok {
		return val.(*clientEntry)
	}

	entry := &clientEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
	actual, _ := l.clients.LoadOrStore(addr, entry)
	return actual.(*clientEntry)
}

func (l *ClientLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			threshold := time.Now().Add(-2 * cleanupInterval).UnixNano()
			l.clients.Range(func(key, value any) bool {
				if value.(*clientEntry).lastSeen.Load() < threshold {
					l.clients.Delete(key)
				}
				return true
			})
		}
	}
}
