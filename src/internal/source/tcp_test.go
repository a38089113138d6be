// FILE: yetitel/src/internal/source/tcp_test.go
package source

import (
	"testing"

	"yetitel/src/internal/config"
	"yetitel/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTCPSourceValidation(t *testing.T) {
	events := make(chan core.Event, 1)
	logger := log.NewLogger()

	_, err := NewTCPSource(config.TCPIngestConfig{Port: 0}, events, logger)
	assert.Error(t, err)

	_, err = NewTCPSource(config.TCPIngestConfig{Port: 70000}, events, logger)
	assert.Error(t, err)

	src, err := NewTCPSource(config.TCPIngestConfig{Port: 8481}, events, logger)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", src.host)
}

func TestTCPSourcePublishDropsWhenFull(t *testing.T) {
	events := make(chan core.Event, 1)
	logger := log.NewLogger()

	src, err := NewTCPSource(config.TCPIngestConfig{Port: 8481}, events, logger)
	require.NoError(t, err)

	src.publish(core.Event{Kind: core.KindLog, Message: "first"})
	src.publish(core.Event{Kind: core.KindLog, Message: "second"})

	stats := src.GetStats()
	assert.Equal(t, uint64(2), stats.TotalEvents)
	assert.Equal(t, uint64(1), stats.DroppedEvents)

	ev := <-events
	assert.Equal(t, "first", ev.Message)
}
