// FILE: yetitel/src/internal/limit/limit_test.go
package limit

import (
	"testing"

	"yetitel/src/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DisabledReturnsNil(t *testing.T) {
	assert.Nil(t, New(config.RateLimitConfig{Enabled: false}))
}

func TestAllow_WithinBurst(t *testing.T) {
	l := New(config.RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 1,
		BurstSize:         3,
	})
	require.NotNil(t, l)
	defer l.Stop()

	for range 3 {
		assert.True(t, l.Allow("10.0.0.1:1234"))
	}
	assert.False(t, l.Allow("10.0.0.1:1234"), "burst exhausted")
}

func TestAllow_PerClientIsolation(t *testing.T) {
	l := New(config.RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 1,
		BurstSize:         1,
	})
	defer l.Stop()

	assert.True(t, l.Allow("10.0.0.1:1"))
	assert.False(t, l.Allow("10.0.0.1:1"))
	assert.True(t, l.Allow("10.0.0.2:1"), "separate client has its own bucket")

	stats := l.GetStats()
	assert.Equal(t, 2, stats["active_clients"])
	assert.Equal(t, uint64(2), stats["total_allowed"])
	assert.Equal(t, uint64(1), stats["total_denied"])
}
