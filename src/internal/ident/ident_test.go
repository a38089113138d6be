// FILE: yetitel/src/internal/ident/ident_test.go
package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_NonEmpty(t *testing.T) {
	assert.NotEmpty(t, New())
}

func TestNew_Unique(t *testing.T) {
	const n = 10000
	seen := make(map[string]struct{}, n)
	for range n {
		id := New()
		_, dup := seen[id]
		assert.False(t, dup, "duplicate identifier: %s", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, n)
}

func TestNew_TimeOrdered(t *testing.T) {
	prev := New()
	for range 1000 {
		next := New()
		assert.LessOrEqual(t, prev, next,
			"identifiers must be lexically non-decreasing with generation order")
		prev = next
	}
}
