// FILE: yetitel/src/internal/ident/ident.go
package ident

import (
	"github.com/google/uuid"
)

// New returns a time-ordered unique identifier suitable for use as a
// storage sort key. UUIDv7 encodes the millisecond timestamp in its high
// bits, so lexical order of the canonical string form tracks generation
// order. Falls back to a random UUID if the entropy source fails; the
// identifier is never empty.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
