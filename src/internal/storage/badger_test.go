// FILE: yetitel/src/internal/storage/badger_test.go
package storage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := OpenBadger(BadgerConfig{InMemory: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBadgerStore_PutGet(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Put([]byte("key"), []byte("value")))

	got, err := s.Get([]byte("key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)
}

func TestBadgerStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get([]byte("absent"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerStore_Overwrite(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Put([]byte("k"), []byte("v1")))
	require.NoError(t, s.Put([]byte("k"), []byte("v2")))

	got, err := s.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestOpenBadger_Persistent(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenBadger(BadgerConfig{Path: dir, SyncWrites: true}, nil)
	require.NoError(t, err)

	for i := range 10 {
		key := fmt.Sprintf("key-%03d", i)
		require.NoError(t, s.Put([]byte(key), []byte("v")))
	}
	require.NoError(t, s.Close())

	// Reopen and verify the data survived.
	s, err = OpenBadger(BadgerConfig{Path: dir}, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get([]byte("key-007"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestOpenBadger_RequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{}, nil)
	assert.Error(t, err)
}
