// FILE: yetitel/src/internal/storage/badger.go
package storage

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/lixenwraith/log"
)

// ErrNotFound is returned by Get for missing keys.
var ErrNotFound = errors.New("key not found")

// BadgerConfig controls a badger-backed store.
type BadgerConfig struct {
	// Directory for database files. Ignored when InMemory is set.
	Path string

	// InMemory skips disk persistence entirely. Used by tests.
	InMemory bool

	// SyncWrites makes every put durable before returning.
	SyncWrites bool

	// GCInterval is how often value log garbage collection runs.
	// Zero disables GC.
	GCInterval time.Duration
}

// BadgerStore is an embedded key-value store backed by badger.
// Safe for concurrent use; the pipeline is its only writer.
type BadgerStore struct {
	db     *badger.DB
	logger *log.Logger
	done   chan struct{}
	wg     sync.WaitGroup
}

// OpenBadger opens (or creates) a badger database per cfg.
func OpenBadger(cfg BadgerConfig, logger *log.Logger) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("storage path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("failed to create storage directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if logger != nil {
		opts = opts.WithLogger(&badgerLogAdapter{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	s := &BadgerStore{
		db:     db,
		logger: logger,
		done:   make(chan struct{}),
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.wg.Add(1)
		go s.gcLoop(cfg.GCInterval)
	}

	return s, nil
}

func (s *BadgerStore) Put(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (s *BadgerStore) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *BadgerStore) Close() error {
	close(s.done)
	s.wg.Wait()
	return s.db.Close()
}

// gcLoop periodically reclaims value log space. badger returns ErrNoRewrite
// when there is nothing to collect, which is not a failure.
func (s *BadgerStore) gcLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && s.logger != nil {
				s.logger.Warn("msg", "Value log GC failed",
					"component", "storage",
					"error", err)
			}
		}
	}
}

// badgerLogAdapter bridges badger's printf-style logger to the app logger.
type badgerLogAdapter struct {
	logger *log.Logger
}

func (a *badgerLogAdapter) Errorf(format string, args ...any) {
	a.logger.Error("msg", fmt.Sprintf(format, args...), "component", "badger")
}

func (a *badgerLogAdapter) Warningf(format string, args ...any) {
	a.logger.Warn("msg", fmt.Sprintf(format, args...), "component", "badger")
}

func (a *badgerLogAdapter) Infof(format string, args ...any) {
	a.logger.Debug("msg", fmt.Sprintf(format, args...), "component", "badger")
}

func (a *badgerLogAdapter) Debugf(format string, args ...any) {
	a.logger.Debug("msg", fmt.Sprintf(format, args...), "component", "badger")
}
