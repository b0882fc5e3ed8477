package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/Benny93/codenode/internal/detect"
)

// prefixDetection namespaces detection results in the store.
const prefixDetection = "d:"

// Badger is a disk-backed cache that survives restarts.
type Badger struct {
	db     *badger.DB
	mu     sync.RWMutex
	logger *slog.Logger
}

// OpenBadger opens or creates a cache database in dir.
func OpenBadger(dir string, logger *slog.Logger) (*Badger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(dir).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger cache: %w", err)
	}
	return &Badger{db: db, logger: logger}, nil
}

func (b *Badger) key(key string) []byte {
	return []byte(prefixDetection + key)
}

// Get returns the cached result for key. Undecodable entries count as
// misses.
func (b *Badger) Get(key string) (*detect.Result, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.db == nil {
		return nil, false
	}

	var res detect.Result
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &res)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			b.logger.Debug("cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return &res, true
}

// Put stores res under key. Write failures are logged and otherwise
// ignored since the cache is advisory.
func (b *Badger) Put(key string, res *detect.Result) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.db == nil {
		return
	}

	data, err := json.Marshal(res)
	if err != nil {
		b.logger.Debug("cache encode failed", "key", key, "error", err)
		return
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key(key), data)
	}); err != nil {
		b.logger.Debug("cache write failed", "key", key, "error", err)
	}
}

// Len counts the cached results.
func (b *Badger) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.db == nil {
		return 0
	}

	count := 0
	_ = b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixDetection)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count
}

// Clear removes every cached result.
func (b *Badger) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	return b.db.DropPrefix([]byte(prefixDetection))
}

// Close releases the database.
func (b *Badger) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}

	err := b.db.Close()
	b.db = nil
	return err
}
