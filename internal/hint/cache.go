package hint

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/divijg19/lakecross/internal/puzzle"
)

const cacheKeyPrefix = "hint/"

// Cache persists generated hints per state fingerprint.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// CacheConfig configures OpenCache. Path is ignored when InMemory is set.
type CacheConfig struct {
	Path     string
	InMemory bool
	TTL      time.Duration
	Logger   *slog.Logger
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenCache opens the hint cache.
func OpenCache(cfg CacheConfig) (*Cache, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("open hint cache: path is required for persistent cache")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("open hint cache: create dir %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open hint cache: %w", err)
	}
	return &Cache{db: db, ttl: cfg.TTL}, nil
}

// Close flushes and closes the cache.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func cacheKey(fp puzzle.Fingerprint) []byte {
	return []byte(cacheKeyPrefix + fp.String())
}

// Get returns the cached hint for fp.
func (c *Cache) Get(fp puzzle.Fingerprint) (string, bool, error) {
	if c == nil || c.db == nil {
		return "", false, nil
	}
	var text string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(fp))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			text = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("hint cache get: %w", err)
	}
	return text, true, nil
}

// Put stores text for fp. Entries expire after the configured TTL; zero keeps them forever.
func (c *Cache) Put(fp puzzle.Fingerprint, text string) error {
	if c == nil || c.db == nil {
		return nil
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(cacheKey(fp), []byte(text))
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("hint cache put: %w", err)
	}
	return nil
}
