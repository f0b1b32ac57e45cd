// Package credential stores the API key used to authenticate against the
// policy backend. The key lives under a single fixed name in a small
// key-value store; it is written only by explicit save/clear actions and read
// on every outgoing request.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/raysh454/policyctl/internal/logging"
)

// Key is the entry name the API key is stored under.
const Key = "API_KEY"

// KeyValueStore is persistent client-side storage for string values.
// Implementations must be safe for concurrent use.
type KeyValueStore interface {
	// Get returns the value and true when present, or "" and false when absent.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set creates or overwrites key.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the store.
	Close() error
}

// Backend names a KeyValueStore implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendRedis  Backend = "redis"
)

// Config selects and configures a store backend.
type Config struct {
	Backend Backend `yaml:"backend"`

	// Path is the file for the file backend or the database for sqlite.
	Path string `yaml:"path"`

	RedisURL    string `yaml:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix"`
}

var ErrUnknownBackend = errors.New("credential: unknown store backend")

// Open constructs the configured store. An empty backend means file.
func Open(ctx context.Context, cfg Config, logger logging.Logger) (KeyValueStore, error) {
	if logger == nil {
		logger = logging.Nop{}
	}
	backend := Backend(strings.ToLower(strings.TrimSpace(string(cfg.Backend))))
	if backend == "" {
		backend = BackendFile
	}
	logger = logger.With(logging.Field{Key: "store", Value: string(backend)})

	var (
		store KeyValueStore
		err   error
	)
	switch backend {
	case BackendMemory:
		store = NewMemoryStore()
	case BackendFile:
		store, err = NewFileStore(cfg.Path)
	case BackendSQLite:
		store, err = NewSQLiteStore(ctx, cfg.Path)
	case BackendRedis:
		store, err = NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", backend, err)
	}
	logger.Debug("credential store opened", logging.Field{Key: "path", Value: cfg.Path})
	return store, nil
}
