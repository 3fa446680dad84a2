package cache

import (
	"context"
	"fmt"
	"io"

	"github.com/scipunch/subfeed/config"
)

// Backend is a Store the CLI can also administer
type Backend interface {
	Store
	io.Closer
	Clear(ctx context.Context) (int, error)
}

// OpenBackend creates the store selected by cfg.Backend
func OpenBackend(cfg config.CacheConfig, creds config.RedisCredentials) (Backend, error) {
	switch cfg.Backend {
	case config.MemoryBackend:
		return NewMemoryStore(), nil
	case config.SQLiteBackend:
		path := cfg.DatabasePath
		if path == "" {
			path = DefaultCachePath()
		}
		return NewSQLiteStore(path)
	case config.RedisBackend:
		return NewRedisStoreWithURL(cfg.RedisURL, creds.Username, creds.Password)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
	}
}

// OptionsFromConfig maps the [cache] section to cache options
func OptionsFromConfig(cfg config.CacheConfig) Options {
	return Options{
		BaseTTL:        cfg.BaseTTL.Duration,
		SplayMax:       cfg.SplayMax.Duration,
		StaleRetention: cfg.StaleRetention.Duration,
	}
}
