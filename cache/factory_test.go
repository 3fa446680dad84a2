package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scipunch/subfeed/config"
)

func TestOpenBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("s3cret")

	tests := []struct {
		name string
		cfg  config.CacheConfig
		want any
	}{
		{"memory", config.CacheConfig{Backend: config.MemoryBackend}, &MemoryStore{}},
		{"sqlite", config.CacheConfig{Backend: config.SQLiteBackend, DatabasePath: filepath.Join(t.TempDir(), "cache.db")}, &SQLiteStore{}},
		{"redis", config.CacheConfig{Backend: config.RedisBackend, RedisURL: "redis://" + mr.Addr()}, &RedisStore{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := OpenBackend(tt.cfg, config.RedisCredentials{Password: "s3cret"})
			require.NoError(t, err)
			defer backend.Close()
			assert.IsType(t, tt.want, backend)

			ctx := context.Background()
			require.NoError(t, backend.Set(ctx, Key("UC1"), Entry{Items: sampleItems("UC1"), ExpiresAt: time.Now().Add(time.Hour)}, time.Hour))
			_, found, err := backend.Get(ctx, Key("UC1"))
			require.NoError(t, err)
			assert.True(t, found)

			removed, err := backend.Clear(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, removed)
		})
	}
}

func TestOpenBackend_Unknown(t *testing.T) {
	_, err := OpenBackend(config.CacheConfig{Backend: "memcached"}, config.RedisCredentials{})
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.Default().Cache)
	assert.Equal(t, 30*time.Minute, opts.BaseTTL)
	assert.Equal(t, 13*time.Minute, opts.SplayMax)
	assert.Equal(t, 24*time.Hour, opts.StaleRetention)
}
