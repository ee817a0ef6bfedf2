// Package cache stores solved problems keyed by a hash of their input.
//
// Four backends implement [Cache]: [FileCache] for the CLI, [RedisCache] and
// [MongoCache] for the HTTP service, and [NullCache] when caching is off.
// [Open] picks one from a backend name and URL.
//
// Keys come from a [Keyer]. The default keyer hashes the problem bytes
// together with the solver parameters, so a change to either produces a
// fresh entry.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/matzehuels/projector/pkg/errors"
	"github.com/matzehuels/projector/pkg/observability"
)

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Backend names accepted by [Open].
const (
	BackendNone  = "none"
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
)

// Config selects and configures a backend.
type Config struct {
	Backend string `toml:"backend" json:"backend"`
	// Dir is used by the file backend.
	Dir string `toml:"dir" json:"dir,omitempty"`
	// URL is used by the redis and mongo backends.
	URL string `toml:"url" json:"url,omitempty"`
	// Database and Collection name the mongo collection.
	Database   string `toml:"database" json:"database,omitempty"`
	Collection string `toml:"collection" json:"collection,omitempty"`
	// TTL is the default entry lifetime used by callers.
	TTL time.Duration `toml:"ttl" json:"ttl,omitempty"`
}

// DefaultTTL is used when Config.TTL is zero.
const DefaultTTL = 24 * time.Hour

// Open creates the cache described by cfg. An empty backend means none.
func Open(ctx context.Context, cfg Config) (Cache, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendNone:
		return NewNullCache(), nil
	case BackendFile:
		if cfg.Dir == "" {
			return nil, errors.New(errors.ErrCodeInvalidArgument, "file cache requires a directory")
		}
		c, err := NewFileCache(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendRedis:
		c, err := NewRedisCache(cfg.URL)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendMongo:
		c, err := NewMongoCache(ctx, cfg.URL, cfg.Database, cfg.Collection)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "unknown cache backend %q", cfg.Backend)
	}
}

// record emits hit/miss hooks for a completed Get.
func record(ctx context.Context, backend string, hit bool) {
	if hit {
		observability.Cache().OnCacheHit(ctx, backend)
	} else {
		observability.Cache().OnCacheMiss(ctx, backend)
	}
}
