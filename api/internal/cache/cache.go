package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store holds serialized analyses keyed by content fingerprint. Values are
// stored and returned byte for byte. Implementations synchronize internally.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Options selects and configures a backend.
type Options struct {
	Backend  string
	RedisURL string
	TTL      time.Duration // default entry lifetime for the memory backend
}

// Open builds the configured store. BackendNone yields (nil, nil): callers
// treat a nil Store as "caching disabled".
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendMemory:
		return NewMemory(opts.TTL), nil
	case BackendRedis:
		return NewRedis(ctx, opts.RedisURL)
	case BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
