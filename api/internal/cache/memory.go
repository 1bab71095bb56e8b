package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Memory is a process-local TTL cache. Entries vanish on expiry or restart.
type Memory struct {
	c *ttlcache.Cache[string, []byte]
}

// NewMemory starts the background expiry loop; Close stops it.
func NewMemory(defaultTTL time.Duration) *Memory {
	c := ttlcache.New[string, []byte](
		ttlcache.WithTTL[string, []byte](defaultTTL),
		// a hit must not extend the entry's lifetime
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go c.Start()
	return &Memory{c: c}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := m.c.Get(key)
	if item == nil || item.IsExpired() {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.DefaultTTL
	}
	m.c.Set(key, value, ttl)
	return nil
}

// Len counts entries not yet evicted.
func (m *Memory) Len() int { return m.c.Len() }

func (m *Memory) Close() error {
	m.c.Stop()
	return nil
}
