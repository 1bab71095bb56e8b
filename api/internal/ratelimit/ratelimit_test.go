package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestAllowWithinQuota(t *testing.T) {
	clock := newFakeClock()
	l := New(15, time.Minute, WithClock(clock.Now))

	for i := 0; i < 15; i++ {
		d := l.Allow("198.51.100.1")
		require.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 15, d.Limit)
		assert.Equal(t, 14-i, d.Remaining)
		assert.Zero(t, d.RetryAfter)
	}

	d := l.Allow("198.51.100.1")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, time.Minute, d.RetryAfter)
}

func TestAllowRecoversAfterWindow(t *testing.T) {
	clock := newFakeClock()
	l := New(15, time.Minute, WithClock(clock.Now))

	for i := 0; i < 16; i++ {
		l.Allow("a")
	}
	clock.Advance(time.Minute)

	for i := 0; i < 15; i++ {
		require.True(t, l.Allow("a").Allowed, "request %d after window", i+1)
	}
	assert.False(t, l.Allow("a").Allowed)
}

func TestAllowSpreadRequestsStayCapped(t *testing.T) {
	clock := newFakeClock()
	l := New(15, time.Minute, WithClock(clock.Now))

	for i := 0; i < 15; i++ {
		require.True(t, l.Allow("203.0.113.7").Allowed, "request %d", i+1)
	}

	clock.Advance(5 * time.Second)
	d := l.Allow("203.0.113.7")
	require.False(t, d.Allowed, "16th request at t=5s")
	assert.Equal(t, 55*time.Second, d.RetryAfter)

	accepted := 15
	for s := 6; s < 60; s++ {
		clock.Advance(time.Second)
		d := l.Allow("203.0.113.7")
		if d.Allowed {
			accepted++
		}
		assert.Equal(t, time.Duration(60-s)*time.Second, d.RetryAfter, "t=%ds", s)
	}
	assert.Equal(t, 15, accepted)

	clock.Advance(time.Second)
	d = l.Allow("203.0.113.7")
	assert.True(t, d.Allowed, "first request after the window")
	assert.Equal(t, 14, d.Remaining)
}

func TestAllowNoRefillInsideWindow(t *testing.T) {
	clock := newFakeClock()
	l := New(2, 10*time.Second, WithClock(clock.Now))

	require.True(t, l.Allow("a").Allowed)
	require.True(t, l.Allow("a").Allowed)
	require.False(t, l.Allow("a").Allowed)

	clock.Advance(5 * time.Second)
	d := l.Allow("a")
	assert.False(t, d.Allowed)
	assert.Equal(t, 5*time.Second, d.RetryAfter)

	clock.Advance(4*time.Second + 900*time.Millisecond)
	d = l.Allow("a")
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter)

	clock.Advance(100 * time.Millisecond)
	assert.True(t, l.Allow("a").Allowed)
}

func TestWindowStartsAtFirstRequest(t *testing.T) {
	clock := newFakeClock()
	l := New(2, time.Minute, WithClock(clock.Now))

	require.True(t, l.Allow("a").Allowed)
	clock.Advance(50 * time.Second)
	require.True(t, l.Allow("a").Allowed)
	require.False(t, l.Allow("a").Allowed)

	// window opened at t=0, not at the second request
	clock.Advance(10 * time.Second)
	assert.True(t, l.Allow("a").Allowed)
}

func TestIdentitiesAreIndependent(t *testing.T) {
	clock := newFakeClock()
	l := New(1, time.Minute, WithClock(clock.Now))

	assert.True(t, l.Allow("a").Allowed)
	assert.False(t, l.Allow("a").Allowed)
	assert.True(t, l.Allow("b").Allowed)
	assert.Equal(t, 2, l.Len())
}

func TestRetryAfterFloor(t *testing.T) {
	clock := newFakeClock()
	l := New(100, time.Second, WithClock(clock.Now))

	for i := 0; i < 100; i++ {
		l.Allow("a")
	}
	d := l.Allow("a")
	require.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter)
}

func TestSweepDropsIdleIdentities(t *testing.T) {
	clock := newFakeClock()
	l := New(5, time.Minute, WithClock(clock.Now))

	l.Allow("old")
	clock.Advance(30 * time.Second)
	l.Allow("recent")
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())

	clock.Advance(time.Minute)
	assert.Equal(t, 1, l.Sweep())
	assert.Zero(t, l.Len())
}

func TestNewClampsInvalidSettings(t *testing.T) {
	l := New(0, 0)
	d := l.Allow("a")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Limit)
}

func TestConcurrentAllow(t *testing.T) {
	clock := newFakeClock()
	l := New(50, time.Minute, WithClock(clock.Now))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestCloseIsIdempotent(t *testing.T) {
	l := New(1, time.Minute)
	l.StartSweeper()
	l.Close()
	l.Close()
}
