package ratelimit

import (
	"sync"
	"time"

	"pestai/api/internal/metrics"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // zero when allowed
}

// visitor is one identity's current window.
type visitor struct {
	start time.Time
	count int
}

// Limiter caps requests per client identity with a fixed window: the first
// request opens a window of length Window, at most Requests are accepted
// inside it, and the count starts over once the window has elapsed.
// Identities whose window has ended are dropped by Sweep.
type Limiter struct {
	requests int
	window   time.Duration
	now      func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor

	stop chan struct{}
	once sync.Once
}

type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(requests int, window time.Duration, opts ...Option) *Limiter {
	if requests < 1 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	l := &Limiter{
		requests: requests,
		window:   window,
		now:      time.Now,
		visitors: make(map[string]*visitor),
		stop:     make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Allow counts one request against identity's current window.
func (l *Limiter) Allow(identity string) Decision {
	now := l.now()

	l.mu.Lock()
	v, ok := l.visitors[identity]
	if !ok {
		v = &visitor{start: now}
		l.visitors[identity] = v
		metrics.RateLimitClients.Set(float64(len(l.visitors)))
	} else if now.Sub(v.start) >= l.window {
		v.start, v.count = now, 0
	}
	allowed := v.count < l.requests
	if allowed {
		v.count++
	}
	d := Decision{Allowed: allowed, Limit: l.requests, Remaining: l.requests - v.count}
	if !allowed {
		d.RetryAfter = v.start.Add(l.window).Sub(now)
	}
	l.mu.Unlock()

	if !allowed {
		if d.RetryAfter < time.Second {
			d.RetryAfter = time.Second
		}
		metrics.RateLimitedTotal.Inc()
	}
	return d
}

// Sweep forgets identities whose window has ended; their next request
// opens a fresh window either way.
func (l *Limiter) Sweep() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for id, v := range l.visitors {
		if now.Sub(v.start) >= l.window {
			delete(l.visitors, id)
			n++
		}
	}
	metrics.RateLimitClients.Set(float64(len(l.visitors)))
	return n
}

// Len is the number of tracked identities.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// StartSweeper runs Sweep every window until Close.
func (l *Limiter) StartSweeper() {
	go func() {
		t := time.NewTicker(l.window)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				l.Sweep()
			case <-l.stop:
				return
			}
		}
	}()
}

func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}
