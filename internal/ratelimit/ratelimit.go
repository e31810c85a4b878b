// Package ratelimit provides a process-local fixed-window rate limiter.
// Counts live in memory and are not shared across instances, so the
// enforced limit is per process, an approximation of a global one.
package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultMaxRequests   = 10
	DefaultWindow        = 10 * time.Second
	DefaultSweepInterval = time.Minute
)

// Result is the outcome of a single Consume call.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter counts requests per key within a fixed window. It is safe
// for concurrent use. Expired entries are removed by a periodic sweep;
// correctness never depends on sweep timing because Consume always
// checks the window against the current time.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry

	max           int
	window        time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// Config holds configuration for the Limiter.
type Config struct {
	MaxRequests   int
	Window        time.Duration
	SweepInterval time.Duration
	Now           func() time.Time // clock override for tests
}

// New creates a new Limiter. Call Start to begin the background sweep
// and Close to stop it.
func New(cfg Config) *Limiter {
	max := cfg.MaxRequests
	if max <= 0 {
		max = DefaultMaxRequests
	}

	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}

	sweepInterval := cfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Limiter{
		entries:       make(map[string]*entry),
		max:           max,
		window:        window,
		sweepInterval: sweepInterval,
		now:           now,
		stop:          make(chan struct{}),
	}
}

// Max returns the per-window request limit.
func (l *Limiter) Max() int {
	return l.max
}

// Consume records one request for the key and reports whether it is
// allowed within the current window.
func (l *Limiter) Consume(key string) Result {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || now.After(e.resetAt) {
		// New key, or the previous window has elapsed.
		e = &entry{count: 1, resetAt: now.Add(l.window)}
		l.entries[key] = e
		return Result{Allowed: true, Remaining: l.max - 1, ResetAt: e.resetAt}
	}

	if e.count >= l.max {
		return Result{Allowed: false, Remaining: 0, ResetAt: e.resetAt}
	}

	e.count++
	return Result{Allowed: true, Remaining: l.max - e.count, ResetAt: e.resetAt}
}

// Start launches the background sweep that evicts expired entries,
// bounding memory. It returns immediately.
func (l *Limiter) Start() {
	go func() {
		ticker := time.NewTicker(l.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				l.sweep()
			case <-l.stop:
				return
			}
		}
	}()
}

// Close stops the background sweep. It is safe to call multiple times.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}

func (l *Limiter) sweep() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, key)
		}
	}
}

// size reports the number of tracked keys. Test hook.
func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
