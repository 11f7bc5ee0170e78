// Package ratelimit throttles write requests per client IP using
// token buckets. Read traffic is never limited; callers decide which
// requests to gate.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration.
type Config struct {
	RequestsPerMinute int
	Burst             int
	CleanupInterval   time.Duration
}

// DefaultConfig returns sensible defaults for form-driven traffic.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		Burst:             10,
		CleanupInterval:   5 * time.Minute,
	}
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client IP. Stale buckets are
// dropped by a background sweep so the map stays bounded.
type Limiter struct {
	mu           sync.Mutex
	clients      map[string]*client
	limit        rate.Limit
	burst        int
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

// NewLimiter creates a limiter and starts its cleanup goroutine.
func NewLimiter(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	if config.Burst <= 0 {
		config.Burst = DefaultConfig().Burst
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}

	l := &Limiter{
		clients:     make(map[string]*client),
		limit:       rate.Limit(float64(config.RequestsPerMinute) / 60.0),
		burst:       config.Burst,
		stopCleanup: make(chan struct{}),
	}
	go l.startCleanup(config.CleanupInterval)
	return l
}

// Allow reports whether a request from the given IP may proceed.
func (l *Limiter) Allow(clientIP string) bool {
	l.mu.Lock()
	c, ok := l.clients[clientIP]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[clientIP] = c
	}
	c.lastSeen = time.Now()
	l.mu.Unlock()

	return c.limiter.Allow()
}

// ActiveClients returns the number of currently tracked clients.
func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Stop shuts down the cleanup goroutine.
func (l *Limiter) Stop() {
	l.shutdownOnce.Do(func() {
		close(l.stopCleanup)
	})
}

func (l *Limiter) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *Limiter) sweep() {
	cutoff := time.Now().Add(-10 * time.Minute)

	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
		}
	}
}
