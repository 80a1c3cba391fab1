// Package ratelimit throttles speech requests with one token bucket per key.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration.
type Config struct {
	RequestsPerMinute int // 0 disables limiting
	Burst             int
}

// Limiter keeps a token bucket per key, typically "<guild>:<user>".
type Limiter struct {
	config  Config
	mu      sync.Mutex
	buckets map[string]*entry
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(config Config) *Limiter {
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &Limiter{
		config:  config,
		buckets: make(map[string]*entry),
	}
}

func (l *Limiter) Enabled() bool {
	return l.config.RequestsPerMinute > 0
}

// Allow reports whether one request for key may proceed now.
func (l *Limiter) Allow(key string) bool {
	if !l.Enabled() {
		return true
	}
	return l.bucket(key).Allow()
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.buckets[key]
	if !ok {
		every := rate.Every(time.Minute / time.Duration(l.config.RequestsPerMinute))
		e = &entry{limiter: rate.NewLimiter(every, l.config.Burst)}
		l.buckets[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

// Cleanup drops buckets not used within maxAge. A dropped key starts over
// with a full bucket.
func (l *Limiter) Cleanup(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for key, e := range l.buckets {
		if e.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
