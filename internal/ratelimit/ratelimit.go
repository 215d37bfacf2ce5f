// Package ratelimit throttles API clients with a per-key token bucket.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Config sets the bucket parameters.
type Config struct {
	RequestsPerMinute int           // sustained rate per client
	BurstSize         int           // bucket capacity above the sustained rate
	CleanupInterval   time.Duration // how often idle buckets are dropped
}

// staleAfter is how long a bucket may sit untouched before cleanup drops it.
const staleAfter = 2 * time.Minute

// Limiter tracks a token bucket per client key.
type Limiter struct {
	cfg  Config
	mu   sync.Mutex
	seen map[string]*bucket
	done chan struct{}
}

type bucket struct {
	tokens float64
	at     time.Time
}

// New starts a limiter and its background cleanup loop. Call Stop when the
// limiter is no longer needed.
func New(cfg Config) *Limiter {
	l := &Limiter{
		cfg:  cfg,
		seen: make(map[string]*bucket),
		done: make(chan struct{}),
	}
	go l.reap()
	return l
}

// Stop terminates the cleanup loop.
func (l *Limiter) Stop() {
	close(l.done)
}

func (l *Limiter) reap() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for key, b := range l.seen {
				if now.Sub(b.at) > staleAfter {
					delete(l.seen, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Allow reports whether the client identified by key may proceed, consuming
// one token if so.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.seen[key]
	if !ok {
		l.seen[key] = &bucket{tokens: float64(l.cfg.BurstSize) - 1, at: now}
		return true
	}

	refill := now.Sub(b.at).Seconds() * float64(l.cfg.RequestsPerMinute) / 60
	b.tokens = minF(b.tokens+refill, float64(l.cfg.BurstSize))
	b.at = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Middleware rejects over-limit requests with 429. Authenticated clients
// are bucketed by key prefix rather than IP, so callers behind a shared
// NAT do not starve each other.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if auth := c.GetHeader("Authorization"); auth != "" {
			if len(auth) > 20 {
				auth = auth[:20]
			}
			key = "auth:" + auth
		}

		if !l.Allow(key) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Too many requests. Please slow down.",
			})
			return
		}
		c.Next()
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
