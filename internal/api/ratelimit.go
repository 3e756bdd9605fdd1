package api

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleBucketTTL is how long an unused client limiter is kept
const idleBucketTTL = time.Hour

// clientLimiter keeps one token bucket per client IP
type clientLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(requestsPerMin, burst int) *clientLimiter {
	if burst <= 0 {
		burst = requestsPerMin
	}
	return &clientLimiter{
		limit:   rate.Limit(float64(requestsPerMin) / 60.0),
		burst:   burst,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow checks if a request from the given client IP is allowed
func (c *clientLimiter) Allow(clientIP string) bool {
	now := c.now()

	c.mu.Lock()
	b, ok := c.buckets[clientIP]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.buckets[clientIP] = b
	}
	b.lastSeen = now
	c.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

// cleanup removes limiters not used within idleBucketTTL
func (c *clientLimiter) cleanup() int {
	cutoff := c.now().Add(-idleBucketTTL)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for ip, b := range c.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(c.buckets, ip)
			removed++
		}
	}
	return removed
}

// run periodically drops idle limiters until ctx is cancelled
func (c *clientLimiter) run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}
