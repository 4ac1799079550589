// Package ratelimiter bounds how fast signatures are minted per identifier.
// A compromised caller looping on a signing API is the scenario this guards
// against; normal clients never hit the bucket.
package ratelimiter

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SignThrottle applies a token bucket per identifier and periodically evicts
// idle entries so long-lived processes do not accumulate one bucket per
// pubkey they ever signed for.
type SignThrottle struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	byKey   map[string]*bucket
	checks  uint64
	idleTTL time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a per-identifier throttle; returns nil if args are invalid.
// A nil throttle allows everything, so callers can wire it unconditionally.
func New(rps float64, burst int, idleTTL time.Duration) *SignThrottle {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &SignThrottle{
		limit:   rate.Limit(rps),
		burst:   burst,
		byKey:   make(map[string]*bucket),
		idleTTL: idleTTL,
	}
}

// Allow reports whether one signature may be produced for key at now.
func (t *SignThrottle) Allow(key string, now time.Time) bool {
	if t == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.byKey[key]
	if !ok {
		b = &bucket{
			limiter:  rate.NewLimiter(t.limit, t.burst),
			lastSeen: now,
		}
		t.byKey[key] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)

	t.checks++
	if t.checks%256 == 0 {
		cutoff := now.Add(-t.idleTTL)
		for k, v := range t.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(t.byKey, k)
			}
		}
	}

	return allowed
}

// Tracked returns how many identifiers currently hold a bucket.
func (t *SignThrottle) Tracked() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byKey)
}
