package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	windowStart time.Time
	count       int64
}

// MemoryStore keeps buckets in process memory. Limits degrade to
// "approximately L per instance" when the API runs on more than one replica;
// use RedisStore for a shared counter in that deployment.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*bucket)}
}

func (s *MemoryStore) Check(_ context.Context, class Class, identityKey string, tiers []Tier, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: find a violated tier without consuming quota. Holding the
	// lock across both passes makes check-then-increment atomic per key.
	for _, tier := range tiers {
		b := s.bucketFor(bucketKey(identityKey, class, tier), tier, now)
		if b.count >= tier.Limit {
			return Decision{
				ViolatedTier: tier.Name,
				RetryAfter:   b.windowStart.Add(tier.Window).Sub(now),
			}, nil
		}
	}

	// All tiers pass: the request is admitted and counted against each.
	for _, tier := range tiers {
		s.bucketFor(bucketKey(identityKey, class, tier), tier, now).count++
	}
	return allow, nil
}

// bucketFor returns the live bucket for key, lazily creating it and resetting
// it when its window has elapsed. Caller must hold s.mu.
func (s *MemoryStore) bucketFor(key string, tier Tier, now time.Time) *bucket {
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{windowStart: now}
		s.buckets[key] = b
		return b
	}
	if now.Sub(b.windowStart) >= tier.Window {
		b.windowStart = now
		b.count = 0
	}
	return b
}
