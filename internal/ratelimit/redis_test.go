package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStoreBoundary(t *testing.T) {
	s, _ := setupRedisStore(t)
	ctx := context.Background()
	tiers := []Tier{{Name: "per-minute", Limit: 5, Window: time.Minute}}

	for i := 0; i < 5; i++ {
		d, err := s.Check(ctx, ClassGenerate, "user:1", tiers, time.Now())
		if err != nil {
			t.Fatalf("check %d failed: %v", i+1, err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	d, err := s.Check(ctx, ClassGenerate, "user:1", tiers, time.Now())
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if d.Allowed {
		t.Fatal("request 6 should be rejected")
	}
	if d.ViolatedTier != "per-minute" {
		t.Errorf("expected per-minute violation, got %s", d.ViolatedTier)
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Errorf("retryAfter out of range: %v", d.RetryAfter)
	}
}

func TestRedisStoreWindowExpiry(t *testing.T) {
	s, mr := setupRedisStore(t)
	ctx := context.Background()
	tiers := []Tier{{Name: "per-minute", Limit: 1, Window: time.Minute}}

	if d, _ := s.Check(ctx, ClassAPI, "ip:10.0.0.1", tiers, time.Now()); !d.Allowed {
		t.Fatal("first request should be allowed")
	}
	if d, _ := s.Check(ctx, ClassAPI, "ip:10.0.0.1", tiers, time.Now()); d.Allowed {
		t.Fatal("second request should be rejected")
	}

	mr.FastForward(time.Minute)

	if d, _ := s.Check(ctx, ClassAPI, "ip:10.0.0.1", tiers, time.Now()); !d.Allowed {
		t.Fatal("request after window expiry should be allowed")
	}
}

func TestRedisStoreRejectionCompensatesEarlierTiers(t *testing.T) {
	s, mr := setupRedisStore(t)
	ctx := context.Background()
	tiers := []Tier{
		{Name: "per-minute", Limit: 100, Window: time.Minute},
		{Name: "per-hour", Limit: 1, Window: time.Hour},
	}

	if d, _ := s.Check(ctx, ClassChat, "user:2", tiers, time.Now()); !d.Allowed {
		t.Fatal("first request should be allowed")
	}
	if d, _ := s.Check(ctx, ClassChat, "user:2", tiers, time.Now()); d.Allowed {
		t.Fatal("second request should be rejected by the hour tier")
	}

	// The rejected request must not leave quota consumed in the minute tier.
	minuteKey := bucketKey("user:2", ClassChat, tiers[0])
	count, err := mr.Get(minuteKey)
	if err != nil {
		t.Fatalf("read minute bucket: %v", err)
	}
	if count != "1" {
		t.Errorf("minute bucket = %s, want 1", count)
	}
}
