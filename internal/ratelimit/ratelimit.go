// Package ratelimit implements tiered fixed-window admission control for
// guarded endpoints. Every tier protecting an endpoint class must approve a
// request independently; the first violated tier (tiers are evaluated from
// shortest window to longest) rejects it and supplies the retry-after hint.
package ratelimit

import (
	"context"
	"time"
)

// Class identifies a guarded endpoint family.
type Class string

const (
	ClassChat     Class = "chat"
	ClassGenerate Class = "ai-generate"
	ClassAPI      Class = "general-api"
	ClassLogin    Class = "login"
)

// Tier is one fixed-window counter: at most Limit admitted requests per Window.
type Tier struct {
	Name   string
	Limit  int64
	Window time.Duration
	// Shared tiers count usage across every class that lists them, so a
	// single daily cap can span multiple endpoint families.
	Shared bool
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed      bool
	ViolatedTier string
	RetryAfter   time.Duration
}

var allow = Decision{Allowed: true}

// Store persists the per-(key, tier) buckets. Check must be atomic: two
// concurrent calls for the same key must never both be admitted past a limit,
// and a rejected request must not consume quota from any tier.
type Store interface {
	Check(ctx context.Context, class Class, identityKey string, tiers []Tier, now time.Time) (Decision, error)
}

// DefaultClasses returns the tier tables for every endpoint class, each
// ordered by ascending window.
func DefaultClasses() map[Class][]Tier {
	return map[Class][]Tier{
		ClassChat: {
			{Name: "per-minute", Limit: 10, Window: time.Minute},
			{Name: "per-hour", Limit: 100, Window: time.Hour},
		},
		ClassGenerate: {
			{Name: "per-minute", Limit: 5, Window: time.Minute},
			{Name: "per-hour", Limit: 50, Window: time.Hour},
			{Name: "per-day", Limit: 200, Window: 24 * time.Hour, Shared: true},
		},
		ClassAPI: {
			{Name: "per-minute", Limit: 100, Window: time.Minute},
		},
		ClassLogin: {
			{Name: "per-15min", Limit: 5, Window: 15 * time.Minute},
		},
	}
}

// Controller evaluates admission decisions against a bucket store.
type Controller struct {
	store   Store
	classes map[Class][]Tier
}

func NewController(store Store, classes map[Class][]Tier) *Controller {
	if classes == nil {
		classes = DefaultClasses()
	}
	return &Controller{store: store, classes: classes}
}

// Check evaluates every tier guarding class for identityKey. Unknown classes
// are admitted: an endpoint without a tier table is unguarded.
func (c *Controller) Check(ctx context.Context, identityKey string, class Class) (Decision, error) {
	tiers := c.classes[class]
	if len(tiers) == 0 {
		return allow, nil
	}
	return c.store.Check(ctx, class, identityKey, tiers, time.Now())
}

// bucketKey builds the storage key for one (identity, class, tier) counter.
// Shared tiers drop the class segment so usage accrues across classes.
func bucketKey(identityKey string, class Class, tier Tier) string {
	if tier.Shared {
		return "rl:shared:" + tier.Name + ":" + identityKey
	}
	return "rl:" + string(class) + ":" + tier.Name + ":" + identityKey
}
