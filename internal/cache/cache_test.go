package cache

import (
	"fmt"
	"testing"
	"time"
)

// newTestCache returns a cache with a controllable clock.
func newTestCache(start time.Time) (*Cache, *time.Time) {
	clock := start
	c := New()
	c.now = func() time.Time { return clock }
	return c, &clock
}

func TestSetAndGet(t *testing.T) {
	c, _ := newTestCache(time.Unix(0, 0))

	c.Set("a", "value", time.Minute)
	if got := c.Get("a"); got != "value" {
		t.Errorf("Expected value, got %v", got)
	}
	if c.Get("missing") != nil {
		t.Error("Expected nil for missing key")
	}
}

func TestExpiry(t *testing.T) {
	c, clock := newTestCache(time.Unix(0, 0))

	c.Set("a", 1, time.Minute)
	*clock = clock.Add(59 * time.Second)
	if !c.Has("a") {
		t.Error("Expected entry to still be live before TTL")
	}

	*clock = clock.Add(2 * time.Second)
	if c.Has("a") {
		t.Error("Expected entry to expire after TTL")
	}
	if c.Len() != 0 {
		t.Errorf("Expected expired read to drop the entry, len = %d", c.Len())
	}
}

func TestZeroTTLUsesDefault(t *testing.T) {
	c, clock := newTestCache(time.Unix(0, 0))

	c.Set("a", 1, 0)
	*clock = clock.Add(DefaultTTL - time.Second)
	if !c.Has("a") {
		t.Error("Expected entry alive within default TTL")
	}
	*clock = clock.Add(2 * time.Second)
	if c.Has("a") {
		t.Error("Expected entry expired past default TTL")
	}
}

func TestCapacitySweepDropsExpired(t *testing.T) {
	c, clock := newTestCache(time.Unix(0, 0))

	for i := 0; i < maxEntries; i++ {
		c.Set(fmt.Sprintf("old-%d", i), i, time.Minute)
	}
	*clock = clock.Add(2 * time.Minute)

	c.Set("fresh", "v", time.Minute)
	if c.Len() != 1 {
		t.Errorf("Expected sweep to drop expired entries, len = %d", c.Len())
	}
	if c.Get("fresh") != "v" {
		t.Error("Expected fresh entry to survive the sweep")
	}
}

func TestInvalidate(t *testing.T) {
	c, _ := newTestCache(time.Unix(0, 0))

	c.Set("dashboard:1:2:default", 1, time.Minute)
	c.Set("dashboard:3:4:default", 2, time.Minute)
	c.Set("other:key", 3, time.Minute)

	removed := c.Invalidate("^dashboard:")
	if removed != 2 {
		t.Errorf("Expected 2 removals, got %d", removed)
	}
	if c.Has("dashboard:1:2:default") {
		t.Error("Expected dashboard entries removed")
	}
	if !c.Has("other:key") {
		t.Error("Expected non-matching entry to survive")
	}
}

func TestInvalidateBadPatternRemovesNothing(t *testing.T) {
	c, _ := newTestCache(time.Unix(0, 0))
	c.Set("a", 1, time.Minute)

	if removed := c.Invalidate("["); removed != 0 {
		t.Errorf("Expected 0 removals for invalid pattern, got %d", removed)
	}
	if !c.Has("a") {
		t.Error("Expected entry to survive invalid pattern")
	}
}

func TestClear(t *testing.T) {
	c, _ := newTestCache(time.Unix(0, 0))
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Expected empty cache after Clear, len = %d", c.Len())
	}
}
