package cache

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestCache_SetGetExpire(t *testing.T) {
	clk := &clock{t: time.Unix(1000, 0)}
	c := New(10 * time.Second).WithClock(clk.now)

	c.Set("tours:list", []int{1, 2})

	if _, ok := c.Get("tours:list"); !ok {
		t.Fatalf("expected hit")
	}

	clk.t = clk.t.Add(10 * time.Second)
	if _, ok := c.Get("tours:list"); ok {
		t.Fatalf("expected miss at expiry")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry to be dropped, len=%d", c.Len())
	}
}

func TestCache_SetUntilKeepsLaterExpiry(t *testing.T) {
	clk := &clock{t: time.Unix(1000, 0)}
	c := New(time.Second).WithClock(clk.now)

	c.SetUntil("k", true, clk.t.Add(time.Minute))
	c.SetUntil("k", true, clk.t.Add(time.Second))

	clk.t = clk.t.Add(30 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("expected later expiry to win")
	}
}

func TestCache_DeleteExpiredAndPrefix(t *testing.T) {
	clk := &clock{t: time.Unix(1000, 0)}
	c := New(time.Minute).WithClock(clk.now)

	c.SetUntil("a", 1, clk.t.Add(time.Second))
	c.Set("tours:1", 1)
	c.Set("tours:2", 2)
	c.Set("feedback:1", 3)

	clk.t = clk.t.Add(2 * time.Second)
	if n := c.DeleteExpired(); n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}

	c.DeletePrefix("tours:")
	if c.Len() != 1 {
		t.Fatalf("expected only feedback entry left, len=%d", c.Len())
	}
	if _, ok := c.Get("feedback:1"); !ok {
		t.Fatalf("expected feedback entry to survive")
	}
}
