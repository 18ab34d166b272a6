package cache

import (
	"testing"
	"time"
)

func TestCache_SetGetExpire(t *testing.T) {
	c := New[string](time.Minute, 0)
	defer c.Close()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("Get = %q, %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected entry to expire")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be removed on read, len=%d", c.Len())
	}
}

func TestCache_Cleanup(t *testing.T) {
	c := New[int](time.Second, 0)
	defer c.Close()

	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("a", 1)
	c.Set("b", 2)

	now = now.Add(time.Hour)
	c.Set("c", 3)
	c.cleanup()

	if c.Len() != 1 {
		t.Errorf("expected only fresh entry to survive, len=%d", c.Len())
	}
}

func TestKey_Stable(t *testing.T) {
	if Key("a", "bc") == Key("ab", "c") {
		t.Error("key parts must not collide when concatenated")
	}
	if Key("x", "y") != Key("x", "y") {
		t.Error("key must be deterministic")
	}
}

func TestClose_Idempotent(t *testing.T) {
	c := New[string](time.Minute, time.Millisecond)
	c.Close()
	c.Close()
}
