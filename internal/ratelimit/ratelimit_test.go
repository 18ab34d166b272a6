package ratelimit

import (
	"testing"
	"time"

	"github.com/deusflow/newsletter/internal/logger"
)

func TestBudget_LimitAndReset(t *testing.T) {
	b := NewBudget(2, logger.Discard())
	now := time.Now()
	b.now = func() time.Time { return now }
	b.resetTime = now.Add(24 * time.Hour)

	if !b.Allow() || !b.Allow() {
		t.Fatal("first two requests should be allowed")
	}
	if b.Allow() {
		t.Fatal("third request should be denied")
	}

	now = now.Add(25 * time.Hour)
	if !b.Allow() {
		t.Fatal("budget should reset after a day")
	}
	if got := b.GetStats()["used"]; got != 1 {
		t.Errorf("used after reset = %v", got)
	}
}

func TestBudget_Unlimited(t *testing.T) {
	b := NewBudget(0, logger.Discard())
	for i := 0; i < 100; i++ {
		if !b.Allow() {
			t.Fatalf("unlimited budget denied request %d", i)
		}
	}
}
