package ratelimit

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Budget caps LLM requests per day. A zero max means unlimited.
type Budget struct {
	mu        sync.Mutex
	max       int
	used      int
	cacheHits int
	resetTime time.Time
	now       func() time.Time
	log       logrus.FieldLogger
}

func NewBudget(max int, log logrus.FieldLogger) *Budget {
	b := &Budget{max: max, now: time.Now, log: log}
	b.resetTime = b.now().Add(24 * time.Hour)
	return b
}

// Allow reserves one request and reports whether it fits in the budget.
func (b *Budget) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkReset()

	if b.max > 0 && b.used >= b.max {
		b.log.Warnf("LLM request budget reached (%d/%d)", b.used, b.max)
		return false
	}
	b.used++
	b.log.Debugf("LLM usage: %d/%d", b.used, b.max)
	return true
}

// RecordCacheHit counts a request answered from cache.
func (b *Budget) RecordCacheHit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cacheHits++
}

func (b *Budget) GetStats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	return map[string]interface{}{
		"used":       b.used,
		"limit":      b.max,
		"cache_hits": b.cacheHits,
		"reset_time": b.resetTime,
	}
}

func (b *Budget) checkReset() {
	if b.now().After(b.resetTime) {
		b.log.Infof("Resetting LLM budget (used %d, cache hits %d)", b.used, b.cacheHits)
		b.used = 0
		b.cacheHits = 0
		b.resetTime = b.now().Add(24 * time.Hour)
	}
}
