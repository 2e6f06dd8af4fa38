package ratelimit

import (
	"sync"
	"time"

	"github.com/postpilot/reddit-affiliate-bot/internal/models"
)

// Bucket is a shared token bucket gating outbound Reddit calls. It refills
// to full capacity on a fixed wall-clock window rather than dripping
// tokens continuously.
type Bucket struct {
	mu       sync.Mutex
	capacity int
	used     int
	window   time.Duration
	resetAt  time.Time
	now      func() time.Time
}

// New creates a bucket with the given capacity per window.
func New(capacity int, window time.Duration) *Bucket {
	b := &Bucket{
		capacity: capacity,
		window:   window,
		now:      time.Now,
	}
	b.resetAt = b.now().Add(window)
	return b
}

// NewWithClock is New with an injectable clock for tests.
func NewWithClock(capacity int, window time.Duration, now func() time.Time) *Bucket {
	b := &Bucket{
		capacity: capacity,
		window:   window,
		now:      now,
	}
	b.resetAt = now().Add(window)
	return b
}

// TryAcquire consumes a token if one is available. It never blocks; a
// false return means the caller must treat this attempt as rate limited.
func (b *Bucket) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()

	if b.used >= b.capacity {
		return false
	}

	b.used++
	return true
}

// Status reports usage for the current window.
func (b *Bucket) Status() models.RateLimitStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()

	remaining := b.capacity - b.used
	return models.RateLimitStatus{
		Used:             b.used,
		Limit:            b.capacity,
		ResetTime:        b.resetAt,
		RemainingPercent: float64(remaining) / float64(b.capacity) * 100,
	}
}

func (b *Bucket) refillLocked() {
	now := b.now()
	if now.Before(b.resetAt) {
		return
	}
	b.used = 0
	// Advance the window boundary past now so long idle stretches don't
	// leave a reset time in the past.
	for !b.resetAt.After(now) {
		b.resetAt = b.resetAt.Add(b.window)
	}
}
