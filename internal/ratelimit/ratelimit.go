// Package ratelimit implements per-API-key fixed-window rate limiting on top
// of the shared store, so counters are correct when multiple server
// instances run against the same database.
//
// Fixed windows are intentionally simple: a client can burst up to 2x the
// limit across a window boundary. That inaccuracy is an accepted tradeoff,
// not a bug.
package ratelimit

import (
	"context"
	"time"

	"github.com/fieldlinehq/fieldline/internal/store"
)

// Result reports the outcome of a check-and-consume call.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter is a fixed-window counter keyed by API key id.
type Limiter struct {
	store *store.Store

	// now is replaceable in tests to cross window boundaries without
	// sleeping.
	now func() time.Time
}

// New creates a Limiter backed by the shared store.
func New(st *store.Store) *Limiter {
	return &Limiter{store: st, now: time.Now}
}

// CheckAndConsume records one request for keyID and reports whether it is
// admitted under the (window, max) policy. The increment happens even when
// the request is rejected, so a full window keeps accumulating and cannot
// be reset by retrying.
func (l *Limiter) CheckAndConsume(ctx context.Context, keyID string, window time.Duration, max int) (Result, error) {
	now := l.now().Unix()
	windowSeconds := int64(window / time.Second)
	if windowSeconds < 1 {
		windowSeconds = 1
	}

	windowStart, count, err := l.store.IncrementRateCounter(ctx, keyID, now, windowSeconds)
	if err != nil {
		return Result{}, err
	}

	remaining := max - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count <= int64(max),
		Remaining: remaining,
		ResetAt:   time.Unix(windowStart+windowSeconds, 0).UTC(),
	}, nil
}
