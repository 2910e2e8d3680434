// Package ratelimit throttles generate requests per account in fixed
// one-minute windows, backed by Redis when configured and memory otherwise.
package ratelimit

import (
	"context"
	"time"
)

// Window is the length of one counting window.
const Window = time.Minute

// Result describes the outcome of a throttle check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// RetryAfter returns how long the caller should wait before retrying.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed || r.Reset.IsZero() || !r.Reset.After(now) {
		return 0
	}
	return r.Reset.Sub(now)
}

// Limiter counts requests for a key within the window containing now.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error)
}

func windowStart(now time.Time) int64 {
	return now.UTC().Truncate(Window).Unix()
}

func windowReset(start int64) time.Time {
	return time.Unix(start, 0).Add(Window).UTC()
}
