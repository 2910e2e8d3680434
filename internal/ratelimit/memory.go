package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepThreshold bounds how many keys accumulate before stale windows are dropped.
const sweepThreshold = 4096

type memoryCounter struct {
	start int64
	count int
}

// MemoryLimiter is a process-local fixed-window counter.
type MemoryLimiter struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
}

// NewMemoryLimiter constructs an empty MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{counters: make(map[string]*memoryCounter)}
}

// Allow counts one request for key in the current minute.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	start := windowStart(now)
	res := Result{Limit: limit, Reset: windowReset(start)}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.counters) >= sweepThreshold {
		l.sweep(start)
	}
	counter, ok := l.counters[key]
	if !ok || counter.start != start {
		counter = &memoryCounter{start: start}
		l.counters[key] = counter
	}
	if counter.count >= limit {
		return res, nil
	}
	counter.count++
	res.Allowed = true
	res.Remaining = limit - counter.count
	return res, nil
}

func (l *MemoryLimiter) sweep(current int64) {
	for key, counter := range l.counters {
		if counter.start != current {
			delete(l.counters, key)
		}
	}
}
