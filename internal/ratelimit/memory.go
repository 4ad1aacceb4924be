package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Auth keys carry a client IP, so a scanned or NATed deployment can
// accumulate entries forever. Every sweepEvery calls the limiter drops
// windows that are already in the past.
const sweepEvery = 4096

type windowCount struct {
	sec   int64
	count int
}

// MemoryLimiter is the in-process fixed-window limiter. One counter per
// key, valid for a single wall-clock second.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]windowCount
	calls   int
}

// NewMemoryLimiter constructs an empty MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string]windowCount)}
}

// Allow counts the request against the key's current one-second window.
// A non-positive limit or empty key disables throttling for the call.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	sec := now.Unix()
	reset := time.Unix(sec+1, 0).UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweep(sec)
	}

	w := l.windows[key]
	if w.sec != sec {
		w = windowCount{sec: sec}
	}
	if w.count >= limit {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	w.count++
	l.windows[key] = w
	return Result{Allowed: true, Remaining: limit - w.count, Reset: reset}, nil
}

// sweep removes windows older than the current second. Caller holds mu.
func (l *MemoryLimiter) sweep(sec int64) {
	for key, w := range l.windows {
		if w.sec < sec {
			delete(l.windows, key)
		}
	}
}
