// Package ratelimit throttles the unauthenticated auth endpoints with a
// per-client fixed window. Redis backs the counters when configured so
// limits hold across replicas; otherwise an in-process limiter serves.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter provides rate limit checks.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error)
}

// ClientKey builds a limiter key scoping a route to one client address.
func ClientKey(route, clientIP string) string {
	if route == "" || clientIP == "" {
		return ""
	}
	return fmt.Sprintf("%s:ip:%s", route, clientIP)
}
