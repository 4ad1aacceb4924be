package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window keys live two seconds: the current window plus slack for
// clients still finishing requests against the previous one.
const windowKeyTTL = 2

const defaultKeyPrefix = "smurfmgt:rl"

// countAndExpire atomically bumps the window counter and arms the TTL on
// the first hit, so an abandoned window cleans itself up.
var countAndExpire = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RedisLimiter is the shared fixed-window limiter. Each instance behind
// the same Redis and prefix counts against the same windows.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter constructs a RedisLimiter over an already-connected
// client. An empty prefix falls back to the service default.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisLimiter{client: client, prefix: prefix}
}

// Allow counts the request against the key's current one-second window.
// Redis errors are returned as-is so the caller can trip its breaker.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || key == "" || l == nil || l.client == nil {
		return Result{Allowed: true}, nil
	}
	sec := now.Unix()
	reset := time.Unix(sec+1, 0).UTC()

	reply, errRun := countAndExpire.Run(ctx, l.client, []string{l.windowKey(key, sec)}, windowKeyTTL).Result()
	if errRun != nil {
		return Result{}, errRun
	}
	count, ok := reply.(int64)
	if !ok {
		return Result{}, fmt.Errorf("rate limit redis: unexpected reply %T", reply)
	}

	if count > int64(limit) {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: true, Remaining: remaining, Reset: reset}, nil
}

func (l *RedisLimiter) windowKey(key string, sec int64) string {
	return l.prefix + ":" + key + ":" + strconv.FormatInt(sec, 10)
}
