package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/winverse2755/settlekit/internal/domain"
)

// fixedWindowLua increments the counter for the current window and sets the
// expiry atomically, returning the count after the increment.
const fixedWindowLua = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`

// RateLimiter implements domain.RateLimiter with a fixed-window counter per
// key. The window granularity is coarse but the check is a single round
// trip, which is enough to protect the settlement API from misbehaving
// clients.
type RateLimiter struct {
	rdb    *redis.Client
	window *redis.Script
}

// NewRateLimiter creates a RateLimiter backed by the given Client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		rdb:    c.Underlying(),
		window: redis.NewScript(fixedWindowLua),
	}
}

func rateLimitKey(key string, window time.Duration) string {
	bucket := time.Now().UnixMilli() / window.Milliseconds()
	return fmt.Sprintf("settle:ratelimit:%s:%d", key, bucket)
}

// Allow counts a request for key and reports whether it stays within limit
// for the current window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := rl.window.Run(
		ctx,
		rl.rdb,
		[]string{rateLimitKey(key, window)},
		window.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit allow %s: %w", key, err)
	}
	return count <= int64(limit), nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
