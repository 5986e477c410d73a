package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "gostepup:rl:"

var errUnexpectedReply = errors.New("ratelimit: unexpected redis reply")

// fixedWindowScript increments the window counter, starts its expiry on the
// first hit and returns {allowed, ttl_ms}.
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end

local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[2])
end

if current > tonumber(ARGV[1]) then
  return {0, ttl}
end
return {1, ttl}
`)

// Redis is a fixed window Limiter shared across instances.
type Redis struct {
	client redis.Scripter
	limit  int
	window time.Duration
	prefix string
}

// NewRedis returns a Redis limiter. An empty prefix uses "gostepup:rl:".
func NewRedis(client redis.Scripter, limit int, window time.Duration, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{client: client, limit: max(limit, 1), window: window, prefix: prefix}
}

func (l *Redis) Allow(ctx context.Context, key string, _ time.Time) (bool, time.Duration, error) {
	windowMS := l.window.Milliseconds()
	if windowMS <= 0 {
		return false, 0, ErrInvalidWindow
	}

	vals, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + key}, l.limit, windowMS).Int64Slice()
	if err != nil {
		return false, 0, err
	}
	if len(vals) != 2 {
		return false, 0, errUnexpectedReply
	}

	if vals[0] == 1 {
		return true, 0, nil
	}
	return false, time.Duration(max(vals[1], 0)) * time.Millisecond, nil
}
