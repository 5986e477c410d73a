// Package ratelimit limits requests per key (client IP) over a window.
//
// Memory keeps a token bucket per key and suits a single instance. Redis keeps
// a fixed window counter shared by every instance.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidWindow is returned when the window rounds to zero milliseconds.
var ErrInvalidWindow = errors.New("ratelimit: window must be at least 1ms")

// Limiter decides whether one more request for key is allowed at now. When it
// is not, retryAfter tells how long until the next request may pass.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (allowed bool, retryAfter time.Duration, err error)
}
