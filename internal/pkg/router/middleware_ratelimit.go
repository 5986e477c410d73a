package router

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/shandysiswandi/gostepup/internal/pkg/clock"
	"github.com/shandysiswandi/gostepup/internal/pkg/ratelimit"
)

const rateLimitedPrefix = "/api/"

// middlewareRateLimit throttles /api/* per client IP, except the routes in
// skip. It must run after middlewareIP so RemoteAddr holds the resolved client
// address. Limiter failures let the request through.
func middlewareRateLimit(limiter ratelimit.Limiter, clk clock.Clocker, skip map[string]map[string]struct{}) Middleware {
	if limiter == nil {
		return nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.Method][matchedRoutePath(r)]; ok || !strings.HasPrefix(r.URL.Path, rateLimitedPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			allowed, retryAfter, err := limiter.Allow(r.Context(), "ip:"+r.RemoteAddr, clk.Now())
			if err != nil {
				slog.WarnContext(r.Context(), "rate limiter unavailable, allowing request", "ip", r.RemoteAddr, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				secs := max(int(math.Ceil(retryAfter.Seconds())), 1)
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeJSON(w, errorResponse{Message: "Too many requests, please try again later"}, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
