package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/snipurl/snipurl/internal/errx"
	"github.com/snipurl/snipurl/internal/httpx"
)

// Middleware enforces the limiter per client IP. Denied requests get a
// 429 response with Retry-After set to the seconds until the window
// resets. X-RateLimit headers are set on every response.
func Middleware(l *Limiter) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := l.Consume(httpx.ClientIP(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.Max()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retryAfter := int(res.ResetAt.Sub(l.now()).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				httpx.WriteKindError(w, errx.RateLimited, "too many requests, slow down")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
