package middleware

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimitMiddleware is a token-bucket limiter per client ID, generalizing
// the teacher's single global limiter (BX-D-mini-RPC/middleware/
// rate_limit_middleware.go) to one bucket per peer — a flood from one
// firewall-bound client must not starve another's /push or /pull.
// It must run after AuthMiddleware in the chain so ClientIDFromContext is
// populated.
func RateLimitMiddleware(r float64, burst int) Middleware {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	limiterFor := func(clientID string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[clientID]
		if !ok {
			l = rate.NewLimiter(rate.Limit(r), burst)
			limiters[clientID] = l
		}
		return l
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			clientID := ClientIDFromContext(req.Context())
			if !limiterFor(clientID).Allow() {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
