package middleware

import (
	"log"
	"net/http"
	"time"
)

// LoggingMiddleware logs one line per request with its path and duration,
// exactly as the teacher's LoggingMiddleware does for ServiceMethod and
// duration (BX-D-mini-RPC/middleware/logging_middleware.go).
func LoggingMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Printf("relayrpc: %s %s client=%s duration=%s", r.Method, r.URL.Path, ClientIDFromContext(r.Context()), time.Since(start))
		})
	}
}
