package middleware

import (
	"context"
	"net/http"
)

// Authenticator resolves an HTTP request to a client ID. It is the
// pluggable collaborator spec §1 keeps out of the core — the engine only
// consumes its two possible outcomes: a client ID, or "" + false meaning
// unauthenticated.
type Authenticator func(r *http.Request) (clientID string, ok bool)

type contextKey int

const clientIDKey contextKey = 0

// ClientIDFromContext returns the client ID AuthMiddleware placed on the
// request context, if any.
func ClientIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey).(string)
	return id
}

// AuthMiddleware runs auth and either rejects the request with 401 or
// attaches the resolved client ID to the request context for downstream
// middleware and handlers. It must be the outermost middleware in the
// chain passed to Chain so that LoggingMiddleware and RateLimitMiddleware,
// which both read ClientIDFromContext, see it already set.
func AuthMiddleware(auth Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID, ok := auth(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), clientIDKey, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
