// Package middleware provides HTTP middleware for the Server Engine's
// /push and /pull endpoints, generalizing the teacher's Middleware/Chain
// abstraction (BX-D-mini-RPC/middleware/middleware.go) from an RPCMessage
// handler chain to a standard net/http one — the engine's wire transport
// moved from custom TCP frames to plain HTTP, so the chain now wraps
// http.Handler instead of a custom HandlerFunc.
package middleware

import "net/http"

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(next http.Handler) http.Handler

// Chain composes middlewares into one, applied in the order given —
// Chain(A, B, C)(handler) runs A.before → B.before → C.before → handler →
// C.after → B.after → A.after, exactly as the teacher's Chain describes it.
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
