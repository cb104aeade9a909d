package middleware

import (
	"bytes"
	"context"
	"net/http"
	"time"
)

// bufferedResponse is a minimal http.ResponseWriter that collects a
// handler's output in memory instead of writing it to the network,
// so the handler has something private to write to while it races a
// timeout.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header), status: http.StatusOK}
}

func (b *bufferedResponse) Header() http.Header         { return b.header }
func (b *bufferedResponse) Write(p []byte) (int, error) { return b.body.Write(p) }
func (b *bufferedResponse) WriteHeader(statusCode int)  { b.status = statusCode }

// TimeoutMiddleware bounds how long a handler may run before the request
// fails with 504, adapted from the teacher's TimeOutMiddleware
// (BX-D-mini-RPC/middleware/timeout_middleware.go). On the Server Engine
// this guards the /push handler's call into the Command Runner: a user
// handler that hangs must not pin the request goroutine forever.
//
// It must not wrap /pull — that handler's long-poll wait (spec §4.5) is
// supposed to hold the request open for up to LongPollMs, and this
// middleware would cut it short.
//
// The teacher's version returns a plain *message.RPCMessage into a
// buffered channel, so there is no shared write target to race on. Here
// next writes straight to an http.ResponseWriter, which net/http forbids
// writing to from two goroutines at once — so the background goroutine
// writes into a bufferedResponse of its own, and only the side that wins
// the select below ever touches the real w.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			buf := newBufferedResponse()
			done := make(chan struct{})
			go func() {
				next.ServeHTTP(buf, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
				for k, v := range buf.header {
					w.Header()[k] = v
				}
				w.WriteHeader(buf.status)
				w.Write(buf.body.Bytes())
			case <-ctx.Done():
				http.Error(w, "request timed out", http.StatusGatewayTimeout)
			}
		})
	}
}
