// Package server implements the Server Engine of spec §4.5: a
// per-client-ID map of Peer Caches, and the /push and /pull HTTP handlers
// that drive them. The request-dispatch shape — authenticate, look up
// per-peer state, run the command, write the response — follows the
// teacher's Server.handleRequest (BX-D-mini-RPC/server/server.go), with
// net/http taking over framing and concurrency from the teacher's custom
// TCP protocol (one goroutine per connection there, one per HTTP request
// here — net/http already gives us that for free).
package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"relayrpc/backlog"
	"relayrpc/codec"
	"relayrpc/middleware"
	"relayrpc/peer"
	"relayrpc/rpc"
	"relayrpc/runner"
)

// Engine is the server half of the bidirectional RPC engine. A process
// runs exactly one Engine (spec §4.5).
type Engine struct {
	config        rpc.RpcServerConfig
	authenticator middleware.Authenticator
	runnerInst    *runner.Runner
	backlogStore  backlog.Backlog
	codec         codec.Codec

	mu    sync.Mutex
	peers map[string]*peer.Cache

	nextID int64
}

// NewEngine constructs a Server Engine. bl may be nil to disable backlog
// restore and retry.
func NewEngine(config rpc.RpcServerConfig, authenticator middleware.Authenticator, handlers []runner.Handler, bl backlog.Backlog) *Engine {
	return &Engine{
		config:        config.WithDefaults(),
		authenticator: authenticator,
		runnerInst:    runner.New(handlers...),
		backlogStore:  bl,
		codec:         codec.GetCodec(codec.CodecTypeJSON),
		peers:         make(map[string]*peer.Cache),
	}
}

// peerCacheFor returns the Peer Cache for clientID, lazily creating it on
// first contact (spec §4.5) and restoring any backlogged commands into it
// at that time — the server has no single upfront Start that could know
// every client ID in advance.
func (e *Engine) peerCacheFor(clientID string) *peer.Cache {
	e.mu.Lock()
	defer e.mu.Unlock()

	cache, ok := e.peers[clientID]
	if ok {
		return cache
	}

	cache = peer.New(e.config.QueueBound, e.config.ResultCacheSize)
	e.peers[clientID] = cache

	if e.backlogStore != nil {
		pending, err := e.backlogStore.PeekAll(clientID)
		if err != nil {
			log.Printf("relayrpc: restoring backlog for %s: %v", clientID, err)
		}
		for _, cmd := range pending {
			live := rpc.Rehydrate(cmd)
			if err := cache.Enqueue(live); err != nil {
				log.Printf("relayrpc: dropping backlog command %d for %s on restore: %v", live.ID, clientID, err)
			}
		}
	}

	return cache
}

// ExecuteOnClient is the server's symmetric counterpart to the Client
// Engine's ExecuteOnServer: it enqueues a command for clientID and blocks
// until that client's next /pull reports a result, retry strategy
// permitting backlog fallback on an RPC-problem failure.
func (e *Engine) ExecuteOnClient(clientID, method string, params []json.RawMessage, timeoutMs int, strategy rpc.RetryStrategy) (json.RawMessage, error) {
	if timeoutMs <= 0 {
		timeoutMs = e.config.DefaultTimeoutMs
	}
	id := atomic.AddInt64(&e.nextID, 1)
	cmd := rpc.NewRpcCommand(id, method, params, strategy, timeoutMs)

	cache := e.peerCacheFor(clientID)
	if err := cache.Enqueue(cmd); err != nil {
		e.backlogIfEligible(clientID, cmd, err)
		return nil, wrapNonRPCError(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cmd.TimeoutMs)*time.Millisecond)
	defer cancel()

	result, err := cmd.WaitForResult(ctx)
	if err != nil {
		e.backlogIfEligible(clientID, cmd, err)
		return nil, err
	}
	return result.ReturnValue, nil
}

func (e *Engine) backlogIfEligible(clientID string, cmd *rpc.RpcCommand, err error) {
	if e.backlogStore == nil {
		return
	}
	rerr, ok := err.(*rpc.RpcError)
	if !ok {
		return
	}
	failure := &rpc.RpcFailure{Type: rerr.Kind, Message: rerr.Message}
	if !backlog.ShouldRetry(cmd.RetryStrategy, failure) {
		return
	}
	if bErr := e.backlogStore.Enqueue(clientID, cmd, cmd.RetryStrategy); bErr != nil {
		log.Printf("relayrpc: failed to backlog command %d for %s: %v", cmd.ID, clientID, bErr)
	}
}

func wrapNonRPCError(err error) error {
	if _, ok := err.(*rpc.RpcError); ok {
		return err
	}
	return rpc.NewRpcError(rpc.FailureOther, err.Error())
}

// PushHandler implements POST /push: decode a command from the
// authenticated client, run it, and respond with its result.
func (e *Engine) PushHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := middleware.ClientIDFromContext(r.Context())
		if clientID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		var cmd rpc.RpcCommand
		if err := e.codec.Decode(data, &cmd); err != nil {
			http.Error(w, "malformed command", http.StatusBadRequest)
			return
		}

		cache := e.peerCacheFor(clientID)
		result := e.runnerInst.Run(cache, &cmd)

		out, err := e.codec.Encode(result)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(out)
	})
}

// PullHandler implements POST /pull: report the previous result (if any),
// then long-poll for the next command bound for this client.
func (e *Engine) PullHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := middleware.ClientIDFromContext(r.Context())
		if clientID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		cache := e.peerCacheFor(clientID)

		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		if len(data) > 0 {
			var result rpc.RpcCommandResult
			if err := e.codec.Decode(data, &result); err != nil {
				http.Error(w, "malformed result", http.StatusBadRequest)
				return
			}
			if head, ok := cache.GetCurrentCommand(0); ok && head.ID == result.ID {
				head.Finish(&result)
				cache.FinishCurrentCommand(head)
			}
		}

		cmd, ok := cache.GetCurrentCommand(time.Duration(e.config.LongPollMs) * time.Millisecond)
		if !ok {
			w.WriteHeader(http.StatusOK)
			return
		}
		cmd.MarkSent()

		out, err := e.codec.Encode(cmd)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(out)
	})
}

// Handler wires the auth/logging/rate-limit/timeout middleware chain
// around PushHandler and the auth/logging/rate-limit chain (no timeout —
// long-poll holds the request open) around PullHandler, returning a
// mux-agnostic pair any router can mount.
func (e *Engine) Handler() (push http.Handler, pull http.Handler) {
	auth := middleware.AuthMiddleware(e.authenticator)
	push = middleware.Chain(auth, middleware.LoggingMiddleware(), middleware.RateLimitMiddleware(50, 10), middleware.TimeoutMiddleware(10*time.Second))(e.PushHandler())
	pull = middleware.Chain(auth, middleware.LoggingMiddleware(), middleware.RateLimitMiddleware(50, 10))(e.PullHandler())
	return push, pull
}
