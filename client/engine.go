// Package client implements the Client Engine of spec §4.4: the push and
// pull long-poll loops, ExecuteOnServer, and Start/Stop lifecycle.
//
// The push/pull loop structure is grounded on the teacher's
// transport.ClientTransport (BX-D-mini-RPC/transport/client_transport.go):
// that type runs a background recvLoop reading responses off a shared TCP
// connection and routing them to per-request channels. Here there is no
// seq-multiplexed connection — each call is one HTTP round trip — so the
// "routing" collapses to the single current head of the server's
// PeerCache, but the same idea (one persistent background loop, one
// result future per in-flight unit of work) carries over directly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"relayrpc/backlog"
	"relayrpc/codec"
	"relayrpc/peer"
	"relayrpc/rpc"
	"relayrpc/runner"
)

// AuthInstaller attaches credentials to an outgoing request, e.g. setting
// an Authorization header. It is applied to every /push and /pull call.
type AuthInstaller func(req *http.Request) error

// Engine is the client half of the bidirectional RPC engine.
type Engine struct {
	config      rpc.RpcClientConfig
	httpClient  *http.Client
	authInstall AuthInstaller
	codec       codec.Codec
	serverCache *peer.Cache
	backlog     backlog.Backlog
	runner      *runner.Runner

	nextID int64

	startOnce sync.Once
	stopCtx   context.Context
	stopFn    context.CancelFunc
	wg        sync.WaitGroup
}

// New constructs an Engine. Start must be called before it does any work.
func New() *Engine {
	return &Engine{}
}

// Start is idempotent: calling it more than once has no effect beyond the
// first call. It opens an HTTP client timed out at the long-poll window
// plus ten seconds (spec §4.4), restores pending commands from bl into the
// server-directed PeerCache, and spawns the push and pull loops.
func (e *Engine) Start(handlers []runner.Handler, config rpc.RpcClientConfig, authInstall AuthInstaller, bl backlog.Backlog) error {
	var startErr error
	e.startOnce.Do(func() {
		config = config.WithDefaults()
		e.config = config
		e.authInstall = authInstall
		e.codec = codec.GetCodec(codec.CodecTypeJSON)
		e.backlog = bl
		e.runner = runner.New(handlers...)
		e.serverCache = peer.New(config.QueueBound, config.ResultCacheSize)
		e.httpClient = &http.Client{
			Timeout: time.Duration(config.LongPollMs)*time.Millisecond + 10*time.Second,
		}
		e.stopCtx, e.stopFn = context.WithCancel(context.Background())

		if bl != nil {
			pending, err := bl.PeekAll(serverPeerID)
			if err != nil {
				startErr = fmt.Errorf("relayrpc: restoring backlog: %w", err)
				return
			}
			for _, cmd := range pending {
				live := rpc.Rehydrate(cmd)
				if err := e.serverCache.Enqueue(live); err != nil {
					log.Printf("relayrpc: dropping backlog command %d on restore: %v", live.ID, err)
				}
			}
		}

		e.wg.Add(2)
		go e.pushLoop()
		go e.pullLoop()
	})
	return startErr
}

// serverPeerID is the peer ID this engine uses for its one peer, the
// server — spec §3 calls this "nullable for the server"; the empty string
// plays that role in this module's keyspaces.
const serverPeerID = ""

// Stop signals the push and pull loops to exit at their next suspension
// point and waits for them to finish.
func (e *Engine) Stop() {
	if e.stopFn == nil {
		return
	}
	e.stopFn()
	e.serverCache.Close()
	e.wg.Wait()
}

// ExecuteOnServer enqueues a call to the server and blocks until it
// completes or timeoutMs elapses (0 uses the engine's default). On an
// RPC-problem failure with a retry-eligible strategy, the command is
// handed to the backlog before the error is returned to the caller (spec
// §4.4, §7).
func (e *Engine) ExecuteOnServer(method string, params []json.RawMessage, timeoutMs int, strategy rpc.RetryStrategy) (json.RawMessage, error) {
	if timeoutMs <= 0 {
		timeoutMs = e.config.DefaultTimeoutMs
	}
	id := atomic.AddInt64(&e.nextID, 1)
	cmd := rpc.NewRpcCommand(id, method, params, strategy, timeoutMs)

	if err := e.serverCache.Enqueue(cmd); err != nil {
		e.backlogIfEligible(cmd, err)
		return nil, wrapNonRPCError(err)
	}

	ctx, cancel := context.WithTimeout(e.stopCtx, time.Duration(cmd.TimeoutMs)*time.Millisecond)
	defer cancel()

	result, err := cmd.WaitForResult(ctx)
	if err != nil {
		e.backlogIfEligible(cmd, err)
		return nil, err
	}
	return result.ReturnValue, nil
}

func (e *Engine) backlogIfEligible(cmd *rpc.RpcCommand, err error) {
	if e.backlog == nil {
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
	if bErr := e.backlog.Enqueue(serverPeerID, cmd, cmd.RetryStrategy); bErr != nil {
		log.Printf("relayrpc: failed to backlog command %d: %v", cmd.ID, bErr)
	}
}

func wrapNonRPCError(err error) error {
	if _, ok := err.(*rpc.RpcError); ok {
		return err
	}
	return rpc.NewRpcError(rpc.FailureOther, err.Error())
}

// pushLoop implements spec §4.4's client → server push loop.
func (e *Engine) pushLoop() {
	defer e.wg.Done()
	for {
		if e.stopCtx.Err() != nil {
			return
		}
		cmd, ok := e.serverCache.GetCurrentCommand(-1)
		if !ok {
			return
		}
		cmd.MarkSent()

		result, err := e.doPush(cmd)
		if err != nil {
			if e.stopCtx.Err() != nil {
				return
			}
			log.Printf("relayrpc: push failed, retrying same command %d: %v", cmd.ID, err)
			time.Sleep(rpc.DefaultTransportBackoffMs * time.Millisecond)
			continue
		}

		cmd.Finish(result)
		e.serverCache.FinishCurrentCommand(cmd)
	}
}

// pullLoop implements spec §4.4's server → client pull loop.
func (e *Engine) pullLoop() {
	defer e.wg.Done()
	var lastResult *rpc.RpcCommandResult
	for {
		if e.stopCtx.Err() != nil {
			return
		}

		nextCmd, err := e.doPull(lastResult)
		if err != nil {
			if e.stopCtx.Err() != nil {
				return
			}
			log.Printf("relayrpc: pull failed, retrying with same result: %v", err)
			time.Sleep(rpc.DefaultTransportBackoffMs * time.Millisecond)
			continue
		}

		if nextCmd == nil {
			lastResult = nil
			continue
		}

		lastResult = e.runner.Run(e.serverCache, nextCmd)
	}
}

func (e *Engine) doPush(cmd *rpc.RpcCommand) (*rpc.RpcCommandResult, error) {
	body, err := e.codec.Encode(cmd)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(e.stopCtx, http.MethodPost, e.config.ServerBaseURL+"/push", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.authInstall != nil {
		if err := e.authInstall(req); err != nil {
			return nil, err
		}
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("push: server responded %d: %s", resp.StatusCode, data)
	}

	var result rpc.RpcCommandResult
	if err := e.codec.Decode(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (e *Engine) doPull(previousResult *rpc.RpcCommandResult) (*rpc.RpcCommand, error) {
	var body []byte
	var err error
	if previousResult != nil {
		body, err = e.codec.Encode(previousResult)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(e.stopCtx, http.MethodPost, e.config.ServerBaseURL+"/pull", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.authInstall != nil {
		if err := e.authInstall(req); err != nil {
			return nil, err
		}
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("pull: server responded %d: %s", resp.StatusCode, data)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var cmd rpc.RpcCommand
	if err := e.codec.Decode(data, &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}
