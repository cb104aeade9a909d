// Package runner implements the Command Runner of spec §4.3: given a
// command and a list of user-handler objects, it returns a cached result
// for a retried command, or dispatches to the first handler that
// recognizes the method name, caching whatever it produces.
package runner

import (
	"encoding/json"
	"fmt"

	"relayrpc/peer"
	"relayrpc/rpc"
)

// Handler is one dispatcher of user methods, analogous to the teacher's
// reflection-based service.Call (server/service.go) but resolved by a
// method-name string rather than a registered struct's method set — the
// wire contract only requires a stable string name (spec §9).
type Handler interface {
	// Execute attempts to service cmd. ok is false if this handler does not
	// recognize cmd.MethodName, in which case the Runner tries the next
	// handler in registration order.
	Execute(cmd *rpc.RpcCommand) (result json.RawMessage, ok bool, err error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(cmd *rpc.RpcCommand) (json.RawMessage, bool, error)

func (f HandlerFunc) Execute(cmd *rpc.RpcCommand) (json.RawMessage, bool, error) { return f(cmd) }

// Runner holds the ordered handler list consulted by Run.
type Runner struct {
	handlers []Handler
}

func New(handlers ...Handler) *Runner {
	return &Runner{handlers: handlers}
}

// Run executes cmd against cache's dedup entry, or the handler list if no
// cached result exists. The result is cached before it is returned,
// guaranteeing at-most-once handler invocation per command ID regardless
// of how many duplicate deliveries arrive (spec §4.3, §8).
func (r *Runner) Run(cache *peer.Cache, cmd *rpc.RpcCommand) *rpc.RpcCommandResult {
	if cached, ok := cache.GetCachedResult(cmd.ID); ok {
		return cached
	}

	result := r.dispatch(cmd)
	cache.CacheResult(result)
	return result
}

func (r *Runner) dispatch(cmd *rpc.RpcCommand) *rpc.RpcCommandResult {
	for _, h := range r.handlers {
		result, matched, err := r.safeExecute(h, cmd)
		if !matched {
			continue
		}
		if err != nil {
			return rpc.NewFailureResult(cmd.ID, rpc.FailureRemoteException, err.Error())
		}
		return rpc.NewSuccessResult(cmd.ID, result)
	}

	return rpc.NewFailureResult(cmd.ID, rpc.FailureOther, fmt.Sprintf("method not found: %s", cmd.MethodName))
}

func (r *Runner) safeExecute(h Handler, cmd *rpc.RpcCommand) (result json.RawMessage, matched bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			matched = true
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()
	return h.Execute(cmd)
}
