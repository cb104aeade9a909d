package rpc

import (
	"context"
	"encoding/json"
	"sync"
)

// DefaultTimeoutMs is the timeout applied to a command when the caller
// does not specify one (spec §5).
const DefaultTimeoutMs = 30_000

// RpcCommand is a single request for a remote method invocation. Its ID is
// monotonically increasing per originator (spec §3).
type RpcCommand struct {
	ID               int64             `json:"ID"`
	MethodName       string            `json:"MethodName"`
	MethodParameters []json.RawMessage `json:"MethodParameters"`
	RetryStrategy    RetryStrategy     `json:"RetryStrategy"`
	TimeoutMs        int               `json:"TimeoutMs"`

	mu     sync.Mutex
	state  CommandState
	result *RpcCommandResult
	done   chan struct{}
}

// NewRpcCommand constructs a command in the Enqueued state with its own
// result future. timeoutMs <= 0 is replaced with DefaultTimeoutMs.
func NewRpcCommand(id int64, method string, params []json.RawMessage, strategy RetryStrategy, timeoutMs int) *RpcCommand {
	if timeoutMs <= 0 {
		timeoutMs = DefaultTimeoutMs
	}
	return &RpcCommand{
		ID:               id,
		MethodName:       method,
		MethodParameters: params,
		RetryStrategy:    strategy,
		TimeoutMs:        timeoutMs,
		state:            StateEnqueued,
		done:             make(chan struct{}),
	}
}

// State returns the command's current position in the state machine.
func (c *RpcCommand) State() CommandState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// MarkSent transitions Enqueued → Sent. It is a no-op if the command has
// already left Enqueued — the client push loop and the server's /pull
// handler call it on every send attempt, including retransmissions after a
// transport failure, which must not re-enter it.
func (c *RpcCommand) MarkSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateEnqueued {
		c.state = StateSent
	}
}

// Finish transitions the command to its terminal state and wakes any
// waiter. It is idempotent: once the command is terminal, later calls are
// ignored, so whichever Finish comes first wins — a real server response
// that arrives after a local timeout already finished the future with a
// synthetic failure is discarded.
func (c *RpcCommand) Finish(result *RpcCommandResult) {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return
	}
	c.result = result
	if result != nil && result.Success {
		c.state = StateSuccessful
	} else {
		c.state = StateFailed
	}
	c.mu.Unlock()
	close(c.done)
}

// WaitForResult blocks until the command completes or ctx is done,
// whichever comes first. A context deadline completes the future locally
// with Timeout; a canceled context (engine shutdown) completes it with
// Other("shutdown") — in both cases the command moves to Failed but stays
// in its peer queue, since the remote side may still execute it (spec §5).
func (c *RpcCommand) WaitForResult(ctx context.Context) (*RpcCommandResult, error) {
	select {
	case <-c.done:
		return c.finishedResult()
	default:
	}

	select {
	case <-c.done:
		return c.finishedResult()
	case <-ctx.Done():
		kind, message := FailureTimeout, "wait for result timed out"
		if ctx.Err() == context.Canceled {
			kind, message = FailureOther, "shutdown"
		}
		c.Finish(NewFailureResult(c.ID, kind, message))
		return c.finishedResult()
	}
}

// Rehydrate returns a fresh, live RpcCommand carrying decoded's wire
// fields. It exists because a command that arrived via json.Unmarshal (or
// codec.BinaryCodec) never ran through NewRpcCommand, so its result
// future (done) is a nil channel — safe for a Runner that only reads the
// command, unsafe for anything that will later call MarkSent or Finish on
// it, such as a command restored from the backlog into a PeerCache queue.
func Rehydrate(decoded *RpcCommand) *RpcCommand {
	return NewRpcCommand(decoded.ID, decoded.MethodName, decoded.MethodParameters, decoded.RetryStrategy, decoded.TimeoutMs)
}

func (c *RpcCommand) finishedResult() (*RpcCommandResult, error) {
	c.mu.Lock()
	result := c.result
	c.mu.Unlock()
	if err := result.AsError(); err != nil {
		return nil, err
	}
	return result, nil
}
