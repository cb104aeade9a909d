package rpc

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestCommandJSONRoundTrip(t *testing.T) {
	original := &RpcCommand{
		ID:               7,
		MethodName:       "AddNumbers",
		MethodParameters: []json.RawMessage{json.RawMessage(`2`), json.RawMessage(`3`)},
		RetryStrategy:    RetryRetry,
		TimeoutMs:        5000,
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded RpcCommand
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded.ID != original.ID {
		t.Errorf("ID mismatch: got %d, want %d", decoded.ID, original.ID)
	}
	if decoded.MethodName != original.MethodName {
		t.Errorf("MethodName mismatch: got %s, want %s", decoded.MethodName, original.MethodName)
	}
	if len(decoded.MethodParameters) != len(original.MethodParameters) {
		t.Fatalf("MethodParameters length mismatch: got %d, want %d", len(decoded.MethodParameters), len(original.MethodParameters))
	}
	if decoded.RetryStrategy != original.RetryStrategy {
		t.Errorf("RetryStrategy mismatch: got %s, want %s", decoded.RetryStrategy, original.RetryStrategy)
	}
	if decoded.TimeoutMs != original.TimeoutMs {
		t.Errorf("TimeoutMs mismatch: got %d, want %d", decoded.TimeoutMs, original.TimeoutMs)
	}
}

func TestCommandResultJSONRoundTrip(t *testing.T) {
	original := NewSuccessResult(7, json.RawMessage(`5`))

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded RpcCommandResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded.ID != original.ID || decoded.Success != original.Success {
		t.Errorf("result mismatch: got %+v, want %+v", decoded, original)
	}
	if string(decoded.ReturnValue) != string(original.ReturnValue) {
		t.Errorf("ReturnValue mismatch: got %s, want %s", decoded.ReturnValue, original.ReturnValue)
	}
}

func TestCommandResultFailureJSONRoundTrip(t *testing.T) {
	original := NewFailureResult(9, FailureRemoteException, "divide by zero")

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded RpcCommandResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded.Success {
		t.Fatalf("expected Success=false")
	}
	if decoded.Failure == nil || decoded.Failure.Type != FailureRemoteException {
		t.Fatalf("Failure mismatch: got %+v", decoded.Failure)
	}
}

func TestCommandStateMachineAbsorbing(t *testing.T) {
	cmd := NewRpcCommand(1, "Foo", nil, RetryNone, 1000)
	if cmd.State() != StateEnqueued {
		t.Fatalf("expected Enqueued, got %s", cmd.State())
	}
	cmd.MarkSent()
	if cmd.State() != StateSent {
		t.Fatalf("expected Sent, got %s", cmd.State())
	}
	cmd.MarkSent() // idempotent
	if cmd.State() != StateSent {
		t.Fatalf("expected Sent after repeat MarkSent, got %s", cmd.State())
	}

	cmd.Finish(NewSuccessResult(1, json.RawMessage(`1`)))
	if cmd.State() != StateSuccessful {
		t.Fatalf("expected Successful, got %s", cmd.State())
	}

	// A later Finish (e.g. a duplicate response) must not move a terminal command.
	cmd.Finish(NewFailureResult(1, FailureOther, "late duplicate"))
	if cmd.State() != StateSuccessful {
		t.Fatalf("terminal state must be absorbing, got %s", cmd.State())
	}
}

func TestWaitForResultTimeout(t *testing.T) {
	cmd := NewRpcCommand(2, "Slow", nil, RetryRetry, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := cmd.WaitForResult(ctx)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	rerr, ok := err.(*RpcError)
	if !ok || rerr.Kind != FailureTimeout {
		t.Fatalf("expected FailureTimeout, got %v", err)
	}
	if cmd.State() != StateFailed {
		t.Fatalf("expected command forced to Failed on local timeout, got %s", cmd.State())
	}
}

func TestWaitForResultSucceedsBeforeTimeout(t *testing.T) {
	cmd := NewRpcCommand(3, "Fast", nil, RetryNone, 1000)
	go func() {
		time.Sleep(5 * time.Millisecond)
		cmd.Finish(NewSuccessResult(3, json.RawMessage(`"ok"`)))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result, err := cmd.WaitForResult(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result.ReturnValue) != `"ok"` {
		t.Fatalf("unexpected return value: %s", result.ReturnValue)
	}
}

func TestWaitForResultShutdown(t *testing.T) {
	cmd := NewRpcCommand(4, "Foo", nil, RetryRetry, 1000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cmd.WaitForResult(ctx)
	rerr, ok := err.(*RpcError)
	if !ok || rerr.Kind != FailureOther {
		t.Fatalf("expected Other(shutdown), got %v", err)
	}
}
