package peer

import (
	"encoding/json"
	"testing"
	"time"

	"relayrpc/rpc"
)

func TestEnqueueOrderIsSendOrder(t *testing.T) {
	c := New(10, 100)

	a := rpc.NewRpcCommand(1, "A", nil, rpc.RetryNone, 1000)
	b := rpc.NewRpcCommand(2, "B", nil, rpc.RetryNone, 1000)

	if err := c.Enqueue(a); err != nil {
		t.Fatalf("Enqueue a failed: %v", err)
	}
	if err := c.Enqueue(b); err != nil {
		t.Fatalf("Enqueue b failed: %v", err)
	}

	head, ok := c.GetCurrentCommand(0)
	if !ok || head != a {
		t.Fatalf("expected head to be a, got %v (ok=%v)", head, ok)
	}

	c.FinishCurrentCommand(a)

	head, ok = c.GetCurrentCommand(0)
	if !ok || head != b {
		t.Fatalf("expected head to be b after finishing a, got %v (ok=%v)", head, ok)
	}
}

func TestQueueOverflow(t *testing.T) {
	c := New(1, 100)
	first := rpc.NewRpcCommand(1, "A", nil, rpc.RetryNone, 1000)
	second := rpc.NewRpcCommand(2, "B", nil, rpc.RetryNone, 1000)

	if err := c.Enqueue(first); err != nil {
		t.Fatalf("unexpected error enqueueing first: %v", err)
	}
	err := c.Enqueue(second)
	if err == nil {
		t.Fatal("expected QueueOverflow error")
	}
	rerr, ok := err.(*rpc.RpcError)
	if !ok || rerr.Kind != rpc.FailureQueueOverflow {
		t.Fatalf("expected FailureQueueOverflow, got %v", err)
	}
}

func TestHeadRemainsVisibleAcrossFailedSend(t *testing.T) {
	c := New(10, 100)
	cmd := rpc.NewRpcCommand(1, "A", nil, rpc.RetryNone, 1000)
	if err := c.Enqueue(cmd); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	head1, _ := c.GetCurrentCommand(0)
	head1.MarkSent()
	// Simulate a transport failure: the head is re-read without finishing it.
	head2, ok := c.GetCurrentCommand(0)
	if !ok || head2 != head1 {
		t.Fatalf("expected the same command to remain the head after a failed send")
	}
}

func TestGetCurrentCommandBlocksUntilEnqueue(t *testing.T) {
	c := New(10, 100)
	done := make(chan *rpc.RpcCommand, 1)

	go func() {
		cmd, ok := c.GetCurrentCommand(-1)
		if ok {
			done <- cmd
		} else {
			done <- nil
		}
	}()

	time.Sleep(20 * time.Millisecond)
	cmd := rpc.NewRpcCommand(5, "Late", nil, rpc.RetryNone, 1000)
	if err := c.Enqueue(cmd); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	select {
	case got := <-done:
		if got != cmd {
			t.Fatalf("expected waiter to observe the newly enqueued command")
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never woke up after Enqueue")
	}
}

func TestGetCurrentCommandTimesOut(t *testing.T) {
	c := New(10, 100)
	_, ok := c.GetCurrentCommand(10 * time.Millisecond)
	if ok {
		t.Fatal("expected timeout with empty queue")
	}
}

func TestDedupCache(t *testing.T) {
	c := New(10, 100)
	result := rpc.NewSuccessResult(42, json.RawMessage(`"hi"`))
	c.CacheResult(result)

	got, ok := c.GetCachedResult(42)
	if !ok || got != result {
		t.Fatalf("expected cached result to be retrievable")
	}

	_, ok = c.GetCachedResult(43)
	if ok {
		t.Fatal("expected no cached result for unrelated ID")
	}
}

func TestRetryWhenOnlineReplacesPending(t *testing.T) {
	c := New(10, 100)
	first := rpc.NewRpcCommand(1, "Heartbeat", []json.RawMessage{json.RawMessage(`1`)}, rpc.RetryWhenOnline, 1000)
	second := rpc.NewRpcCommand(2, "Heartbeat", []json.RawMessage{json.RawMessage(`2`)}, rpc.RetryWhenOnline, 1000)

	if err := c.Enqueue(first); err != nil {
		t.Fatalf("Enqueue first failed: %v", err)
	}
	if err := c.Enqueue(second); err != nil {
		t.Fatalf("Enqueue second failed: %v", err)
	}

	if c.Len() != 1 {
		t.Fatalf("expected exactly one pending heartbeat, got %d", c.Len())
	}
	head, _ := c.GetCurrentCommand(0)
	if head.ID != 2 {
		t.Fatalf("expected the latest heartbeat to remain, got ID %d", head.ID)
	}
}

func TestCloseUnblocksWaiter(t *testing.T) {
	c := New(10, 100)
	done := make(chan bool, 1)
	go func() {
		_, ok := c.GetCurrentCommand(-1)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	c.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected GetCurrentCommand to report !ok after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock waiter")
	}
}
