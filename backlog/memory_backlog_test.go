package backlog

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"relayrpc/rpc"
)

func TestMemoryBacklogOrderPreserved(t *testing.T) {
	b := NewMemoryBacklog()
	c1 := rpc.NewRpcCommand(1, "A", nil, rpc.RetryRetry, 1000)
	c2 := rpc.NewRpcCommand(2, "B", nil, rpc.RetryRetry, 1000)

	if err := b.Enqueue("client-1", c1, rpc.RetryRetry); err != nil {
		t.Fatal(err)
	}
	if err := b.Enqueue("client-1", c2, rpc.RetryRetry); err != nil {
		t.Fatal(err)
	}

	got, err := b.PeekAll("client-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("expected order [1,2], got %v", got)
	}
}

func TestMemoryBacklogRetryWhenOnlineLatestWins(t *testing.T) {
	b := NewMemoryBacklog()
	for i := int64(1); i <= 10; i++ {
		cmd := rpc.NewRpcCommand(i, "Heartbeat", []json.RawMessage{json.RawMessage("1")}, rpc.RetryWhenOnline, 1000)
		if err := b.Enqueue("client-1", cmd, rpc.RetryWhenOnline); err != nil {
			t.Fatal(err)
		}
	}

	got, err := b.PeekAll("client-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly one backlogged heartbeat, got %d", len(got))
	}
	if got[0].ID != 10 {
		t.Fatalf("expected the last heartbeat (ID 10) to remain, got %d", got[0].ID)
	}
}

func TestMemoryBacklogRemove(t *testing.T) {
	b := NewMemoryBacklog()
	cmd := rpc.NewRpcCommand(1, "A", nil, rpc.RetryRetry, 1000)
	b.Enqueue("p", cmd, rpc.RetryRetry)

	if err := b.Remove("p", cmd); err != nil {
		t.Fatal(err)
	}

	got, _ := b.PeekAll("p")
	if len(got) != 0 {
		t.Fatalf("expected backlog empty after Remove, got %d entries", len(got))
	}
}

func TestMemoryBacklogSnapshotRoundTrip(t *testing.T) {
	b := NewMemoryBacklog()
	b.Enqueue("client-1", rpc.NewRpcCommand(1, "A", []json.RawMessage{json.RawMessage("1")}, rpc.RetryRetry, 1000), rpc.RetryRetry)
	b.Enqueue("client-2", rpc.NewRpcCommand(2, "B", nil, rpc.RetryNone, 2000), rpc.RetryNone)

	path := filepath.Join(t.TempDir(), "backlog.bin")
	if err := b.SaveSnapshot(path); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	restored := NewMemoryBacklog()
	if err := restored.LoadSnapshot(path); err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	got1, _ := restored.PeekAll("client-1")
	if len(got1) != 1 || got1[0].MethodName != "A" {
		t.Fatalf("expected client-1 to have command A restored, got %v", got1)
	}
	got2, _ := restored.PeekAll("client-2")
	if len(got2) != 1 || got2[0].MethodName != "B" {
		t.Fatalf("expected client-2 to have command B restored, got %v", got2)
	}
}

func TestMemoryBacklogLoadMissingFileIsNoop(t *testing.T) {
	b := NewMemoryBacklog()
	if err := b.LoadSnapshot(filepath.Join(t.TempDir(), "missing.bin")); err != nil {
		t.Fatalf("expected no error loading a missing snapshot, got %v", err)
	}
}

