package backlog

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"relayrpc/codec"
	"relayrpc/rpc"
)

// MemoryBacklog is a process-local Backlog. It does not survive a
// restart by itself — it exists for tests and for hosts that accept
// losing in-flight retries on crash — but it preserves per-peer enqueue
// order. A RetryWhenOnline command that replaces an earlier entry takes
// that entry's position, whereas backlog.EtcdBacklog orders entries by
// command ID, so there the replacement sorts after older entries.
type MemoryBacklog struct {
	mu      sync.Mutex
	entries map[string][]*rpc.RpcCommand
}

func NewMemoryBacklog() *MemoryBacklog {
	return &MemoryBacklog{entries: make(map[string][]*rpc.RpcCommand)}
}

func (b *MemoryBacklog) Enqueue(peerID string, cmd *rpc.RpcCommand, strategy rpc.RetryStrategy) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cmd.RetryStrategy = strategy

	if strategy == rpc.RetryWhenOnline {
		existing := b.entries[peerID]
		for i, e := range existing {
			if e.MethodName == cmd.MethodName {
				existing[i] = cmd
				return nil
			}
		}
	}

	b.entries[peerID] = append(b.entries[peerID], cmd)
	return nil
}

func (b *MemoryBacklog) PeekAll(peerID string) ([]*rpc.RpcCommand, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*rpc.RpcCommand, len(b.entries[peerID]))
	copy(out, b.entries[peerID])
	return out, nil
}

func (b *MemoryBacklog) Remove(peerID string, cmd *rpc.RpcCommand) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing := b.entries[peerID]
	for i, e := range existing {
		if e.ID == cmd.ID {
			b.entries[peerID] = append(existing[:i], existing[i+1:]...)
			return nil
		}
	}
	return nil
}

// SaveSnapshot writes every peer's backlog to path using the binary
// codec, one peerID-prefixed record per command, each preceded by its own
// length so the file can be streamed back with LoadSnapshot. This is the
// one place codec.BinaryCodec gets exercised outside its own test — a
// restart-friendly escape hatch for hosts that run MemoryBacklog without
// etcd.
func (b *MemoryBacklog) SaveSnapshot(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bc := codec.GetCodec(codec.CodecTypeBinary)
	for peerID, cmds := range b.entries {
		for _, cmd := range cmds {
			body, err := bc.Encode(cmd)
			if err != nil {
				return err
			}
			if err := writeSnapshotRecord(f, peerID, body); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadSnapshot replaces the backlog's contents with what was saved by
// SaveSnapshot.
func (b *MemoryBacklog) LoadSnapshot(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	bc := codec.GetCodec(codec.CodecTypeBinary)
	entries := make(map[string][]*rpc.RpcCommand)
	for {
		peerID, body, err := readSnapshotRecord(f)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		var cmd rpc.RpcCommand
		if err := bc.Decode(body, &cmd); err != nil {
			return err
		}
		entries[peerID] = append(entries[peerID], &cmd)
	}

	b.mu.Lock()
	b.entries = entries
	b.mu.Unlock()
	return nil
}

func writeSnapshotRecord(w io.Writer, peerID string, body []byte) error {
	header := make([]byte, 2+len(peerID)+4)
	binary.BigEndian.PutUint16(header[0:2], uint16(len(peerID)))
	copy(header[2:2+len(peerID)], peerID)
	binary.BigEndian.PutUint32(header[2+len(peerID):], uint32(len(body)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

func readSnapshotRecord(r io.Reader) (peerID string, body []byte, err error) {
	var peerLenBuf [2]byte
	if _, err := io.ReadFull(r, peerLenBuf[:]); err != nil {
		return "", nil, err
	}
	peerLen := binary.BigEndian.Uint16(peerLenBuf[:])

	peerBuf := make([]byte, peerLen)
	if _, err := io.ReadFull(r, peerBuf); err != nil {
		return "", nil, fmt.Errorf("reading peer id: %w", err)
	}

	var bodyLenBuf [4]byte
	if _, err := io.ReadFull(r, bodyLenBuf[:]); err != nil {
		return "", nil, fmt.Errorf("reading record length: %w", err)
	}
	bodyLen := binary.BigEndian.Uint32(bodyLenBuf[:])

	body = make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return "", nil, fmt.Errorf("reading record body: %w", err)
	}

	return string(peerBuf), body, nil
}
