// This file adapts the teacher's etcd-backed registry
// (BX-D-mini-RPC/registry/etcd_registry.go) from a service-discovery
// phonebook into a durable command backlog: the same client, the same
// Put/Get/Delete verbs, but no lease/KeepAlive — backlog entries are not
// TTL'd, they live until Remove is called.
package backlog

import (
	"context"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"

	"relayrpc/codec"
	"relayrpc/rpc"
)

// EtcdBacklog implements Backlog on top of etcd v3, keyed so that
// clientv3's lexicographic range scan returns each peer's commands in
// enqueue order.
//
//	Key:   /relayrpc/backlog/{peerID}/{ID, zero-padded to 20 digits}
//	Value: JSON-encoded RpcCommand
type EtcdBacklog struct {
	client *clientv3.Client
	codec  codec.Codec
}

func NewEtcdBacklog(endpoints []string) (*EtcdBacklog, error) {
	c, err := clientv3.New(clientv3.Config{Endpoints: endpoints})
	if err != nil {
		return nil, err
	}
	return &EtcdBacklog{client: c, codec: codec.GetCodec(codec.CodecTypeJSON)}, nil
}

func backlogKey(peerID string, id int64) string {
	return fmt.Sprintf("/relayrpc/backlog/%s/%020d", peerID, id)
}

func backlogPrefix(peerID string) string {
	return fmt.Sprintf("/relayrpc/backlog/%s/", peerID)
}

func (b *EtcdBacklog) Enqueue(peerID string, cmd *rpc.RpcCommand, strategy rpc.RetryStrategy) error {
	ctx := context.Background()
	cmd.RetryStrategy = strategy

	if strategy == rpc.RetryWhenOnline {
		existing, err := b.PeekAll(peerID)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.MethodName == cmd.MethodName {
				if err := b.Remove(peerID, e); err != nil {
					return err
				}
			}
		}
	}

	data, err := b.codec.Encode(cmd)
	if err != nil {
		return err
	}

	_, err = b.client.Put(ctx, backlogKey(peerID, cmd.ID), string(data))
	return err
}

func (b *EtcdBacklog) PeekAll(peerID string) ([]*rpc.RpcCommand, error) {
	ctx := context.Background()
	resp, err := b.client.Get(ctx, backlogPrefix(peerID),
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, err
	}

	out := make([]*rpc.RpcCommand, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var cmd rpc.RpcCommand
		if err := b.codec.Decode(kv.Value, &cmd); err != nil {
			return nil, err
		}
		out = append(out, &cmd)
	}
	return out, nil
}

func (b *EtcdBacklog) Remove(peerID string, cmd *rpc.RpcCommand) error {
	ctx := context.Background()
	_, err := b.client.Delete(ctx, backlogKey(peerID, cmd.ID))
	return err
}

// Close releases the underlying etcd client connection.
func (b *EtcdBacklog) Close() error {
	return b.client.Close()
}
