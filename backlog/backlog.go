// Package backlog implements the durable retry backlog of spec §4.6: a
// pluggable store that survives process restart and preserves per-peer
// enqueue order.
package backlog

import "relayrpc/rpc"

// Backlog is the durable retry store consulted by both engines.
type Backlog interface {
	// Enqueue records cmd for retry under peerID with the given strategy.
	// A RetryWhenOnline command replaces any earlier pending entry for the
	// same peer and method, per spec §4.6.
	Enqueue(peerID string, cmd *rpc.RpcCommand, strategy rpc.RetryStrategy) error

	// PeekAll returns every command backlogged for peerID, in enqueue
	// order, without removing them.
	PeekAll(peerID string) ([]*rpc.RpcCommand, error)

	// Remove drops cmd from peerID's backlog. It is a no-op if cmd is not
	// present.
	Remove(peerID string, cmd *rpc.RpcCommand) error
}

// ShouldRetry reports whether a command with the given strategy should be
// re-enqueued after a failure. RemoteException is never retried — the
// remote executed the command and decided it failed (spec §4.6, §7).
func ShouldRetry(strategy rpc.RetryStrategy, failure *rpc.RpcFailure) bool {
	if strategy == rpc.RetryNone || failure == nil {
		return false
	}
	if failure.Type == rpc.FailureRemoteException {
		return false
	}
	return failure.Type.IsRPCProblem()
}
