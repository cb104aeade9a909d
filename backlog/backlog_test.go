package backlog

import (
	"testing"

	"relayrpc/rpc"
)

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		name     string
		strategy rpc.RetryStrategy
		failure  *rpc.RpcFailure
		want     bool
	}{
		{"none never retries", rpc.RetryNone, &rpc.RpcFailure{Type: rpc.FailureTimeout}, false},
		{"retry on timeout", rpc.RetryRetry, &rpc.RpcFailure{Type: rpc.FailureTimeout}, true},
		{"retry on network problem", rpc.RetryRetry, &rpc.RpcFailure{Type: rpc.FailureNetworkProblem}, true},
		{"retry on queue overflow", rpc.RetryRetry, &rpc.RpcFailure{Type: rpc.FailureQueueOverflow}, true},
		{"retry skips remote exception", rpc.RetryRetry, &rpc.RpcFailure{Type: rpc.FailureRemoteException}, false},
		{"retry when online also skips remote exception", rpc.RetryWhenOnline, &rpc.RpcFailure{Type: rpc.FailureRemoteException}, false},
		{"nil failure never retries", rpc.RetryRetry, nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ShouldRetry(tc.strategy, tc.failure)
			if got != tc.want {
				t.Errorf("ShouldRetry(%s, %v) = %v, want %v", tc.strategy, tc.failure, got, tc.want)
			}
		})
	}
}
