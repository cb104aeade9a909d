// Package peer implements the per-peer Peer Cache of spec §4.1: a bounded
// outbound command queue plus a bounded LRU of recent results, one instance
// per remote peer (the server, from a client's view; a specific client,
// from the server's view).
//
// The queue and the result cache share one mutex. The teacher protects its
// shared connection-multiplexing state the same way (transport's `sending`
// mutex guards writes; `pending` is a sync.Map for the read side) — here
// queue and cache are read and written together often enough that one
// mutex is simpler than two, and neither operation blocks for long.
package peer

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"relayrpc/rpc"
)

// Cache is the Peer Cache for one remote peer.
type Cache struct {
	mu      sync.Mutex
	queue   []*rpc.RpcCommand
	bound   int
	notify  chan struct{}
	closed  bool
	results *lru.Cache
}

// New creates a Peer Cache with the given queue bound and result-cache
// capacity (spec §3's recommended N). A non-positive bound or size falls
// back to the spec defaults.
//
// The result cache evicts by count, not age: once resultCacheSize newer
// results have been cached, a duplicate delivery of an older command is
// executed again. Under high bidirectional load resultCacheSize therefore
// needs to be at least the number of concurrently outstanding commands.
func New(queueBound, resultCacheSize int) *Cache {
	if queueBound <= 0 {
		queueBound = rpc.DefaultQueueBound
	}
	if resultCacheSize <= 0 {
		resultCacheSize = rpc.DefaultResultCacheSize
	}
	results, err := lru.New(resultCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which we just guarded.
		panic(err)
	}
	return &Cache{
		queue:   make([]*rpc.RpcCommand, 0, queueBound),
		bound:   queueBound,
		notify:  make(chan struct{}),
		results: results,
	}
}

// Enqueue appends cmd to the FIFO and wakes any blocked GetCurrentCommand
// call. It fails with QueueOverflow once the queue is at its bound.
//
// RetryWhenOnline commands are the one exception to append-only FIFO order:
// if an earlier, still-pending (not yet Sent) command for the same method
// carries the same strategy, the new command replaces it in place rather
// than appending — latest-writer-wins, per spec §4.6's heartbeat use case.
func (c *Cache) Enqueue(cmd *rpc.RpcCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return rpc.NewRpcError(rpc.FailureOther, "peer cache closed")
	}

	if cmd.RetryStrategy == rpc.RetryWhenOnline {
		for i, pending := range c.queue {
			if pending.MethodName == cmd.MethodName && pending.RetryStrategy == rpc.RetryWhenOnline && pending.State() != rpc.StateSent {
				c.queue[i] = cmd
				c.wake()
				return nil
			}
		}
	}

	if len(c.queue) >= c.bound {
		return rpc.NewRpcError(rpc.FailureQueueOverflow, "peer queue is full")
	}

	c.queue = append(c.queue, cmd)
	c.wake()
	return nil
}

func (c *Cache) wake() {
	close(c.notify)
	c.notify = make(chan struct{})
}

// GetCurrentCommand returns the head of the queue without dequeuing it,
// blocking up to timeout (negative means forever) until one is available.
// Returning rather than popping the head keeps the command visible to a
// /pull retry that lost its response to a network failure (spec §4.1).
func (c *Cache) GetCurrentCommand(timeout time.Duration) (*rpc.RpcCommand, bool) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, false
		}
		if len(c.queue) > 0 {
			head := c.queue[0]
			c.mu.Unlock()
			return head, true
		}
		wait := c.notify
		c.mu.Unlock()

		if timeout < 0 {
			<-wait
			continue
		}

		timer := time.NewTimer(timeout)
		select {
		case <-wait:
			timer.Stop()
			continue
		case <-timer.C:
			return nil, false
		}
	}
}

// FinishCurrentCommand pops the head. It is a no-op if the head has already
// changed, which defensively tolerates a stale caller racing a concurrent
// Enqueue/FinishCurrentCommand pair.
func (c *Cache) FinishCurrentCommand(cmd *rpc.RpcCommand) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 || c.queue[0] != cmd {
		return
	}
	c.queue = c.queue[1:]
}

// CacheResult inserts result into the dedup LRU, evicting the oldest entry
// past capacity.
func (c *Cache) CacheResult(result *rpc.RpcCommandResult) {
	c.results.Add(result.ID, result)
}

// GetCachedResult returns a previously cached result for id, if it is
// still in the LRU.
func (c *Cache) GetCachedResult(id int64) (*rpc.RpcCommandResult, bool) {
	v, ok := c.results.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*rpc.RpcCommandResult), true
}

// Close unblocks any GetCurrentCommand(-1) waiter and makes future calls
// return immediately. Used by engine shutdown.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.notify)
}

// Len reports the current queue depth, mainly for tests and metrics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}
