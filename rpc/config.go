package rpc

// Tunable constants from spec §6, as defaults rather than process-wide
// globals (spec §9 "global mutable defaults ... should become fields of an
// engine-configuration value passed at Start").
const (
	DefaultLongPollMs         = 90_000
	DefaultQueueBound         = 10
	DefaultResultCacheSize    = 100
	DefaultTransportBackoffMs = 1_000
)

// RpcClientConfig is immutable once passed to a client engine's Start.
type RpcClientConfig struct {
	ClientID         string
	ServerBaseURL    string
	DefaultTimeoutMs int
	QueueBound       int
	ResultCacheSize  int
	LongPollMs       int
}

func (c RpcClientConfig) withDefaults() RpcClientConfig {
	if c.DefaultTimeoutMs <= 0 {
		c.DefaultTimeoutMs = DefaultTimeoutMs
	}
	if c.QueueBound <= 0 {
		c.QueueBound = DefaultQueueBound
	}
	if c.ResultCacheSize <= 0 {
		c.ResultCacheSize = DefaultResultCacheSize
	}
	if c.LongPollMs <= 0 {
		c.LongPollMs = DefaultLongPollMs
	}
	return c
}

// WithDefaults returns a copy of c with zero fields replaced by the
// package defaults.
func (c RpcClientConfig) WithDefaults() RpcClientConfig { return c.withDefaults() }

// RpcServerConfig configures the server engine. Unlike RpcClientConfig it
// has no single peer — QueueBound and ResultCacheSize apply per client
// PeerCache, created lazily on first contact.
type RpcServerConfig struct {
	DefaultTimeoutMs int
	QueueBound       int
	ResultCacheSize  int
	LongPollMs       int
}

func (c RpcServerConfig) WithDefaults() RpcServerConfig {
	if c.DefaultTimeoutMs <= 0 {
		c.DefaultTimeoutMs = DefaultTimeoutMs
	}
	if c.QueueBound <= 0 {
		c.QueueBound = DefaultQueueBound
	}
	if c.ResultCacheSize <= 0 {
		c.ResultCacheSize = DefaultResultCacheSize
	}
	if c.LongPollMs <= 0 {
		c.LongPollMs = DefaultLongPollMs
	}
	return c
}
