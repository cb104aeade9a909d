// Package codec provides the pluggable wire/storage encoders used by this
// module, mirroring the teacher's codec.Codec abstraction
// (BX-D-mini-RPC/codec/codec.go) almost verbatim — only the concrete types
// it encodes have changed, from message.RPCMessage to the rpc package's
// command and result types.
package codec

type CodecType byte

const (
	CodecTypeJSON   CodecType = 0
	CodecTypeBinary CodecType = 1
)

// Codec encodes and decodes a single value. The /push and /pull endpoints
// use CodecTypeJSON (spec §6's wire protocol is JSON over HTTP); the
// file-backed backlog snapshot uses CodecTypeBinary for a smaller,
// allocation-light on-disk record.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType
}

func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeBinary {
		return &BinaryCodec{}
	}
	return &JSONCodec{}
}
