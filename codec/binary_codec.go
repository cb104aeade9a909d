package codec

import (
	"encoding/binary"
	"encoding/json"
	"errors"

	"relayrpc/rpc"
)

// BinaryCodec is a length-prefixed binary encoding for *rpc.RpcCommand,
// adapted from the teacher's codec.BinaryCodec (BX-D-mini-RPC/codec/
// binary_codec.go), which framed a message.RPCMessage the same way. It
// backs backlog.MemoryBacklog's optional file snapshot, where a compact
// record is more useful than JSON's self-describing overhead.
type BinaryCodec struct{}

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	cmd, ok := v.(*rpc.RpcCommand)
	if !ok {
		return nil, errors.New("BinaryCodec: v must be *rpc.RpcCommand")
	}

	params, err := json.Marshal(cmd.MethodParameters)
	if err != nil {
		return nil, err
	}

	total := 8 + 2 + len(cmd.MethodName) + 1 + len(cmd.RetryStrategy) + 4 + 4 + len(params)
	buf := make([]byte, total)
	offset := 0

	binary.BigEndian.PutUint64(buf[offset:offset+8], uint64(cmd.ID))
	offset += 8

	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(cmd.MethodName)))
	offset += 2
	copy(buf[offset:offset+len(cmd.MethodName)], cmd.MethodName)
	offset += len(cmd.MethodName)

	buf[offset] = byte(len(cmd.RetryStrategy))
	offset++
	copy(buf[offset:offset+len(cmd.RetryStrategy)], string(cmd.RetryStrategy))
	offset += len(cmd.RetryStrategy)

	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(cmd.TimeoutMs))
	offset += 4

	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(params)))
	offset += 4
	copy(buf[offset:offset+len(params)], params)

	return buf, nil
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	cmd, ok := v.(*rpc.RpcCommand)
	if !ok {
		return errors.New("BinaryCodec: v must be *rpc.RpcCommand")
	}

	offset := 0

	cmd.ID = int64(binary.BigEndian.Uint64(data[offset : offset+8]))
	offset += 8

	nameLen := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2
	cmd.MethodName = string(data[offset : offset+int(nameLen)])
	offset += int(nameLen)

	strategyLen := int(data[offset])
	offset++
	cmd.RetryStrategy = rpc.RetryStrategy(data[offset : offset+strategyLen])
	offset += strategyLen

	cmd.TimeoutMs = int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4

	paramsLen := binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	var params []json.RawMessage
	if err := json.Unmarshal(data[offset:offset+int(paramsLen)], &params); err != nil {
		return err
	}
	cmd.MethodParameters = params

	return nil
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}
