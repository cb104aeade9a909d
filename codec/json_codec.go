package codec

import "encoding/json"

// JSONCodec uses the standard library's encoding/json, exactly as the
// teacher's codec.JSONCodec does. It is the codec the engines use on the
// wire, since spec §6 fixes the wire protocol as JSON over HTTP.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
