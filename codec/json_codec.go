package codec

import (
	"encoding/json"
)

// JSONCodec renders the structured representation of a message.
// Bytes fields appear base64-encoded, matching the protobuf JSON mapping.
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, conversionError("encode", CodecTypeJSON, v, err)
	}
	return data, nil
}

func (JSONCodec) Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return conversionError("decode", CodecTypeJSON, v, err)
	}
	return nil
}

func (JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
