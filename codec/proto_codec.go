package codec

import (
	"errors"

	"dapi-grpc/message"
)

var errNotWireMessage = errors.New("value does not implement message.WireMessage")

// ProtoCodec converts messages to and from protobuf binary.
// v must implement message.WireMessage.
type ProtoCodec struct{}

func (ProtoCodec) Encode(v any) ([]byte, error) {
	msg, ok := v.(message.WireMessage)
	if !ok {
		return nil, conversionError("encode", CodecTypeProto, v, errNotWireMessage)
	}
	data, err := msg.MarshalWire()
	if err != nil {
		return nil, conversionError("encode", CodecTypeProto, v, err)
	}
	return data, nil
}

func (ProtoCodec) Decode(data []byte, v any) error {
	msg, ok := v.(message.WireMessage)
	if !ok {
		return conversionError("decode", CodecTypeProto, v, errNotWireMessage)
	}
	if err := msg.UnmarshalWire(data); err != nil {
		return conversionError("decode", CodecTypeProto, v, err)
	}
	return nil
}

func (ProtoCodec) Type() CodecType {
	return CodecTypeProto
}
