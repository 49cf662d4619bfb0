// Package codec converts Platform messages between their structured and wire representations.
package codec

import "fmt"

type CodecType byte

const (
	CodecTypeJSON  CodecType = 0 // structured representation
	CodecTypeProto CodecType = 1 // protobuf wire representation
)

func (t CodecType) String() string {
	switch t {
	case CodecTypeJSON:
		return "json"
	case CodecTypeProto:
		return "proto"
	default:
		return fmt.Sprintf("CodecType(%d)", byte(t))
	}
}

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType
}

func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeJSON {
		return JSONCodec{}
	}

	return ProtoCodec{}
}

// ConversionError reports a message that could not be converted between representations.
type ConversionError struct {
	Op    string // "encode" or "decode"
	Codec CodecType
	Type  string // Go type of the message
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("codec: %s %s as %s: %v", e.Op, e.Type, e.Codec, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

func conversionError(op string, c CodecType, v any, err error) error {
	return &ConversionError{Op: op, Codec: c, Type: fmt.Sprintf("%T", v), Err: err}
}
