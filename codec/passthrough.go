package codec

import "fmt"

// PassThroughCodec hands already-encoded bytes to gRPC and back without touching them.
// It satisfies google.golang.org/grpc/encoding.Codec; senders and receivers are *[]byte.
type PassThroughCodec struct{}

func (PassThroughCodec) Marshal(v any) ([]byte, error) {
	bs, ok := v.(*[]byte)
	if !ok {
		return nil, fmt.Errorf("expected sender of type *[]byte but got %T", v)
	}
	return *bs, nil
}

func (PassThroughCodec) Unmarshal(data []byte, v any) error {
	bs, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("expected receiver of type *[]byte but got %T", v)
	}
	// gRPC may reuse data after Unmarshal returns
	*bs = append([]byte(nil), data...)
	return nil
}

func (PassThroughCodec) Name() string {
	return "raw"
}
