package message

import (
	"errors"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrStartConflict is returned when a documents query sets both StartAfter and StartAt.
var ErrStartConflict = errors.New("message: startAfter and startAt are mutually exclusive")

// ErrInvalidUTF8 is returned when a string field does not hold valid UTF-8.
var ErrInvalidUTF8 = errors.New("message: string field contains invalid UTF-8")

// codeInvalidUTF8 is reported by consumeString in place of a byte count.
// protowire error codes are small negatives, so it cannot collide.
const codeInvalidUTF8 = -1000

// Field numbers follow platform.proto.
const (
	fieldFirst protowire.Number = 1

	fieldDocumentType protowire.Number = 2
	fieldWhere        protowire.Number = 3
	fieldOrderBy      protowire.Number = 4
	fieldLimit        protowire.Number = 5
	fieldStartAfter   protowire.Number = 6
	fieldStartAt      protowire.Number = 7
)

// proto3 scalar encoding: zero values are omitted.

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendUint32(b []byte, num protowire.Number, v uint32) []byte {
	if v == 0 {
		return b
	}
	return appendOneofUint32(b, num, v)
}

// appendOneofUint32 always writes the field: oneof members have explicit presence.
func appendOneofUint32(b []byte, num protowire.Number, v uint32) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

// visitFunc decodes the value of one field from b. It reports how many bytes it
// consumed, or known=false to have the field skipped as unknown.
type visitFunc func(num protowire.Number, typ protowire.Type, b []byte) (n int, known bool)

func walk(b []byte, visit visitFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, known := visit(num, typ, b)
		if !known {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m == codeInvalidUTF8 {
			return ErrInvalidUTF8
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}

func consumeBytes(typ protowire.Type, b []byte, dst *[]byte) (int, bool) {
	if typ != protowire.BytesType {
		return 0, false
	}
	v, n := protowire.ConsumeBytes(b)
	if n >= 0 {
		*dst = append([]byte(nil), v...)
	}
	return n, true
}

func consumeString(typ protowire.Type, b []byte, dst *string) (int, bool) {
	if typ != protowire.BytesType {
		return 0, false
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return n, true
	}
	if !utf8.ValidString(v) {
		return codeInvalidUTF8, true
	}
	*dst = v
	return n, true
}

func consumeUint32(typ protowire.Type, b []byte, dst *uint32) (int, bool) {
	if typ != protowire.VarintType {
		return 0, false
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = uint32(v)
	}
	return n, true
}

func (m *ApplyStateTransitionRequest) MarshalWire() ([]byte, error) {
	return appendBytes(nil, fieldFirst, m.StateTransition), nil
}

func (m *ApplyStateTransitionRequest) UnmarshalWire(b []byte) error {
	*m = ApplyStateTransitionRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool) {
		if num == fieldFirst {
			return consumeBytes(typ, b, &m.StateTransition)
		}
		return 0, false
	})
}

func (m *ApplyStateTransitionResponse) MarshalWire() ([]byte, error) {
	return nil, nil
}

func (m *ApplyStateTransitionResponse) UnmarshalWire(b []byte) error {
	*m = ApplyStateTransitionResponse{}
	return walk(b, func(protowire.Number, protowire.Type, []byte) (int, bool) {
		return 0, false
	})
}

func (m *GetIdentityRequest) MarshalWire() ([]byte, error) {
	return appendString(nil, fieldFirst, m.Id), nil
}

func (m *GetIdentityRequest) UnmarshalWire(b []byte) error {
	*m = GetIdentityRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool) {
		if num == fieldFirst {
			return consumeString(typ, b, &m.Id)
		}
		return 0, false
	})
}

func (m *GetIdentityResponse) MarshalWire() ([]byte, error) {
	return appendBytes(nil, fieldFirst, m.Identity), nil
}

func (m *GetIdentityResponse) UnmarshalWire(b []byte) error {
	*m = GetIdentityResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool) {
		if num == fieldFirst {
			return consumeBytes(typ, b, &m.Identity)
		}
		return 0, false
	})
}

func (m *GetDataContractRequest) MarshalWire() ([]byte, error) {
	return appendString(nil, fieldFirst, m.Id), nil
}

func (m *GetDataContractRequest) UnmarshalWire(b []byte) error {
	*m = GetDataContractRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool) {
		if num == fieldFirst {
			return consumeString(typ, b, &m.Id)
		}
		return 0, false
	})
}

func (m *GetDataContractResponse) MarshalWire() ([]byte, error) {
	return appendBytes(nil, fieldFirst, m.DataContract), nil
}

func (m *GetDataContractResponse) UnmarshalWire(b []byte) error {
	*m = GetDataContractResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool) {
		if num == fieldFirst {
			return consumeBytes(typ, b, &m.DataContract)
		}
		return 0, false
	})
}

func (m *GetDocumentsRequest) MarshalWire() ([]byte, error) {
	if m.StartAfter != nil && m.StartAt != nil {
		return nil, ErrStartConflict
	}
	var b []byte
	b = appendString(b, fieldFirst, m.DataContractId)
	b = appendString(b, fieldDocumentType, m.DocumentType)
	b = appendBytes(b, fieldWhere, m.Where)
	b = appendBytes(b, fieldOrderBy, m.OrderBy)
	b = appendUint32(b, fieldLimit, m.Limit)
	if m.StartAfter != nil {
		b = appendOneofUint32(b, fieldStartAfter, *m.StartAfter)
	}
	if m.StartAt != nil {
		b = appendOneofUint32(b, fieldStartAt, *m.StartAt)
	}
	return b, nil
}

func (m *GetDocumentsRequest) UnmarshalWire(b []byte) error {
	*m = GetDocumentsRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool) {
		switch num {
		case fieldFirst:
			return consumeString(typ, b, &m.DataContractId)
		case fieldDocumentType:
			return consumeString(typ, b, &m.DocumentType)
		case fieldWhere:
			return consumeBytes(typ, b, &m.Where)
		case fieldOrderBy:
			return consumeBytes(typ, b, &m.OrderBy)
		case fieldLimit:
			return consumeUint32(typ, b, &m.Limit)
		case fieldStartAfter, fieldStartAt:
			// Last oneof member on the wire wins.
			var v uint32
			n, known := consumeUint32(typ, b, &v)
			if known && n >= 0 {
				if num == fieldStartAfter {
					m.StartAfter, m.StartAt = &v, nil
				} else {
					m.StartAt, m.StartAfter = &v, nil
				}
			}
			return n, known
		}
		return 0, false
	})
}

func (m *GetDocumentsResponse) MarshalWire() ([]byte, error) {
	var b []byte
	for _, doc := range m.Documents {
		// repeated elements are written even when empty
		b = protowire.AppendTag(b, fieldFirst, protowire.BytesType)
		b = protowire.AppendBytes(b, doc)
	}
	return b, nil
}

func (m *GetDocumentsResponse) UnmarshalWire(b []byte) error {
	*m = GetDocumentsResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool) {
		if num != fieldFirst {
			return 0, false
		}
		if typ != protowire.BytesType {
			return 0, false
		}
		v, n := protowire.ConsumeBytes(b)
		if n >= 0 {
			// an empty element stays a non-nil empty document
			m.Documents = append(m.Documents, append([]byte{}, v...))
		}
		return n, true
	})
}

func (m *GetIdentityByFirstPublicKeyRequest) MarshalWire() ([]byte, error) {
	return appendBytes(nil, fieldFirst, m.PublicKeyHash), nil
}

func (m *GetIdentityByFirstPublicKeyRequest) UnmarshalWire(b []byte) error {
	*m = GetIdentityByFirstPublicKeyRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool) {
		if num == fieldFirst {
			return consumeBytes(typ, b, &m.PublicKeyHash)
		}
		return 0, false
	})
}

func (m *GetIdentityByFirstPublicKeyResponse) MarshalWire() ([]byte, error) {
	return appendBytes(nil, fieldFirst, m.Identity), nil
}

func (m *GetIdentityByFirstPublicKeyResponse) UnmarshalWire(b []byte) error {
	*m = GetIdentityByFirstPublicKeyResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool) {
		if num == fieldFirst {
			return consumeBytes(typ, b, &m.Identity)
		}
		return 0, false
	})
}

func (m *GetIdentityIdByFirstPublicKeyRequest) MarshalWire() ([]byte, error) {
	return appendBytes(nil, fieldFirst, m.PublicKeyHash), nil
}

func (m *GetIdentityIdByFirstPublicKeyRequest) UnmarshalWire(b []byte) error {
	*m = GetIdentityIdByFirstPublicKeyRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool) {
		if num == fieldFirst {
			return consumeBytes(typ, b, &m.PublicKeyHash)
		}
		return 0, false
	})
}

func (m *GetIdentityIdByFirstPublicKeyResponse) MarshalWire() ([]byte, error) {
	return appendString(nil, fieldFirst, m.Id), nil
}

func (m *GetIdentityIdByFirstPublicKeyResponse) UnmarshalWire(b []byte) error {
	*m = GetIdentityIdByFirstPublicKeyResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool) {
		if num == fieldFirst {
			return consumeString(typ, b, &m.Id)
		}
		return 0, false
	})
}
