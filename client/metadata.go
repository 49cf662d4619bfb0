package client

import (
	"reflect"
	"sort"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Metadata holds out-of-band headers sent with a call. Keys are case-insensitive
// and sent in lower case.
type Metadata map[string]string

// Validate reports header keys and values gRPC cannot carry as codes.InvalidArgument.
func (md Metadata) Validate() error {
	for k, v := range md {
		key := strings.ToLower(k)
		if key == "" {
			return status.Error(codes.InvalidArgument, "metadata key must not be empty")
		}
		if strings.HasPrefix(key, "grpc-") {
			return status.Errorf(codes.InvalidArgument, "metadata key %q is reserved", k)
		}
		for i := 0; i < len(key); i++ {
			if !validKeyByte(key[i]) {
				return status.Errorf(codes.InvalidArgument, "metadata key %q contains illegal character %q", k, key[i])
			}
		}
		if strings.HasSuffix(key, "-bin") {
			continue
		}
		for i := 0; i < len(v); i++ {
			if v[i] < 0x20 || v[i] > 0x7e {
				return status.Errorf(codes.InvalidArgument, "metadata value for %q contains non-printable character", k)
			}
		}
	}
	return nil
}

func validKeyByte(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c == '-' || c == '_' || c == '.'
}

func (md Metadata) merge(other Metadata) Metadata {
	if len(other) == 0 {
		return md
	}
	if md == nil {
		md = make(Metadata, len(other))
	}
	for k, v := range other {
		md[k] = v
	}
	return md
}

// pairs flattens md into sorted key/value pairs for metadata.AppendToOutgoingContext.
func (md Metadata) pairs() []string {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kv := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		kv = append(kv, k, md[k])
	}
	return kv
}

// IsObject reports whether v is a key/value mapping with string keys.
// Slices, arrays, scalars and nil are not.
func IsObject(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	return rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
}

// MetadataFromObject converts a decoded object into Metadata. Values must be strings,
// or []byte for keys ending in "-bin".
func MetadataFromObject(v any) (Metadata, error) {
	if !IsObject(v) {
		return nil, status.Error(codes.InvalidArgument, "metadata must be an object")
	}
	if md, ok := v.(Metadata); ok {
		return md, nil
	}
	if m, ok := v.(map[string]string); ok {
		return Metadata(m), nil
	}

	rv := reflect.Indirect(reflect.ValueOf(v))
	md := make(Metadata, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key := iter.Key().String()
		switch val := iter.Value().Interface().(type) {
		case string:
			md[key] = val
		case []byte:
			md[key] = string(val)
		default:
			return nil, status.Errorf(codes.InvalidArgument, "metadata value for %q must be a string, got %T", key, val)
		}
	}
	return md, nil
}
