// Copyright 2025 Certen Protocol
//
// Streaming CBOR decode of the subset used by certificates and hash trees,
// built on github.com/fxamacker/cbor/v2. Decoded values are the dynamic
// shapes described in spec.md §4.3: maps, arrays, byte strings, text
// strings, and unsigned integers. The self-describing-CBOR prefix
// (0xd9d9f7) is stripped when present.

package cbor

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// selfDescribePrefix is the optional CBOR "self-describe" tag, byte-exact.
var selfDescribePrefix = []byte{0xd9, 0xd9, 0xf7}

// MalformedError is returned for any input the decoder cannot make sense
// of, wrapping the underlying library error with a protocol-level message.
type MalformedError struct {
	Message string
	Err     error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed cbor: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("malformed cbor: %s", e.Message)
}

func (e *MalformedError) Unwrap() error { return e.Err }

var decMode = func() cbor.DecMode {
	opts := cbor.DecOptions{
		DefaultMapType: mapType,
	}
	mode, err := opts.DecMode()
	if err != nil {
		panic(err) // fixed, valid options; cannot fail at init time
	}
	return mode
}()

// mapType pins decoded CBOR maps to map[string]interface{} rather than
// map[interface{}]interface{}, which is all the certificate/tree/witness
// grammar ever uses for map keys.
var mapType = reflect.TypeOf(map[string]interface{}(nil))

// DecodeAny decodes data into Go-native dynamic values:
//   - map[string]interface{} for CBOR maps
//   - []interface{} for CBOR arrays
//   - []byte for byte strings
//   - string for text strings
//   - uint64 for unsigned integers
//
// The optional self-describe prefix is stripped first.
func DecodeAny(data []byte) (interface{}, error) {
	data = stripSelfDescribe(data)
	if len(data) == 0 {
		return nil, &MalformedError{Message: "empty input"}
	}

	var v interface{}
	if err := decMode.Unmarshal(data, &v); err != nil {
		return nil, &MalformedError{Message: "unmarshal", Err: err}
	}
	return normalize(v)
}

func stripSelfDescribe(data []byte) []byte {
	if len(data) >= 3 && data[0] == selfDescribePrefix[0] && data[1] == selfDescribePrefix[1] && data[2] == selfDescribePrefix[2] {
		return data[3:]
	}
	return data
}

// normalize walks the decoded value tree coercing fxamacker/cbor's integer
// types (uint64/int64/uint8 etc, depending on magnitude) uniformly to
// uint64, which is the only integer width the certificate grammar uses.
func normalize(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, val := range x {
			nv, err := normalize(val)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, val := range x {
			nv, err := normalize(val)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	case []byte, string:
		return x, nil
	case uint64:
		return x, nil
	case int64:
		if x < 0 {
			return nil, &MalformedError{Message: "negative integers are not part of this grammar"}
		}
		return uint64(x), nil
	case uint8, uint16, uint32, int, int8, int16, int32:
		return toUint64(x)
	case nil:
		return nil, nil
	default:
		return nil, &MalformedError{Message: fmt.Sprintf("unsupported cbor value type %T", v)}
	}
}

func toUint64(v interface{}) (uint64, error) {
	switch x := v.(type) {
	case uint8:
		return uint64(x), nil
	case uint16:
		return uint64(x), nil
	case uint32:
		return uint64(x), nil
	case int:
		if x < 0 {
			return 0, errors.New("negative integer")
		}
		return uint64(x), nil
	case int8:
		if x < 0 {
			return 0, errors.New("negative integer")
		}
		return uint64(x), nil
	case int16:
		if x < 0 {
			return 0, errors.New("negative integer")
		}
		return uint64(x), nil
	case int32:
		if x < 0 {
			return 0, errors.New("negative integer")
		}
		return uint64(x), nil
	default:
		return 0, fmt.Errorf("not an integer: %T", v)
	}
}

// AsMap type-asserts a decoded map, erroring with field context on mismatch.
func AsMap(v interface{}, field string) (map[string]interface{}, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, &MalformedError{Message: fmt.Sprintf("%s: expected map, got %T", field, v)}
	}
	return m, nil
}

// AsArray type-asserts a decoded array.
func AsArray(v interface{}, field string) ([]interface{}, error) {
	a, ok := v.([]interface{})
	if !ok {
		return nil, &MalformedError{Message: fmt.Sprintf("%s: expected array, got %T", field, v)}
	}
	return a, nil
}

// AsBytes type-asserts a decoded byte string.
func AsBytes(v interface{}, field string) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, &MalformedError{Message: fmt.Sprintf("%s: expected byte string, got %T", field, v)}
	}
	return b, nil
}

// AsText type-asserts a decoded text string.
func AsText(v interface{}, field string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", &MalformedError{Message: fmt.Sprintf("%s: expected text string, got %T", field, v)}
	}
	return s, nil
}

// AsUint type-asserts a decoded unsigned integer.
func AsUint(v interface{}, field string) (uint64, error) {
	n, ok := v.(uint64)
	if !ok {
		return 0, &MalformedError{Message: fmt.Sprintf("%s: expected unsigned integer, got %T", field, v)}
	}
	return n, nil
}

// MapField looks up a required key, erroring with field context when absent.
func MapField(m map[string]interface{}, key string) (interface{}, error) {
	v, ok := m[key]
	if !ok {
		return nil, &MalformedError{Message: fmt.Sprintf("missing field %q", key)}
	}
	return v, nil
}
