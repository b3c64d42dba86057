// Copyright 2025 Certen Protocol

package cbor

import "github.com/fxamacker/cbor/v2"

var encMode = func() cbor.EncMode {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// Encode serializes a Go value (map[string]interface{}, []interface{},
// []byte, string, uint64) to canonical CBOR.
func Encode(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}
