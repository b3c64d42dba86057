// Copyright 2025 Certen Protocol

package verifyv2

import "github.com/certen/http-certification-core/internal/verifyerr"

// decodeULEB128 decodes an unsigned LEB128 integer, per spec.md §6. Used
// for the certificate tree's "time" leaf (nanoseconds).
func decodeULEB128(b []byte) (uint64, error) {
	var result uint64
	var shift uint
	for i, by := range b {
		if shift >= 64 {
			return 0, verifyerr.New(verifyerr.KindTimeDecodingFailed, 2, "leb128: value too large")
		}
		result |= uint64(by&0x7f) << shift
		if by&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if i == len(b)-1 {
			return 0, verifyerr.New(verifyerr.KindTimeDecodingFailed, 2, "leb128: truncated")
		}
	}
	return 0, verifyerr.New(verifyerr.KindTimeDecodingFailed, 2, "leb128: empty input")
}
