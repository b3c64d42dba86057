// Copyright 2025 Certen Protocol

package blsverify

import (
	"fmt"

	icbor "github.com/certen/http-certification-core/internal/cbor"
	"github.com/certen/http-certification-core/internal/certificate"
	"github.com/certen/http-certification-core/internal/hashtree"
)

// SubnetPublicKey looks up the DER-wrapped BLS12-381-G2 public key
// advertised by a delegation's inner certificate at
// ["subnet", subnetID, "public_key"].
func SubnetPublicKey(inner *certificate.Certificate, subnetID []byte) ([]byte, error) {
	res := hashtree.LookupPath(inner.Tree, [][]byte{[]byte("subnet"), subnetID, []byte("public_key")})
	if res.Status != hashtree.StatusFound {
		return nil, fmt.Errorf("blsverify: subnet public key not found in delegation tree")
	}
	return res.Value, nil
}

// CanisterInRange reports whether canisterID falls within any of the
// canister ID ranges advertised by a delegation's inner certificate at
// ["subnet", subnetID, "canister_ranges"], per spec.md §4.9 step 4. Ranges
// are CBOR-encoded as a list of [start, end] byte-string pairs; the
// decoded dynamic value is reinterpreted here without a second bespoke
// parser since internal/cbor already exposes generic array/bytes
// accessors.
func CanisterInRange(inner *certificate.Certificate, subnetID, canisterID []byte) (bool, error) {
	res := hashtree.LookupPath(inner.Tree, [][]byte{[]byte("subnet"), subnetID, []byte("canister_ranges")})
	if res.Status != hashtree.StatusFound {
		return false, fmt.Errorf("blsverify: canister ranges not found in delegation tree")
	}

	ranges, err := decodeCanisterRanges(res.Value)
	if err != nil {
		return false, err
	}

	for _, r := range ranges {
		if bytesInRange(canisterID, r.start, r.end) {
			return true, nil
		}
	}
	return false, nil
}

type canisterRange struct {
	start []byte
	end   []byte
}

func decodeCanisterRanges(raw []byte) ([]canisterRange, error) {
	decoded, err := icbor.DecodeAny(raw)
	if err != nil {
		return nil, fmt.Errorf("blsverify: decode canister ranges: %w", err)
	}
	arr, err := icbor.AsArray(decoded, "canister_ranges")
	if err != nil {
		return nil, err
	}

	out := make([]canisterRange, 0, len(arr))
	for _, item := range arr {
		pair, err := icbor.AsArray(item, "canister_ranges[]")
		if err != nil {
			return nil, err
		}
		if len(pair) != 2 {
			return nil, fmt.Errorf("blsverify: canister range entry: expected [start, end]")
		}
		start, err := icbor.AsBytes(pair[0], "canister_ranges[].start")
		if err != nil {
			return nil, err
		}
		end, err := icbor.AsBytes(pair[1], "canister_ranges[].end")
		if err != nil {
			return nil, err
		}
		out = append(out, canisterRange{start: start, end: end})
	}
	return out, nil
}

// bytesInRange compares fixed-length big-endian byte strings
// lexicographically: start <= id <= end.
func bytesInRange(id, start, end []byte) bool {
	return compareBytes(id, start) >= 0 && compareBytes(id, end) <= 0
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
