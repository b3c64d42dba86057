// Copyright 2025 Certen Protocol
//
// CBOR encode/decode of HashTree nodes as tagged arrays, per spec.md §4.3:
// [0] Empty, [1,b] Leaf, [2,l,c] Labeled, [3,hash] Pruned, [4,l,r] Fork.

package hashtree

import (
	"fmt"

	icbor "github.com/certen/http-certification-core/internal/cbor"
)

// DecodeCBOR decodes a CBOR-encoded witness/tree.
func DecodeCBOR(data []byte) (*Tree, error) {
	v, err := icbor.DecodeAny(data)
	if err != nil {
		return nil, fmt.Errorf("hashtree: decode: %w", err)
	}
	return fromValue(v)
}

func fromValue(v interface{}) (*Tree, error) {
	arr, err := icbor.AsArray(v, "hashtree node")
	if err != nil {
		return nil, err
	}
	if len(arr) == 0 {
		return nil, fmt.Errorf("hashtree: empty tagged array")
	}
	tag, err := icbor.AsUint(arr[0], "hashtree tag")
	if err != nil {
		return nil, err
	}

	switch tag {
	case 0:
		if len(arr) != 1 {
			return nil, fmt.Errorf("hashtree: Empty expects 1 element, got %d", len(arr))
		}
		return Empty(), nil

	case 1:
		if len(arr) != 2 {
			return nil, fmt.Errorf("hashtree: Leaf expects 2 elements, got %d", len(arr))
		}
		b, err := icbor.AsBytes(arr[1], "hashtree leaf value")
		if err != nil {
			return nil, err
		}
		return Leaf(b), nil

	case 2:
		if len(arr) != 3 {
			return nil, fmt.Errorf("hashtree: Labeled expects 3 elements, got %d", len(arr))
		}
		label, err := icbor.AsBytes(arr[1], "hashtree label")
		if err != nil {
			return nil, err
		}
		child, err := fromValue(arr[2])
		if err != nil {
			return nil, err
		}
		return Labeled(label, child), nil

	case 3:
		if len(arr) != 2 {
			return nil, fmt.Errorf("hashtree: Pruned expects 2 elements, got %d", len(arr))
		}
		h, err := icbor.AsBytes(arr[1], "hashtree pruned hash")
		if err != nil {
			return nil, err
		}
		if len(h) != 32 {
			return nil, fmt.Errorf("hashtree: pruned hash must be 32 bytes, got %d", len(h))
		}
		var fixed [32]byte
		copy(fixed[:], h)
		return Pruned(fixed), nil

	case 4:
		if len(arr) != 3 {
			return nil, fmt.Errorf("hashtree: Fork expects 3 elements, got %d", len(arr))
		}
		l, err := fromValue(arr[1])
		if err != nil {
			return nil, err
		}
		r, err := fromValue(arr[2])
		if err != nil {
			return nil, err
		}
		return Fork(l, r), nil

	default:
		return nil, fmt.Errorf("hashtree: unknown tag %d", tag)
	}
}

// EncodeCBOR encodes the tree into the tagged-array wire format.
func EncodeCBOR(t *Tree) ([]byte, error) {
	return icbor.Encode(toValue(t))
}

func toValue(t *Tree) interface{} {
	switch t.kind {
	case KindEmpty:
		return []interface{}{uint64(0)}
	case KindLeaf:
		return []interface{}{uint64(1), t.leaf}
	case KindLabeled:
		return []interface{}{uint64(2), t.label, toValue(t.child)}
	case KindPruned:
		h := t.pruned
		return []interface{}{uint64(3), h[:]}
	case KindFork:
		return []interface{}{uint64(4), toValue(t.left), toValue(t.right)}
	default:
		panic(fmt.Sprintf("hashtree: unknown kind %v", t.kind))
	}
}
