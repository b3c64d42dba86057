// Copyright 2025 Certen Protocol

package hashtree

import (
	"bytes"
	"fmt"
)

// Merge combines two witnesses of the same original tree by taking the
// more-informative variant node-wise: a Pruned node yields to any
// non-pruned sibling whose root hash matches. Mismatched shapes are a
// programmer error (the two witnesses did not come from the same tree),
// not a tree invariant violation, and are reported as an error rather than
// a panic.
func Merge(a, b *Tree) (*Tree, error) {
	switch {
	case a.kind == KindPruned && b.kind == KindPruned:
		if a.pruned != b.pruned {
			return nil, fmt.Errorf("hashtree: merge: pruned hash mismatch")
		}
		return Pruned(a.pruned), nil

	case a.kind == KindPruned:
		if a.pruned != b.RootHash() {
			return nil, fmt.Errorf("hashtree: merge: pruned hash does not match other witness's root")
		}
		return b, nil

	case b.kind == KindPruned:
		if b.pruned != a.RootHash() {
			return nil, fmt.Errorf("hashtree: merge: pruned hash does not match other witness's root")
		}
		return a, nil

	case a.kind == KindEmpty && b.kind == KindEmpty:
		return Empty(), nil

	case a.kind == KindLeaf && b.kind == KindLeaf:
		if !bytes.Equal(a.leaf, b.leaf) {
			return nil, fmt.Errorf("hashtree: merge: leaf value mismatch")
		}
		return Leaf(a.leaf), nil

	case a.kind == KindLabeled && b.kind == KindLabeled:
		if !bytes.Equal(a.label, b.label) {
			return nil, fmt.Errorf("hashtree: merge: label mismatch %q vs %q", a.label, b.label)
		}
		child, err := Merge(a.child, b.child)
		if err != nil {
			return nil, err
		}
		return Labeled(a.label, child), nil

	case a.kind == KindFork && b.kind == KindFork:
		l, err := Merge(a.left, b.left)
		if err != nil {
			return nil, err
		}
		r, err := Merge(a.right, b.right)
		if err != nil {
			return nil, err
		}
		return Fork(l, r), nil

	default:
		return nil, fmt.Errorf("hashtree: merge: shape mismatch %v vs %v", a.kind, b.kind)
	}
}
