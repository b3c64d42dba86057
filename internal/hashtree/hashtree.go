// Copyright 2025 Certen Protocol
//
// HashTree is the labeled Merkle structure of spec.md §3/§4.2: algebraic
// variants Empty, Leaf, Labeled, Fork, and Pruned, with a structurally
// recursive root hash, path lookup, witness construction, and witness
// merging. Grounded on the shape of the teacher's pkg/merkle.Tree (proof
// paths, sibling positions) but generalized from a binary leaf-array tree
// to this algebraic one, per spec.md §3.

package hashtree

import (
	"bytes"
	"crypto/sha256"
	"fmt"
)

// Kind discriminates the five HashTree variants.
type Kind int

const (
	KindEmpty Kind = iota
	KindLeaf
	KindLabeled
	KindFork
	KindPruned
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "Empty"
	case KindLeaf:
		return "Leaf"
	case KindLabeled:
		return "Labeled"
	case KindFork:
		return "Fork"
	case KindPruned:
		return "Pruned"
	default:
		return "Unknown"
	}
}

// Domain separators, byte-exact per spec.md §6.
var (
	sepEmpty   = []byte("\x11ic-hashtree-empty")
	sepLeaf    = []byte("\x10ic-hashtree-leaf")
	sepLabeled = []byte("\x13ic-hashtree-labeled")
	sepFork    = []byte("\x10ic-hashtree-fork")
)

// Tree is an immutable node of a HashTree.
type Tree struct {
	kind Kind

	leaf   []byte // KindLeaf
	label  []byte // KindLabeled
	child  *Tree  // KindLabeled
	left   *Tree  // KindFork
	right  *Tree  // KindFork
	pruned [32]byte
}

// Empty returns the Empty variant.
func Empty() *Tree { return &Tree{kind: KindEmpty} }

// Leaf wraps raw bytes as a Leaf variant.
func Leaf(b []byte) *Tree { return &Tree{kind: KindLeaf, leaf: append([]byte(nil), b...)} }

// Labeled wraps a child under a byte-string label.
func Labeled(label []byte, child *Tree) *Tree {
	return &Tree{kind: KindLabeled, label: append([]byte(nil), label...), child: child}
}

// Fork combines a left and right subtree.
func Fork(left, right *Tree) *Tree { return &Tree{kind: KindFork, left: left, right: right} }

// Pruned wraps a precomputed digest standing in for an elided subtree.
func Pruned(h [32]byte) *Tree { return &Tree{kind: KindPruned, pruned: h} }

// Kind reports which variant this node is.
func (t *Tree) Kind() Kind { return t.kind }

// LeafValue returns the raw bytes of a Leaf node (nil otherwise).
func (t *Tree) LeafValue() []byte { return t.leaf }

// Label returns the label of a Labeled node (nil otherwise).
func (t *Tree) Label() []byte { return t.label }

// Child returns the child of a Labeled node (nil otherwise).
func (t *Tree) Child() *Tree { return t.child }

// Left returns the left subtree of a Fork node (nil otherwise).
func (t *Tree) Left() *Tree { return t.left }

// Right returns the right subtree of a Fork node (nil otherwise).
func (t *Tree) Right() *Tree { return t.right }

// RootHash computes the structurally recursive digest of the node.
func (t *Tree) RootHash() [32]byte {
	switch t.kind {
	case KindEmpty:
		return sha256.Sum256(sepEmpty)
	case KindLeaf:
		return sha256.Sum256(concat(sepLeaf, t.leaf))
	case KindLabeled:
		childHash := t.child.RootHash()
		return sha256.Sum256(concat(sepLabeled, t.label, childHash[:]))
	case KindFork:
		lHash := t.left.RootHash()
		rHash := t.right.RootHash()
		return sha256.Sum256(concat(sepFork, lHash[:], rHash[:]))
	case KindPruned:
		return t.pruned
	default:
		panic(fmt.Sprintf("hashtree: unknown kind %v", t.kind))
	}
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// LookupStatus is the outcome of a path lookup.
type LookupStatus int

const (
	StatusFound LookupStatus = iota
	StatusAbsent
	StatusUnknown
)

// LookupResult carries the status and, when Found, the leaf value.
type LookupResult struct {
	Status LookupStatus
	Value  []byte
}

// LookupPath walks labels through nested Labeled/Fork structure, returning
// Found with the terminal Leaf's bytes, Absent when the tree is fully
// explored with no match and no Pruned node could be hiding one, or
// Unknown when a Pruned node on the path could have held a match.
func LookupPath(t *Tree, labels [][]byte) LookupResult {
	if len(labels) == 0 {
		switch t.kind {
		case KindLeaf:
			return LookupResult{Status: StatusFound, Value: t.leaf}
		case KindPruned:
			return LookupResult{Status: StatusUnknown}
		case KindEmpty:
			return LookupResult{Status: StatusAbsent}
		default:
			// A non-terminal node sits where a Leaf was expected: treat as
			// absent, matching the reference behavior of rejecting shape
			// mismatches without panicking.
			return LookupResult{Status: StatusAbsent}
		}
	}

	sub, status := lookupSubtree(t, labels[0])
	switch status {
	case StatusFound:
		return LookupPath(sub, labels[1:])
	case StatusUnknown:
		return LookupResult{Status: StatusUnknown}
	default:
		return LookupResult{Status: StatusAbsent}
	}
}

// LookupSubtree is LookupPath but returns the subtree found at the given
// path rather than requiring it terminate in a Leaf.
func LookupSubtree(t *Tree, labels [][]byte) (LookupStatus, *Tree) {
	if len(labels) == 0 {
		return StatusFound, t
	}
	sub, status := lookupSubtree(t, labels[0])
	if status != StatusFound {
		return status, nil
	}
	return LookupSubtree(sub, labels[1:])
}

// lookupSubtree finds the direct child labeled exactly `label`.
func lookupSubtree(t *Tree, label []byte) (*Tree, LookupStatus) {
	switch t.kind {
	case KindFork:
		lSub, lStatus := lookupSubtree(t.left, label)
		switch lStatus {
		case StatusFound:
			return lSub, StatusFound
		case StatusAbsent:
			return lookupSubtree(t.right, label)
		default: // Unknown
			rSub, rStatus := lookupSubtree(t.right, label)
			if rStatus == StatusFound {
				return rSub, StatusFound
			}
			return nil, StatusUnknown
		}
	case KindLabeled:
		if bytes.Equal(t.label, label) {
			return t.child, StatusFound
		}
		return nil, StatusAbsent
	case KindPruned:
		return nil, StatusUnknown
	default: // Empty, Leaf
		return nil, StatusAbsent
	}
}

// containsLabel reports whether the tree has any Labeled node matching
// `label` anywhere under a Fork spine — used by Witness to decide whether a
// branch must be preserved.
func containsLabel(t *Tree, label []byte) bool {
	switch t.kind {
	case KindLabeled:
		return bytes.Equal(t.label, label)
	case KindFork:
		return containsLabel(t.left, label) || containsLabel(t.right, label)
	default:
		return false
	}
}

// Witness returns a pruned copy of t that preserves every Fork and Labeled
// node on the given path and replaces every other subtree with
// Pruned(root_hash), satisfying the witness_minimality property: nothing
// off the requested path survives except as an opaque digest.
func Witness(t *Tree, labels [][]byte) *Tree {
	if len(labels) == 0 {
		return t
	}
	switch t.kind {
	case KindLabeled:
		if bytes.Equal(t.label, labels[0]) {
			return Labeled(t.label, Witness(t.child, labels[1:]))
		}
		h := t.RootHash()
		return Pruned(h)
	case KindFork:
		if containsLabel(t, labels[0]) {
			return Fork(Witness(t.left, labels), Witness(t.right, labels))
		}
		h := t.RootHash()
		return Pruned(h)
	default:
		h := t.RootHash()
		return Pruned(h)
	}
}

// Leaves flattens a witness into its (path, value) pairs at Leaf nodes,
// walking Labeled/Fork structure. Pruned and Empty nodes contribute
// nothing. This is a test/diagnostic convenience, not required for
// verification itself.
func Leaves(t *Tree) []LeafEntry {
	return leavesRec(t, nil)
}

// LeafEntry is one discovered (path, value) pair from Leaves.
type LeafEntry struct {
	Path  [][]byte
	Value []byte
}

func leavesRec(t *Tree, prefix [][]byte) []LeafEntry {
	switch t.kind {
	case KindLeaf:
		return []LeafEntry{{Path: append([][]byte(nil), prefix...), Value: t.leaf}}
	case KindLabeled:
		return leavesRec(t.child, append(append([][]byte(nil), prefix...), t.label))
	case KindFork:
		out := leavesRec(t.left, prefix)
		out = append(out, leavesRec(t.right, prefix)...)
		return out
	default:
		return nil
	}
}
