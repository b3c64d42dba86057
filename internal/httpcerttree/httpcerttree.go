// Copyright 2025 Certen Protocol
//
// The nested HTTP certification tree (C7): a prefix trie over URL
// segments, terminated by an exact ("<$>") or wildcard ("<*>") sentinel,
// under which a cel_hash/request_hash/response_hash triple is stored as a
// chain of Labeled nodes ending in an empty Leaf. Grounded on
// internal/hashtree's algebraic Tree (the same Fork/Labeled/Pruned
// vocabulary spec.md §4.6 describes), generalizing the teacher's
// pkg/merkle proof construction from a flat leaf array to a trie built by
// incremental insertion.

package httpcerttree

import (
	"errors"
	"sort"
	"strings"

	"github.com/certen/http-certification-core/internal/hashtree"
)

// Terminator distinguishes an exact-match entry from a wildcard one.
type Terminator string

const (
	Exact    Terminator = "<$>"
	Wildcard Terminator = "<*>"
)

// RootLabel is the fixed outer label every certification tree is wrapped
// in before hashing, per spec.md §4.6.
const RootLabel = "http_expr"

const rootLabel = RootLabel

// Mode selects which of the three leaf-chain shapes an entry uses.
type Mode int

const (
	ModeSkip Mode = iota
	ModeResponseOnly
	ModeFull
)

// ErrConflictingInsert is returned when two insertions would require the
// same trie node to be both a terminal Leaf and an interior Labeled/Fork
// node.
var ErrConflictingInsert = errors.New("httpcerttree: conflicting insert at shared prefix")

// Builder accumulates entries before producing an immutable hashtree.Tree.
type Builder struct {
	root *node
}

type node struct {
	children map[string]*node
	isLeaf   bool
	leafVal  []byte
}

func newNode() *node { return &node{children: map[string]*node{}} }

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{root: newNode()} }

// SplitURLPath splits a URL path (no query/fragment) into trie segments,
// e.g. "/a/b" -> ["a", "b"], "/" -> [""].
func SplitURLPath(path string) []string {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return []string{""}
	}
	return strings.Split(trimmed, "/")
}

// Insert stores one certification entry at the path described by
// spec.md §4.6: […segments, terminator, cel_hash, request_hash_slot,
// response_hash], terminated by an empty Leaf. The request/response hash
// labels are included or omitted according to mode.
func (b *Builder) Insert(segments []string, term Terminator, celHash [32]byte, mode Mode, requestHash, responseHash [32]byte) error {
	labels := make([][]byte, 0, len(segments)+4)
	for _, s := range segments {
		labels = append(labels, []byte(s))
	}
	labels = append(labels, []byte(term))
	labels = append(labels, celHash[:])

	switch mode {
	case ModeSkip:
		// no further labels
	case ModeResponseOnly:
		labels = append(labels, []byte(""), responseHash[:])
	case ModeFull:
		labels = append(labels, requestHash[:], responseHash[:])
	}

	return b.insertPath(labels, []byte{})
}

func (b *Builder) insertPath(labels [][]byte, leafVal []byte) error {
	cur := b.root
	for _, l := range labels {
		key := string(l)
		if cur.isLeaf {
			return ErrConflictingInsert
		}
		child, ok := cur.children[key]
		if !ok {
			child = newNode()
			cur.children[key] = child
		}
		cur = child
	}
	if len(cur.children) > 0 {
		return ErrConflictingInsert
	}
	cur.isLeaf = true
	cur.leafVal = leafVal
	return nil
}

// Build finalizes the trie into an immutable, hashable Tree wrapped in the
// outer "http_expr" label.
func (b *Builder) Build() *hashtree.Tree {
	return hashtree.Labeled([]byte(rootLabel), buildNode(b.root))
}

func buildNode(n *node) *hashtree.Tree {
	if n.isLeaf && len(n.children) == 0 {
		return hashtree.Leaf(n.leafVal)
	}
	if len(n.children) == 0 {
		return hashtree.Empty()
	}

	keys := make([]string, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	labeled := make([]*hashtree.Tree, 0, len(keys))
	for _, k := range keys {
		labeled = append(labeled, hashtree.Labeled([]byte(k), buildNode(n.children[k])))
	}
	return foldFork(labeled)
}

func foldFork(trees []*hashtree.Tree) *hashtree.Tree {
	switch len(trees) {
	case 0:
		return hashtree.Empty()
	case 1:
		return trees[0]
	default:
		mid := len(trees) / 2
		return hashtree.Fork(foldFork(trees[:mid]), foldFork(trees[mid:]))
	}
}

// ExactWitness returns the path-preserving witness of the exact entry at
// segments+Exact, per spec.md §4.6 "Exact witness".
func ExactWitness(tree *hashtree.Tree, segments []string) *hashtree.Tree {
	labels := pathLabels(segments, Exact)
	return hashtree.Witness(tree, labels)
}

// WildcardWitness folds, via merge_hash_trees, the witnesses for every
// prefix of segments (including empty and full) at both "<*>" and
// "", "<*>" terminator shapes, per spec.md §4.6 "Wildcard witness". This
// proves no more-specific wildcard exists along the path that wasn't
// delivered.
func WildcardWitness(tree *hashtree.Tree, segments []string) (*hashtree.Tree, error) {
	var acc *hashtree.Tree
	for i := 0; i <= len(segments); i++ {
		prefix := segments[:i]

		w1 := hashtree.Witness(tree, pathLabels(prefix, Wildcard))
		var err error
		acc, err = mergeInto(acc, w1)
		if err != nil {
			return nil, err
		}

		w2 := hashtree.Witness(tree, pathLabelsWithEmptySlot(prefix, Wildcard))
		acc, err = mergeInto(acc, w2)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func mergeInto(acc, w *hashtree.Tree) (*hashtree.Tree, error) {
	if acc == nil {
		return w, nil
	}
	return hashtree.Merge(acc, w)
}

func pathLabels(segments []string, term Terminator) [][]byte {
	labels := make([][]byte, 0, len(segments)+2)
	labels = append(labels, []byte(rootLabel))
	for _, s := range segments {
		labels = append(labels, []byte(s))
	}
	labels = append(labels, []byte(term))
	return labels
}

func pathLabelsWithEmptySlot(segments []string, term Terminator) [][]byte {
	labels := make([][]byte, 0, len(segments)+3)
	labels = append(labels, []byte(rootLabel))
	for _, s := range segments {
		labels = append(labels, []byte(s))
	}
	labels = append(labels, []byte(""), []byte(term))
	return labels
}

// LookupSkip reports whether an empty leaf exists at
// [http_expr, …exprPath, cel_hash], the Skip shape of spec.md §4.9 step 8.
func LookupSkip(tree *hashtree.Tree, exprPath []string, celHash [32]byte) bool {
	labels := exprPathLabels(exprPath)
	labels = append(labels, celHash[:])
	res := hashtree.LookupPath(tree, labels)
	return res.Status == hashtree.StatusFound && len(res.Value) == 0
}

// LookupResponseOnly reports whether the response hash is present as a
// leaf at [http_expr, …exprPath, cel_hash, "", response_hash].
func LookupResponseOnly(tree *hashtree.Tree, exprPath []string, celHash, responseHash [32]byte) bool {
	labels := exprPathLabels(exprPath)
	labels = append(labels, celHash[:], []byte(""), responseHash[:])
	res := hashtree.LookupPath(tree, labels)
	return res.Status == hashtree.StatusFound
}

// LookupFull reports whether a leaf exists at
// [http_expr, …exprPath, cel_hash, request_hash, response_hash].
func LookupFull(tree *hashtree.Tree, exprPath []string, celHash, requestHash, responseHash [32]byte) bool {
	labels := exprPathLabels(exprPath)
	labels = append(labels, celHash[:], requestHash[:], responseHash[:])
	res := hashtree.LookupPath(tree, labels)
	return res.Status == hashtree.StatusFound
}

func exprPathLabels(exprPath []string) [][]byte {
	labels := make([][]byte, 0, len(exprPath)+1)
	labels = append(labels, []byte(rootLabel))
	for _, s := range exprPath {
		labels = append(labels, []byte(s))
	}
	return labels
}
