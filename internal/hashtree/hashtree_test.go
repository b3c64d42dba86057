// Copyright 2025 Certen Protocol

package hashtree

import (
	"crypto/sha256"
	"testing"

	"github.com/certen/http-certification-core/pkg/merkle"
	"github.com/stretchr/testify/require"
)

func label(s string) []byte { return []byte(s) }

func buildSample() *Tree {
	return Fork(
		Labeled(label("a"), Leaf([]byte("leaf-a"))),
		Fork(
			Labeled(label("b"), Leaf([]byte("leaf-b"))),
			Labeled(label("c"), Leaf([]byte("leaf-c"))),
		),
	)
}

func TestRootHashDomainSeparation(t *testing.T) {
	empty := Empty()
	want := sha256.Sum256([]byte("\x11ic-hashtree-empty"))
	require.Equal(t, want, empty.RootHash())

	leaf := Leaf([]byte("hello"))
	want2 := sha256.Sum256(append([]byte("\x10ic-hashtree-leaf"), []byte("hello")...))
	require.Equal(t, want2, leaf.RootHash())
}

func TestLookupPathFound(t *testing.T) {
	tree := buildSample()
	res := LookupPath(tree, [][]byte{label("b")})
	require.Equal(t, StatusFound, res.Status)
	require.Equal(t, []byte("leaf-b"), res.Value)
}

func TestLookupPathAbsent(t *testing.T) {
	tree := buildSample()
	res := LookupPath(tree, [][]byte{label("z")})
	require.Equal(t, StatusAbsent, res.Status)
}

func TestLookupPathUnknownThroughPruned(t *testing.T) {
	tree := buildSample()
	witness := Witness(tree, [][]byte{label("a")})

	// "b" was pruned away entirely (it wasn't on the witnessed path), so a
	// lookup for it must report Unknown, not Absent.
	res := LookupPath(witness, [][]byte{label("b")})
	require.Equal(t, StatusUnknown, res.Status)

	// "a" is still fully present.
	res2 := LookupPath(witness, [][]byte{label("a")})
	require.Equal(t, StatusFound, res2.Status)
	require.Equal(t, []byte("leaf-a"), res2.Value)
}

func TestWitnessPreservesRootHash(t *testing.T) {
	tree := buildSample()
	witness := Witness(tree, [][]byte{label("c")})
	require.Equal(t, tree.RootHash(), witness.RootHash())
}

func TestWitnessMinimality(t *testing.T) {
	tree := buildSample()
	witness := Witness(tree, [][]byte{label("a")})

	// Everything off the "a" path collapses to a single Pruned node: the
	// right-hand fork (containing b and c) must not appear expanded.
	require.Equal(t, KindFork, witness.Kind())
	require.Equal(t, KindLabeled, witness.Left().Kind())
	require.Equal(t, KindPruned, witness.Right().Kind())
}

func TestMergeCombinesDisjointWitnesses(t *testing.T) {
	tree := buildSample()
	wa := Witness(tree, [][]byte{label("a")})
	wb := Witness(tree, [][]byte{label("b")})

	merged, err := Merge(wa, wb)
	require.NoError(t, err)
	require.Equal(t, tree.RootHash(), merged.RootHash())

	resA := LookupPath(merged, [][]byte{label("a")})
	require.Equal(t, StatusFound, resA.Status)
	resB := LookupPath(merged, [][]byte{label("b")})
	require.Equal(t, StatusFound, resB.Status)
	// c was never witnessed by either side.
	resC := LookupPath(merged, [][]byte{label("c")})
	require.Equal(t, StatusUnknown, resC.Status)
}

func TestLeavesFlattensWitness(t *testing.T) {
	tree := buildSample()
	witness := Witness(tree, [][]byte{label("a")})

	entries := Leaves(witness)
	require.Len(t, entries, 1)
	require.Equal(t, [][]byte{label("a")}, entries[0].Path)
	require.Equal(t, []byte("leaf-a"), entries[0].Value)

	// The full (unwitnessed) tree flattens to all three leaves, in the
	// same left-to-right order Fork walks them.
	full := Leaves(tree)
	require.Len(t, full, 3)
	require.Equal(t, []byte("leaf-a"), full[0].Value)
	require.Equal(t, []byte("leaf-b"), full[1].Value)
	require.Equal(t, []byte("leaf-c"), full[2].Value)
}

func TestMergeRejectsShapeMismatch(t *testing.T) {
	a := Leaf([]byte("x"))
	b := Labeled(label("y"), Leaf([]byte("z")))
	_, err := Merge(a, b)
	require.Error(t, err)
}

func TestCBORRoundTrip(t *testing.T) {
	tree := buildSample()
	data, err := EncodeCBOR(tree)
	require.NoError(t, err)

	decoded, err := DecodeCBOR(data)
	require.NoError(t, err)
	require.Equal(t, tree.RootHash(), decoded.RootHash())
}

// TestRootHashDeterminismAgainstIndependentTree checks that two identically
// built Fork/Leaf trees in this package have equal RootHash, and that
// pkg/merkle's independent binary tree builds a non-empty root over the same
// leaf hashes. The two implementations hash nodes differently, so their roots
// are not compared with each other. pkg/merkle is a test-support
// collaborator only; see its package doc comment.
func TestRootHashDeterminismAgainstIndependentTree(t *testing.T) {
	leaves := [][]byte{
		sha256Sum([]byte("one")),
		sha256Sum([]byte("two")),
	}
	refTree, err := merkle.BuildTree(leaves)
	require.NoError(t, err)

	// Build the equivalent structure as nested Leaf/Fork in this package
	// and confirm recomputing from the same leaf hashes is deterministic
	// across repeated calls (the property this package relies on for
	// witness/root-hash stability).
	t1 := Fork(Leaf(leaves[0]), Leaf(leaves[1]))
	t2 := Fork(Leaf(leaves[0]), Leaf(leaves[1]))
	require.Equal(t, t1.RootHash(), t2.RootHash())
	require.NotEmpty(t, refTree.RootHex())
}

func sha256Sum(b []byte) []byte {
	h := sha256.Sum256(b)
	return h[:]
}
