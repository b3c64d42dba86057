// Copyright 2025 Certen Protocol

package certificate

import (
	"testing"

	icbor "github.com/certen/http-certification-core/internal/cbor"
	"github.com/certen/http-certification-core/internal/hashtree"
	"github.com/stretchr/testify/require"
)

func encodeCert(t *testing.T, tree *hashtree.Tree, sig []byte, delegation map[string]interface{}) []byte {
	t.Helper()
	treeBytes, err := hashtree.EncodeCBOR(tree)
	require.NoError(t, err)

	var treeVal interface{}
	treeVal, err = icbor.DecodeAny(treeBytes)
	require.NoError(t, err)

	m := map[string]interface{}{
		"tree":      treeVal,
		"signature": sig,
	}
	if delegation != nil {
		m["delegation"] = delegation
	}
	data, err := icbor.Encode(m)
	require.NoError(t, err)
	return data
}

func TestParseBasicCertificate(t *testing.T) {
	tree := hashtree.Leaf([]byte("hello"))
	sig := make([]byte, SignatureSize)
	data := encodeCert(t, tree, sig, nil)

	cert, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, tree.RootHash(), cert.Tree.RootHash())
	require.Equal(t, sig, cert.Signature)
	require.Nil(t, cert.Delegation)
}

func TestParseRejectsBadSignatureLength(t *testing.T) {
	tree := hashtree.Leaf([]byte("hello"))
	sig := make([]byte, 10)
	data := encodeCert(t, tree, sig, nil)

	_, err := Parse(data)
	require.Error(t, err)
}

func TestParseWithDelegation(t *testing.T) {
	innerTree := hashtree.Leaf([]byte("inner"))
	innerSig := make([]byte, SignatureSize)
	innerData := encodeCert(t, innerTree, innerSig, nil)

	outerTree := hashtree.Leaf([]byte("outer"))
	outerSig := make([]byte, SignatureSize)
	data := encodeCert(t, outerTree, outerSig, map[string]interface{}{
		"subnet_id":   []byte("subnet-1"),
		"certificate": innerData,
	})

	cert, err := Parse(data)
	require.NoError(t, err)
	require.NotNil(t, cert.Delegation)
	require.Equal(t, []byte("subnet-1"), cert.Delegation.SubnetID)

	inner, err := cert.Delegation.InnerDelegationCertificate()
	require.NoError(t, err)
	require.Equal(t, innerTree.RootHash(), inner.Tree.RootHash())
}

func TestInnerDelegationRejectsDoubleDelegation(t *testing.T) {
	innerInnerData := encodeCert(t, hashtree.Leaf([]byte("x")), make([]byte, SignatureSize), nil)
	innerData := encodeCert(t, hashtree.Leaf([]byte("y")), make([]byte, SignatureSize), map[string]interface{}{
		"subnet_id":   []byte("s2"),
		"certificate": innerInnerData,
	})
	outerData := encodeCert(t, hashtree.Leaf([]byte("z")), make([]byte, SignatureSize), map[string]interface{}{
		"subnet_id":   []byte("s1"),
		"certificate": innerData,
	})

	cert, err := Parse(outerData)
	require.NoError(t, err)
	_, err = cert.Delegation.InnerDelegationCertificate()
	require.Error(t, err)
}

func TestDERPublicKeyRoundTrip(t *testing.T) {
	raw := make([]byte, 96)
	for i := range raw {
		raw[i] = byte(i)
	}
	der, err := WrapDERPublicKey(raw)
	require.NoError(t, err)

	got, err := UnwrapDERPublicKey(der)
	require.NoError(t, err)
	require.Equal(t, raw, got)
}

func TestDERPublicKeyRejectsBadLength(t *testing.T) {
	_, err := UnwrapDERPublicKey(make([]byte, 10))
	var lenErr *DerKeyLengthMismatchError
	require.ErrorAs(t, err, &lenErr)
}

func TestDERPublicKeyRejectsBadPrefix(t *testing.T) {
	der, err := WrapDERPublicKey(make([]byte, 96))
	require.NoError(t, err)
	der[0] ^= 0xff

	_, err = UnwrapDERPublicKey(der)
	var prefixErr *DerPrefixMismatchError
	require.ErrorAs(t, err, &prefixErr)
}
