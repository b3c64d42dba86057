// Copyright 2025 Certen Protocol

package blsverify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certen/http-certification-core/internal/certificate"
	"github.com/certen/http-certification-core/internal/hashtree"
	"github.com/certen/http-certification-core/pkg/crypto/bls"
)

func signedCert(t *testing.T, priv *bls.PrivateKey, tree *hashtree.Tree) *certificate.Certificate {
	t.Helper()
	root := tree.RootHash()
	msg := append(append([]byte(nil), stateRootDomainSep...), root[:]...)
	sig := priv.Sign(msg)
	return &certificate.Certificate{Tree: tree, Signature: sig.Bytes()}
}

func TestVerifyAcceptsGenuineSignature(t *testing.T) {
	require.NoError(t, bls.Initialize())
	priv, pub, err := bls.GenerateKeyPair()
	require.NoError(t, err)

	der, err := certificate.WrapDERPublicKey(pub.Bytes())
	require.NoError(t, err)

	tree := hashtree.Leaf([]byte("hello"))
	cert := signedCert(t, priv, tree)

	cache := NewCache(16)
	require.NoError(t, Verify(cache, cert, der))
	require.Equal(t, 1, cache.Len())
}

func TestVerifyRejectsTamperedTree(t *testing.T) {
	require.NoError(t, bls.Initialize())
	priv, pub, err := bls.GenerateKeyPair()
	require.NoError(t, err)
	der, err := certificate.WrapDERPublicKey(pub.Bytes())
	require.NoError(t, err)

	tree := hashtree.Leaf([]byte("hello"))
	cert := signedCert(t, priv, tree)
	cert.Tree = hashtree.Leaf([]byte("tampered"))

	cache := NewCache(16)
	err = Verify(cache, cert, der)
	require.ErrorIs(t, err, ErrSignatureInvalid)
	require.Equal(t, 0, cache.Len())
}

func TestVerifyWithDelegation(t *testing.T) {
	require.NoError(t, bls.Initialize())
	rootPriv, rootPub, err := bls.GenerateKeyPair()
	require.NoError(t, err)
	rootDER, err := certificate.WrapDERPublicKey(rootPub.Bytes())
	require.NoError(t, err)

	subnetPriv, subnetPub, err := bls.GenerateKeyPair()
	require.NoError(t, err)
	subnetDER, err := certificate.WrapDERPublicKey(subnetPub.Bytes())
	require.NoError(t, err)

	subnetID := []byte("subnet-1")
	innerTree := hashtree.Labeled([]byte("subnet"),
		hashtree.Labeled(subnetID,
			hashtree.Labeled([]byte("public_key"), hashtree.Leaf(subnetDER)),
		),
	)
	innerCert := signedCert(t, rootPriv, innerTree)
	innerCBOR, err := certificate.EncodeCBOR(innerCert)
	require.NoError(t, err)

	outerTree := hashtree.Leaf([]byte("outer-state"))
	outerCert := signedCert(t, subnetPriv, outerTree)
	outerCert.Delegation = &certificate.Delegation{SubnetID: subnetID, Certificate: innerCBOR}

	cache := NewCache(16)
	require.NoError(t, Verify(cache, outerCert, rootDER))
}

func TestVerifySignatureStandalone(t *testing.T) {
	require.NoError(t, bls.Initialize())
	priv, pub, err := bls.GenerateKeyPair()
	require.NoError(t, err)
	der, err := certificate.WrapDERPublicKey(pub.Bytes())
	require.NoError(t, err)

	msg := []byte("arbitrary message, not a certificate root")
	sig := priv.Sign(msg)

	cache := NewCache(16)
	require.NoError(t, VerifySignature(cache, der, sig.Bytes(), msg))
	require.Equal(t, 1, cache.Len())

	require.Error(t, VerifySignature(cache, der, sig.Bytes(), []byte("tampered message")))
}

func TestCacheEvictsOldestEntries(t *testing.T) {
	c := NewCache(2)
	k1 := makeCacheKey([]byte("a"), []byte("a"), []byte("a"))
	k2 := makeCacheKey([]byte("b"), []byte("b"), []byte("b"))
	k3 := makeCacheKey([]byte("c"), []byte("c"), []byte("c"))

	c.record(k1)
	c.record(k2)
	c.record(k3)

	require.Equal(t, 2, c.Len())
	require.False(t, c.has(k1))
	require.True(t, c.has(k2))
	require.True(t, c.has(k3))
}
