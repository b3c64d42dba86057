// Copyright 2025 Certen Protocol
//
// Signature verification (C8): validates a Certificate's BLS signature,
// following a single-level delegation chain down to the network root key
// when present, with a process-wide, mutex-guarded cache of positive
// verification results. Grounded on the teacher's
// accumulate-lite-client-2/liteclient/cache.AccountCache: an RWMutex-guarded
// map with LRU eviction, generalized from account data to signature
// verdicts and from TTL expiry to pure capacity bounding (verification
// results don't go stale — a signature that was valid stays valid).

package blsverify

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/certen/http-certification-core/internal/certificate"
	"github.com/certen/http-certification-core/pkg/crypto/bls"
)

// stateRootDomainSep is "\x0Bic-state-root": a leading length byte (11)
// followed by the ASCII domain tag, per spec.md §4.7.
var stateRootDomainSep = []byte("\x0Bic-state-root")

// cacheKey identifies one (public key, signature, message) verification
// attempt.
type cacheKey [96]byte // sha256(pk) ‖ sha256(sig) ‖ sha256(msg)

func makeCacheKey(pk, sig, msg []byte) cacheKey {
	var k cacheKey
	pkh := sha256.Sum256(pk)
	sigh := sha256.Sum256(sig)
	msgh := sha256.Sum256(msg)
	copy(k[0:32], pkh[:])
	copy(k[32:64], sigh[:])
	copy(k[64:96], msgh[:])
	return k
}

// Cache is a bounded, concurrency-safe cache of positive verification
// results. Negative results are never stored, per spec.md §4.7, so a
// forged signature always re-runs the (expensive) pairing check rather
// than being remembered as "previously rejected".
type Cache struct {
	mu          sync.RWMutex
	verified    map[cacheKey]struct{}
	accessOrder []cacheKey
	maxEntries  int
}

// DefaultMaxEntries bounds the cache's memory footprint absent an
// explicit override.
const DefaultMaxEntries = 4096

// NewCache returns an empty cache bounded to maxEntries positive results;
// 0 selects DefaultMaxEntries.
func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		verified:    make(map[cacheKey]struct{}),
		accessOrder: make([]cacheKey, 0, maxEntries),
		maxEntries:  maxEntries,
	}
}

func (c *Cache) has(k cacheKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.verified[k]; !ok {
		return false
	}
	c.touch(k)
	return true
}

func (c *Cache) record(k cacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.verified[k]; ok {
		c.touch(k)
		return
	}
	c.verified[k] = struct{}{}
	c.accessOrder = append(c.accessOrder, k)
	c.evict()
}

func (c *Cache) touch(k cacheKey) {
	for i, existing := range c.accessOrder {
		if existing == k {
			c.accessOrder = append(c.accessOrder[:i], c.accessOrder[i+1:]...)
			break
		}
	}
	c.accessOrder = append(c.accessOrder, k)
}

func (c *Cache) evict() {
	for len(c.accessOrder) > c.maxEntries {
		lru := c.accessOrder[0]
		c.accessOrder = c.accessOrder[1:]
		delete(c.verified, lru)
	}
}

// Len reports the current number of cached positive results.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.verified)
}

// globalCache is the process-wide cache spec.md §4.7 describes.
var globalCache = NewCache(DefaultMaxEntries)

// GlobalCache returns the process-wide verification cache.
func GlobalCache() *Cache { return globalCache }

// VerifySignature checks a raw (DER public key, signature, message) triple
// against cache, independent of any Certificate — the standalone
// verification entry point of ic-certificate-verification's
// signature_verification::verify_signature, which likewise takes pk/sig/msg
// directly rather than requiring a parsed certificate. Verify (below) and
// any other caller that already has DER-wrapped key material should prefer
// this over re-deriving the cache key inline.
func VerifySignature(cache *Cache, pkDER, sig, msg []byte) error {
	rawKey, err := certificate.UnwrapDERPublicKey(pkDER)
	if err != nil {
		return err
	}

	key := makeCacheKey(rawKey, sig, msg)
	if cache.has(key) {
		return nil
	}

	pk, err := bls.PublicKeyFromBytes(rawKey)
	if err != nil {
		return fmt.Errorf("parse public key: %w", err)
	}
	parsedSig, err := bls.SignatureFromBytes(sig)
	if err != nil {
		return fmt.Errorf("parse signature: %w", err)
	}

	if !pk.Verify(parsedSig, msg) {
		return ErrSignatureInvalid
	}

	cache.record(key)
	return nil
}

// Verify checks cert's signature (and, if present, its delegation's inner
// certificate's signature) against rootKeyDER, a DER-wrapped BLS12-381-G2
// network root public key. Positive results are cached in the given
// cache (pass GlobalCache() for the process-wide one).
func Verify(cache *Cache, cert *certificate.Certificate, rootKeyDER []byte) error {
	if err := bls.Initialize(); err != nil {
		return fmt.Errorf("blsverify: %w", err)
	}

	if cert.Delegation == nil {
		return verifyLeaf(cache, cert, rootKeyDER)
	}

	inner, err := cert.Delegation.InnerDelegationCertificate()
	if err != nil {
		return fmt.Errorf("blsverify: %w", err)
	}
	if err := verifyLeaf(cache, inner, rootKeyDER); err != nil {
		return fmt.Errorf("blsverify: delegation certificate: %w", err)
	}

	subnetKeyDER, err := SubnetPublicKey(inner, cert.Delegation.SubnetID)
	if err != nil {
		return fmt.Errorf("blsverify: %w", err)
	}
	return verifyLeaf(cache, cert, subnetKeyDER)
}

// verifyLeaf verifies cert.Signature against the DER-wrapped keyDER for
// the message "\x0Bic-state-root" ‖ cert.Tree.RootHash().
func verifyLeaf(cache *Cache, cert *certificate.Certificate, keyDER []byte) error {
	rootHash := cert.Tree.RootHash()
	msg := append(append([]byte(nil), stateRootDomainSep...), rootHash[:]...)
	return VerifySignature(cache, keyDER, cert.Signature, msg)
}

// ErrSignatureInvalid is returned when the pairing check fails.
var ErrSignatureInvalid = fmt.Errorf("blsverify: signature verification failed")
