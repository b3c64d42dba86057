// Copyright 2025 Certen Protocol
//
// Certificate model and CBOR parser: {tree, signature, delegation?}. A
// delegation carries a subnet ID and an inner CBOR certificate whose tree
// holds the delegated subnet's public key and canister ID ranges. Per
// spec.md §3, a delegation's inner certificate must not itself carry a
// delegation (single-level chain).

package certificate

import (
	"encoding/hex"
	"fmt"

	icbor "github.com/certen/http-certification-core/internal/cbor"
	"github.com/certen/http-certification-core/internal/hashtree"
)

// SignatureSize is the BLS12-381 G1 compressed signature length.
const SignatureSize = 48

// derPrefix is the fixed 37-byte DER wrapper for a BLS12-381-G2 public key,
// byte-exact per the platform spec (spec.md §6).
var derPrefix = mustHex("308182301d060d2b0601040182dc7c0503010201060c2b0601040182dc7c05030201036100")

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Certificate is the decoded {tree, signature, delegation?} triple.
type Certificate struct {
	Tree       *hashtree.Tree
	Signature  []byte
	Delegation *Delegation
}

// Delegation transfers signing authority from the network root key to a
// subnet key, scoped by canister ID ranges advertised in its inner tree.
type Delegation struct {
	SubnetID    []byte
	Certificate []byte // raw CBOR of the inner Certificate
}

// Parse decodes a CBOR-encoded certificate.
func Parse(data []byte) (*Certificate, error) {
	v, err := icbor.DecodeAny(data)
	if err != nil {
		return nil, fmt.Errorf("certificate: decode: %w", err)
	}
	m, err := icbor.AsMap(v, "certificate")
	if err != nil {
		return nil, err
	}

	treeVal, err := icbor.MapField(m, "tree")
	if err != nil {
		return nil, err
	}
	tree, err := hashtree.DecodeCBOR(mustReencode(treeVal))
	if err != nil {
		return nil, fmt.Errorf("certificate: tree: %w", err)
	}

	sigVal, err := icbor.MapField(m, "signature")
	if err != nil {
		return nil, err
	}
	sig, err := icbor.AsBytes(sigVal, "certificate.signature")
	if err != nil {
		return nil, err
	}
	if len(sig) != SignatureSize {
		return nil, fmt.Errorf("certificate: signature must be %d bytes, got %d", SignatureSize, len(sig))
	}

	cert := &Certificate{Tree: tree, Signature: sig}

	if delVal, ok := m["delegation"]; ok && delVal != nil {
		delMap, err := icbor.AsMap(delVal, "certificate.delegation")
		if err != nil {
			return nil, err
		}
		subnetVal, err := icbor.MapField(delMap, "subnet_id")
		if err != nil {
			return nil, err
		}
		subnetID, err := icbor.AsBytes(subnetVal, "delegation.subnet_id")
		if err != nil {
			return nil, err
		}
		certVal, err := icbor.MapField(delMap, "certificate")
		if err != nil {
			return nil, err
		}
		innerCBOR, err := icbor.AsBytes(certVal, "delegation.certificate")
		if err != nil {
			return nil, err
		}
		cert.Delegation = &Delegation{SubnetID: subnetID, Certificate: innerCBOR}
	}

	return cert, nil
}

// EncodeCBOR serializes a Certificate back into the {tree, signature,
// delegation?} CBOR map, the inverse of Parse. Used by test fixtures and by
// a delegation's issuer when embedding an inner certificate.
func EncodeCBOR(cert *Certificate) ([]byte, error) {
	treeCBOR, err := hashtree.EncodeCBOR(cert.Tree)
	if err != nil {
		return nil, fmt.Errorf("certificate: encode tree: %w", err)
	}
	treeVal, err := icbor.DecodeAny(treeCBOR)
	if err != nil {
		return nil, fmt.Errorf("certificate: re-decode tree: %w", err)
	}

	m := map[string]interface{}{
		"tree":      treeVal,
		"signature": cert.Signature,
	}
	if cert.Delegation != nil {
		m["delegation"] = map[string]interface{}{
			"subnet_id":   cert.Delegation.SubnetID,
			"certificate": cert.Delegation.Certificate,
		}
	}
	return icbor.Encode(m)
}

// mustReencode re-serializes an already-decoded dynamic value back to CBOR
// so it can be fed through hashtree.DecodeCBOR, which expects raw bytes.
// This avoids a second bespoke decoder for the identical tagged-array
// grammar once it's already been walked once by the outer certificate
// decode.
func mustReencode(v interface{}) []byte {
	b, err := icbor.Encode(v)
	if err != nil {
		// The value just came from a successful decode of well-formed
		// input; re-encoding it cannot fail.
		panic(fmt.Sprintf("certificate: re-encode tree: %v", err))
	}
	return b
}

// InnerDelegationCertificate decodes the delegation's embedded certificate.
// Per spec.md §3, this inner certificate must not itself carry a
// delegation.
func (d *Delegation) InnerDelegationCertificate() (*Certificate, error) {
	inner, err := Parse(d.Certificate)
	if err != nil {
		return nil, fmt.Errorf("delegation: inner certificate: %w", err)
	}
	if inner.Delegation != nil {
		return nil, fmt.Errorf("delegation: too many delegations")
	}
	return inner, nil
}

// UnwrapDERPublicKey validates and strips the fixed DER wrapper around a
// BLS12-381-G2 public key, returning the raw 96-byte point.
func UnwrapDERPublicKey(der []byte) ([]byte, error) {
	const rawKeyLen = 96
	wantLen := len(derPrefix) + rawKeyLen
	if len(der) != wantLen {
		return nil, &DerKeyLengthMismatchError{Expected: wantLen, Actual: len(der)}
	}
	for i, b := range derPrefix {
		if der[i] != b {
			return nil, &DerPrefixMismatchError{}
		}
	}
	return der[len(derPrefix):], nil
}

// WrapDERPublicKey re-wraps a raw 96-byte G2 public key with the fixed DER
// prefix, the inverse of UnwrapDERPublicKey. Used by test fixtures and by
// cmd/blskeygen when emitting a root key for distribution.
func WrapDERPublicKey(raw []byte) ([]byte, error) {
	if len(raw) != 96 {
		return nil, fmt.Errorf("certificate: raw public key must be 96 bytes, got %d", len(raw))
	}
	out := make([]byte, 0, len(derPrefix)+len(raw))
	out = append(out, derPrefix...)
	out = append(out, raw...)
	return out, nil
}

// DerKeyLengthMismatchError reports an unexpected DER-wrapped key length.
type DerKeyLengthMismatchError struct {
	Expected int
	Actual   int
}

func (e *DerKeyLengthMismatchError) Error() string {
	return fmt.Sprintf("certificate: DER key length mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// DerPrefixMismatchError reports a DER wrapper that doesn't match the fixed
// BLS12-381-G2 prefix.
type DerPrefixMismatchError struct{}

func (e *DerPrefixMismatchError) Error() string { return "certificate: DER prefix mismatch" }
