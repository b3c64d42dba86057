// Copyright 2025 Certen Protocol
//
// V2 verification (C10): the nine-step protocol of spec.md §4.9 — parse
// the structured IC-Certificate header, verify the certificate's BLS
// signature (following a delegation to the subnet key when present),
// check the time leaf against the caller's clock skew budget, check the
// canister ID falls within the delegated range, parse the
// IC-CertificateExpression CEL header, verify the witness tree's root
// hash matches the main tree's certified_data leaf, validate the
// advertised expr_path, recompute the expected leaves, and return a
// filtered response view.

package verifyv2

import (
	"bytes"

	"github.com/certen/http-certification-core/internal/blsverify"
	"github.com/certen/http-certification-core/internal/cel"
	icbor "github.com/certen/http-certification-core/internal/cbor"
	"github.com/certen/http-certification-core/internal/certificate"
	"github.com/certen/http-certification-core/internal/hashtree"
	"github.com/certen/http-certification-core/internal/httpcerttree"
	"github.com/certen/http-certification-core/internal/httphash"
	"github.com/certen/http-certification-core/internal/httpmsg"
	"github.com/certen/http-certification-core/internal/icheader"
	"github.com/certen/http-certification-core/internal/verifyerr"
)

// VerifiedResponse is the filtered view of a response that passed v2
// verification: only certified headers, body always present.
type VerifiedResponse struct {
	StatusCode int
	Headers    httpmsg.Headers
	Body       []byte
}

// Result is the outcome of a successful v2 verification. Response is nil
// for Skip certification models.
type Result struct {
	VerificationVersion int
	Response            *VerifiedResponse
}

// Params bundles the caller-supplied inputs to Verify beyond the
// request/response pair itself.
type Params struct {
	CanisterID []byte
	NowNs      uint64
	MaxSkewNs  uint64
	RootKeyDER []byte
}

// Verify runs the nine-step v2 protocol.
func Verify(req *httpmsg.Request, resp *httpmsg.Response, p Params) (*Result, error) {
	header, ok := resp.Headers.Get("IC-Certificate")
	if !ok {
		return nil, verifyerr.New(verifyerr.KindMalformedCertificate, 2, "missing IC-Certificate header")
	}
	fields, err := icheader.Parse(header)
	if err != nil {
		return nil, verifyerr.Wrap(verifyerr.KindMalformedCertificate, 2, "parse IC-Certificate header", err)
	}
	if fields.Version != 2 {
		return nil, verifyerr.New(verifyerr.KindMalformedCertificate, 2, "IC-Certificate header is not version 2")
	}
	if fields.ExprPath == nil {
		return nil, verifyerr.New(verifyerr.KindMalformedCertificate, 2, "missing expr_path field")
	}

	// Step 2: decode certificate, verify signature.
	cert, err := certificate.Parse(fields.Certificate)
	if err != nil {
		return nil, verifyerr.Wrap(verifyerr.KindMalformedCertificate, 2, "parse certificate", err)
	}
	if err := blsverify.Verify(blsverify.GlobalCache(), cert, p.RootKeyDER); err != nil {
		return nil, verifyerr.Wrap(verifyerr.KindSignatureVerificationFailed, 2, "signature", err)
	}

	// Step 3: time skew.
	timeRes := hashtree.LookupPath(cert.Tree, [][]byte{[]byte("time")})
	if timeRes.Status != hashtree.StatusFound {
		return nil, verifyerr.New(verifyerr.KindMissingTimePath, 2, "missing time leaf")
	}
	certTimeNs, err := decodeULEB128(timeRes.Value)
	if err != nil {
		return nil, err
	}
	if err := checkSkew(certTimeNs, p.NowNs, p.MaxSkewNs); err != nil {
		return nil, err
	}

	// Step 4: delegation canister range check.
	if cert.Delegation != nil {
		inner, err := cert.Delegation.InnerDelegationCertificate()
		if err != nil {
			return nil, verifyerr.Wrap(verifyerr.KindCertificateHasTooManyDelegations, 2, "delegation", err)
		}
		inRange, err := blsverify.CanisterInRange(inner, cert.Delegation.SubnetID, p.CanisterID)
		if err != nil {
			return nil, verifyerr.Wrap(verifyerr.KindSubnetCanisterIDRangesNotFound, 2, "canister ranges", err)
		}
		if !inRange {
			return nil, verifyerr.New(verifyerr.KindPrincipalOutOfRange, 2, "canister id outside delegated range")
		}
	}

	// Step 5: parse CEL, compute cel_hash.
	celHeader, ok := resp.Headers.Get("IC-CertificateExpression")
	if !ok {
		return nil, verifyerr.New(verifyerr.KindCelSyntax, 2, "missing IC-CertificateExpression header")
	}
	model, err := cel.Parse(celHeader)
	if err != nil {
		return nil, verifyerr.Wrap(verifyerr.KindCelSyntax, 2, "parse CEL", err)
	}
	celHash := cel.Hash(model)

	// Step 6: decode witness tree, check it matches certified_data.
	witnessTree, err := hashtree.DecodeCBOR(fields.Tree)
	if err != nil {
		return nil, verifyerr.Wrap(verifyerr.KindMalformedHashTree, 2, "decode witness tree", err)
	}
	certifiedDataRes := hashtree.LookupPath(cert.Tree, [][]byte{[]byte("canister"), p.CanisterID, []byte("certified_data")})
	if certifiedDataRes.Status != hashtree.StatusFound {
		return nil, verifyerr.New(verifyerr.KindMalformedCertificate, 2, "missing certified_data leaf")
	}
	witnessRoot := witnessTree.RootHash()
	if !bytes.Equal(certifiedDataRes.Value, witnessRoot[:]) {
		return nil, verifyerr.New(verifyerr.KindInvalidResponseHashes, 2, "witness tree root hash does not match certified_data")
	}

	// Step 7: validate expr_path.
	exprPath, err := decodeExprPath(fields.ExprPath)
	if err != nil {
		return nil, err
	}
	requestSegments := httpcerttree.SplitURLPath(requestPath(req.URL))
	if err := validateExprPath(witnessTree, exprPath, requestSegments); err != nil {
		return nil, err
	}

	// Step 8: recompute leaves per the parsed CEL.
	switch {
	case model.Skip:
		if !httpcerttree.LookupSkip(witnessTree, exprPath, celHash) {
			return nil, verifyerr.New(verifyerr.KindInvalidResponseHashes, 2, "missing skip leaf")
		}
		return &Result{VerificationVersion: 2, Response: nil}, nil

	case model.IsResponseOnly():
		responseHash := httphash.ResponseHash(resp, model.Response)
		if !httpcerttree.LookupResponseOnly(witnessTree, exprPath, celHash, responseHash) {
			return nil, verifyerr.New(verifyerr.KindInvalidResponseHashes, 2, "response hash does not match certified leaf")
		}

	default: // full
		requestHash := httphash.RequestHash(req, model.Request)
		responseHash := httphash.ResponseHash(resp, model.Response)
		if !httpcerttree.LookupFull(witnessTree, exprPath, celHash, requestHash, responseHash) {
			return nil, verifyerr.New(verifyerr.KindInvalidResponseHashes, 2, "request/response hash does not match certified leaf")
		}
	}

	// Step 9: filtered response view.
	filtered := &VerifiedResponse{
		StatusCode: resp.StatusCode,
		Headers:    httphash.FilterResponseHeaders(resp.Headers, model.Response),
		Body:       resp.Body,
	}
	return &Result{VerificationVersion: 2, Response: filtered}, nil
}

func checkSkew(certTimeNs, nowNs, maxSkewNs uint64) error {
	var diff uint64
	future := false
	if nowNs >= certTimeNs {
		diff = nowNs - certTimeNs
	} else {
		diff = certTimeNs - nowNs
		future = true
	}
	if diff > maxSkewNs {
		if future {
			return verifyerr.New(verifyerr.KindTimeTooFarInTheFuture, 2, "certificate time is too far in the future")
		}
		return verifyerr.New(verifyerr.KindTimeTooFarInThePast, 2, "certificate time is too far in the past")
	}
	return nil
}

func decodeExprPath(raw []byte) ([]string, error) {
	decoded, err := icbor.DecodeAny(raw)
	if err != nil {
		return nil, verifyerr.Wrap(verifyerr.KindMalformedCBOR, 2, "decode expr_path", err)
	}
	arr, err := icbor.AsArray(decoded, "expr_path")
	if err != nil {
		return nil, verifyerr.Wrap(verifyerr.KindMalformedCBOR, 2, "expr_path", err)
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		s, err := icbor.AsText(item, "expr_path[]")
		if err != nil {
			return nil, verifyerr.Wrap(verifyerr.KindMalformedCBOR, 2, "expr_path element", err)
		}
		out = append(out, s)
	}
	return out, nil
}

// requestPath strips query and fragment from a request URL.
func requestPath(url string) string {
	if idx := indexByte(url, '?'); idx >= 0 {
		url = url[:idx]
	}
	if idx := indexByte(url, '#'); idx >= 0 {
		url = url[:idx]
	}
	return url
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
