// Copyright 2025 Certen Protocol
//
// V1 verification (C9): the legacy protocol. Looks up
// ["http_assets", url_path] in the tree, falling back to
// ["http_assets", "/index.html"] when absent, and compares the found leaf
// against sha256 of the body after decoding Content-Encoding (gzip and
// deflate), bounded to guard against decompression bombs.

package verifyv1

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"crypto/sha256"
	"io"

	"github.com/certen/http-certification-core/internal/blsverify"
	"github.com/certen/http-certification-core/internal/certificate"
	"github.com/certen/http-certification-core/internal/hashtree"
	"github.com/certen/http-certification-core/internal/httpmsg"
	"github.com/certen/http-certification-core/internal/icheader"
	"github.com/certen/http-certification-core/internal/verifyerr"
)

// MaxDecodedBodySize bounds decompressed response bodies to guard against
// decompression-bomb inputs, per spec.md §5/§7 (~10 MiB).
const MaxDecodedBodySize = 10 * 1024 * 1024

// indexFallback is the path substituted when the exact request path has
// no certified leaf.
const indexFallback = "/index.html"

// Result is the outcome of a successful v1 verification.
type Result struct {
	VerificationVersion int
}

// Verify parses the certificate, verifies its signature, cross-checks the
// asset tree's root hash against the main tree's certified_data leaf (when
// present), resolves the asset leaf with /index.html fallback, and
// compares it against the decoded body's hash.
func Verify(req *httpmsg.Request, resp *httpmsg.Response, canisterID []byte, rootKeyDER []byte) (*Result, error) {
	header, ok := resp.Headers.Get("IC-Certificate")
	if !ok {
		return nil, verifyerr.New(verifyerr.KindMalformedCertificate, 1, "missing IC-Certificate header")
	}

	fields, err := icheader.Parse(header)
	if err != nil {
		return nil, verifyerr.Wrap(verifyerr.KindMalformedCertificate, 1, "parse IC-Certificate header", err)
	}

	cert, err := certificate.Parse(fields.Certificate)
	if err != nil {
		return nil, verifyerr.Wrap(verifyerr.KindMalformedCertificate, 1, "parse certificate", err)
	}

	if cert.Delegation != nil {
		if _, innerErr := cert.Delegation.InnerDelegationCertificate(); innerErr != nil {
			return nil, verifyerr.Wrap(verifyerr.KindCertificateHasTooManyDelegations, 1, "delegation", innerErr)
		}
	}

	if err := blsverify.Verify(blsverify.GlobalCache(), cert, rootKeyDER); err != nil {
		return nil, verifyerr.Wrap(verifyerr.KindSignatureVerificationFailed, 1, "signature", err)
	}

	assetTree, err := hashtree.DecodeCBOR(fields.Tree)
	if err != nil {
		return nil, verifyerr.Wrap(verifyerr.KindMalformedHashTree, 1, "decode asset tree", err)
	}

	if err := checkCertifiedData(cert, canisterID, assetTree); err != nil {
		return nil, err
	}

	leaf, err := lookupAsset(assetTree, req.URL)
	if err != nil {
		return nil, err
	}

	decoded, err := decodeBody(resp)
	if err != nil {
		return nil, verifyerr.Wrap(verifyerr.KindInvalidResponseHashes, 1, "decode body", err)
	}

	bodyHash := sha256.Sum256(decoded)
	if !bytes.Equal(leaf, bodyHash[:]) {
		return nil, verifyerr.New(verifyerr.KindInvalidResponseHashes, 1, "body hash does not match certified asset")
	}

	return &Result{VerificationVersion: 1}, nil
}

// checkCertifiedData cross-checks the asset tree's root hash against the
// main certificate tree's ["canister", canisterID, "certified_data"] leaf,
// when that path is present; a certificate that doesn't carry the
// indirection at all is tolerated for backward compatibility with minimal
// v1 fixtures.
func checkCertifiedData(cert *certificate.Certificate, canisterID []byte, assetTree *hashtree.Tree) error {
	if len(canisterID) == 0 {
		return nil
	}
	res := hashtree.LookupPath(cert.Tree, [][]byte{[]byte("canister"), canisterID, []byte("certified_data")})
	if res.Status != hashtree.StatusFound {
		return nil
	}
	want := assetTree.RootHash()
	if !bytes.Equal(res.Value, want[:]) {
		return verifyerr.New(verifyerr.KindInvalidResponseHashes, 1, "asset tree root hash does not match certified_data")
	}
	return nil
}

func lookupAsset(tree *hashtree.Tree, urlPath string) ([]byte, error) {
	path := urlPath
	if idx := indexOf(path, '?'); idx >= 0 {
		path = path[:idx]
	}
	if idx := indexOf(path, '#'); idx >= 0 {
		path = path[:idx]
	}

	res := hashtree.LookupPath(tree, [][]byte{[]byte("http_assets"), []byte(path)})
	if res.Status == hashtree.StatusFound {
		return res.Value, nil
	}

	res = hashtree.LookupPath(tree, [][]byte{[]byte("http_assets"), []byte(indexFallback)})
	if res.Status == hashtree.StatusFound {
		return res.Value, nil
	}

	return nil, verifyerr.New(verifyerr.KindNoAssetMatchingRequestURL, 1, "no asset at "+path+" or "+indexFallback)
}

func indexOf(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// decodeBody decodes the response body per its Content-Encoding header
// (gzip/deflate supported, identity otherwise), bounded to
// MaxDecodedBodySize to prevent decompression-bomb attacks.
func decodeBody(resp *httpmsg.Response) ([]byte, error) {
	enc, _ := resp.Headers.Get("Content-Encoding")
	switch enc {
	case "", "identity":
		return resp.Body, nil
	case "gzip":
		zr, err := gzip.NewReader(bytes.NewReader(resp.Body))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return readBounded(zr)
	case "deflate":
		fr := flate.NewReader(bytes.NewReader(resp.Body))
		defer fr.Close()
		return readBounded(fr)
	default:
		return resp.Body, nil
	}
}

func readBounded(r io.Reader) ([]byte, error) {
	limited := io.LimitReader(r, MaxDecodedBodySize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if len(data) > MaxDecodedBodySize {
		return nil, errDecompressionBomb
	}
	return data, nil
}

var errDecompressionBomb = decompressionBombError{}

type decompressionBombError struct{}

func (decompressionBombError) Error() string {
	return "verifyv1: decompressed body exceeds the size bound"
}
