// Copyright 2025 Certen Protocol

package assetrouter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certen/http-certification-core/internal/cel"
	"github.com/certen/http-certification-core/internal/certificate"
	"github.com/certen/http-certification-core/internal/hashtree"
	"github.com/certen/http-certification-core/internal/httpmsg"
	"github.com/certen/http-certification-core/pkg/crypto/bls"
)

func signDataCertificate(t *testing.T, router *Router, canisterID []byte) *DataCertificate {
	t.Helper()

	require.NoError(t, bls.Initialize())
	priv, _, err := bls.GenerateKeyPair()
	require.NoError(t, err)

	treeRoot := router.Tree().RootHash()
	stateTree := hashtree.Labeled([]byte("canister"),
		hashtree.Labeled(canisterID,
			hashtree.Labeled([]byte("certified_data"), hashtree.Leaf(treeRoot[:])),
		),
	)

	root := stateTree.RootHash()
	msg := append([]byte("\x0Bic-state-root"), root[:]...)
	sig := priv.Sign(msg)

	cert := &certificate.Certificate{Tree: stateTree, Signature: sig.Bytes()}
	return &DataCertificate{Tree: router.Tree(), Cert: cert, CanisterID: canisterID}
}

func TestCertifyAndServeBasic(t *testing.T) {
	router := NewRouter(nil, nil)
	assets := []Asset{{Path: "/index.html", Content: []byte("Hello World!")}}
	configs := []Config{File{Path: "/index.html", URL: "/", ContentType: "text/html"}}

	_, err := router.CertifyAssets(assets, configs)
	require.NoError(t, err)

	dataCert := signDataCertificate(t, router, []byte("cid"))

	req := &httpmsg.Request{Method: "GET", URL: "/"}
	resp, err := router.ServeAsset(dataCert, req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, []byte("Hello World!"), resp.Body)

	_, ok := resp.Headers.Get("IC-Certificate")
	require.True(t, ok)
	_, ok = resp.Headers.Get("IC-CertificateExpression")
	require.True(t, ok)
}

func TestCertifyAndServeChunked(t *testing.T) {
	router := NewRouter(nil, nil)
	content := bytes.Repeat([]byte("x"), ChunkSize+1)
	assets := []Asset{{Path: "/a", Content: content}}
	configs := []Config{File{Path: "/a", URL: "/a"}}

	_, err := router.CertifyAssets(assets, configs)
	require.NoError(t, err)

	dataCert := signDataCertificate(t, router, []byte("cid"))

	req1 := &httpmsg.Request{Method: "GET", URL: "/a"}
	resp1, err := router.ServeAsset(dataCert, req1)
	require.NoError(t, err)
	require.Equal(t, 206, resp1.StatusCode)
	require.Equal(t, ChunkSize, len(resp1.Body))
	cr, ok := resp1.Headers.Get("Content-Range")
	require.True(t, ok)
	require.Equal(t, "bytes 0-2097151/2097153", cr)

	req2 := &httpmsg.Request{
		Method: "GET",
		URL:    "/a",
		Headers: httpmsg.Headers{
			{Name: "Range", Value: "bytes=2097152-"},
		},
	}
	resp2, err := router.ServeAsset(dataCert, req2)
	require.NoError(t, err)
	require.Equal(t, 206, resp2.StatusCode)
	require.Equal(t, 1, len(resp2.Body))
	cr2, ok := resp2.Headers.Get("Content-Range")
	require.True(t, ok)
	require.Equal(t, "bytes 2097152-2097152/2097153", cr2)
}

func TestServeEncodingNegotiation(t *testing.T) {
	router := NewRouter(nil, nil)
	assets := []Asset{
		{Path: "/app.js", Content: []byte("plain js")},
		{Path: "/app.js.gz", Content: []byte("gzipped js")},
	}
	configs := []Config{File{
		Path: "/app.js",
		URL:  "/app.js",
		Encodings: []EncodedVariant{
			{Encoding: EncodingGzip, Path: "/app.js.gz"},
		},
	}}

	_, err := router.CertifyAssets(assets, configs)
	require.NoError(t, err)
	dataCert := signDataCertificate(t, router, []byte("cid"))

	req := &httpmsg.Request{
		Method: "GET",
		URL:    "/app.js",
		Headers: httpmsg.Headers{
			{Name: "Accept-Encoding", Value: "gzip, deflate"},
		},
	}
	resp, err := router.ServeAsset(dataCert, req)
	require.NoError(t, err)
	require.Equal(t, []byte("gzipped js"), resp.Body)
	enc, ok := resp.Headers.Get("Content-Encoding")
	require.True(t, ok)
	require.Equal(t, "gzip", enc)

	reqNoAccept := &httpmsg.Request{Method: "GET", URL: "/app.js"}
	resp2, err := router.ServeAsset(dataCert, reqNoAccept)
	require.NoError(t, err)
	require.Equal(t, []byte("plain js"), resp2.Body)
}

func TestServeWildcardFallback(t *testing.T) {
	router := NewRouter(nil, nil)
	assets := []Asset{{Path: "/index.html", Content: []byte("spa shell")}}
	configs := []Config{File{
		Path:        "/index.html",
		URL:         "/",
		FallbackFor: []string{"/"},
	}}

	_, err := router.CertifyAssets(assets, configs)
	require.NoError(t, err)
	dataCert := signDataCertificate(t, router, []byte("cid"))

	req := &httpmsg.Request{Method: "GET", URL: "/some/deep/route"}
	resp, err := router.ServeAsset(dataCert, req)
	require.NoError(t, err)
	require.Equal(t, []byte("spa shell"), resp.Body)
}

func TestSkipCertificationHeaders(t *testing.T) {
	router := NewRouter(nil, nil)
	configs := []Config{
		File{Path: "/index.html", URL: "/", ContentType: "text/html"},
		SkipCertification{Scope: "/api"},
	}
	assets := []Asset{{Path: "/index.html", Content: []byte("Hello World!")}}

	_, err := router.CertifyAssets(assets, configs)
	require.NoError(t, err)
	dataCert := signDataCertificate(t, router, []byte("cid"))

	headers, err := router.SkipCertificationHeaders(dataCert, "/api")
	require.NoError(t, err)

	certHeader, ok := headers.Get("IC-Certificate")
	require.True(t, ok)
	require.Contains(t, certHeader, "version=2")

	exprHeader, ok := headers.Get("IC-CertificateExpression")
	require.True(t, ok)
	require.NotEqual(t, cel.Emit(ResponseModel), exprHeader)

	// Normal asset serving at an unrelated path is unaffected by the
	// skip-certification scope coexisting in the same tree.
	req := &httpmsg.Request{Method: "GET", URL: "/"}
	resp, err := router.ServeAsset(dataCert, req)
	require.NoError(t, err)
	require.Equal(t, []byte("Hello World!"), resp.Body)
}

func TestServeRedirect(t *testing.T) {
	router := NewRouter(nil, nil)
	configs := []Config{Redirect{From: "/old", To: "/new"}}

	_, err := router.CertifyAssets(nil, configs)
	require.NoError(t, err)
	dataCert := signDataCertificate(t, router, []byte("cid"))

	req := &httpmsg.Request{Method: "GET", URL: "/old"}
	resp, err := router.ServeAsset(dataCert, req)
	require.NoError(t, err)
	require.Equal(t, 302, resp.StatusCode)
	loc, ok := resp.Headers.Get("Location")
	require.True(t, ok)
	require.Equal(t, "/new", loc)
}

func TestServeNoMatchingAsset(t *testing.T) {
	router := NewRouter(nil, nil)
	_, err := router.CertifyAssets(nil, nil)
	require.NoError(t, err)
	dataCert := signDataCertificate(t, router, []byte("cid"))

	req := &httpmsg.Request{Method: "GET", URL: "/missing"}
	_, err = router.ServeAsset(dataCert, req)
	require.ErrorIs(t, err, ErrNoMatchingAsset)
}
