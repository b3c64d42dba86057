// Copyright 2025 Certen Protocol

package verifyv1

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certen/http-certification-core/internal/certificate"
	"github.com/certen/http-certification-core/internal/hashtree"
	"github.com/certen/http-certification-core/internal/httpmsg"
	"github.com/certen/http-certification-core/pkg/crypto/bls"
)

func buildHeader(t *testing.T, priv *bls.PrivateKey, assetTree *hashtree.Tree) string {
	t.Helper()

	certifiedData := assetTree.RootHash()
	stateTree := hashtree.Labeled([]byte("canister"),
		hashtree.Labeled([]byte("cid"),
			hashtree.Labeled([]byte("certified_data"), hashtree.Leaf(certifiedData[:])),
		),
	)

	root := stateTree.RootHash()
	msg := append([]byte("\x0Bic-state-root"), root[:]...)
	sig := priv.Sign(msg)

	cert := &certificate.Certificate{Tree: stateTree, Signature: sig.Bytes()}
	certCBOR, err := certificate.EncodeCBOR(cert)
	require.NoError(t, err)

	treeCBOR, err := hashtree.EncodeCBOR(assetTree)
	require.NoError(t, err)

	return "certificate=:" + base64.StdEncoding.EncodeToString(certCBOR) + ":,tree=:" + base64.StdEncoding.EncodeToString(treeCBOR) + ":"
}

func TestVerifyS1Basic(t *testing.T) {
	require.NoError(t, bls.Initialize())
	priv, pub, err := bls.GenerateKeyPair()
	require.NoError(t, err)
	rootDER, err := certificate.WrapDERPublicKey(pub.Bytes())
	require.NoError(t, err)

	body := []byte("Hello World!")
	bodyHash := sha256.Sum256(body)
	assetTree := hashtree.Labeled([]byte("http_assets"), hashtree.Labeled([]byte("/"), hashtree.Leaf(bodyHash[:])))

	header := buildHeader(t, priv, assetTree)

	req := &httpmsg.Request{Method: "GET", URL: "/"}
	resp := &httpmsg.Response{
		StatusCode: 200,
		Body:       body,
		Headers:    httpmsg.Headers{{Name: "IC-Certificate", Value: header}},
	}

	res, err := Verify(req, resp, []byte("cid"), rootDER)
	require.NoError(t, err)
	require.Equal(t, 1, res.VerificationVersion)
}

func TestVerifyS2IndexFallback(t *testing.T) {
	require.NoError(t, bls.Initialize())
	priv, pub, err := bls.GenerateKeyPair()
	require.NoError(t, err)
	rootDER, err := certificate.WrapDERPublicKey(pub.Bytes())
	require.NoError(t, err)

	body := []byte("Hello World!")
	bodyHash := sha256.Sum256(body)
	assetTree := hashtree.Labeled([]byte("http_assets"), hashtree.Labeled([]byte("/index.html"), hashtree.Leaf(bodyHash[:])))

	header := buildHeader(t, priv, assetTree)

	req := &httpmsg.Request{Method: "GET", URL: "/"}
	resp := &httpmsg.Response{
		StatusCode: 200,
		Body:       body,
		Headers:    httpmsg.Headers{{Name: "IC-Certificate", Value: header}},
	}

	res, err := Verify(req, resp, []byte("cid"), rootDER)
	require.NoError(t, err)
	require.Equal(t, 1, res.VerificationVersion)
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	require.NoError(t, bls.Initialize())
	priv, pub, err := bls.GenerateKeyPair()
	require.NoError(t, err)
	rootDER, err := certificate.WrapDERPublicKey(pub.Bytes())
	require.NoError(t, err)

	body := []byte("Hello World!")
	bodyHash := sha256.Sum256(body)
	assetTree := hashtree.Labeled([]byte("http_assets"), hashtree.Labeled([]byte("/"), hashtree.Leaf(bodyHash[:])))

	header := buildHeader(t, priv, assetTree)

	req := &httpmsg.Request{Method: "GET", URL: "/"}
	resp := &httpmsg.Response{
		StatusCode: 200,
		Body:       []byte("Hello World?"),
		Headers:    httpmsg.Headers{{Name: "IC-Certificate", Value: header}},
	}

	_, err = Verify(req, resp, []byte("cid"), rootDER)
	require.Error(t, err)
}

func TestVerifyDecodesGzipBody(t *testing.T) {
	require.NoError(t, bls.Initialize())
	priv, pub, err := bls.GenerateKeyPair()
	require.NoError(t, err)
	rootDER, err := certificate.WrapDERPublicKey(pub.Bytes())
	require.NoError(t, err)

	body := []byte("Hello World!")
	bodyHash := sha256.Sum256(body)
	assetTree := hashtree.Labeled([]byte("http_assets"), hashtree.Labeled([]byte("/"), hashtree.Leaf(bodyHash[:])))
	header := buildHeader(t, priv, assetTree)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err = zw.Write(body)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	req := &httpmsg.Request{Method: "GET", URL: "/"}
	resp := &httpmsg.Response{
		StatusCode: 200,
		Body:       buf.Bytes(),
		Headers: httpmsg.Headers{
			{Name: "IC-Certificate", Value: header},
			{Name: "Content-Encoding", Value: "gzip"},
		},
	}

	res, err := Verify(req, resp, []byte("cid"), rootDER)
	require.NoError(t, err)
	require.Equal(t, 1, res.VerificationVersion)
}
