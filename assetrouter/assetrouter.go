// Copyright 2025 Certen Protocol
//
// The asset router (C11): owns an HTTP certification tree, certifies
// static assets (splitting large ones into fixed-size chunks, each an
// independently certified response), and serves the best-matching
// (encoding, range) entry with an IC-Certificate header attached. Grounded
// on the teacher's pkg/server/proof_handlers.go handler idiom — a struct
// holding a *log.Logger and metrics, plain methods instead of the
// net/http.Handler interface since the core never speaks HTTP on the wire.

package assetrouter

import (
	"log"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/certen/http-certification-core/internal/cel"
	"github.com/certen/http-certification-core/internal/certificate"
	"github.com/certen/http-certification-core/internal/hashtree"
	"github.com/certen/http-certification-core/internal/httpcerttree"
	"github.com/certen/http-certification-core/internal/httpmsg"
)

// Encoding names a content-coding the router can certify and serve.
type Encoding string

const (
	EncodingIdentity Encoding = "identity"
	EncodingGzip     Encoding = "gzip"
	EncodingDeflate  Encoding = "deflate"
	EncodingBrotli   Encoding = "br"
	EncodingZstd     Encoding = "zstd"
)

// encodingPreference is serve_asset's fixed preference order, per
// spec.md §4.10: not content negotiation with quality factors.
var encodingPreference = []Encoding{EncodingBrotli, EncodingZstd, EncodingGzip, EncodingDeflate, EncodingIdentity}

// ChunkSize is ASSET_CHUNK_SIZE: assets larger than this are split into
// contiguous chunks, each certified and served independently.
const ChunkSize = 2 * 1024 * 1024

// Asset is raw content to certify, keyed by its source path and the
// encoding it's already compressed with (EncodingIdentity for raw bytes).
type Asset struct {
	Path     string
	Content  []byte
	Encoding Encoding
}

// EncodedVariant names another Asset.Path supplying a pre-compressed
// encoding of a File/Pattern entry's content.
type EncodedVariant struct {
	Encoding Encoding
	Path     string
}

// Config is the sum type of the three asset-router configuration
// variants named in spec.md §4.10.
type Config interface{ isConfig() }

// File certifies a single asset under Path, aliased to any AliasedBy URL
// and additionally registered as a wildcard fallback for each scope in
// FallbackFor.
type File struct {
	Path        string
	URL         string
	ContentType string
	Headers     httpmsg.Headers
	FallbackFor []string
	AliasedBy   []string
	Encodings   []EncodedVariant
}

func (File) isConfig() {}

// Pattern certifies every asset whose Path matches a glob (path.Match
// syntax), applying the same content-type/headers/fallback/alias
// treatment as File to each match.
type Pattern struct {
	Glob        string
	ContentType string
	Headers     httpmsg.Headers
	FallbackFor []string
	AliasedBy   []string
	Encodings   []EncodedVariant
}

func (Pattern) isConfig() {}

// Redirect certifies a redirect response (no body) at From.
type Redirect struct {
	From       string
	To         string
	StatusCode int // defaults to 302 if zero
}

func (Redirect) isConfig() {}

// SkipCertification registers Scope as a wildcard entry whose CEL
// declaration is Skip (spec.md §4.4's "no certification at this path").
// It commits no response_hash: a canister uses it to tell an HTTP Gateway
// that verification is deliberately skipped under Scope, by the
// canister's own choice rather than an intermediate party's, because the
// scope is served by application logic the router never certifies a
// response for (e.g. a dynamic endpoint). Grounded on
// ic-http-certification's skip_certification.rs
// (add_skip_certification_header/skip_certification_asset_tree).
type SkipCertification struct {
	Scope string
}

func (SkipCertification) isConfig() {}

// DataCertificate bundles the router's committed expression tree with the
// signed IC certificate whose state tree commits to the tree's root hash
// at ["canister", CanisterID, "certified_data"] — the unit ServeAsset
// needs to emit a verifiable IC-Certificate header.
type DataCertificate struct {
	Tree       *hashtree.Tree
	Cert       *certificate.Certificate
	CanisterID []byte
}

// ResponseModel is the CEL certification declaration applied uniformly to
// every router-certified response: every header except IC-Certificate
// itself is certified (response-only; the router never certifies request
// headers, since static assets don't vary by request).
var ResponseModel = &cel.Model{
	Response: &cel.ResponseCertification{
		Kind:    cel.HeaderExclusions,
		Headers: []string{"IC-Certificate"},
	},
}

// celHashCache is cel.Hash(ResponseModel), computed once at init since
// every router entry is certified under the same declaration.
var celHashCache = cel.Hash(ResponseModel)

// skipModel and skipCelHash back every SkipCertification entry: "no
// certification at this path" (spec.md §4.4), the same declaration
// skip_certification.rs renders via DefaultCelBuilder::skip_certification().
var skipModel = &cel.Model{Skip: true}
var skipCelHash = cel.Hash(skipModel)

// chunkEntry is one certified (path, encoding, range) response.
type chunkEntry struct {
	url          string
	encoding     Encoding
	statusCode   int
	headers      httpmsg.Headers
	body         []byte
	rangeBegin   int
	total        int
	celHash      [32]byte
	responseHash [32]byte
}

// Router accumulates certified asset entries and serves them. Safe for
// concurrent use: CertifyAssets replaces state under a write lock, serving
// methods read under a read lock.
type Router struct {
	mu       sync.RWMutex
	tree     *hashtree.Tree
	entries  map[string][]*chunkEntry // keyed by URL path
	fallback map[string][]*chunkEntry // keyed by wildcard prefix (joined segments)
	logger   *log.Logger
	metrics  *Metrics
}

// NewRouter returns an empty Router. A nil logger gets the teacher's
// conventional component-prefixed stderr logger; a nil reg skips metrics
// registration.
func NewRouter(logger *log.Logger, reg prometheus.Registerer) *Router {
	if logger == nil {
		logger = log.New(os.Stderr, "[assetrouter] ", log.LstdFlags)
	}
	return &Router{
		entries:  map[string][]*chunkEntry{},
		fallback: map[string][]*chunkEntry{},
		logger:   logger,
		metrics:  NewMetrics(reg),
	}
}

// Tree returns the most recently committed certification tree, or nil
// before the first CertifyAssets call.
func (r *Router) Tree() *hashtree.Tree {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tree
}

func splitURL(url string) []string {
	return httpcerttree.SplitURLPath(url)
}

// wildcardScopeSegments parses a FallbackFor scope string into the
// segments a wildcard entry for it is inserted under. "/" is the root
// scope and must resolve to zero segments (matching request prefixes of
// every length down to the request root) rather than splitURL's [""]
// sentinel, which instead names the root as an exact path.
func wildcardScopeSegments(scope string) []string {
	if scope == "/" {
		return []string{}
	}
	return splitURL(scope)
}

func joinSegments(segments []string) string {
	out := ""
	for i, s := range segments {
		if i > 0 {
			out += "/"
		}
		out += s
	}
	return out
}
