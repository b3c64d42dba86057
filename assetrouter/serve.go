// Copyright 2025 Certen Protocol
//
// serve_asset (spec.md §4.10): picks the best-matching certified entry
// for a request — encoding negotiation in the router's fixed preference
// order, Range support for chunked assets, exact-path lookup falling back
// to registered wildcard scopes — and attaches the IC-Certificate and
// IC-CertificateExpression headers needed for v2 verification.

package assetrouter

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"

	icbor "github.com/certen/http-certification-core/internal/cbor"
	"github.com/certen/http-certification-core/internal/cel"
	"github.com/certen/http-certification-core/internal/certificate"
	"github.com/certen/http-certification-core/internal/hashtree"
	"github.com/certen/http-certification-core/internal/httpcerttree"
	"github.com/certen/http-certification-core/internal/httpmsg"
)

// ErrNoMatchingAsset is returned when no certified entry serves the
// request's path under any registered exact or wildcard scope.
var ErrNoMatchingAsset = errors.New("assetrouter: no certified asset for request")

// ServeAsset resolves req against the router's certified entries and
// returns the response carrying an IC-Certificate v2 header proving it.
func (r *Router) ServeAsset(dataCert *DataCertificate, req *httpmsg.Request) (*httpmsg.Response, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// correlationID ties together the handful of diagnostic log lines one
	// request can produce, the same job/request-ID idiom as the teacher's
	// pkg/server/*_handlers.go (uuid.New() per request, uuid stdlib parsing
	// elsewhere); returned to the caller as X-Request-Id for log-to-client
	// correlation.
	correlationID := uuid.New()

	path := requestPath(req.URL)
	segments := splitURL(path)
	key := joinSegments(segments)

	candidates, exprSegments, term := r.lookupEntries(segments, key)
	if candidates == nil {
		r.logger.Printf("[%s] no certified asset for %s", correlationID, path)
		return nil, ErrNoMatchingAsset
	}

	encoding := selectEncoding(req, candidates)
	matching := filterByEncoding(candidates, encoding)
	if len(matching) == 0 {
		return nil, ErrNoMatchingAsset
	}

	entry := selectChunk(req, matching)
	if entry == nil {
		return nil, ErrNoMatchingAsset
	}

	resp := &httpmsg.Response{
		StatusCode: entry.statusCode,
		Headers:    append(httpmsg.Headers{}, entry.headers...),
		Body:       entry.body,
	}

	header, err := r.certificateHeader(dataCert, exprSegments, term)
	if err != nil {
		return nil, err
	}
	resp.Headers = append(resp.Headers, httpmsg.Header{Name: "IC-Certificate", Value: header})
	resp.Headers = append(resp.Headers, httpmsg.Header{Name: "X-Request-Id", Value: correlationID.String()})

	r.metrics.observeChunkServed(encoding)
	return resp, nil
}

// lookupEntries finds the candidate entries for segments, trying the
// exact path first and then each registered wildcard scope from most to
// least specific (the longest prefix that's actually a fallback scope).
func (r *Router) lookupEntries(segments []string, key string) ([]*chunkEntry, []string, httpcerttree.Terminator) {
	if exact, ok := r.entries[key]; ok && len(exact) > 0 {
		return exact, segments, httpcerttree.Exact
	}

	for i := len(segments); i >= 0; i-- {
		prefix := segments[:i]
		prefixKey := joinSegments(prefix)
		if fb, ok := r.fallback[prefixKey]; ok && len(fb) > 0 {
			return fb, prefix, httpcerttree.Wildcard
		}
	}
	return nil, nil, ""
}

// requestPath strips query and fragment from a request URL.
func requestPath(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		url = url[:i]
	}
	if i := strings.IndexByte(url, '#'); i >= 0 {
		url = url[:i]
	}
	return url
}

// selectEncoding picks the first encoding, in the router's fixed
// preference order, that's both accepted by the request and available
// among candidates.
func selectEncoding(req *httpmsg.Request, candidates []*chunkEntry) Encoding {
	accepted := parseAcceptEncoding(req)
	available := map[Encoding]bool{}
	for _, e := range candidates {
		available[e.encoding] = true
	}

	for _, enc := range encodingPreference {
		if enc == EncodingIdentity {
			if available[enc] {
				return enc
			}
			continue
		}
		if accepted[enc] && available[enc] {
			return enc
		}
	}
	if available[EncodingIdentity] {
		return EncodingIdentity
	}
	return ""
}

func parseAcceptEncoding(req *httpmsg.Request) map[Encoding]bool {
	out := map[Encoding]bool{}
	header, ok := req.Headers.Get("Accept-Encoding")
	if !ok {
		return out
	}
	for _, part := range strings.Split(header, ",") {
		name, _, _ := strings.Cut(part, ";")
		name = strings.TrimSpace(name)
		if name != "" {
			out[Encoding(name)] = true
		}
	}
	return out
}

func filterByEncoding(candidates []*chunkEntry, encoding Encoding) []*chunkEntry {
	var out []*chunkEntry
	for _, e := range candidates {
		if e.encoding == encoding {
			out = append(out, e)
		}
	}
	return out
}

// selectChunk picks the chunk matching the request's Range header
// (bytes=START-, per spec.md §4.10), or the first chunk absent a Range.
func selectChunk(req *httpmsg.Request, candidates []*chunkEntry) *chunkEntry {
	rangeHeader, ok := req.Headers.Get("Range")
	if !ok {
		return firstByRangeBegin(candidates)
	}

	start, ok := parseRangeStart(rangeHeader)
	if !ok {
		return firstByRangeBegin(candidates)
	}

	for _, e := range candidates {
		if e.rangeBegin == start {
			return e
		}
	}
	return nil
}

func firstByRangeBegin(candidates []*chunkEntry) *chunkEntry {
	best := candidates[0]
	for _, e := range candidates[1:] {
		if e.rangeBegin < best.rangeBegin {
			best = e
		}
	}
	return best
}

// parseRangeStart parses "bytes=START-"; the router doesn't support
// multi-range or suffix-range requests.
func parseRangeStart(header string) (int, bool) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return 0, false
	}
	spec := strings.TrimPrefix(header, prefix)
	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(spec[:dash])
	if err != nil {
		return 0, false
	}
	return n, true
}

// SkipCertificationHeaders returns the IC-Certificate and
// IC-CertificateExpression header pair for a response served under a
// scope previously registered with SkipCertification. The caller attaches
// these to a response it built itself (the router never serves an asset
// for a skip scope, since nothing is certified there besides the
// declaration); this matches the shape of
// skip_certification.rs's add_skip_certification_header, which likewise
// takes an already-built response and a data certificate and only adds
// headers to it.
func (r *Router) SkipCertificationHeaders(dataCert *DataCertificate, scope string) (httpmsg.Headers, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	segments := wildcardScopeSegments(scope)
	header, err := r.certificateHeader(dataCert, segments, httpcerttree.Wildcard)
	if err != nil {
		return nil, err
	}

	return httpmsg.Headers{
		{Name: "IC-Certificate", Value: header},
		{Name: "IC-CertificateExpression", Value: cel.Emit(skipModel)},
	}, nil
}

// certificateHeader assembles the IC-Certificate v2 header value: the
// base64-wrapped certificate CBOR, the CBOR witness for exprSegments+term,
// and the CBOR-encoded expr_path itself.
func (r *Router) certificateHeader(dataCert *DataCertificate, exprSegments []string, term httpcerttree.Terminator) (string, error) {
	var witnessBytes []byte
	var err error
	switch term {
	case httpcerttree.Exact:
		w := httpcerttree.ExactWitness(r.tree, exprSegments)
		witnessBytes, err = encodeWitness(w)
	case httpcerttree.Wildcard:
		w, werr := httpcerttree.WildcardWitness(r.tree, exprSegments)
		if werr != nil {
			return "", werr
		}
		witnessBytes, err = encodeWitness(w)
	default:
		return "", errors.New("assetrouter: unknown terminator")
	}
	if err != nil {
		return "", err
	}

	certCBOR, err := certificate.EncodeCBOR(dataCert.Cert)
	if err != nil {
		return "", err
	}

	exprPath := append(append([]string{}, exprSegments...), string(term))
	exprPathAny := make([]interface{}, len(exprPath))
	for i, s := range exprPath {
		exprPathAny[i] = s
	}
	exprPathCBOR, err := icbor.Encode(exprPathAny)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("version=2,certificate=:")
	sb.WriteString(base64.StdEncoding.EncodeToString(certCBOR))
	sb.WriteString(":,tree=:")
	sb.WriteString(base64.StdEncoding.EncodeToString(witnessBytes))
	sb.WriteString(":,expr_path=:")
	sb.WriteString(base64.StdEncoding.EncodeToString(exprPathCBOR))
	sb.WriteString(":")
	return sb.String(), nil
}

func encodeWitness(w *hashtree.Tree) ([]byte, error) {
	return hashtree.EncodeCBOR(w)
}
