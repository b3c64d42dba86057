// Copyright 2025 Certen Protocol
//
// Request and response hashing (C6): applies representation-independent
// hashing (internal/rih) to filtered headers/queries per a certification
// model, producing the request-hash and response-hash digests of
// spec.md §4.5.

package httphash

import (
	"crypto/sha256"
	"net/url"
	"strconv"
	"strings"

	"github.com/certen/http-certification-core/internal/cel"
	"github.com/certen/http-certification-core/internal/httpmsg"
	"github.com/certen/http-certification-core/internal/rih"
)

// RequestHash builds the pair-list described in spec.md §4.5 and hashes it
// with RIH: certified headers (case-insensitive, lowercased names), the
// method pseudo-field, and the certified query parameters pseudo-field.
// Fragments after "#" are ignored.
func RequestHash(req *httpmsg.Request, cert *cel.RequestCertification) [32]byte {
	pairs := make([]rih.Pair, 0, len(cert.CertifiedHeaders)+2)

	certified := req.Headers.Filter(cert.CertifiedHeaders)
	for _, h := range certified {
		pairs = append(pairs, rih.P(strings.ToLower(h.Name), h.Value))
	}

	pairs = append(pairs, rih.P(":ic-cert-method", strings.ToUpper(req.Method)))

	rawURL := req.URL
	if idx := strings.IndexByte(rawURL, '#'); idx >= 0 {
		rawURL = rawURL[:idx]
	}
	if idx := strings.IndexByte(rawURL, '?'); idx >= 0 {
		query := rawURL[idx+1:]
		joined := filterQuery(query, cert.CertifiedQueryParams)
		pairs = append(pairs, rih.P(":ic-cert-query", joined))
	}

	return rih.Hash(pairs)
}

// filterQuery keeps only query pairs whose name (case-insensitive) is in
// `allow`, preserving their original relative order, and rejoins with "&".
func filterQuery(rawQuery string, allow []string) string {
	allowSet := make(map[string]struct{}, len(allow))
	for _, a := range allow {
		allowSet[strings.ToLower(a)] = struct{}{}
	}

	var kept []string
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		name := pair
		if idx := strings.IndexByte(pair, '='); idx >= 0 {
			name = pair[:idx]
		}
		if decodedName, err := url.QueryUnescape(name); err == nil {
			name = decodedName
		}
		if _, ok := allowSet[strings.ToLower(name)]; ok {
			kept = append(kept, pair)
		}
	}
	return strings.Join(kept, "&")
}

// alwaysKeptResponseHeader is never filtered out of response hashing
// regardless of the certification model's header list.
const alwaysKeptResponseHeader = "ic-certificateexpression"

// alwaysDroppedResponseHeader never participates in response hashing.
const alwaysDroppedResponseHeader = "ic-certificate"

// ResponseHash computes h = sha256(RIH(filtered headers + status) ‖ sha256(body)),
// per spec.md §4.5. `body` is the raw response body: no content-encoding
// decode is performed here (that asymmetry between v1 and v2 is handled by
// the respective verifiers, not this shared primitive).
func ResponseHash(resp *httpmsg.Response, cert *cel.ResponseCertification) [32]byte {
	pairs := make([]rih.Pair, 0, len(resp.Headers)+1)

	for _, h := range resp.Headers {
		lower := strings.ToLower(h.Name)
		if lower == alwaysDroppedResponseHeader {
			continue
		}
		if lower == alwaysKeptResponseHeader {
			pairs = append(pairs, rih.P(h.Name, h.Value))
			continue
		}

		keep := false
		switch cert.Kind {
		case cel.CertifiedHeaders:
			keep = containsFold(cert.Headers, h.Name)
		case cel.HeaderExclusions:
			keep = !containsFold(cert.Headers, h.Name)
		}
		if keep {
			pairs = append(pairs, rih.P(h.Name, h.Value))
		}
	}

	pairs = append(pairs, rih.P(":ic-cert-status", strconv.Itoa(resp.StatusCode)))

	h1 := rih.Hash(pairs)
	h2 := sha256.Sum256(resp.Body)

	combined := make([]byte, 0, 64)
	combined = append(combined, h1[:]...)
	combined = append(combined, h2[:]...)
	return sha256.Sum256(combined)
}

func containsFold(list []string, name string) bool {
	for _, l := range list {
		if strings.EqualFold(l, name) {
			return true
		}
	}
	return false
}

// FilterResponseHeaders returns the subset of headers a V2-verified
// response view should expose to the caller, applying the same filter
// ResponseHash used plus always dropping IC-Certificate.
func FilterResponseHeaders(headers httpmsg.Headers, cert *cel.ResponseCertification) httpmsg.Headers {
	var out httpmsg.Headers
	for _, h := range headers {
		lower := strings.ToLower(h.Name)
		if lower == alwaysDroppedResponseHeader {
			continue
		}
		if lower == alwaysKeptResponseHeader {
			out = append(out, h)
			continue
		}
		switch cert.Kind {
		case cel.CertifiedHeaders:
			if containsFold(cert.Headers, h.Name) {
				out = append(out, h)
			}
		case cel.HeaderExclusions:
			if !containsFold(cert.Headers, h.Name) {
				out = append(out, h)
			}
		}
	}
	return out
}
