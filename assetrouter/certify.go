// Copyright 2025 Certen Protocol

package assetrouter

import (
	"errors"
	"fmt"
	"path"
	"strconv"

	"github.com/certen/http-certification-core/internal/cel"
	"github.com/certen/http-certification-core/internal/hashtree"
	"github.com/certen/http-certification-core/internal/httpcerttree"
	"github.com/certen/http-certification-core/internal/httphash"
	"github.com/certen/http-certification-core/internal/httpmsg"
)

// ErrAssetNotFound is returned when a File/Pattern/EncodedVariant config
// names a Path absent from the supplied assets.
var ErrAssetNotFound = errors.New("assetrouter: referenced asset path not found")

// CertifyAssets builds entries for every config and commits them to a
// fresh certification tree, replacing the router's previous tree. Assets
// are indexed by Path; configs reference them by Path (File.Path,
// Pattern.Glob matches, EncodedVariant.Path).
func (r *Router) CertifyAssets(assets []Asset, configs []Config) (*hashtree.Tree, error) {
	byPath := make(map[string]Asset, len(assets))
	for _, a := range assets {
		byPath[a.Path] = a
	}

	builder := httpcerttree.NewBuilder()
	entries := map[string][]*chunkEntry{}
	fallback := map[string][]*chunkEntry{}

	for _, cfg := range configs {
		switch c := cfg.(type) {
		case File:
			built, err := certifyFile(byPath, c)
			if err != nil {
				return nil, err
			}
			if err := insertEntries(builder, entries, fallback, c.URL, c.FallbackFor, c.AliasedBy, built); err != nil {
				return nil, err
			}

		case Pattern:
			for p, a := range byPath {
				matched, err := path.Match(c.Glob, p)
				if err != nil {
					return nil, fmt.Errorf("assetrouter: bad glob %q: %w", c.Glob, err)
				}
				if !matched {
					continue
				}
				fc := File{
					Path:        a.Path,
					URL:         a.Path,
					ContentType: c.ContentType,
					Headers:     c.Headers,
					FallbackFor: c.FallbackFor,
					AliasedBy:   c.AliasedBy,
					Encodings:   c.Encodings,
				}
				built, err := certifyFile(byPath, fc)
				if err != nil {
					return nil, err
				}
				if err := insertEntries(builder, entries, fallback, fc.URL, fc.FallbackFor, fc.AliasedBy, built); err != nil {
					return nil, err
				}
			}

		case Redirect:
			status := c.StatusCode
			if status == 0 {
				status = 302
			}
			resp := &httpmsg.Response{
				StatusCode: status,
				Headers:    withCertExprHeader(httpmsg.Headers{{Name: "Location", Value: c.To}}),
			}
			entry := buildEntry(c.From, EncodingIdentity, resp, 0, len(resp.Body))
			if err := insertEntries(builder, entries, fallback, c.From, nil, nil, []*chunkEntry{entry}); err != nil {
				return nil, err
			}

		case SkipCertification:
			segments := wildcardScopeSegments(c.Scope)
			if err := builder.Insert(segments, httpcerttree.Wildcard, skipCelHash, httpcerttree.ModeSkip, [32]byte{}, [32]byte{}); err != nil {
				return nil, fmt.Errorf("assetrouter: insert skip-certification scope %s: %w", c.Scope, err)
			}

		default:
			return nil, fmt.Errorf("assetrouter: unknown config type %T", cfg)
		}
	}

	tree := builder.Build()

	r.mu.Lock()
	r.tree = tree
	r.entries = entries
	r.fallback = fallback
	r.mu.Unlock()

	r.metrics.observeCertify()
	r.logger.Printf("certified %d configs into %d exact entries, %d fallback scopes", len(configs), len(entries), len(fallback))
	return tree, nil
}

// certifyFile produces the per-encoding, per-chunk entries for a File
// config: the primary asset content plus any declared encoded variants.
func certifyFile(byPath map[string]Asset, c File) ([]*chunkEntry, error) {
	primary, ok := byPath[c.Path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, c.Path)
	}

	variants := []struct {
		encoding Encoding
		content  []byte
	}{
		{EncodingIdentity, primary.Content},
	}
	if primary.Encoding != "" && primary.Encoding != EncodingIdentity {
		variants = []struct {
			encoding Encoding
			content  []byte
		}{{primary.Encoding, primary.Content}}
	}
	for _, ev := range c.Encodings {
		a, ok := byPath[ev.Path]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, ev.Path)
		}
		variants = append(variants, struct {
			encoding Encoding
			content  []byte
		}{ev.Encoding, a.Content})
	}

	var out []*chunkEntry
	for _, v := range variants {
		out = append(out, certifyContent(c.URL, c.ContentType, c.Headers, v.encoding, v.content)...)
	}
	return out, nil
}

// certifyContent splits content into ChunkSize-bounded chunks and
// certifies one response per chunk, per spec.md §4.10: single response
// (status 200, no Content-Range) when the whole asset fits in one chunk,
// otherwise one 206 response per chunk with Content-Range/Content-Length.
func certifyContent(url, contentType string, headers httpmsg.Headers, encoding Encoding, content []byte) []*chunkEntry {
	total := len(content)
	if total <= ChunkSize {
		resp := newChunkResponse(contentType, headers, encoding, content, false, 0, total)
		return []*chunkEntry{buildEntry(url, encoding, resp, 0, total)}
	}

	var out []*chunkEntry
	for begin := 0; begin < total; begin += ChunkSize {
		end := begin + ChunkSize
		if end > total {
			end = total
		}
		chunk := content[begin:end]
		resp := newChunkResponse(contentType, headers, encoding, chunk, true, begin, total)
		out = append(out, buildEntry(url, encoding, resp, begin, total))
	}
	return out
}

func newChunkResponse(contentType string, headers httpmsg.Headers, encoding Encoding, body []byte, ranged bool, begin, total int) *httpmsg.Response {
	status := 200
	var hdrs httpmsg.Headers
	hdrs = append(hdrs, headers...)
	if contentType != "" {
		hdrs = append(hdrs, httpmsg.Header{Name: "Content-Type", Value: contentType})
	}
	if encoding != "" && encoding != EncodingIdentity {
		hdrs = append(hdrs, httpmsg.Header{Name: "Content-Encoding", Value: string(encoding)})
	}
	hdrs = append(hdrs, httpmsg.Header{Name: "Content-Length", Value: strconv.Itoa(len(body))})
	if ranged {
		status = 206
		end := begin + len(body) - 1
		hdrs = append(hdrs, httpmsg.Header{
			Name:  "Content-Range",
			Value: fmt.Sprintf("bytes %d-%d/%d", begin, end, total),
		})
	}
	return &httpmsg.Response{StatusCode: status, Headers: withCertExprHeader(hdrs), Body: body}
}

// withCertExprHeader appends the fixed IC-CertificateExpression header
// every router entry is served with. It must be present at certify time
// too, since ResponseHash always folds that header into the hash when
// present — computing it without the header would certify a different
// response than the one ServeAsset actually serves.
func withCertExprHeader(hdrs httpmsg.Headers) httpmsg.Headers {
	return append(hdrs, httpmsg.Header{Name: "IC-CertificateExpression", Value: cel.Emit(ResponseModel)})
}

// buildEntry computes the entry's independently-hashed response and
// records where it sits in the byte range.
func buildEntry(url string, encoding Encoding, resp *httpmsg.Response, rangeBegin, total int) *chunkEntry {
	celHash := hashCelModel()
	return &chunkEntry{
		url:          url,
		encoding:     encoding,
		statusCode:   resp.StatusCode,
		headers:      resp.Headers,
		body:         resp.Body,
		rangeBegin:   rangeBegin,
		total:        total,
		celHash:      celHash,
		responseHash: httphash.ResponseHash(resp, ResponseModel.Response),
	}
}

func insertEntries(builder *httpcerttree.Builder, entries, fallback map[string][]*chunkEntry, url string, fallbackFor, aliasedBy []string, built []*chunkEntry) error {
	segments := splitURL(url)
	key := joinSegments(segments)

	for _, e := range built {
		if err := builder.Insert(segments, httpcerttree.Exact, e.celHash, httpcerttree.ModeResponseOnly, [32]byte{}, e.responseHash); err != nil {
			return fmt.Errorf("assetrouter: insert %s: %w", url, err)
		}
	}
	entries[key] = append(entries[key], built...)

	for _, alias := range aliasedBy {
		aliasSegments := splitURL(alias)
		aliasKey := joinSegments(aliasSegments)
		for _, e := range built {
			if err := builder.Insert(aliasSegments, httpcerttree.Exact, e.celHash, httpcerttree.ModeResponseOnly, [32]byte{}, e.responseHash); err != nil {
				return fmt.Errorf("assetrouter: insert alias %s: %w", alias, err)
			}
		}
		entries[aliasKey] = append(entries[aliasKey], built...)
	}

	for _, scope := range fallbackFor {
		scopeSegments := wildcardScopeSegments(scope)
		for _, e := range built {
			if err := builder.Insert(scopeSegments, httpcerttree.Wildcard, e.celHash, httpcerttree.ModeResponseOnly, [32]byte{}, e.responseHash); err != nil {
				return fmt.Errorf("assetrouter: insert fallback %s: %w", scope, err)
			}
		}
		fallback[joinSegments(scopeSegments)] = append(fallback[joinSegments(scopeSegments)], built...)
	}

	return nil
}

// hashCelModel returns the cel_hash every router entry is certified
// under — the router applies ResponseModel uniformly.
func hashCelModel() [32]byte {
	return celHashCache
}
