// Copyright 2025 Certen Protocol
//
// Canonical whitespace-free emitter, the inverse of Parse. Its output's
// SHA-256 is the cel_hash used as a path label in the certification tree
// (spec.md §4.4).

package cel

import (
	"crypto/sha256"
	"strconv"
	"strings"
)

// Emit renders the canonical textual form of m. The output contains no
// whitespace.
func Emit(m *Model) string {
	var sb strings.Builder
	sb.WriteString("default_certification(ValidationArgs{")

	if m.Skip {
		sb.WriteString("no_certification:Empty{}")
	} else {
		sb.WriteString("certification:Certification{")
		emitRequestPart(&sb, m.Request)
		sb.WriteByte(',')
		emitResponsePart(&sb, m.Response)
		sb.WriteByte('}')
	}

	sb.WriteString("})")
	return sb.String()
}

// Hash returns SHA-256 of Emit(m), the cel_hash.
func Hash(m *Model) [32]byte {
	return sha256.Sum256([]byte(Emit(m)))
}

func emitRequestPart(sb *strings.Builder, req *RequestCertification) {
	if req == nil {
		sb.WriteString("no_request_certification:Empty{}")
		return
	}
	sb.WriteString("request_certification:RequestCertification{certified_request_headers:")
	emitStringArray(sb, req.CertifiedHeaders)
	sb.WriteString(",certified_query_parameters:")
	emitStringArray(sb, req.CertifiedQueryParams)
	sb.WriteByte('}')
}

func emitResponsePart(sb *strings.Builder, resp *ResponseCertification) {
	sb.WriteString("response_certification:ResponseCertification{")
	switch resp.Kind {
	case CertifiedHeaders:
		sb.WriteString("certified_response_headers:ResponseHeaderList{headers:")
	case HeaderExclusions:
		sb.WriteString("response_header_exclusions:ResponseHeaderList{headers:")
	}
	emitStringArray(sb, resp.Headers)
	sb.WriteString("}}")
}

func emitStringArray(sb *strings.Builder, values []string) {
	sb.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Quote(v))
	}
	sb.WriteByte(']')
}
