// Copyright 2025 Certen Protocol
//
// Model types for the CEL-like certification expression grammar of
// spec.md §4.4. Two levels: Skip (no certification at this path) or a
// Certification carrying response certification and, optionally, request
// certification.

package cel

// ResponseKind discriminates the two response-certification header
// filtering modes.
type ResponseKind int

const (
	// CertifiedHeaders lists the only headers that are certified.
	CertifiedHeaders ResponseKind = iota
	// HeaderExclusions lists headers dropped from certification; every
	// other header is certified.
	HeaderExclusions
)

// RequestCertification names the headers and query parameters certified
// from the request.
type RequestCertification struct {
	CertifiedHeaders      []string
	CertifiedQueryParams  []string
}

// ResponseCertification names which response headers participate,
// interpreted per Kind.
type ResponseCertification struct {
	Kind    ResponseKind
	Headers []string
}

// Model is the decoded certification declaration for one expression path.
// When Skip is true, Request and Response are both nil ("no certification
// at this path; the verifier accepts any response"). Otherwise Response is
// always present; Request is present only for full (request+response)
// certification.
type Model struct {
	Skip     bool
	Request  *RequestCertification
	Response *ResponseCertification
}

// IsFull reports whether both request and response are certified.
func (m *Model) IsFull() bool { return !m.Skip && m.Request != nil }

// IsResponseOnly reports whether only the response is certified.
func (m *Model) IsResponseOnly() bool { return !m.Skip && m.Request == nil }

// Equal compares two models for structural equality — used by the
// cel_roundtrip property test.
func (m *Model) Equal(other *Model) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.Skip != other.Skip {
		return false
	}
	if m.Skip {
		return true
	}
	if !responseEqual(m.Response, other.Response) {
		return false
	}
	return requestEqual(m.Request, other.Request)
}

func requestEqual(a, b *RequestCertification) bool {
	if a == nil || b == nil {
		return a == b
	}
	return stringSliceEqual(a.CertifiedHeaders, b.CertifiedHeaders) &&
		stringSliceEqual(a.CertifiedQueryParams, b.CertifiedQueryParams)
}

func responseEqual(a, b *ResponseCertification) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Kind == b.Kind && stringSliceEqual(a.Headers, b.Headers)
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
