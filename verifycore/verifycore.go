// Copyright 2025 Certen Protocol
//
// The verification entry point (C12), per spec.md §4.11: parses the
// IC-Certificate header's version field to decide v1 vs v2, rejects an
// advertised version below the caller's floor, and dispatches to
// verifyv1.Verify or verifyv2.Verify. The one place every verification
// outcome passes through, so it's also where outcome metrics live.

package verifycore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/certen/http-certification-core/internal/icheader"
	"github.com/certen/http-certification-core/internal/httpmsg"
	"github.com/certen/http-certification-core/internal/verifyerr"
	"github.com/certen/http-certification-core/verifyv1"
	"github.com/certen/http-certification-core/verifyv2"
)

// VerifiedResponse is the filtered response view returned on success:
// only certified headers, body always present. Nil for v1 and for v2
// Skip-model certifications.
type VerifiedResponse = verifyv2.VerifiedResponse

// Result is the outcome of a successful verify call.
type Result struct {
	VerificationVersion int
	Response            *VerifiedResponse
}

// Params bundles verify's caller-supplied inputs beyond the
// request/response pair.
type Params struct {
	CanisterID []byte
	NowNs      uint64
	MaxSkewNs  uint64
	RootKeyDER []byte

	// MinVersion fails verification fast when the header advertises a
	// lower protocol version, per spec.md §4.11.
	MinVersion int
}

// Verifier dispatches to v1 or v2 verification and records outcome
// metrics. The zero value is usable; NewVerifier additionally wires
// Prometheus.
type Verifier struct {
	metrics *Metrics
}

// NewVerifier returns a Verifier whose outcome counters are registered
// against reg. A nil reg skips registration.
func NewVerifier(reg prometheus.Registerer) *Verifier {
	return &Verifier{metrics: NewMetrics(reg)}
}

// Verify implements spec.md §4.11's top-level entry point.
func (v *Verifier) Verify(req *httpmsg.Request, resp *httpmsg.Response, p Params) (*Result, error) {
	start := time.Now()

	result, err := v.dispatch(req, resp, p)

	elapsed := time.Since(start).Seconds()
	if err != nil {
		reason := "unknown"
		if verr, ok := err.(*verifyerr.Error); ok {
			reason = verr.Kind.String()
			v.metrics.observeFailure(verr.VerificationVersion, reason, elapsed)
		} else {
			v.metrics.observeFailure(0, reason, elapsed)
		}
		return nil, err
	}

	v.metrics.observeSuccess(result.VerificationVersion, elapsed)
	return result, nil
}

func (v *Verifier) dispatch(req *httpmsg.Request, resp *httpmsg.Response, p Params) (*Result, error) {
	header, ok := resp.Headers.Get("IC-Certificate")
	if !ok {
		return nil, verifyerr.New(verifyerr.KindMalformedCertificate, 0, "missing IC-Certificate header")
	}
	fields, err := icheader.Parse(header)
	if err != nil {
		return nil, verifyerr.Wrap(verifyerr.KindMalformedCertificate, 0, "parse IC-Certificate header", err)
	}

	version := fields.Version
	if version < 1 {
		version = 1
	}

	if p.MinVersion > 0 && version < p.MinVersion {
		return nil, verifyerr.New(verifyerr.KindMinVersionNotMet, version,
			"advertised version below the caller's minimum")
	}

	switch version {
	case 1:
		r, err := verifyv1.Verify(req, resp, p.CanisterID, p.RootKeyDER)
		if err != nil {
			return nil, err
		}
		return &Result{VerificationVersion: r.VerificationVersion}, nil

	case 2:
		r, err := verifyv2.Verify(req, resp, verifyv2.Params{
			CanisterID: p.CanisterID,
			NowNs:      p.NowNs,
			MaxSkewNs:  p.MaxSkewNs,
			RootKeyDER: p.RootKeyDER,
		})
		if err != nil {
			return nil, err
		}
		return &Result{VerificationVersion: r.VerificationVersion, Response: r.Response}, nil

	default:
		return nil, verifyerr.New(verifyerr.KindMalformedCertificate, version,
			"unsupported IC-Certificate version")
	}
}
