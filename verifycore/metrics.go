// Copyright 2025 Certen Protocol

package verifycore

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the dispatcher's Prometheus instruments, following the same
// nil-safe registration pattern as assetrouter.Metrics: verifyv1/verifyv2
// are pure functions with no registerer of their own, so outcome counters
// live here instead, at the one place every verification passes through.
type Metrics struct {
	verified  *prometheus.CounterVec
	failed    *prometheus.CounterVec
	durationS *prometheus.HistogramVec
}

// NewMetrics constructs the dispatcher's counters and histogram and
// registers them against reg. A nil reg skips registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		verified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certs_verified_total",
			Help: "Number of certificates that verified successfully, by protocol version.",
		}, []string{"version"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certs_verify_failed_total",
			Help: "Number of certificates that failed verification, by error kind.",
		}, []string{"reason"}),
		durationS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verify_duration_seconds",
			Help:    "Verify call latency in seconds, by protocol version.",
			Buckets: prometheus.DefBuckets,
		}, []string{"version"}),
	}
	if reg != nil {
		reg.MustRegister(m.verified, m.failed, m.durationS)
	}
	return m
}

func (m *Metrics) observeSuccess(version int, seconds float64) {
	if m == nil {
		return
	}
	v := versionLabel(version)
	m.verified.WithLabelValues(v).Inc()
	m.durationS.WithLabelValues(v).Observe(seconds)
}

func (m *Metrics) observeFailure(version int, reason string, seconds float64) {
	if m == nil {
		return
	}
	m.failed.WithLabelValues(reason).Inc()
	m.durationS.WithLabelValues(versionLabel(version)).Observe(seconds)
}

func versionLabel(version int) string {
	switch version {
	case 1:
		return "1"
	case 2:
		return "2"
	default:
		return "unknown"
	}
}
