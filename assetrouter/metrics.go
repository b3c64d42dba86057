// Copyright 2025 Certen Protocol

package assetrouter

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the router's Prometheus instruments. A nil *Metrics is safe
// to use — every method is a no-op.
type Metrics struct {
	chunksServed *prometheus.CounterVec
	certifyTotal prometheus.Counter
}

// NewMetrics constructs the router's counters and registers them against
// reg. Passing a nil Registerer skips registration; the counters still
// exist and accumulate, they're just not exposed.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		chunksServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asset_chunks_served_total",
			Help: "Number of asset chunk responses served, by encoding.",
		}, []string{"encoding"}),
		certifyTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asset_certify_total",
			Help: "Number of certify_assets calls completed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.chunksServed, m.certifyTotal)
	}
	return m
}

func (m *Metrics) observeChunkServed(encoding Encoding) {
	if m == nil {
		return
	}
	m.chunksServed.WithLabelValues(string(encoding)).Inc()
}

func (m *Metrics) observeCertify() {
	if m == nil {
		return
	}
	m.certifyTotal.Inc()
}
