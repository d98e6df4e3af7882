package sessionvars

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sessionvars/sessionvars/internal/engine"
)

// Metrics wraps the transaction engine's Prometheus instruments so they
// can be constructed, registered, and passed to New without exposing the
// internal engine package in a public function signature.
type Metrics struct {
	inner *engine.Metrics
}

// NewMetrics builds the instrument set without registering it.
func NewMetrics() *Metrics {
	return &Metrics{inner: engine.NewMetrics()}
}

// Register adds every instrument to reg. A nil *Metrics is valid and does
// nothing.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if m == nil {
		return nil
	}
	return m.inner.Register(reg)
}
