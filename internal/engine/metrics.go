package engine

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus instruments the transaction engine updates
// as it processes subtransaction and top-level events, grounded on the
// teacher's storage/disk/metrics.go. A nil *Metrics is valid and simply
// does nothing — metrics are an operational add-on, not a correctness
// dependency.
type Metrics struct {
	releases     prometheus.Counter
	rollbacks    prometheus.Counter
	commits      prometheus.Counter
	aborts       prometheus.Counter
	openCursors  prometheus.Gauge
	packageBytes *prometheus.GaugeVec
}

// NewMetrics builds the instrument set without registering it.
func NewMetrics() *Metrics {
	return &Metrics{
		releases:    prometheus.NewCounter(prometheus.CounterOpts{Name: "sessionvars_subtransaction_releases_total", Help: "Number of subtransaction commits processed by the transaction engine."}),
		rollbacks:   prometheus.NewCounter(prometheus.CounterOpts{Name: "sessionvars_subtransaction_rollbacks_total", Help: "Number of subtransaction aborts processed by the transaction engine."}),
		commits:     prometheus.NewCounter(prometheus.CounterOpts{Name: "sessionvars_top_level_commits_total", Help: "Number of top-level transaction commits processed."}),
		aborts:      prometheus.NewCounter(prometheus.CounterOpts{Name: "sessionvars_top_level_aborts_total", Help: "Number of top-level transaction aborts processed."}),
		openCursors: prometheus.NewGauge(prometheus.GaugeOpts{Name: "sessionvars_open_cursors", Help: "Number of scans currently tracked by the cursor-safety registry."}),
		packageBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "sessionvars_package_bytes", Help: "Estimated byte footprint per package, per the package-stats reporter."}, []string{"package"}),
	}
}

// Register adds every instrument to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if m == nil {
		return nil
	}
	for _, c := range []prometheus.Collector{m.releases, m.rollbacks, m.commits, m.aborts, m.openCursors, m.packageBytes} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) observeRelease()  { if m != nil { m.releases.Inc() } }
func (m *Metrics) observeRollback() { if m != nil { m.rollbacks.Inc() } }
func (m *Metrics) observeCommit()   { if m != nil { m.commits.Inc() } }
func (m *Metrics) observeAbort()    { if m != nil { m.aborts.Inc() } }

func (m *Metrics) setOpenCursors(n int) {
	if m != nil {
		m.openCursors.Set(float64(n))
	}
}

func (m *Metrics) setPackageBytes(pkg string, n int64) {
	if m != nil {
		m.packageBytes.WithLabelValues(pkg).Set(float64(n))
	}
}
