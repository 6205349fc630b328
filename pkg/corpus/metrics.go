package corpus

import "github.com/prometheus/client_golang/prometheus"

// metrics mirrors the teacher's pkg/stats instrumentation points
// (stats.Create calls scattered through pkg/fuzzer/retry.go) using the real
// library the teacher's go.mod names, rather than that package's own
// in-process stats registry.
type metrics struct {
	size               prometheus.Gauge
	selections         prometheus.Counter
	duplicatesRejected prometheus.Counter
	entriesEvicted     prometheus.Counter
}

func newMetrics() *metrics {
	return &metrics{
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "covfuzz",
			Subsystem: "corpus",
			Name:      "entries",
			Help:      "Current number of programs held in the corpus.",
		}),
		selections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "covfuzz",
			Subsystem: "corpus",
			Name:      "selections_total",
			Help:      "Number of random_for_mutation/random_for_splicing calls served.",
		}),
		duplicatesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "covfuzz",
			Subsystem: "corpus",
			Name:      "duplicates_rejected_total",
			Help:      "Number of Add calls rejected by content-hash deduplication.",
		}),
		entriesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "covfuzz",
			Subsystem: "corpus",
			Name:      "entries_evicted_total",
			Help:      "Number of entries removed by a cleanup pass.",
		}),
	}
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.size, m.selections, m.duplicatesRejected, m.entriesEvicted}
}
