package memo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds memo table counters. A nil *Metrics records nothing.
type Metrics struct {
	Hits      *prometheus.CounterVec
	Misses    *prometheus.CounterVec
	Evictions *prometheus.CounterVec
	Entries   *prometheus.GaugeVec
}

// NewMetrics creates the memo metrics and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Hits: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Subsystem: "vtoken_memo",
			Name:      "hits_total",
			Help:      "Derivation calls answered by an existing shared stream.",
		}, []string{"instance", "fn"}),
		Misses: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Subsystem: "vtoken_memo",
			Name:      "misses_total",
			Help:      "Derivation calls that built a new stream.",
		}, []string{"instance", "fn"}),
		Evictions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Subsystem: "vtoken_memo",
			Name:      "evictions_total",
			Help:      "Shared streams dropped after their last subscriber left or their source failed.",
		}, []string{"instance", "fn"}),
		Entries: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Subsystem: "vtoken_memo",
			Name:      "entries",
			Help:      "Shared streams currently held by the memo table.",
		}, []string{"instance"}),
	}
}

func (m *Metrics) hit(instance, fn string) {
	if m == nil {
		return
	}
	m.Hits.WithLabelValues(instance, fn).Inc()
}

func (m *Metrics) miss(instance, fn string) {
	if m == nil {
		return
	}
	m.Misses.WithLabelValues(instance, fn).Inc()
}

func (m *Metrics) evicted(instance, fn string) {
	if m == nil {
		return
	}
	m.Evictions.WithLabelValues(instance, fn).Inc()
}

func (m *Metrics) size(instance string, n int) {
	if m == nil {
		return
	}
	m.Entries.WithLabelValues(instance).Set(float64(n))
}
