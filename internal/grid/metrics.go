package grid

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the grid's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	mutations           *prometheus.CounterVec
	protectedViolations *prometheus.CounterVec
	busyRejections      *prometheus.CounterVec
	remoteDuration      *prometheus.HistogramVec
}

// NewMetrics registers the grid collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		mutations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gridconsole",
				Name:      "mutations_total",
				Help:      "Row mutations by operation, table and outcome",
			},
			[]string{"op", "table", "outcome"},
		),
		protectedViolations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gridconsole",
				Name:      "protected_column_violations_total",
				Help:      "Writes refused because they targeted a protected column",
			},
			[]string{"table", "column"},
		),
		busyRejections: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gridconsole",
				Name:      "busy_rejections_total",
				Help:      "Operations rejected because another row action was in flight",
			},
			[]string{"op"},
		),
		remoteDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gridconsole",
				Name:      "store_request_duration_seconds",
				Help:      "Remote store call latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op", "table"},
		),
	}
}

func (m *Metrics) mutation(op, table string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	m.mutations.WithLabelValues(op, table, outcome).Inc()
}

func (m *Metrics) protectedViolation(table, column string) {
	if m == nil {
		return
	}
	m.protectedViolations.WithLabelValues(table, column).Inc()
}

func (m *Metrics) busy(op string) {
	if m == nil {
		return
	}
	m.busyRejections.WithLabelValues(op).Inc()
}

func (m *Metrics) observe(op, table string, start time.Time) {
	if m == nil {
		return
	}
	m.remoteDuration.WithLabelValues(op, table).Observe(time.Since(start).Seconds())
}
