package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes pipeline observability counters.
type Metrics struct {
	runsTotal     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	entitiesTotal *prometheus.CounterVec
}

// NewMetrics registers pipeline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "analysis_runs_total",
			Help: "Completed analysis runs by outcome.",
		}, []string{"status"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "analysis_stage_duration_seconds",
			Help:    "Wall time per pipeline stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		entitiesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "analysis_entities_total",
			Help: "Derived entities produced, by kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) observeStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(seconds)
}

func (m *Metrics) countRun(status string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) countEntities(kind string, n int) {
	if m == nil {
		return
	}
	m.entitiesTotal.WithLabelValues(kind).Add(float64(n))
}
