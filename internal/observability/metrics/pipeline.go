package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/bd-pipeline/internal/core/domain"
)

// PipelineMetrics records per-source cycle outcomes.
type PipelineMetrics struct {
	service string

	runsTotal           *prometheus.CounterVec
	runDuration         *prometheus.HistogramVec
	itemsTotal          *prometheus.CounterVec
	qualificationsTotal *prometheus.CounterVec
	breakerState        *prometheus.GaugeVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bdp",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total source runs by final status.",
		},
		[]string{"service", "source", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bdp",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Source run duration in seconds.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"service", "source"},
	)
	itemsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bdp",
			Subsystem: "pipeline",
			Name:      "items_total",
			Help:      "Items seen per pipeline stage.",
		},
		[]string{"service", "source", "stage"},
	)
	qualificationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bdp",
			Subsystem: "pipeline",
			Name:      "qualifications_total",
			Help:      "Qualification outcomes per source.",
		},
		[]string{"service", "source", "outcome"},
	)

	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "bdp",
			Subsystem: "upstream",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per upstream (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "upstream"},
	)

	if registerer != nil {
		registerer.MustRegister(runsTotal, runDuration, itemsTotal, qualificationsTotal, breakerState)
	}

	return &PipelineMetrics{
		service:             service,
		runsTotal:           runsTotal,
		runDuration:         runDuration,
		itemsTotal:          itemsTotal,
		qualificationsTotal: qualificationsTotal,
		breakerState:        breakerState,
	}
}

func (m *PipelineMetrics) ObserveRun(source string, status domain.RunStatus, found, fresh, qualified int, seconds float64) {
	m.runsTotal.WithLabelValues(m.service, source, string(status)).Inc()
	m.runDuration.WithLabelValues(m.service, source).Observe(seconds)
	m.itemsTotal.WithLabelValues(m.service, source, "found").Add(float64(found))
	m.itemsTotal.WithLabelValues(m.service, source, "new").Add(float64(fresh))
	m.itemsTotal.WithLabelValues(m.service, source, "qualified").Add(float64(qualified))
}

func (m *PipelineMetrics) ObserveQualification(source, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.qualificationsTotal.WithLabelValues(m.service, source, outcome).Inc()
}

// ObserveBreaker matches resilience.Config.OnStateChange.
func (m *PipelineMetrics) ObserveBreaker(upstream, state string) {
	value := 0.0
	switch state {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, upstream).Set(value)
}
