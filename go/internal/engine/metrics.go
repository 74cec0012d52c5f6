package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricActiveRunners = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "supplybot",
		Name:      "active_runners",
		Help:      "Number of task runners currently live.",
	})

	metricDraftsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "supplybot",
		Name:      "drafts_created_total",
		Help:      "Draft computations started on the marketplace.",
	})

	metricDraftRecreates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "supplybot",
		Name:      "draft_recreates_total",
		Help:      "Drafts recreated after FAILED/EXPIRED/unknown status.",
	})

	metricTimeslotPolls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "supplybot",
		Name:      "timeslot_polls_total",
		Help:      "Calls to the timeslot endpoint.",
	})

	metricSuppliesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "supplybot",
		Name:      "supplies_created_total",
		Help:      "Supply orders successfully committed.",
	})

	metricLimiterWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "supplybot",
		Name:      "limiter_wait_seconds",
		Help:      "Time spent waiting for a rate-limiter token.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	metricTerminalEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "supplybot",
		Name:      "terminal_events_total",
		Help:      "Task runs finished, labelled by terminal event type.",
	}, []string{"type"})
)
