package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_status_polls_total",
			Help: "Total status polls against the payment gateway",
		},
		[]string{"result"},
	)

	StatusTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_status_transitions_total",
			Help: "Lifecycle state transitions observed",
		},
		[]string{"state"},
	)

	ClassifierAnomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_status_classifier_anomalies_total",
			Help: "Gateway statuses that did not match the known vocabulary",
		},
		[]string{"raw_status"},
	)

	StoreFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_status_store_failures_total",
			Help: "Persistence failures while saving status records",
		},
		[]string{"operation"},
	)

	ActiveMonitors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "payment_status_active_monitors",
			Help: "Monitors currently tracking a checkout",
		},
	)

	PollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "payment_status_poll_duration_seconds",
			Help:    "Duration of a single gateway status poll",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(
		PollsTotal,
		StatusTransitionsTotal,
		ClassifierAnomaliesTotal,
		StoreFailuresTotal,
		ActiveMonitors,
		PollDuration,
	)
}
