package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BuildInfo is set by the main package with version metadata.
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "telmi_build_info",
			Help: "Build information of the Telmi pipeline",
		},
		[]string{"version", "commit", "date"},
	)

	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telmi_requests_total",
			Help: "Total number of processed questions",
		},
		[]string{"route", "status"},
	)

	stageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telmi_stage_errors_total",
			Help: "Stage failures by error kind",
		},
		[]string{"kind"},
	)

	queryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "telmi_query_duration_seconds",
			Help:    "Duration of database query execution in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
