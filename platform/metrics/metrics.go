// Package metrics provides Prometheus metrics for the lead engine.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "govcon"

var (
	// RegistryRequestsTotal tracks registry API calls by endpoint and status class
	RegistryRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "requests_total",
			Help:      "Total number of registry API requests",
		},
		[]string{"endpoint", "status"},
	)

	// RegistryRequestDuration tracks registry API latency
	RegistryRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "request_duration_seconds",
			Help:      "Duration of registry API requests in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	// SyncRecordsTotal tracks per-record outcomes of sync runs
	SyncRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "records_total",
			Help:      "Records processed by sync runs by outcome",
		},
		[]string{"kind", "outcome"},
	)

	// SyncRunDuration tracks sync run duration by kind and final status
	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Duration of sync runs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"kind", "status"},
	)

	// OutreachSendsTotal tracks outreach sends by campaign type and outcome
	OutreachSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outreach",
			Name:      "sends_total",
			Help:      "Outreach emails attempted by outcome",
		},
		[]string{"campaign_type", "outcome"},
	)

	// EngagementSignalsTotal tracks engagement signals by kind and result
	EngagementSignalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "signals_total",
			Help:      "Engagement signals applied by kind and result",
		},
		[]string{"signal", "result"},
	)

	// HTTPRequestDuration tracks API latency by matched route
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Handler exposes the default registry for scraping.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
