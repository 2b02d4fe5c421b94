// Package metrics holds the Prometheus collectors shared by the signal
// readers, the report service and the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SourceFailures counts signal-source reads that degraded to empty.
	SourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attribution",
		Name:      "source_failures_total",
		Help:      "Signal source reads that failed and were replaced by empty evidence.",
	}, []string{"source"})

	// SourceDuration observes signal-source read latency.
	SourceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "attribution",
		Name:      "source_duration_seconds",
		Help:      "Latency of signal source reads.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})

	// ReportDuration observes end-to-end report generation latency.
	ReportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "attribution",
		Name:      "report_duration_seconds",
		Help:      "Latency of full attribution report generation.",
		Buckets:   prometheus.DefBuckets,
	})

	// AttributionRows counts emitted attribution rows by signal type.
	AttributionRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attribution",
		Name:      "rows_total",
		Help:      "Attribution rows emitted, by signal type.",
	}, []string{"signal_type"})

	// HTTPRequests counts API requests by route and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attribution",
		Name:      "http_requests_total",
		Help:      "HTTP API requests by route pattern and status.",
	}, []string{"route", "status"})
)
