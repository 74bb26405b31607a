package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Uploads by media kind; outcome is success/failure.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_uploads_total",
			Help: "Total number of document upload attempts",
		},
		[]string{"media_kind", "outcome"},
	)

	// Deletes by entry point (id, url) and outcome.
	DeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_deletes_total",
			Help: "Total number of document delete attempts",
		},
		[]string{"operation", "outcome"},
	)

	SignedURLsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_signed_urls_total",
			Help: "Total number of signed URLs issued",
		},
		[]string{"visibility"},
	)

	SignedURLFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_signed_url_fallbacks_total",
			Help: "Signed URL requests answered with the public URL instead",
		},
		[]string{"mode", "reason"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "document_storage_operation_duration_seconds",
			Help:    "Time spent in object storage calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "document_rate_limited_total",
			Help: "Requests rejected by the upload rate limiter",
		},
	)

	ReconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "document_reconcile_runs_total",
		Help: "Total number of reconciliation runs",
	})

	ReconcileIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "document_reconcile_issues_total",
		Help: "Inconsistencies found by reconciliation",
	}, []string{"type"})

	ReconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "document_reconcile_duration_seconds",
		Help:    "Duration of reconciliation runs in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})
)

// Handler returns an http.Handler for Prometheus scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
