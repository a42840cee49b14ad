// Package metrics provides Prometheus metrics for MarketPulse.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ArticlesTotal counts pipeline outcomes per article.
	ArticlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketpulse",
			Name:      "articles_total",
			Help:      "Articles processed by the scan pipeline, by source and outcome",
		},
		[]string{"source", "status"},
	)

	// SentimentsLogged counts sentiment log appends.
	SentimentsLogged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketpulse",
			Name:      "sentiments_logged_total",
			Help:      "Sentiment records appended, by source and label",
		},
		[]string{"source", "sentiment"},
	)

	// ClassifierFailures counts classifier replies carrying the error marker.
	ClassifierFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marketpulse",
			Name:      "classifier_failures_total",
			Help:      "Total number of failed sentiment classifications",
		},
	)

	// FetchErrors counts upstream fetch failures.
	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketpulse",
			Name:      "fetch_errors_total",
			Help:      "Upstream fetch failures, by provider",
		},
		[]string{"provider"},
	)

	// DigestsTotal counts digest deliveries.
	DigestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketpulse",
			Name:      "digests_total",
			Help:      "Digest deliveries, by outcome",
		},
		[]string{"status"},
	)

	// RunDuration measures one pipeline run.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marketpulse",
			Name:      "run_duration_seconds",
			Help:      "Duration of scan pipeline runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)
)

// RecordArticle records the outcome of one article.
func RecordArticle(source, status string) {
	ArticlesTotal.WithLabelValues(source, status).Inc()
}

// RecordLogged records one appended sentiment record.
func RecordLogged(source, sentiment string) {
	SentimentsLogged.WithLabelValues(source, sentiment).Inc()
}

// RecordClassifierFailure records a failed classification.
func RecordClassifierFailure() {
	ClassifierFailures.Inc()
}

// RecordFetchError records an upstream fetch failure.
func RecordFetchError(provider string) {
	FetchErrors.WithLabelValues(provider).Inc()
}

// RecordDigest records a digest delivery attempt.
func RecordDigest(status string) {
	DigestsTotal.WithLabelValues(status).Inc()
}

// ObserveRun records the duration of a pipeline run.
func ObserveRun(source string, seconds float64) {
	RunDuration.WithLabelValues(source).Observe(seconds)
}
