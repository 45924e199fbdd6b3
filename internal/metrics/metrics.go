// Package metrics holds the Prometheus collectors shared by the query and
// answer pipelines. Collectors register on the default registry and are
// served by promhttp on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeOK            = "ok"
	OutcomeParseError    = "parse_error"
	OutcomeSubqueryError = "subquery_error"
	OutcomeFallback      = "fallback"
	OutcomeZeroDivision  = "zero_division"
)

var (
	transformTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aicfo_transform_total",
		Help: "View-table transformations by outcome",
	}, []string{"outcome"})

	futureDateClampedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aicfo_future_date_clamped_total",
		Help: "Transformations whose resolved date window was clamped to today",
	})

	renderTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aicfo_render_total",
		Help: "Answer template renders by outcome",
	}, []string{"outcome"})

	countRowsErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aicfo_count_rows_errors_total",
		Help: "Row count queries that failed and returned the next-page sentinel",
	})

	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aicfo_query_duration_seconds",
		Help:    "Time spent executing rewritten SQL",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"op"})
)

// ObserveTransform records one transformation.
func ObserveTransform(outcome string, clamped bool) {
	transformTotal.WithLabelValues(outcome).Inc()
	if clamped {
		futureDateClampedTotal.Inc()
	}
}

// ObserveRender records one template render.
func ObserveRender(outcome string) {
	renderTotal.WithLabelValues(outcome).Inc()
}

// IncrementCountRowsErrors counts a failed row count.
func IncrementCountRowsErrors() {
	countRowsErrorsTotal.Inc()
}

// ObserveQuery records the duration of a database round trip.
func ObserveQuery(op string, started time.Time) {
	queryDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}
