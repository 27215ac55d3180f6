package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickerql_http_requests_total",
			Help: "Total number of HTTP requests by route and status.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "tickerql_http_request_duration_seconds",
			Help: "HTTP request latency by route.",
			// Up to two minutes: resolve requests wait on the model.
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "route", "status"},
	)
	httpInFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tickerql_http_in_flight_requests",
			Help: "Number of HTTP requests being served.",
		},
	)
	resolveRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickerql_resolve_requests_total",
			Help: "Total number of resolved questions by outcome.",
		},
		[]string{"outcome"},
	)
	sqlGenerationDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tickerql_sql_generation_duration_ms",
			Help:    "Latency of SQL generation calls in milliseconds.",
			Buckets: []float64{5, 25, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"provider", "outcome"},
	)
	queryExecutionDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tickerql_query_execution_duration_ms",
			Help:    "Latency of generated SQL execution in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
		[]string{"engine", "outcome"},
	)
	queryResultRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tickerql_query_result_rows",
			Help:    "Number of rows returned per executed query.",
			Buckets: []float64{0, 1, 10, 100, 1000, 10000},
		},
	)
	loadedRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tickerql_loaded_records_total",
			Help: "Total number of stock records written by the loader.",
		},
	)
	modelPullsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickerql_model_pulls_total",
			Help: "Total number of model pull attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		httpInFlightRequests,
		resolveRequestsTotal,
		sqlGenerationDurationMs,
		queryExecutionDurationMs,
		queryResultRows,
		loadedRecordsTotal,
		modelPullsTotal,
	)
}

func ObserveResolve(outcome string) {
	resolveRequestsTotal.WithLabelValues(outcome).Inc()
}

func ObserveSQLGeneration(provider string, elapsed time.Duration, err error) {
	sqlGenerationDurationMs.WithLabelValues(provider, outcomeLabel(err)).Observe(float64(elapsed.Milliseconds()))
}

func ObserveQueryExecution(engine string, rows int, elapsed time.Duration, err error) {
	queryExecutionDurationMs.WithLabelValues(engine, outcomeLabel(err)).Observe(float64(elapsed.Milliseconds()))
	if err == nil {
		queryResultRows.Observe(float64(rows))
	}
}

func ObserveLoadedRecords(count int) {
	if count > 0 {
		loadedRecordsTotal.Add(float64(count))
	}
}

func ObserveModelPull(err error) {
	modelPullsTotal.WithLabelValues(outcomeLabel(err)).Inc()
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
