package maintenance

import "github.com/prometheus/client_golang/prometheus"

var (
	integrityRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickerql_integrity_runs_total",
			Help: "Total number of snapshot integrity runs by status.",
		},
		[]string{"status"},
	)
	integrityMissingSnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tickerql_integrity_missing_snapshots_total",
			Help: "Total number of integrity runs that found no snapshot.",
		},
	)
	integrityStaleSnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tickerql_integrity_stale_snapshots_total",
			Help: "Total number of integrity runs whose snapshot disagreed with the store.",
		},
	)
	snapshotRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tickerql_snapshot_records",
			Help: "Number of records in the last verified snapshot.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		integrityRunsTotal,
		integrityMissingSnapshotsTotal,
		integrityStaleSnapshotsTotal,
		snapshotRecords,
	)
}

func observeIntegrity(summary IntegritySummary) {
	if summary.Missing {
		integrityMissingSnapshotsTotal.Inc()
	}
	if summary.RecordMismatch || summary.SizeMismatch {
		integrityStaleSnapshotsTotal.Inc()
	}
	if summary.Missing || summary.RecordMismatch || summary.SizeMismatch || summary.OperationalFailures > 0 {
		integrityRunsTotal.WithLabelValues("failed").Inc()
		return
	}
	snapshotRecords.Set(float64(summary.SnapshotRecords))
	integrityRunsTotal.WithLabelValues("completed").Inc()
}
