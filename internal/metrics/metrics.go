// Package metrics registers the process's Prometheus collectors: ingestion
// run counters/timers and per-tool query invocation counters.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	IngestRunsStarted   prometheus.Counter
	IngestRunsCompleted prometheus.Counter
	IngestRunsFailed    prometheus.Counter
	IngestFilesDiscovered prometheus.Counter
	IngestDiagnostics   prometheus.Counter
	IngestRunDuration   prometheus.Histogram

	QueryToolInvocations *prometheus.CounterVec
	QueryToolErrors      *prometheus.CounterVec
	QueryToolDuration    *prometheus.HistogramVec
)

func init() {
	registerOnce.Do(func() {
		IngestRunsStarted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codegraph_ingest_runs_started_total", Help: "Ingestion runs started.",
		})
		IngestRunsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codegraph_ingest_runs_completed_total", Help: "Ingestion runs completed without a fatal error.",
		})
		IngestRunsFailed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codegraph_ingest_runs_failed_total", Help: "Ingestion runs that aborted with a fatal error.",
		})
		IngestFilesDiscovered = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codegraph_ingest_files_discovered_total", Help: "Files discovered across all ingestion runs.",
		})
		IngestDiagnostics = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codegraph_ingest_diagnostics_total", Help: "Per-file parse/extract diagnostics recorded.",
		})

		buckets := []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}
		IngestRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "codegraph_ingest_run_duration_seconds", Help: "Wall-clock duration of an ingestion run.", Buckets: buckets,
		})

		QueryToolInvocations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codegraph_query_tool_invocations_total", Help: "Query tool invocations by tool name.",
		}, []string{"tool"})
		QueryToolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codegraph_query_tool_errors_total", Help: "Query tool invocations that returned an error envelope.",
		}, []string{"tool", "code"})
		QueryToolDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "codegraph_query_tool_duration_seconds", Help: "Query tool handler duration.", Buckets: prometheus.DefBuckets,
		}, []string{"tool"})

		prometheus.MustRegister(
			IngestRunsStarted, IngestRunsCompleted, IngestRunsFailed,
			IngestFilesDiscovered, IngestDiagnostics, IngestRunDuration,
			QueryToolInvocations, QueryToolErrors, QueryToolDuration,
		)
	})
}

// Timer measures an in-flight duration and reports it to a Histogram on
// ObserveDuration, mirroring prometheus.Timer without depending on the
// promauto helper (this repo registers collectors explicitly, see init above).
type Timer struct {
	start   time.Time
	observe func(float64)
}

// NewTimer starts a timer that reports to h when ObserveDuration is called.
func NewTimer(h prometheus.Histogram) *Timer {
	return &Timer{start: time.Now(), observe: h.Observe}
}

// ObserveDuration records the elapsed time since NewTimer onto the target
// histogram. Safe to call via defer.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	t.observe(d.Seconds())
	return d
}
