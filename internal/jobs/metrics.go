package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs      *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	integrity *prometheus.GaugeVec
	warmed    *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// SetIntegrityIssues records the latest ledger check result. kind is one of
// unbalanced_entries, balance_drift or totals.
func (m *Metrics) SetIntegrityIssues(kind string, count int) {
	if m == nil {
		return
	}
	m.integrity.WithLabelValues(kind).Set(float64(count))
}

// AddWarmed counts report payloads pre-built by the warmup job.
func (m *Metrics) AddWarmed(report string) {
	if m == nil {
		return
	}
	m.warmed.WithLabelValues(report).Inc()
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmadist_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmadist_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pharmadist_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	integrity := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pharmadist_ledger_integrity_issues",
		Help: "Issues found by the last ledger integrity check, by kind.",
	}, []string{"kind"})
	warmed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmadist_report_warmups_total",
		Help: "Report payloads pre-built by the warmup job.",
	}, []string{"report"})
	registerer.MustRegister(runs, failures, duration, integrity, warmed)
	return &Metrics{runs: runs, failures: failures, duration: duration, integrity: integrity, warmed: warmed}
}
