package reports

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsMu          sync.Mutex
	metricsInitialized bool
	metricsErr         error

	cacheHitCounter  *prometheus.CounterVec
	cacheMissCounter *prometheus.CounterVec
	buildHistogram   *prometheus.HistogramVec

	invalidationCounter prometheus.Counter
	cacheVersionGauge   prometheus.Gauge
)

// SetupMetrics registers report cache collectors. Subsequent calls are ignored.
func SetupMetrics(reg prometheus.Registerer) error {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if metricsInitialized {
		return metricsErr
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cacheHitCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmadist_report_cache_hits_total",
		Help: "Number of report cache hits.",
	}, []string{"report"})
	cacheMissCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmadist_report_cache_miss_total",
		Help: "Number of report cache misses.",
	}, []string{"report"})
	buildHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pharmadist_report_build_duration_seconds",
		Help:    "Duration required to build a report from the database.",
		Buckets: prometheus.DefBuckets,
	}, []string{"report"})

	invalidationCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pharmadist_report_cache_invalidations_total",
		Help: "Number of report cache version bumps received from peers.",
	})
	cacheVersionGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pharmadist_report_cache_version",
		Help: "Latest report cache version seen on the invalidation channel.",
	})

	for _, collector := range []prometheus.Collector{cacheHitCounter, cacheMissCounter, buildHistogram, invalidationCounter, cacheVersionGauge} {
		err := reg.Register(collector)
		if err == nil {
			continue
		}
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			metricsErr = err
			cacheHitCounter, cacheMissCounter, buildHistogram = nil, nil, nil
			invalidationCounter, cacheVersionGauge = nil, nil
			metricsInitialized = true
			return metricsErr
		}
		existing := already.ExistingCollector
		var ok bool
		switch collector {
		case cacheHitCounter:
			ok = adopt(&cacheHitCounter, existing)
		case cacheMissCounter:
			ok = adopt(&cacheMissCounter, existing)
		case buildHistogram:
			ok = adopt(&buildHistogram, existing)
		case invalidationCounter:
			ok = adopt(&invalidationCounter, existing)
		case cacheVersionGauge:
			ok = adopt(&cacheVersionGauge, existing)
		}
		if !ok {
			metricsErr = fmt.Errorf("report metrics: unexpected collector type %T", existing)
		}
	}
	metricsInitialized = true
	return metricsErr
}

func adopt[T prometheus.Collector](dst *T, existing prometheus.Collector) bool {
	c, ok := existing.(T)
	if ok {
		*dst = c
	}
	return ok
}

// RecordInvalidation counts a cache version bump announced by another
// instance and tracks the newest version seen.
func RecordInvalidation(version int64) {
	if invalidationCounter != nil {
		invalidationCounter.Inc()
	}
	if cacheVersionGauge != nil {
		cacheVersionGauge.Set(float64(version))
	}
}

func recordCacheHit(report string) {
	if cacheHitCounter != nil {
		cacheHitCounter.WithLabelValues(report).Inc()
	}
}

func recordCacheMiss(report string) {
	if cacheMissCounter != nil {
		cacheMissCounter.WithLabelValues(report).Inc()
	}
}

func observeBuild(report string, d time.Duration) {
	if buildHistogram != nil {
		buildHistogram.WithLabelValues(report).Observe(d.Seconds())
	}
}
