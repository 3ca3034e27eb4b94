package pipeline

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report pipeline activity. A nil
// *Metrics records nothing.
type Metrics struct {
	runs          *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	cacheWrites   *prometheus.CounterVec
	runsActive    prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns metrics registered with the global Prometheus
// registry, created once.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics registers the collectors with reg, reusing collectors that
// are already registered under the same names. Other registration errors
// panic.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "briefing",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "briefing",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each stage.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage", "status"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "briefing",
			Subsystem: "pipeline",
			Name:      "stage_failures_total",
			Help:      "Stage executions that failed, by error type.",
		}, []string{"stage", "type"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "briefing",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Artifact cache lookups by stage and result.",
		}, []string{"stage", "result"}),
		cacheWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "briefing",
			Subsystem: "cache",
			Name:      "write_errors_total",
			Help:      "Artifact cache writes that failed.",
		}, []string{"stage"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "briefing",
			Subsystem: "pipeline",
			Name:      "runs_active",
			Help:      "Runs currently executing.",
		}),
	}

	m.runs = register(reg, m.runs)
	m.stageDuration = register(reg, m.stageDuration)
	m.stageFailures = register(reg, m.stageFailures)
	m.cacheLookups = register(reg, m.cacheLookups)
	m.cacheWrites = register(reg, m.cacheWrites)
	m.runsActive = register(reg, m.runsActive)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) runStarted() {
	if m == nil {
		return
	}
	m.runsActive.Inc()
}

func (m *Metrics) runFinished(outcome string) {
	if m == nil {
		return
	}
	m.runsActive.Dec()
	m.runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeStage(stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

func (m *Metrics) stageFailed(stage, errType string) {
	if m == nil {
		return
	}
	m.stageFailures.WithLabelValues(stage, errType).Inc()
}

// ObserveLookup implements cache.Observer.
func (m *Metrics) ObserveLookup(stage, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(stage, result).Inc()
}

// ObserveWriteError implements cache.Observer.
func (m *Metrics) ObserveWriteError(stage string) {
	if m == nil {
		return
	}
	m.cacheWrites.WithLabelValues(stage).Inc()
}
