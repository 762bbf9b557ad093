// Package agent hosts cross-cutting infrastructure shared by the execution
// engine, such as Prometheus instrumentation.
package agent

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors reporting engine activity.
type Metrics struct {
	taskDuration      *prometheus.HistogramVec
	iterationDuration *prometheus.HistogramVec
	toolDuration      *prometheus.HistogramVec
	verifications     *prometheus.CounterVec
	loopWarnings      *prometheus.CounterVec
	consentDecisions  *prometheus.CounterVec
	tasksActive       prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry. The collectors are created only once to
// avoid duplicate registration panics when multiple engines run in the same
// process.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Callers needing isolated metric names (for example tests) should supply a
// fresh registry. Registration errors other than AlreadyRegistered panic,
// mirroring promauto semantics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	taskDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fixpoint",
			Subsystem: "engine",
			Name:      "task_duration_seconds",
			Help:      "Wall-clock duration of completed tasks.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"status", "stop_reason"},
	)
	iterationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fixpoint",
			Subsystem: "engine",
			Name:      "iteration_duration_seconds",
			Help:      "Duration of single engine iterations.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	toolDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fixpoint",
			Subsystem: "tools",
			Name:      "call_duration_seconds",
			Help:      "Duration of tool executions.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tool", "status"},
	)
	verifications := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fixpoint",
			Subsystem: "engine",
			Name:      "verifications_total",
			Help:      "Verification passes grouped by result.",
		},
		[]string{"result"},
	)
	loopWarnings := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fixpoint",
			Subsystem: "engine",
			Name:      "loop_warnings_total",
			Help:      "Repeating-failure detections grouped by severity.",
		},
		[]string{"severity"},
	)
	consentDecisions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fixpoint",
			Subsystem: "consent",
			Name:      "decisions_total",
			Help:      "Consent resolutions grouped by decision.",
		},
		[]string{"decision"},
	)
	tasksActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fixpoint",
			Subsystem: "engine",
			Name:      "tasks_active",
			Help:      "Number of tasks currently executing.",
		},
	)

	collectors := []prometheus.Collector{
		taskDuration, iterationDuration, toolDuration,
		verifications, loopWarnings, consentDecisions, tasksActive,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch collector {
				case taskDuration:
					taskDuration = already.ExistingCollector.(*prometheus.HistogramVec)
				case iterationDuration:
					iterationDuration = already.ExistingCollector.(*prometheus.HistogramVec)
				case toolDuration:
					toolDuration = already.ExistingCollector.(*prometheus.HistogramVec)
				case verifications:
					verifications = already.ExistingCollector.(*prometheus.CounterVec)
				case loopWarnings:
					loopWarnings = already.ExistingCollector.(*prometheus.CounterVec)
				case consentDecisions:
					consentDecisions = already.ExistingCollector.(*prometheus.CounterVec)
				case tasksActive:
					tasksActive = already.ExistingCollector.(prometheus.Gauge)
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{
		taskDuration:      taskDuration,
		iterationDuration: iterationDuration,
		toolDuration:      toolDuration,
		verifications:     verifications,
		loopWarnings:      loopWarnings,
		consentDecisions:  consentDecisions,
		tasksActive:       tasksActive,
	}
}

// ObserveTaskDuration records the wall-clock duration of one finished task.
func (m *Metrics) ObserveTaskDuration(status, stopReason string, duration time.Duration) {
	if m == nil || m.taskDuration == nil {
		return
	}
	m.taskDuration.WithLabelValues(status, stopReason).Observe(duration.Seconds())
}

// ObserveIterationDuration records how long one iteration took.
func (m *Metrics) ObserveIterationDuration(outcome string, duration time.Duration) {
	if m == nil || m.iterationDuration == nil {
		return
	}
	m.iterationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveToolDuration records one tool execution.
func (m *Metrics) ObserveToolDuration(tool string, success bool, duration time.Duration) {
	if m == nil || m.toolDuration == nil {
		return
	}
	status := "ok"
	if !success {
		status = "error"
	}
	m.toolDuration.WithLabelValues(tool, status).Observe(duration.Seconds())
}

// IncVerification counts one verification pass by result.
func (m *Metrics) IncVerification(passed bool) {
	if m == nil || m.verifications == nil {
		return
	}
	result := "passed"
	if !passed {
		result = "failed"
	}
	m.verifications.WithLabelValues(result).Inc()
}

// IncLoopWarning counts one repeating-failure detection.
func (m *Metrics) IncLoopWarning(severity string) {
	if m == nil || m.loopWarnings == nil {
		return
	}
	m.loopWarnings.WithLabelValues(severity).Inc()
}

// IncConsentDecision counts one consent resolution.
func (m *Metrics) IncConsentDecision(decision string) {
	if m == nil || m.consentDecisions == nil {
		return
	}
	m.consentDecisions.WithLabelValues(decision).Inc()
}

// IncActiveTasks marks a task as started.
func (m *Metrics) IncActiveTasks() {
	if m == nil || m.tasksActive == nil {
		return
	}
	m.tasksActive.Inc()
}

// DecActiveTasks marks a task as finished.
func (m *Metrics) DecActiveTasks() {
	if m == nil || m.tasksActive == nil {
		return
	}
	m.tasksActive.Dec()
}
