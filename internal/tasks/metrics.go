package tasks

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts task outcomes per kind.
type Metrics struct {
	scheduled    *prometheus.CounterVec
	deduplicated *prometheus.CounterVec
	completed    *prometheus.CounterVec
	failed       *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	queueDepth   prometheus.Gauge
}

// NewMetrics creates the task metrics and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		scheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listarchive_tasks_scheduled_total",
			Help: "Tasks accepted by the queue.",
		}, []string{"kind"}),
		deduplicated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listarchive_tasks_deduplicated_total",
			Help: "Tasks dropped because an identical task was pending.",
		}, []string{"kind"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listarchive_tasks_completed_total",
			Help: "Tasks whose handler returned without error.",
		}, []string{"kind"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listarchive_tasks_failed_total",
			Help: "Tasks whose handler returned an error or panicked.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "listarchive_task_duration_seconds",
			Help:    "Task handler run time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "listarchive_tasks_queue_depth",
			Help: "Tasks waiting for a worker.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.scheduled,
			m.deduplicated,
			m.completed,
			m.failed,
			m.duration,
			m.queueDepth,
		)
	}

	return m
}
