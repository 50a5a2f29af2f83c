package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements ports.MetricsCollector using Prometheus
type Collector struct {
	runsStarted     prometheus.Counter
	runsCompleted   *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	activeRuns      prometheus.Gauge
	nodesExecuted   *prometheus.CounterVec
	nodeDuration    *prometheus.HistogramVec
	publishFailures *prometheus.CounterVec

	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
	overflowJobs      prometheus.Gauge
}

// NewCollector creates a collector registered on reg. Pass
// prometheus.DefaultRegisterer to expose the metrics on the default /metrics
// handler.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		runsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dagrun_runs_started_total",
				Help: "Total number of runs that entered running",
			},
		),
		runsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dagrun_runs_completed_total",
				Help: "Total number of runs that reached a terminal status",
			},
			[]string{"status"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dagrun_run_duration_seconds",
				Help:    "Run wall-clock duration in seconds",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),
		activeRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dagrun_active_runs",
				Help: "Number of runs currently executing",
			},
		),
		nodesExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dagrun_nodes_executed_total",
				Help: "Total number of node executions",
			},
			[]string{"node_type", "status"},
		),
		nodeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dagrun_node_duration_seconds",
				Help:    "Node execution duration in seconds",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"node_type"},
		),
		publishFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dagrun_event_publish_failures_total",
				Help: "Total number of run events that could not be published",
			},
			[]string{"kind"},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dagrun_worker_pool_idle",
				Help: "Number of idle run workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dagrun_worker_pool_busy",
				Help: "Number of busy run workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dagrun_worker_pool_stopped",
				Help: "Number of stopped run workers",
			},
		),
		overflowJobs: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dagrun_worker_pool_overflow",
				Help: "Number of runs executing on overflow goroutines",
			},
		),
	}
}

// RecordRunStarted counts a run entering running
func (c *Collector) RecordRunStarted() {
	c.runsStarted.Inc()
}

// RecordRunCompleted counts a terminal run and observes its duration
func (c *Collector) RecordRunCompleted(status string, duration time.Duration) {
	c.runsCompleted.WithLabelValues(status).Inc()
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordNodeExecuted counts a node execution and observes its duration
func (c *Collector) RecordNodeExecuted(nodeType, status string, duration time.Duration) {
	c.nodesExecuted.WithLabelValues(nodeType, status).Inc()
	c.nodeDuration.WithLabelValues(nodeType).Observe(duration.Seconds())
}

// RecordPublishFailure counts an event that could not be published. The
// label is the event kind (status, log or error), not the run topic.
func (c *Collector) RecordPublishFailure(topic string) {
	c.publishFailures.WithLabelValues(topicKind(topic)).Inc()
}

// IncActiveRuns increments the active run gauge
func (c *Collector) IncActiveRuns() {
	c.activeRuns.Inc()
}

// DecActiveRuns decrements the active run gauge
func (c *Collector) DecActiveRuns() {
	c.activeRuns.Dec()
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}

// SetOverflowJobs sets the number of runs executing outside the fixed workers
func (c *Collector) SetOverflowJobs(n int) {
	c.overflowJobs.Set(float64(n))
}

func topicKind(topic string) string {
	n := len(topic)
	switch {
	case n > 4 && topic[n-4:] == ":log":
		return "log"
	case n > 6 && topic[n-6:] == ":error":
		return "error"
	}
	return "status"
}
