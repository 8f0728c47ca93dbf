package flow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics provides Prometheus-compatible metrics collection
// for workflow execution monitoring in production environments.
//
// Metrics exposed (all namespaced with "duraflow_"):
//
//  1. workflows_started_total (counter): WORKFLOW_STARTED events.
//     Labels: workflow.
//  2. workflows_finished_total (counter): terminal workflow events.
//     Labels: workflow, status (completed/failed).
//  3. workflows_paused_total (counter): WORKFLOW_PAUSED events.
//     Labels: workflow.
//  4. tasks_started_total (counter): TASK_STARTED events.
//     Labels: task.
//  5. tasks_finished_total (counter): terminal task events.
//     Labels: task, status (completed/failed).
//  6. task_retries_total (counter): TASK_RETRY_STARTED events.
//     Labels: task.
//  7. task_fallbacks_total (counter): TASK_FALLBACK_STARTED events.
//     Labels: task.
//
// Counters are driven off the event stream, so they stay consistent
// with the durable log by construction.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := flow.NewPrometheusMetrics(registry)
//	engine := flow.NewEngine(flow.WithMetrics(metrics))
//
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
type PrometheusMetrics struct {
	workflowsStarted  *prometheus.CounterVec
	workflowsFinished *prometheus.CounterVec
	workflowsPaused   *prometheus.CounterVec
	tasksStarted      *prometheus.CounterVec
	tasksFinished     *prometheus.CounterVec
	taskRetries       *prometheus.CounterVec
	taskFallbacks     *prometheus.CounterVec
}

// NewPrometheusMetrics creates and registers all execution metrics
// with the provided registry. A nil registry falls back to the global
// default registerer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		workflowsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duraflow",
			Name:      "workflows_started_total",
			Help:      "Workflow executions started.",
		}, []string{"workflow"}),
		workflowsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duraflow",
			Name:      "workflows_finished_total",
			Help:      "Workflow executions reaching a terminal event.",
		}, []string{"workflow", "status"}),
		workflowsPaused: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duraflow",
			Name:      "workflows_paused_total",
			Help:      "Workflow pause events.",
		}, []string{"workflow"}),
		tasksStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duraflow",
			Name:      "tasks_started_total",
			Help:      "Task invocations started.",
		}, []string{"task"}),
		tasksFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duraflow",
			Name:      "tasks_finished_total",
			Help:      "Task invocations reaching a terminal event.",
		}, []string{"task", "status"}),
		taskRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duraflow",
			Name:      "task_retries_total",
			Help:      "Task retry attempts.",
		}, []string{"task"}),
		taskFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duraflow",
			Name:      "task_fallbacks_total",
			Help:      "Task fallback activations.",
		}, []string{"task"}),
	}
}

// observe maps one appended execution event onto the counters.
func (m *PrometheusMetrics) observe(ev ExecutionEvent) {
	switch ev.Type {
	case WorkflowStarted:
		m.workflowsStarted.WithLabelValues(ev.Name).Inc()
	case WorkflowCompleted:
		m.workflowsFinished.WithLabelValues(ev.Name, "completed").Inc()
	case WorkflowFailed:
		m.workflowsFinished.WithLabelValues(ev.Name, "failed").Inc()
	case WorkflowPaused:
		m.workflowsPaused.WithLabelValues(ev.Name).Inc()
	case TaskStarted:
		m.tasksStarted.WithLabelValues(ev.Name).Inc()
	case TaskCompleted:
		m.tasksFinished.WithLabelValues(ev.Name, "completed").Inc()
	case TaskFailed:
		m.tasksFinished.WithLabelValues(ev.Name, "failed").Inc()
	case TaskRetryStarted:
		m.taskRetries.WithLabelValues(ev.Name).Inc()
	case TaskFallbackStarted:
		m.taskFallbacks.WithLabelValues(ev.Name).Inc()
	}
}
