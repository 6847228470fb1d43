package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors recorded by the assistant. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	workflowRuns       *prometheus.CounterVec
	stageExecutions    *prometheus.CounterVec
	downloadIterations prometheus.Histogram
	schedulerJobs      *prometheus.CounterVec
	selectorCandidates prometheus.Histogram
	toolCalls          *prometheus.CounterVec
	modelLatency       prometheus.Histogram
}

// NewMetrics registers all collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		workflowRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hermes_workflow_runs_total",
			Help: "Workflow runs by outcome.",
		}, []string{"outcome"}),
		stageExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hermes_workflow_stage_executions_total",
			Help: "Stage actions executed.",
		}, []string{"stage"}),
		downloadIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hermes_workflow_download_iterations",
			Help:    "Download stage iterations per run.",
			Buckets: []float64{0, 1, 2, 3, 5, 8},
		}),
		schedulerJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hermes_scheduler_jobs_total",
			Help: "Deferred jobs by result.",
		}, []string{"result"}),
		selectorCandidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hermes_selector_candidates",
			Help:    "Candidates returned per selection.",
			Buckets: []float64{0, 1, 5, 10, 15},
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hermes_tool_calls_total",
			Help: "Tool invocations by tool and status.",
		}, []string{"tool", "status"}),
		modelLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hermes_model_request_seconds",
			Help:    "Latency of model completion requests.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.workflowRuns, m.stageExecutions, m.downloadIterations, m.schedulerJobs,
		m.selectorCandidates, m.toolCalls, m.modelLatency)
	return m
}

func (m *Metrics) WorkflowRun(outcome string) {
	if m == nil {
		return
	}
	m.workflowRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StageExecuted(stage string) {
	if m == nil {
		return
	}
	m.stageExecutions.WithLabelValues(stage).Inc()
}

func (m *Metrics) DownloadIterations(n int) {
	if m == nil {
		return
	}
	m.downloadIterations.Observe(float64(n))
}

// SchedulerJob records fired, misfired, failed or cancelled jobs.
func (m *Metrics) SchedulerJob(result string) {
	if m == nil {
		return
	}
	m.schedulerJobs.WithLabelValues(result).Inc()
}

func (m *Metrics) SelectorCandidates(n int) {
	if m == nil {
		return
	}
	m.selectorCandidates.Observe(float64(n))
}

func (m *Metrics) ToolCall(tool, status string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
}

func (m *Metrics) ModelLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.modelLatency.Observe(d.Seconds())
}
