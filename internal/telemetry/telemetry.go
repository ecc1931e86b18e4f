package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Telemetry holds the prometheus collectors for the analysis pipeline.
// All metrics are exposed on /metrics by the HTTP server.
type Telemetry struct {
	PipelineRuns    *prometheus.CounterVec
	PipelineSeconds *prometheus.HistogramVec
	LLMRequests     *prometheus.CounterVec
	LLMSeconds      prometheus.Histogram
	ParseFallbacks  *prometheus.CounterVec
	WritebackOps    *prometheus.CounterVec
}

// New registers the pipeline collectors on the default registry.
func New() *Telemetry {
	return &Telemetry{
		PipelineRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pipewise_pipeline_runs_total",
			Help: "Agent pipeline runs by agent type and terminal status.",
		}, []string{"agent", "status"}),
		PipelineSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipewise_pipeline_duration_seconds",
			Help:    "End-to-end pipeline run duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"agent"}),
		LLMRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pipewise_llm_requests_total",
			Help: "Chat-completion requests by outcome.",
		}, []string{"status"}),
		LLMSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipewise_llm_request_duration_seconds",
			Help:    "Chat-completion request latency.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		}),
		ParseFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pipewise_parse_fallbacks_total",
			Help: "LLM responses that fell back to the default analysis object.",
		}, []string{"agent"}),
		WritebackOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pipewise_writeback_actions_total",
			Help: "Executed write-back actions by agent type and target system.",
		}, []string{"agent", "target"}),
	}
}

// ObserveRun records one finished pipeline run.
func (t *Telemetry) ObserveRun(agent, status string, elapsed time.Duration) {
	if t == nil {
		return
	}
	t.PipelineRuns.WithLabelValues(agent, status).Inc()
	t.PipelineSeconds.WithLabelValues(agent).Observe(elapsed.Seconds())
}

// ObserveLLM records one chat-completion attempt.
func (t *Telemetry) ObserveLLM(ok bool, elapsed time.Duration) {
	if t == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	t.LLMRequests.WithLabelValues(status).Inc()
	t.LLMSeconds.Observe(elapsed.Seconds())
}

// ObserveFallback records a degraded parse for the agent.
func (t *Telemetry) ObserveFallback(agent string) {
	if t == nil {
		return
	}
	t.ParseFallbacks.WithLabelValues(agent).Inc()
}

// ObserveWriteback records one executed side-effect write.
func (t *Telemetry) ObserveWriteback(agent, target string) {
	if t == nil {
		return
	}
	t.WritebackOps.WithLabelValues(agent, target).Inc()
}
