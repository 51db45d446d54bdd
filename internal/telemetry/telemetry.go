package telemetry

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aiopshq/assistant/config"
)

// Telemetry records pipeline metrics. All methods are safe for concurrent
// use and become no-ops when telemetry is disabled.
type Telemetry struct {
	cfg    config.TelemetryConfig
	logger *log.Logger

	queries       *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	steps         *prometheus.CounterVec
	stepRetries   *prometheus.CounterVec
	llmTokens     *prometheus.CounterVec
}

// New builds a Telemetry instance and registers its collectors with reg
// (the default registerer when nil).
func New(cfg config.TelemetryConfig, reg prometheus.Registerer) *Telemetry {
	t := &Telemetry{
		cfg:    cfg,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_queries_total",
			Help: "Pipeline invocations by outcome.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assistant_stage_duration_seconds",
			Help:    "Wall-clock duration of each pipeline stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_steps_total",
			Help: "Executed plan steps by status and tool.",
		}, []string{"status", "tool"}),
		stepRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_step_retries_total",
			Help: "Step retry attempts by tool.",
		}, []string{"tool"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_llm_tokens_total",
			Help: "Model backend token usage.",
		}, []string{"direction"}),
	}
	if !cfg.Enabled {
		return t
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{t.queries, t.stageDuration, t.steps, t.stepRetries, t.llmTokens} {
		if err := reg.Register(c); err != nil {
			t.logger.Printf("collector registration failed: %v", err)
		}
	}
	return t
}

// RecordQuery counts one finished pipeline invocation.
func (t *Telemetry) RecordQuery(outcome string) {
	if t == nil || !t.cfg.Enabled {
		return
	}
	t.queries.WithLabelValues(outcome).Inc()
}

// ObserveStage records the duration of one pipeline stage
// (planning, execution, verification).
func (t *Telemetry) ObserveStage(stage string, d time.Duration) {
	if t == nil || !t.cfg.Enabled {
		return
	}
	t.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordStep counts one resolved step result.
func (t *Telemetry) RecordStep(status, tool string) {
	if t == nil || !t.cfg.Enabled {
		return
	}
	t.steps.WithLabelValues(status, tool).Inc()
}

// RecordRetry counts one retry attempt for a tool.
func (t *Telemetry) RecordRetry(tool string) {
	if t == nil || !t.cfg.Enabled {
		return
	}
	t.stepRetries.WithLabelValues(tool).Inc()
}

// RecordLLMUsage accumulates model token usage.
func (t *Telemetry) RecordLLMUsage(promptTokens, completionTokens int64) {
	if t == nil || !t.cfg.Enabled {
		return
	}
	t.llmTokens.WithLabelValues("prompt").Add(float64(promptTokens))
	t.llmTokens.WithLabelValues("completion").Add(float64(completionTokens))
}
