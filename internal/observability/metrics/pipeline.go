package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics covers the worker side: runs, per-stage evaluations,
// cache effectiveness and reasoning-service spend.
type PipelineMetrics struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	runsInFlight     prometheus.Gauge
	evaluationsTotal *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	llmTokensTotal   *prometheus.CounterVec
	llmCostTotal     *prometheus.CounterVec
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "digest",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total digest runs by final status.",
		},
		[]string{"service", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "digest",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Digest run duration in seconds by status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"service", "status"},
	)
	runsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "digest",
			Subsystem: "pipeline",
			Name:      "runs_in_flight",
			Help:      "Number of digest runs currently executing.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	evaluationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "digest",
			Subsystem: "pipeline",
			Name:      "stage_evaluations_total",
			Help:      "Total stage evaluations by stage and verdict.",
		},
		[]string{"service", "stage", "verdict"},
	)
	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "digest",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total result cache lookups by stage and result.",
		},
		[]string{"service", "stage", "result"},
	)
	llmTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "digest",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Token usage by direction.",
		},
		[]string{"service", "direction", "model"},
	)
	llmCostTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "digest",
			Subsystem: "llm",
			Name:      "estimated_cost_total",
			Help:      "Estimated reasoning-service spend by currency.",
		},
		[]string{"service", "model", "currency"},
	)

	registry.MustRegister(runsTotal, runDuration, runsInFlight, evaluationsTotal, cacheLookups, llmTokensTotal, llmCostTotal)

	return &PipelineMetrics{
		registry:         registry,
		runsTotal:        runsTotal,
		runDuration:      runDuration,
		runsInFlight:     runsInFlight,
		evaluationsTotal: evaluationsTotal,
		cacheLookups:     cacheLookups,
		llmTokensTotal:   llmTokensTotal,
		llmCostTotal:     llmCostTotal,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) StartRun() {
	m.runsInFlight.Inc()
}

func (m *PipelineMetrics) FinishRun(service string, duration time.Duration, err error) {
	m.runsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.runsTotal.WithLabelValues(service, status).Inc()
	m.runDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *PipelineMetrics) RecordEvaluation(service, stage string, passed bool) {
	verdict := "fail"
	if passed {
		verdict = "pass"
	}
	m.evaluationsTotal.WithLabelValues(service, stage, verdict).Inc()
}

func (m *PipelineMetrics) RecordCacheLookup(service, stage string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(service, stage, result).Inc()
}

func (m *PipelineMetrics) RecordTokenUsage(service, model string, promptTokens, completionTokens int) {
	if model == "" {
		model = "unknown"
	}
	if promptTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, "in", model).Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, "out", model).Add(float64(completionTokens))
	}
}

func (m *PipelineMetrics) RecordEstimatedCost(service, model, currency string, cost float64) {
	if cost <= 0 {
		return
	}
	if currency == "" {
		currency = "unknown"
	}
	m.llmCostTotal.WithLabelValues(service, model, currency).Add(cost)
}
