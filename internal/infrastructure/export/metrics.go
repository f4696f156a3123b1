package export

import (
	"context"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/domain"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/observability/metrics"
)

// MetricsExporter translates a finished digest into pipeline metrics.
// It runs alongside the artifact exporters so the counters reflect
// exactly what the exported document contains.
type MetricsExporter struct {
	metrics *metrics.PipelineMetrics
	service string
}

func NewMetricsExporter(m *metrics.PipelineMetrics, service string) *MetricsExporter {
	return &MetricsExporter{
		metrics: m,
		service: service,
	}
}

func (e *MetricsExporter) Export(_ context.Context, digest *domain.Digest) error {
	for _, outcome := range digest.Outcomes {
		stages := []struct {
			name   string
			result *domain.StageResult
		}{
			{domain.Stage1.String(), outcome.Stage1},
			{domain.Stage2.String(), outcome.Stage2},
			{domain.Stage3.String(), outcome.Stage3},
		}
		for _, s := range stages {
			if s.result == nil {
				continue
			}
			e.metrics.RecordCacheLookup(e.service, s.name, s.result.Cached)
			e.metrics.RecordEvaluation(e.service, s.name, s.result.Pass)
			if s.result.Cached {
				// Tokens and cost were already counted the run that
				// produced the cached result.
				continue
			}
			if u := s.result.Usage; u != nil {
				prompt, completion := 0, 0
				if u.PromptTokens != nil {
					prompt = *u.PromptTokens
				}
				if u.CompletionTokens != nil {
					completion = *u.CompletionTokens
				}
				e.metrics.RecordTokenUsage(e.service, digest.Model, prompt, completion)
			}
			if s.result.EstimatedCost != nil && s.result.CostCurrency != nil {
				e.metrics.RecordEstimatedCost(e.service, digest.Model, *s.result.CostCurrency, *s.result.EstimatedCost)
			}
		}
	}
	return nil
}
