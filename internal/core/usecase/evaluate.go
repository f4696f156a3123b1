package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/domain"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/ports"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/infrastructure/resilience"
)

// failureMarker prefixes the reasoning text of synthetic failing
// results so downstream consumers can tell real verdicts from
// evaluation breakdowns.
const failureMarker = "[evaluation failed]"

// missingFieldValue marks a requested custom field the model did not
// return. Requested fields are never silently dropped.
const missingFieldValue = "(missing)"

// StageEvaluator turns one (paper, stage) pair into a StageResult. The
// limiter bounds concurrent reasoning-service calls; malformed
// responses are re-requested up to maxParseRetries before degrading to
// a synthetic failing result.
type StageEvaluator struct {
	completer       ports.ChatCompleter
	limiter         *resilience.Limiter
	maxParseRetries int
	logger          *slog.Logger
}

func NewStageEvaluator(completer ports.ChatCompleter, limiter *resilience.Limiter, maxParseRetries int, logger *slog.Logger) *StageEvaluator {
	if maxParseRetries < 1 {
		maxParseRetries = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StageEvaluator{
		completer:       completer,
		limiter:         limiter,
		maxParseRetries: maxParseRetries,
		logger:          logger,
	}
}

// Evaluate never returns an error: every failure mode is folded into a
// failing StageResult so one bad paper cannot abort the cohort.
func (e *StageEvaluator) Evaluate(ctx context.Context, stage domain.Stage, paper domain.Paper, fullText, userPrompt string, cfg domain.StageConfig) domain.StageResult {
	messages := buildStageMessages(stage, paper, fullText, userPrompt, cfg)

	if err := e.limiter.Acquire(ctx); err != nil {
		return failedResult(messages, fmt.Errorf("acquire evaluation slot: %w", err))
	}
	defer e.limiter.Release()

	var lastErr error
	for attempt := 1; attempt <= e.maxParseRetries; attempt++ {
		completion, err := e.completer.Complete(ctx, messages, cfg.Temperature)
		if err != nil {
			// Transport-level retries already happened inside the client.
			return failedResult(messages, err)
		}

		result, err := parseStageResult(stage, completion.Content, cfg)
		if err != nil {
			lastErr = err
			e.logger.Warn("malformed_stage_response",
				"stage", stage.String(),
				"paper_id", paper.ID,
				"attempt", attempt,
				"error", err,
			)
			continue
		}

		result.Pass = result.Score >= cfg.Threshold
		result.Messages = appendAssistant(messages, completion.Content)
		result.Usage = completion.Usage
		result.EstimatedCost = completion.EstimatedCost
		if completion.Currency != "" {
			currency := completion.Currency
			result.CostCurrency = &currency
		}
		return result
	}

	return failedResult(messages, fmt.Errorf("parse response: %w", lastErr))
}

func failedResult(messages []domain.Message, cause error) domain.StageResult {
	return domain.StageResult{
		Pass:      false,
		Score:     0,
		Reasoning: fmt.Sprintf("%s %v", failureMarker, cause),
		Messages:  messages,
	}
}

func appendAssistant(messages []domain.Message, content string) []domain.Message {
	out := make([]domain.Message, 0, len(messages)+1)
	out = append(out, messages...)
	out = append(out, domain.Message{Role: "assistant", Content: content})
	return out
}

// stagePayload is the JSON object the reasoning service is instructed
// to emit. Score is a pointer so a missing field is distinguishable
// from a literal zero.
type stagePayload struct {
	Score        *float64          `json:"score"`
	Reasoning    string            `json:"reasoning"`
	NoveltyScore *float64          `json:"novelty_score"`
	ImpactScore  *float64          `json:"impact_score"`
	QualityScore *float64          `json:"quality_score"`
	CustomFields map[string]string `json:"custom_fields"`
}

func parseStageResult(stage domain.Stage, content string, cfg domain.StageConfig) (domain.StageResult, error) {
	var payload stagePayload
	if err := json.Unmarshal([]byte(extractJSONObject(content)), &payload); err != nil {
		return domain.StageResult{}, fmt.Errorf("decode stage payload: %w", err)
	}
	if payload.Score == nil {
		return domain.StageResult{}, fmt.Errorf("score field missing")
	}

	result := domain.StageResult{
		Score:     clampScore(*payload.Score),
		Reasoning: payload.Reasoning,
	}

	if stage == domain.Stage3 {
		result.NoveltyScore = clampScore(deref(payload.NoveltyScore))
		result.ImpactScore = clampScore(deref(payload.ImpactScore))
		result.QualityScore = clampScore(deref(payload.QualityScore))
		result.CustomFields = normalizeCustomFields(payload.CustomFields, cfg.CustomFields)
	}

	return result, nil
}

// normalizeCustomFields keeps exactly the configured field set: extra
// keys are dropped, requested-but-absent keys are marked missing.
func normalizeCustomFields(got map[string]string, want []domain.CustomField) map[string]string {
	out := make(map[string]string, len(want))
	for _, f := range want {
		value, ok := got[f.Name]
		if !ok || strings.TrimSpace(value) == "" {
			value = missingFieldValue
		}
		out[f.Name] = value
	}
	return out
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// extractJSONObject tolerates models that wrap the JSON object in prose
// or code fences by slicing from the first '{' to the last '}'.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
