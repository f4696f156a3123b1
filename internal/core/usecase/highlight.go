package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/domain"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/ports"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/infrastructure/resilience"
)

// Highlighter emphasises the abstracts of papers that passed stage 3
// with markdown bold. Results are cached like stage verdicts; failures
// leave the abstract untouched.
type Highlighter struct {
	completer   ports.ChatCompleter
	cache       ports.ResultCache
	limiter     *resilience.Limiter
	model       string
	userPrompt  string
	temperature float64
	logger      *slog.Logger
}

func NewHighlighter(completer ports.ChatCompleter, cache ports.ResultCache, limiter *resilience.Limiter, model, userPrompt string, temperature float64, logger *slog.Logger) *Highlighter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Highlighter{
		completer:   completer,
		cache:       cache,
		limiter:     limiter,
		model:       model,
		userPrompt:  userPrompt,
		temperature: temperature,
		logger:      logger,
	}
}

// Apply highlights every outcome that passed stage 3, in place.
func (h *Highlighter) Apply(ctx context.Context, outcomes []domain.PaperOutcome) {
	for i := range outcomes {
		o := &outcomes[i]
		if o.Stage3 == nil || !o.Stage3.Pass || o.Paper.Abstract == "" {
			continue
		}

		highlight, err := h.highlight(ctx, o.Paper)
		if err != nil {
			h.logger.Warn("highlight_failed", "paper_id", o.Paper.ID, "error", err)
			continue
		}
		o.Highlight = highlight
	}
}

func (h *Highlighter) highlight(ctx context.Context, paper domain.Paper) (*domain.Highlight, error) {
	key := HighlightFingerprint(paper.ID, paper.Abstract, h.model, h.userPrompt, h.temperature)

	if raw, err := h.cache.Get(ctx, key); err == nil {
		var cached domain.Highlight
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
		h.logger.Warn("highlight_cache_corrupt", "paper_id", paper.ID)
	} else if !domain.IsKind(err, domain.ErrCacheMiss) {
		h.logger.Warn("highlight_cache_read_failed", "paper_id", paper.ID, "error", err)
	}

	if err := h.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquire highlight slot: %w", err)
	}
	defer h.limiter.Release()

	messages := buildHighlightMessages(paper.Abstract, h.userPrompt)
	completion, err := h.completer.Complete(ctx, messages, h.temperature)
	if err != nil {
		return nil, err
	}

	var payload struct {
		HighlightedText string `json:"highlighted_text"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(completion.Content)), &payload); err != nil {
		return nil, fmt.Errorf("decode highlight payload: %w", err)
	}
	if payload.HighlightedText == "" {
		return nil, fmt.Errorf("highlighted_text field missing")
	}

	highlight := &domain.Highlight{
		Text:          payload.HighlightedText,
		Messages:      appendAssistant(messages, completion.Content),
		Usage:         completion.Usage,
		EstimatedCost: completion.EstimatedCost,
	}
	if completion.Currency != "" {
		currency := completion.Currency
		highlight.CostCurrency = &currency
	}

	if raw, err := json.Marshal(highlight); err == nil {
		if err := h.cache.Put(ctx, key, raw); err != nil {
			h.logger.Warn("highlight_cache_write_failed", "paper_id", paper.ID, "error", err)
		}
	}
	return highlight, nil
}
