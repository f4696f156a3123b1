package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/domain"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/ports"
)

// PipelineConfig is the immutable per-run configuration of the three
// filtering stages.
type PipelineConfig struct {
	UserPrompt string
	Model      string
	Stage1     domain.StageConfig
	Stage2     domain.StageConfig
	Stage3     domain.StageConfig
}

func (c PipelineConfig) stageConfig(stage domain.Stage) domain.StageConfig {
	switch stage {
	case domain.Stage1:
		return c.Stage1
	case domain.Stage2:
		return c.Stage2
	default:
		return c.Stage3
	}
}

// evaluator is implemented by StageEvaluator; tests substitute fakes.
type evaluator interface {
	Evaluate(ctx context.Context, stage domain.Stage, paper domain.Paper, fullText, userPrompt string, cfg domain.StageConfig) domain.StageResult
}

// Pipeline drives each paper through the three stages, short-circuiting
// on the first failing threshold. Stages are processed cohort by cohort:
// all surviving papers finish stage N before any paper enters stage N+1,
// so per-stage statistics are exact and cost shrinks with the cohort.
type Pipeline struct {
	evaluator evaluator
	cache     ports.ResultCache
	fetcher   ports.FullTextFetcher
	cfg       PipelineConfig
	logger    *slog.Logger
}

func NewPipeline(evaluator evaluator, cache ports.ResultCache, fetcher ports.FullTextFetcher, cfg PipelineConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		evaluator: evaluator,
		cache:     cache,
		fetcher:   fetcher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run filters the batch and returns one outcome per unique input paper,
// in input order. It only fails on context cancellation; per-paper
// failures are contained in the outcomes.
func (p *Pipeline) Run(ctx context.Context, papers []domain.Paper) ([]domain.PaperOutcome, domain.RunStats, error) {
	papers = dedupe(papers)

	outcomes := make([]domain.PaperOutcome, len(papers))
	index := make(map[string]*domain.PaperOutcome, len(papers))
	for i, paper := range papers {
		outcomes[i] = domain.PaperOutcome{Paper: paper}
		index[paper.ID] = &outcomes[i]
	}

	cohort := papers
	for _, stage := range []domain.Stage{domain.Stage1, domain.Stage2, domain.Stage3} {
		if len(cohort) == 0 {
			p.logger.Warn("stage_skipped_empty_cohort", "stage", stage.String())
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, domain.RunStats{}, fmt.Errorf("pipeline aborted before %s: %w", stage.String(), err)
		}

		results := p.runStage(ctx, stage, cohort)

		var survivors []domain.Paper
		for _, paper := range cohort {
			result := results[paper.ID]
			outcome := index[paper.ID]
			switch stage {
			case domain.Stage1:
				outcome.Stage1 = result
			case domain.Stage2:
				outcome.Stage2 = result
			case domain.Stage3:
				outcome.Stage3 = result
			}
			if result.Pass {
				survivors = append(survivors, paper)
			}
		}

		p.logger.Info("stage_complete",
			"stage", stage.String(),
			"cohort", len(cohort),
			"passed", len(survivors),
		)
		cohort = survivors
	}

	stats := FoldStats(outcomes)
	return outcomes, stats, nil
}

// runStage evaluates the whole cohort for one stage: cache hits are
// answered immediately, misses run concurrently under the evaluator's
// in-flight bound. The map always contains an entry per cohort paper.
func (p *Pipeline) runStage(ctx context.Context, stage domain.Stage, cohort []domain.Paper) map[string]*domain.StageResult {
	results := make(map[string]*domain.StageResult, len(cohort))

	var mu sync.Mutex
	var wg sync.WaitGroup

	hits := 0
	for _, paper := range cohort {
		fullText, textErr := p.fullTextFor(ctx, stage, paper)
		if textErr != nil {
			// Stage 3 without text is a contained failure; the paper
			// keeps its stage 2 result. Evaluator goroutines from
			// earlier papers may still be writing, so even the
			// synchronous paths take the lock.
			mu.Lock()
			results[paper.ID] = &domain.StageResult{
				Pass:      false,
				Score:     0,
				Reasoning: fmt.Sprintf("%s full text unavailable: %v", failureMarker, textErr),
			}
			mu.Unlock()
			continue
		}

		cfg := p.cfg.stageConfig(stage)
		key := StageFingerprint(stage, paper, fullText, cfg, p.cfg.Model, p.cfg.UserPrompt)

		if cached, ok := p.cacheLookup(ctx, stage, key); ok {
			mu.Lock()
			results[paper.ID] = cached
			mu.Unlock()
			hits++
			continue
		}

		wg.Add(1)
		go func(paper domain.Paper, fullText, key string) {
			defer wg.Done()
			result := p.evaluator.Evaluate(ctx, stage, paper, fullText, p.cfg.UserPrompt, cfg)
			p.cacheStore(ctx, stage, key, &result)

			mu.Lock()
			results[paper.ID] = &result
			mu.Unlock()
		}(paper, fullText, key)
	}

	wg.Wait()

	p.logger.Info("stage_cache_summary",
		"stage", stage.String(),
		"cached", hits,
		"evaluated", len(cohort)-hits,
	)
	return results
}

// fullTextFor fetches paper content lazily: only stage 3 needs it, and
// only papers that survived stage 2 ever reach this call.
func (p *Pipeline) fullTextFor(ctx context.Context, stage domain.Stage, paper domain.Paper) (string, error) {
	if stage != domain.Stage3 {
		return "", nil
	}
	text, err := p.fetcher.FetchFullText(ctx, paper.ID, p.cfg.Stage3.MaxTextChars)
	if err != nil {
		return "", err
	}
	return text, nil
}

// cacheLookup treats every cache failure as a miss so the pipeline can
// always proceed by recomputing.
func (p *Pipeline) cacheLookup(ctx context.Context, stage domain.Stage, key string) (*domain.StageResult, bool) {
	raw, err := p.cache.Get(ctx, key)
	if err != nil {
		if !domain.IsKind(err, domain.ErrCacheMiss) {
			p.logger.Warn("cache_read_failed", "stage", stage.String(), "error", err)
		}
		return nil, false
	}

	var result domain.StageResult
	if err := json.Unmarshal(raw, &result); err != nil {
		p.logger.Warn("cache_entry_corrupt", "stage", stage.String(), "error", err)
		return nil, false
	}
	result.Cached = true
	return &result, true
}

func (p *Pipeline) cacheStore(ctx context.Context, stage domain.Stage, key string, result *domain.StageResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		p.logger.Warn("cache_marshal_failed", "stage", stage.String(), "error", err)
		return
	}
	if err := p.cache.Put(ctx, key, raw); err != nil {
		p.logger.Warn("cache_write_failed", "stage", stage.String(), "error", err)
	}
}

// dedupe keeps the first occurrence of each paper ID, preserving order.
func dedupe(papers []domain.Paper) []domain.Paper {
	seen := make(map[string]bool, len(papers))
	out := papers[:0:0]
	for _, paper := range papers {
		if seen[paper.ID] {
			continue
		}
		seen[paper.ID] = true
		out = append(out, paper)
	}
	return out
}
