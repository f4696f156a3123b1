package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/domain"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/ports"
)

// DigestSettings is the run-level configuration echoed into the
// exported document.
type DigestSettings struct {
	Title       string
	Categories  []string
	MaxResults  int
	Model       string
	Temperature float64
}

// DigestUseCase executes a full digest run: list papers, filter them
// through the pipeline, highlight survivors, export and record the
// result. It implements the scheduler, runner and reader ports.
type DigestUseCase struct {
	source      ports.PaperSource
	pipeline    *Pipeline
	highlighter *Highlighter
	cache       ports.ResultCache
	repo        ports.DigestRepository
	queue       ports.RunQueue
	exporters   []ports.Exporter
	settings    DigestSettings
	now         func() time.Time
	logger      *slog.Logger
}

func NewDigestUseCase(
	source ports.PaperSource,
	pipeline *Pipeline,
	highlighter *Highlighter,
	cache ports.ResultCache,
	repo ports.DigestRepository,
	queue ports.RunQueue,
	exporters []ports.Exporter,
	settings DigestSettings,
	logger *slog.Logger,
) *DigestUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &DigestUseCase{
		source:      source,
		pipeline:    pipeline,
		highlighter: highlighter,
		cache:       cache,
		repo:        repo,
		queue:       queue,
		exporters:   exporters,
		settings:    settings,
		now:         time.Now,
		logger:      logger,
	}
}

// Schedule records a pending run and hands it to the worker queue.
func (uc *DigestUseCase) Schedule(ctx context.Context) (*domain.DigestRun, error) {
	run := &domain.DigestRun{
		ID:        uuid.NewString(),
		Status:    domain.RunPending,
		StartedAt: uc.now(),
	}
	if err := uc.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	if uc.queue != nil {
		if err := uc.queue.PublishRunRequested(ctx, run.ID); err != nil {
			return nil, fmt.Errorf("publish run: %w", err)
		}
	}
	return run, nil
}

// RunByID executes a previously scheduled run end to end.
func (uc *DigestUseCase) RunByID(ctx context.Context, runID string) error {
	if _, err := uc.repo.GetRun(ctx, runID); err != nil {
		return fmt.Errorf("load run: %w", err)
	}

	if err := uc.execute(ctx, runID); err != nil {
		if finishErr := uc.repo.FinishRun(ctx, runID, domain.RunFailed, err.Error(), uc.now()); finishErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, finishErr)
		}
		return err
	}

	if err := uc.repo.FinishRun(ctx, runID, domain.RunCompleted, "", uc.now()); err != nil {
		return fmt.Errorf("mark completed status: %w", err)
	}
	return nil
}

// Execute creates and runs a digest inline, for the one-shot CLI.
func (uc *DigestUseCase) Execute(ctx context.Context) (*domain.DigestRun, error) {
	run := &domain.DigestRun{
		ID:        uuid.NewString(),
		Status:    domain.RunRunning,
		StartedAt: uc.now(),
	}
	if err := uc.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, uc.RunByID(ctx, run.ID)
}

func (uc *DigestUseCase) GetRun(ctx context.Context, id string) (*domain.DigestRun, error) {
	return uc.repo.GetRun(ctx, id)
}

func (uc *DigestUseCase) LatestDocument(ctx context.Context) ([]byte, error) {
	return uc.repo.LatestDocument(ctx)
}

func (uc *DigestUseCase) execute(ctx context.Context, runID string) error {
	if purged, err := uc.cache.PurgeExpired(ctx); err != nil {
		uc.logger.Warn("cache_purge_failed", "error", err)
	} else if purged > 0 {
		uc.logger.Info("cache_purged", "entries", purged)
	}

	papers, err := uc.source.ListPapers(ctx, uc.settings.Categories, uc.settings.MaxResults)
	if err != nil {
		return fmt.Errorf("list papers: %w", err)
	}
	if len(papers) == 0 {
		return fmt.Errorf("paper source returned no papers")
	}
	uc.logger.Info("papers_fetched", "count", len(papers))

	outcomes, stats, err := uc.pipeline.Run(ctx, papers)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	if uc.highlighter != nil {
		uc.highlighter.Apply(ctx, outcomes)
	}

	digest := &domain.Digest{
		RunID:       runID,
		Title:       uc.settings.Title,
		GeneratedAt: uc.now(),
		UserPrompt:  uc.pipeline.cfg.UserPrompt,
		Categories:  uc.settings.Categories,
		MaxResults:  uc.settings.MaxResults,
		Model:       uc.settings.Model,
		Temperature: uc.settings.Temperature,
		Stage1:      uc.pipeline.cfg.Stage1,
		Stage2:      uc.pipeline.cfg.Stage2,
		Stage3:      uc.pipeline.cfg.Stage3,
		Outcomes:    outcomes,
		Stats:       stats,
	}

	for _, exporter := range uc.exporters {
		if err := exporter.Export(ctx, digest); err != nil {
			return fmt.Errorf("export digest: %w", err)
		}
	}

	uc.logger.Info("run_complete",
		"run_id", runID,
		"total_papers", stats.TotalPapers,
		"stage1_passed", stats.Stage1Passed,
		"stage2_passed", stats.Stage2Passed,
		"stage3_passed", stats.Stage3Passed,
	)
	return nil
}
