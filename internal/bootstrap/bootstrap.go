// Package bootstrap assembles the digest application from its
// configuration: infrastructure adapters on the outside, the use case
// in the middle. All binaries share this wiring and differ only in
// which ports they drive.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/config"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/ports"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/usecase"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/infrastructure/export"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/infrastructure/fetcher/arxiv"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/infrastructure/llm/openai"
	natsqueue "github.com/Xecades/ArxivDigest-Reimagined/internal/infrastructure/queue/nats"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/infrastructure/repository/postgres"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/infrastructure/resilience"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/infrastructure/storage/localfs"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Digest          *usecase.DigestUseCase
	Runner          ports.DigestRunner
	Queue           ports.RunQueue
	PipelineMetrics *metrics.PipelineMetrics

	closeFn func()
}

type options struct {
	withQueue bool
}

type Option func(*options)

// WithoutQueue skips the NATS connection; the one-shot CLI runs the
// digest inline and never publishes.
func WithoutQueue() Option {
	return func(o *options) { o.withQueue = false }
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	settings := options{withQueue: true}
	for _, opt := range opts {
		opt(&settings)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	cache := postgres.NewResultCache(db,
		time.Duration(cfg.Cache.TTLDays)*24*time.Hour,
		cfg.Cache.MaxEntries,
	)
	if err := cache.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure cache schema: %w", err)
	}

	repo := postgres.NewDigestRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure digest schema: %w", err)
	}

	var queue ports.RunQueue
	var queueClose func()
	if settings.withQueue {
		q, err := natsqueue.NewWithOptions(cfg.NATS.URL, cfg.NATS.Subject, natsqueue.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		queue = q
		queueClose = q.Close
	}

	llmExecutor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: cfg.LLM.MaxRetries,
		CallTimeout:      cfg.LLM.Timeout,
		BreakerEnabled:   true,
	})
	completer := openai.New(openai.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, llmExecutor)
	llmLimiter := resilience.NewLimiter(cfg.LLM.MaxConcurrent)

	// One politeness limiter shared by listing and crawler; arxiv.org
	// sees a single client.
	arxivLimiter := rate.NewLimiter(rate.Limit(cfg.Arxiv.RequestsPerSec), 1)
	arxivTimeout := time.Duration(cfg.Arxiv.TimeoutSeconds) * time.Second

	source := arxiv.NewListing(arxiv.ListingConfig{
		BaseURL: cfg.Arxiv.BaseURL,
		Field:   cfg.Arxiv.Field,
		Timeout: arxivTimeout,
	}, arxivLimiter, logger)

	crawlExecutor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.Arxiv.CrawlMaxRetries,
		RetryInitialBackoff: time.Duration(cfg.Arxiv.CrawlRetryDelayS * float64(time.Second)),
		CallTimeout:         arxivTimeout,
		BreakerEnabled:      true,
	})
	fetcher := arxiv.NewCrawler(arxiv.CrawlerConfig{
		BaseURL:     cfg.Arxiv.BaseURL,
		Timeout:     arxivTimeout,
		PDFFallback: cfg.Arxiv.PDFFallback,
	}, crawlExecutor, arxivLimiter, logger)

	evaluator := usecase.NewStageEvaluator(completer, llmLimiter, 2, logger)
	pipeline := usecase.NewPipeline(evaluator, cache, fetcher, usecase.PipelineConfig{
		UserPrompt: cfg.UserPrompt,
		Model:      cfg.LLM.Model,
		Stage1:     cfg.Stage1,
		Stage2:     cfg.Stage2,
		Stage3:     cfg.Stage3,
	}, logger)

	var highlighter *usecase.Highlighter
	if cfg.Highlight.Enabled {
		highlighter = usecase.NewHighlighter(completer, cache, llmLimiter,
			cfg.LLM.Model, cfg.UserPrompt, cfg.Highlight.Temperature, logger)
	}

	sink, err := localfs.New(cfg.Export.Dir)
	if err != nil {
		if queueClose != nil {
			queueClose()
		}
		_ = db.Close()
		return nil, fmt.Errorf("init export sink: %w", err)
	}

	pipelineMetrics := metrics.NewPipelineMetrics(cfg.Service)
	exporters := []ports.Exporter{
		export.NewJSONExporter(sink, repo, logger),
	}
	if cfg.Export.Excel {
		exporters = append(exporters, export.NewExcelExporter(sink, logger))
	}
	exporters = append(exporters, export.NewMetricsExporter(pipelineMetrics, cfg.Service))

	digest := usecase.NewDigestUseCase(
		source,
		pipeline,
		highlighter,
		cache,
		repo,
		queue,
		exporters,
		usecase.DigestSettings{
			Title:       cfg.Export.Title,
			Categories:  cfg.Arxiv.Categories,
			MaxResults:  cfg.Arxiv.MaxResults,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
		},
		logger,
	)

	return &App{
		Config:          cfg,
		Logger:          logger,
		Digest:          digest,
		Runner:          digest,
		Queue:           queue,
		PipelineMetrics: pipelineMetrics,
		closeFn: func() {
			if queueClose != nil {
				queueClose()
			}
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
