package ports

import (
	"context"
	"io"
	"time"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/domain"
)

// ChatCompleter sends one conversation to the reasoning service and
// returns the raw completion. Implementations own transport-level retry
// and must mark transient failures with domain.ErrTemporary.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []domain.Message, temperature float64) (domain.Completion, error)
}

// PaperSource lists the day's paper snapshots (metadata only).
type PaperSource interface {
	ListPapers(ctx context.Context, categories []string, maxResults int) ([]domain.Paper, error)
}

// FullTextFetcher retrieves a paper's full text, capped at maxChars.
// Called lazily, only for papers that reach stage 3.
type FullTextFetcher interface {
	FetchFullText(ctx context.Context, paperID string, maxChars int) (string, error)
}

// ResultCache is persistent byte storage for stage results. Get returns
// domain.ErrCacheMiss for absent or expired keys. Writes are
// last-write-wins per key.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	PurgeExpired(ctx context.Context) (int64, error)
}

// DigestRepository persists run state and exported digest documents.
type DigestRepository interface {
	CreateRun(ctx context.Context, run *domain.DigestRun) error
	FinishRun(ctx context.Context, id string, status domain.RunStatus, errMessage string, finishedAt time.Time) error
	GetRun(ctx context.Context, id string) (*domain.DigestRun, error)
	SaveDocument(ctx context.Context, runID string, document []byte) error
	LatestDocument(ctx context.Context) ([]byte, error)
}

// RunQueue publishes/consumes digest run requests.
type RunQueue interface {
	PublishRunRequested(ctx context.Context, runID string) error
	SubscribeRunRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// ExportSink stores rendered digest artifacts (JSON, spreadsheets).
type ExportSink interface {
	Save(ctx context.Context, key string, data io.Reader) error
}

// Exporter renders a digest into one or more artifacts.
type Exporter interface {
	Export(ctx context.Context, digest *domain.Digest) error
}
