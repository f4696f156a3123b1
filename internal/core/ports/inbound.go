package ports

import (
	"context"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/domain"
)

// DigestScheduler is the inbound contract for requesting a new run.
type DigestScheduler interface {
	Schedule(ctx context.Context) (*domain.DigestRun, error)
}

// DigestRunner executes a previously scheduled run end to end.
type DigestRunner interface {
	RunByID(ctx context.Context, runID string) error
}

// DigestReader is the inbound read model for runs and digest documents.
type DigestReader interface {
	GetRun(ctx context.Context, id string) (*domain.DigestRun, error)
	LatestDocument(ctx context.Context) ([]byte, error)
}
