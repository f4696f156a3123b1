package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/domain"
)

// DigestRepository persists run lifecycle rows and the exported digest
// documents themselves.
type DigestRepository struct {
	db *sql.DB
}

func NewDigestRepository(db *sql.DB) *DigestRepository {
	return &DigestRepository{db: db}
}

func (r *DigestRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026021003)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS digest_runs (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	error_message TEXT,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS digest_documents (
	run_id TEXT PRIMARY KEY REFERENCES digest_runs(id),
	document JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_digest_runs_started_at ON digest_runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_digest_documents_created_at ON digest_documents(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DigestRepository) CreateRun(ctx context.Context, run *domain.DigestRun) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO digest_runs (id, status, error_message, started_at, finished_at)
VALUES ($1,$2,$3,$4,$5)
`, run.ID, string(run.Status), nullIfEmpty(run.Error), run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (r *DigestRepository) FinishRun(ctx context.Context, id string, status domain.RunStatus, errMessage string, finishedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE digest_runs
SET status = $2, error_message = $3, finished_at = $4
WHERE id = $1
`, id, string(status), nullIfEmpty(errMessage), finishedAt)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

func (r *DigestRepository) GetRun(ctx context.Context, id string) (*domain.DigestRun, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, status, error_message, started_at, finished_at
FROM digest_runs
WHERE id = $1
`, id)

	var run domain.DigestRun
	var status string
	var errMessage sql.NullString
	err := row.Scan(&run.ID, &status, &errMessage, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	run.Status = domain.RunStatus(status)
	run.Error = errMessage.String
	return &run, nil
}

func (r *DigestRepository) SaveDocument(ctx context.Context, runID string, document []byte) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO digest_documents (run_id, document, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (run_id) DO UPDATE
SET document = EXCLUDED.document, created_at = EXCLUDED.created_at
`, runID, document, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (r *DigestRepository) LatestDocument(ctx context.Context) ([]byte, error) {
	var document []byte
	err := r.db.QueryRowContext(ctx, `
SELECT document FROM digest_documents
ORDER BY created_at DESC
LIMIT 1
`).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDigestNotFound
		}
		return nil, fmt.Errorf("latest document: %w", err)
	}
	return document, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
