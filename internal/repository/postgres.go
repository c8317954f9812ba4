package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/devkiraa/makeTicket-sub003/constants"
	"github.com/devkiraa/makeTicket-sub003/internal/entity"
)

// Pool is the subset of *pgxpool.Pool the repository uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS payment_submissions (
	id                  TEXT PRIMARY KEY,
	ticket_id           TEXT NOT NULL,
	user_reference      TEXT NOT NULL DEFAULT '',
	expected_amount     DOUBLE PRECISION NOT NULL,
	extracted_reference TEXT,
	amount_detected     DOUBLE PRECISION,
	screenshot_path     TEXT NOT NULL,
	screenshot_sha256   TEXT NOT NULL,
	ocr_confidence      DOUBLE PRECISION NOT NULL DEFAULT 0,
	result              JSONB NOT NULL,
	status              TEXT NOT NULL DEFAULT 'pending',
	method              TEXT NOT NULL DEFAULT 'none',
	needs_review        BOOLEAN NOT NULL DEFAULT false,
	rejection_reason    TEXT,
	reviewed_by         TEXT,
	uploaded_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	reviewed_at         TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_payment_submissions_status_uploaded ON payment_submissions(status, uploaded_at DESC);
CREATE INDEX IF NOT EXISTS idx_payment_submissions_user_reference ON payment_submissions(user_reference);
CREATE INDEX IF NOT EXISTS idx_payment_submissions_ticket ON payment_submissions(ticket_id);
`

type postgresSubmissionRepository struct {
	pool   Pool
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresSubmissionRepository returns a SubmissionRepository over pool.
func NewPostgresSubmissionRepository(pool Pool, logger *slog.Logger) SubmissionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &postgresSubmissionRepository{pool: pool, logger: logger, now: time.Now}
}

// MigratePostgres creates the submissions schema if it does not exist.
func MigratePostgres(ctx context.Context, pool Pool) error {
	_, err := pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (r *postgresSubmissionRepository) Create(ctx context.Context, s *entity.Submission) error {
	prepareCreate(s, r.now())
	args, err := submissionArgs(s)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO payment_submissions (`+submissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		args...,
	)
	if err != nil {
		r.logger.Error("failed to insert submission", "submission_id", s.ID, "ticket_id", s.TicketID, "error", err)
		return eris.Wrapf(err, "postgres: insert submission %s", s.ID)
	}
	return nil
}

func (r *postgresSubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Submission, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM payment_submissions WHERE id = $1`,
		id.String(),
	)
	s, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errSubmissionNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get submission %s", id)
	}
	return s, nil
}

func (r *postgresSubmissionRepository) ListPending(ctx context.Context, page, limit int) ([]*entity.Submission, error) {
	limit, offset := pageOffset(page, limit)
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM payment_submissions
		WHERE status = $1 ORDER BY uploaded_at DESC LIMIT $2 OFFSET $3`,
		string(constants.StatusPending), limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending")
	}
	defer rows.Close()

	var out []*entity.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan pending")
		}
		out = append(out, s)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate pending")
}

func (r *postgresSubmissionRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM payment_submissions WHERE status = $1`,
		string(constants.StatusPending),
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: count pending")
	}
	return n, nil
}

func (r *postgresSubmissionRepository) CountByReference(ctx context.Context, refs []string, statuses []constants.VerificationStatus) (map[string]int, error) {
	counts := make(map[string]int, len(refs))
	if len(refs) == 0 || len(statuses) == 0 {
		return counts, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT user_reference, count(*) FROM payment_submissions
		WHERE user_reference = ANY($1) AND status = ANY($2) GROUP BY user_reference`,
		refs, statusStrings(statuses),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by reference")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ref string
			n   int
		)
		if err := rows.Scan(&ref, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan reference count")
		}
		counts[ref] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: iterate reference counts")
}

func (r *postgresSubmissionRepository) Review(ctx context.Context, id uuid.UUID, outcome entity.ReviewOutcome) (*entity.Submission, error) {
	if outcome.ReviewedAt.IsZero() {
		outcome.ReviewedAt = r.now()
	}
	row := r.pool.QueryRow(ctx,
		`UPDATE payment_submissions
		SET status = $2, method = $3, rejection_reason = $4, reviewed_by = $5, reviewed_at = $6
		WHERE id = $1 AND status = $7
		RETURNING `+submissionColumns,
		id.String(), string(outcome.Status), string(outcome.Method), nullString(outcome.RejectionReason), outcome.ReviewedBy,
		outcome.ReviewedAt.UTC(), string(constants.StatusPending),
	)
	s, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errAlreadyReviewed
		}
		return nil, eris.Wrapf(err, "postgres: review submission %s", id)
	}
	r.logger.Info("submission reviewed", "submission_id", id, "status", outcome.Status, "reviewed_by", outcome.ReviewedBy)
	return s, nil
}

// Close is a no-op; the pool is owned by the caller.
func (r *postgresSubmissionRepository) Close() error { return nil }
