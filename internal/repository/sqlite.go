package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/devkiraa/makeTicket-sub003/constants"
	"github.com/devkiraa/makeTicket-sub003/internal/entity"
)

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS payment_submissions (
	id                  TEXT PRIMARY KEY,
	ticket_id           TEXT NOT NULL,
	user_reference      TEXT NOT NULL DEFAULT '',
	expected_amount     REAL NOT NULL,
	extracted_reference TEXT,
	amount_detected     REAL,
	screenshot_path     TEXT NOT NULL,
	screenshot_sha256   TEXT NOT NULL,
	ocr_confidence      REAL NOT NULL DEFAULT 0,
	result              TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT 'pending',
	method              TEXT NOT NULL DEFAULT 'none',
	needs_review        BOOLEAN NOT NULL DEFAULT 0,
	rejection_reason    TEXT,
	reviewed_by         TEXT,
	uploaded_at         DATETIME NOT NULL,
	reviewed_at         DATETIME
);

CREATE INDEX IF NOT EXISTS idx_payment_submissions_status_uploaded ON payment_submissions(status, uploaded_at);
CREATE INDEX IF NOT EXISTS idx_payment_submissions_user_reference ON payment_submissions(user_reference);
`

type sqliteSubmissionRepository struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteSubmissionRepository opens a SQLite database at dsn, configures WAL
// mode and applies the schema. Used for local and batch runs.
func NewSQLiteSubmissionRepository(ctx context.Context, dsn string, logger *slog.Logger) (SubmissionRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// pragmas below are per connection, and SQLite has a single writer anyway
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: migrate")
	}
	return &sqliteSubmissionRepository{db: db, logger: logger, now: time.Now}, nil
}

func (r *sqliteSubmissionRepository) Create(ctx context.Context, s *entity.Submission) error {
	prepareCreate(s, r.now())
	args, err := submissionArgs(s)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO payment_submissions (`+submissionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if err != nil {
		r.logger.Error("failed to insert submission", "submission_id", s.ID, "ticket_id", s.TicketID, "error", err)
		return eris.Wrapf(err, "sqlite: insert submission %s", s.ID)
	}
	return nil
}

func (r *sqliteSubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Submission, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM payment_submissions WHERE id = ?`,
		id.String(),
	)
	s, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errSubmissionNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get submission %s", id)
	}
	return s, nil
}

func (r *sqliteSubmissionRepository) ListPending(ctx context.Context, page, limit int) ([]*entity.Submission, error) {
	limit, offset := pageOffset(page, limit)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM payment_submissions
		WHERE status = ? ORDER BY uploaded_at DESC LIMIT ? OFFSET ?`,
		string(constants.StatusPending), limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending")
	}
	defer rows.Close()

	var out []*entity.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pending")
		}
		out = append(out, s)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate pending")
}

func (r *sqliteSubmissionRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM payment_submissions WHERE status = ?`,
		string(constants.StatusPending),
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: count pending")
	}
	return n, nil
}

func (r *sqliteSubmissionRepository) CountByReference(ctx context.Context, refs []string, statuses []constants.VerificationStatus) (map[string]int, error) {
	counts := make(map[string]int, len(refs))
	if len(refs) == 0 || len(statuses) == 0 {
		return counts, nil
	}
	args := make([]any, 0, len(refs)+len(statuses))
	for _, ref := range refs {
		args = append(args, ref)
	}
	for _, s := range statusStrings(statuses) {
		args = append(args, s)
	}
	query := `SELECT user_reference, count(*) FROM payment_submissions
		WHERE user_reference IN (` + placeholders(len(refs)) + `)
		AND status IN (` + placeholders(len(statuses)) + `)
		GROUP BY user_reference`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by reference")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ref string
			n   int
		)
		if err := rows.Scan(&ref, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan reference count")
		}
		counts[ref] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: iterate reference counts")
}

func (r *sqliteSubmissionRepository) Review(ctx context.Context, id uuid.UUID, outcome entity.ReviewOutcome) (*entity.Submission, error) {
	if outcome.ReviewedAt.IsZero() {
		outcome.ReviewedAt = r.now()
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_submissions
		SET status = ?, method = ?, rejection_reason = ?, reviewed_by = ?, reviewed_at = ?
		WHERE id = ? AND status = ?`,
		string(outcome.Status), string(outcome.Method), nullString(outcome.RejectionReason), outcome.ReviewedBy,
		outcome.ReviewedAt.UTC(), id.String(), string(constants.StatusPending),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: review submission %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return nil, errAlreadyReviewed
	}
	r.logger.Info("submission reviewed", "submission_id", id, "status", outcome.Status, "reviewed_by", outcome.ReviewedBy)
	return r.GetByID(ctx, id)
}

func (r *sqliteSubmissionRepository) Close() error {
	return r.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
