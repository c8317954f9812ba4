package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rotisserie/eris"

	"github.com/devkiraa/makeTicket-sub003/constants"
	"github.com/devkiraa/makeTicket-sub003/internal/audit"
	"github.com/devkiraa/makeTicket-sub003/internal/common"
	"github.com/devkiraa/makeTicket-sub003/internal/entity"
)

// SubmissionRepository persists payment-proof submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, s *entity.Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Submission, error)
	// ListPending returns pending submissions newest first. page is 1-based.
	ListPending(ctx context.Context, page, limit int) ([]*entity.Submission, error)
	CountPending(ctx context.Context) (int, error)
	// CountByReference counts submissions per user reference among the given statuses.
	CountByReference(ctx context.Context, refs []string, statuses []constants.VerificationStatus) (map[string]int, error)
	// Review settles a pending submission. A submission that is no longer
	// pending yields a conflict.
	Review(ctx context.Context, id uuid.UUID, outcome entity.ReviewOutcome) (*entity.Submission, error)
	Close() error
}

const submissionColumns = `id, ticket_id, user_reference, expected_amount, extracted_reference, amount_detected,
	screenshot_path, screenshot_sha256, ocr_confidence, result, status, method, needs_review,
	rejection_reason, reviewed_by, uploaded_at, reviewed_at`

var (
	errSubmissionNotFound = common.NewAppError("NOT_FOUND", "submission not found", common.ErrNotFound)
	errAlreadyReviewed    = common.NewAppError("ALREADY_REVIEWED", "submission has already been reviewed", common.ErrConflict)
)

// rowScanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*entity.Submission, error) {
	var (
		s                  entity.Submission
		id                 string
		extractedReference pgtype.Text
		amountDetected     pgtype.Float8
		result             []byte
		status, method     string
		rejectionReason    pgtype.Text
		reviewedBy         pgtype.Text
		reviewedAt         pgtype.Timestamptz
	)
	err := row.Scan(
		&id, &s.TicketID, &s.UserReference, &s.ExpectedAmount, &extractedReference, &amountDetected,
		&s.ScreenshotPath, &s.ScreenshotSHA256, &s.OCRConfidence, &result, &status, &method, &s.NeedsReview,
		&rejectionReason, &reviewedBy, &s.UploadedAt, &reviewedAt,
	)
	if err != nil {
		return nil, err
	}

	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, eris.Wrapf(err, "parse submission id %q", id)
	}
	if err := json.Unmarshal(result, &s.Result); err != nil {
		return nil, eris.Wrapf(err, "decode result for submission %s", id)
	}
	s.Status = constants.VerificationStatus(status)
	s.Method = constants.VerificationMethod(method)
	if rejectionReason.Valid {
		s.RejectionReason = &rejectionReason.String
	}
	if reviewedBy.Valid {
		s.ReviewedBy = &reviewedBy.String
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time.UTC()
		s.ReviewedAt = &t
	}
	s.UploadedAt = s.UploadedAt.UTC()
	return &s, nil
}

// submissionArgs prepares the insert arguments in submissionColumns order.
// The result is validated against the audit schema first.
func submissionArgs(s *entity.Submission) ([]any, error) {
	result, err := audit.MarshalResult(s.Result)
	if err != nil {
		return nil, common.NewAppError("INVALID_RESULT", "verification result failed audit validation", common.ErrValidation)
	}
	var extracted, detected any
	if ref, ok := s.Result.Reference.Get(); ok {
		extracted = ref
	}
	if amt, ok := s.Result.Amount.Get(); ok {
		detected = amt
	}
	return []any{
		s.ID.String(), s.TicketID, s.UserReference, s.ExpectedAmount, extracted, detected,
		s.ScreenshotPath, s.ScreenshotSHA256, s.OCRConfidence, string(result), string(s.Status), string(s.Method), s.NeedsReview,
		nullString(s.RejectionReason), nullString(s.ReviewedBy), s.UploadedAt.UTC(), nullTime(s.ReviewedAt),
	}, nil
}

// prepareCreate fills defaults on a new submission.
func prepareCreate(s *entity.Submission, now time.Time) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = constants.StatusPending
	}
	if s.Method == "" {
		s.Method = constants.MethodNone
	}
	if s.UploadedAt.IsZero() {
		s.UploadedAt = now.UTC()
	}
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

func statusStrings(statuses []constants.VerificationStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// pageOffset normalizes a 1-based page and limit into LIMIT/OFFSET values.
func pageOffset(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	return limit, (page - 1) * limit
}

// DefaultPageLimit is used when a caller passes no limit.
const DefaultPageLimit = 20

// MaxPageLimit caps the reviewer queue page size.
const MaxPageLimit = 100
