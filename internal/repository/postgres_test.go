package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devkiraa/makeTicket-sub003/constants"
	"github.com/devkiraa/makeTicket-sub003/internal/common"
	"github.com/devkiraa/makeTicket-sub003/internal/entity"
	"github.com/devkiraa/makeTicket-sub003/internal/verify"
)

var columnNames = []string{
	"id", "ticket_id", "user_reference", "expected_amount", "extracted_reference", "amount_detected",
	"screenshot_path", "screenshot_sha256", "ocr_confidence", "result", "status", "method", "needs_review",
	"rejection_reason", "reviewed_by", "uploaded_at", "reviewed_at",
}

const acceptedResultJSON = `{"is_valid_payment":true,"transaction_reference":{"value":"412345678901","found":true},` +
	`"amount":{"value":250,"found":true},"amount_matches":true,"transaction_date":{"value":"","found":false},` +
	`"payee_name":{"value":"","found":false},"payment_application":"Google Pay","errors":[]}`

func newMockPostgresRepository(t *testing.T) (*postgresSubmissionRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	repo := NewPostgresSubmissionRepository(mock, nil).(*postgresSubmissionRepository)
	repo.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return repo, mock
}

func acceptedResult() verify.Result {
	return verify.Result{
		IsValidPayment: true,
		Reference:      verify.Found("412345678901"),
		Amount:         verify.Found(250.0),
		AmountMatches:  true,
		App:            "Google Pay",
		Errors:         []string{},
	}
}

func TestPostgres_Create(t *testing.T) {
	repo, mock := newMockPostgresRepository(t)

	mock.ExpectExec(`INSERT INTO payment_submissions`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s := &entity.Submission{TicketID: "T-1", UserReference: "412345678901", ExpectedAmount: 250, Result: acceptedResult()}
	require.NoError(t, repo.Create(context.Background(), s))

	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, constants.StatusPending, s.Status)
	assert.Equal(t, constants.MethodNone, s.Method)
	assert.Equal(t, repo.now(), s.UploadedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Create_RejectsInvalidResult(t *testing.T) {
	repo, mock := newMockPostgresRepository(t)

	bad := acceptedResult()
	bad.IsValidPayment = false // invalid results must carry errors
	err := repo.Create(context.Background(), &entity.Submission{TicketID: "T-1", Result: bad})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetByID(t *testing.T) {
	repo, mock := newMockPostgresRepository(t)
	id := uuid.New()
	uploaded := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .* FROM payment_submissions WHERE id = \$1`).
		WithArgs(id.String()).
		WillReturnRows(mock.NewRows(columnNames).AddRow(
			id.String(), "T-1", "412345678901", 250.0, "412345678901", 250.0,
			"/uploads/a.png", "abc", 91.5, []byte(acceptedResultJSON), "pending", "none", false,
			nil, nil, uploaded, nil,
		))

	s, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, s.ID)
	assert.Equal(t, "412345678901", s.ExtractedReference())
	amt, ok := s.DetectedAmount()
	assert.True(t, ok)
	assert.Equal(t, 250.0, amt)
	assert.Equal(t, constants.StatusPending, s.Status)
	assert.Nil(t, s.ReviewedAt)
	assert.Nil(t, s.RejectionReason)
	assert.Equal(t, uploaded, s.UploadedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetByID_NotFound(t *testing.T) {
	repo, mock := newMockPostgresRepository(t)
	id := uuid.New()

	mock.ExpectQuery(`FROM payment_submissions WHERE id`).
		WithArgs(id.String()).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), id)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListPendingAndCount(t *testing.T) {
	repo, mock := newMockPostgresRepository(t)
	newer, older := uuid.New(), uuid.New()
	now := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE status = \$1 ORDER BY uploaded_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("pending", 10, 10).
		WillReturnRows(mock.NewRows(columnNames).
			AddRow(newer.String(), "T-2", "", 100.0, nil, nil, "/b.png", "b", 0.0, []byte(acceptedResultJSON), "pending", "none", true, nil, nil, now, nil).
			AddRow(older.String(), "T-1", "", 100.0, nil, nil, "/a.png", "a", 0.0, []byte(acceptedResultJSON), "pending", "none", false, nil, nil, now.Add(-time.Hour), nil))
	mock.ExpectQuery(`SELECT count\(\*\) FROM payment_submissions WHERE status = \$1`).
		WithArgs("pending").
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(12))

	list, err := repo.ListPending(context.Background(), 2, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer, list[0].ID)
	assert.True(t, list[0].NeedsReview)

	n, err := repo.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CountByReference(t *testing.T) {
	repo, mock := newMockPostgresRepository(t)

	mock.ExpectQuery(`user_reference = ANY\(\$1\) AND status = ANY\(\$2\)`).
		WithArgs([]string{"111111111111", "222222222222"}, []string{"pending", "verified"}).
		WillReturnRows(mock.NewRows([]string{"user_reference", "count"}).AddRow("111111111111", 2))

	counts, err := repo.CountByReference(context.Background(),
		[]string{"111111111111", "222222222222"},
		[]constants.VerificationStatus{constants.StatusPending, constants.StatusVerified})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"111111111111": 2}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())

	empty, err := repo.CountByReference(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPostgres_Review(t *testing.T) {
	repo, mock := newMockPostgresRepository(t)
	id := uuid.New()
	reviewedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE payment_submissions\s+SET status = \$2`).
		WithArgs(id.String(), "verified", "manual", pgxmock.AnyArg(), "alice", pgxmock.AnyArg(), "pending").
		WillReturnRows(mock.NewRows(columnNames).AddRow(
			id.String(), "T-1", "412345678901", 250.0, "412345678901", 250.0,
			"/a.png", "abc", 90.0, []byte(acceptedResultJSON), "verified", "manual", false,
			nil, "alice", reviewedAt.Add(-time.Hour), pgtype.Timestamptz{Time: reviewedAt, Valid: true},
		))

	s, err := repo.Review(context.Background(), id, entity.ReviewOutcome{
		Status:     constants.StatusVerified,
		Method:     constants.MethodManual,
		ReviewedBy: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusVerified, s.Status)
	require.NotNil(t, s.ReviewedAt)
	assert.Equal(t, reviewedAt, *s.ReviewedAt)
	require.NotNil(t, s.ReviewedBy)
	assert.Equal(t, "alice", *s.ReviewedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Review_AlreadyReviewed(t *testing.T) {
	repo, mock := newMockPostgresRepository(t)
	id := uuid.New()

	mock.ExpectQuery(`UPDATE payment_submissions`).WillReturnError(pgx.ErrNoRows)

	_, err := repo.Review(context.Background(), id, entity.ReviewOutcome{Status: constants.StatusRejected, Method: constants.MethodManual})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigratePostgresAndHealthCheck(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS payment_submissions`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	require.NoError(t, MigratePostgres(context.Background(), mock))
	require.NoError(t, HealthCheck(context.Background(), mock, time.Second, nil))
	err = HealthCheck(context.Background(), mock, 0, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}
