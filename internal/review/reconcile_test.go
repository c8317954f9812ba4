package review

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devkiraa/makeTicket-sub003/constants"
	"github.com/devkiraa/makeTicket-sub003/internal/common"
	"github.com/devkiraa/makeTicket-sub003/internal/events"
)

const bankStatement = `Date       Narration                              Amount     Balance
15/03/2026 UPI/412345678901/Ravi Kumar/okaxis      250.00 Cr  12,345.67
15/03/2026 UPI/555566667777/Asha                   300.00 Cr  12,645.67
16/03/2026 NEFT 123412341234
Closing balance carried forward`

type reconcileSeeds struct {
	verified, statementMismatch, missing, proofMismatch, noAmount uuid.UUID
}

func seedReconcileQueue(t *testing.T, f *fixture) reconcileSeeds {
	t.Helper()
	seedSubmission(t, f, "", 250, f.now)
	return reconcileSeeds{
		verified:          seedSubmission(t, f, "412345678901", 250, f.now).ID,
		statementMismatch: seedSubmission(t, f, "555566667777", 250, f.now).ID,
		missing:           seedSubmission(t, f, "999988887777", 250, f.now).ID,
		proofMismatch:     seedSubmission(t, f, "111122223333", 500, f.now).ID,
		noAmount:          seedSubmission(t, f, "123412341234", 250, f.now).ID,
	}
}

func itemsByID(report *ReconcileReport) map[uuid.UUID]ReconcileItem {
	out := make(map[uuid.UUID]ReconcileItem, len(report.Items))
	for _, it := range report.Items {
		out[it.SubmissionID] = it
	}
	return out
}

func TestReconcileStatement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fakeRecognizer{text: gpayText})
	seeds := seedReconcileQueue(t, f)

	report, err := f.svc.ReconcileStatement(ctx, ReconcileRequest{Statement: bankStatement, Reviewer: "ops"})
	require.NoError(t, err)

	assert.Equal(t, 5, report.Processed, "submissions without a reference are skipped")
	assert.Equal(t, 1, report.Verified)
	assert.Equal(t, 2, report.AmountMismatches)
	assert.Zero(t, report.Rejected)

	items := itemsByID(report)
	require.Len(t, items, 5)

	ok := items[seeds.verified]
	assert.Equal(t, ReconcileVerified, ok.Status)
	require.NotNil(t, ok.MatchedAmount)
	assert.Equal(t, 250.0, *ok.MatchedAmount)

	mismatch := items[seeds.statementMismatch]
	assert.Equal(t, ReconcileStatementAmountMismatch, mismatch.Status)
	assert.Equal(t, "statement shows 300, expected 250", mismatch.Message)

	assert.Equal(t, ReconcileNotFound, items[seeds.missing].Status)
	assert.Equal(t, "UTR not found in statement", items[seeds.missing].Message)
	assert.Equal(t, ReconcileAmountMismatch, items[seeds.proofMismatch].Status)
	assert.Equal(t, ReconcileNeedsReview, items[seeds.noAmount].Status)

	got, err := f.repo.GetByID(ctx, seeds.verified)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusVerified, got.Status)
	assert.Equal(t, constants.MethodAuto, got.Method)
	require.NotNil(t, got.ReviewedBy)
	assert.Equal(t, "ops", *got.ReviewedBy)

	for _, id := range []uuid.UUID{seeds.statementMismatch, seeds.missing, seeds.proofMismatch, seeds.noAmount} {
		sub, err := f.repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, constants.StatusPending, sub.Status)
		assert.Equal(t, constants.MethodNone, sub.Method)
	}

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, events.TypeReviewed, f.publisher.events[0].Type)
	assert.Equal(t, string(constants.MethodAuto), f.publisher.events[0].Method)
}

func TestReconcileStatement_RejectMissing(t *testing.T) {
	ctx := common.WithReviewer(context.Background(), "host@example.com")
	f := newFixture(t, fakeRecognizer{text: gpayText})
	seeds := seedReconcileQueue(t, f)

	report, err := f.svc.ReconcileStatement(ctx, ReconcileRequest{Statement: bankStatement, RejectMissing: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Verified)
	assert.Equal(t, 1, report.Rejected)

	got, err := f.repo.GetByID(ctx, seeds.missing)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusRejected, got.Status)
	assert.Equal(t, constants.MethodAuto, got.Method)
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, "UTR not found in statement", *got.RejectionReason)
	require.NotNil(t, got.ReviewedBy)
	assert.Equal(t, "host@example.com", *got.ReviewedBy)

	again, err := f.svc.ReconcileStatement(ctx, ReconcileRequest{Statement: bankStatement, RejectMissing: true})
	require.NoError(t, err)
	assert.Equal(t, 3, again.Processed, "settled submissions leave the queue")
	assert.Zero(t, again.Verified)
}

func TestReconcileStatement_RequiresStatement(t *testing.T) {
	f := newFixture(t, fakeRecognizer{text: gpayText})
	_, err := f.svc.ReconcileStatement(context.Background(), ReconcileRequest{Statement: "  \n"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
