package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/devkiraa/makeTicket-sub003/constants"
	"github.com/devkiraa/makeTicket-sub003/internal/common"
	"github.com/devkiraa/makeTicket-sub003/internal/entity"
	"github.com/devkiraa/makeTicket-sub003/internal/events"
	"github.com/devkiraa/makeTicket-sub003/internal/telemetry"
	"github.com/devkiraa/makeTicket-sub003/internal/verify"
)

// Per-submission reconciliation statuses.
const (
	ReconcileVerified                = "VERIFIED"
	ReconcileNotFound                = "NOT_FOUND"
	ReconcileAmountMismatch          = "AMOUNT_MISMATCH"
	ReconcileStatementAmountMismatch = "STATEMENT_AMOUNT_MISMATCH"
	ReconcileNeedsReview             = "NEEDS_MANUAL_REVIEW"
	ReconcileError                   = "ERROR"
)

const (
	reconcileConcurrency = 5
	reconcilePageSize    = 200

	reasonNotInStatement = "UTR not found in statement"
)

// ReconcileRequest matches the reviewer queue against a bank statement.
type ReconcileRequest struct {
	Statement string
	// RejectMissing rejects submissions whose reference is absent from the
	// statement. Otherwise they stay pending.
	RejectMissing bool
	Reviewer      string
}

// ReconcileItem is the outcome for one pending submission.
type ReconcileItem struct {
	SubmissionID  uuid.UUID `json:"submission_id"`
	TicketID      string    `json:"ticket_id"`
	Reference     string    `json:"reference"`
	Status        string    `json:"status"`
	Message       string    `json:"message"`
	MatchedAmount *float64  `json:"matched_amount,omitempty"`
}

// ReconcileReport summarizes a reconciliation run.
type ReconcileReport struct {
	Processed        int             `json:"processed"`
	Verified         int             `json:"verified"`
	Rejected         int             `json:"rejected"`
	AmountMismatches int             `json:"amount_mismatches"`
	Items            []ReconcileItem `json:"items"`
}

// ReconcileStatement settles pending submissions that carry a reference by
// looking that reference up in statement text. A submission is verified
// automatically when the statement shows its reference with an amount within
// tolerance of the ticket price. Amount disagreements and references printed
// without an amount are left for manual review.
func (s *Service) ReconcileStatement(ctx context.Context, req ReconcileRequest) (*ReconcileReport, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "review.ReconcileStatement")
	defer span.End()

	if strings.TrimSpace(req.Statement) == "" {
		return nil, common.NewAppError("INVALID_ARGUMENT", "statement text is required", common.ErrInvalidInput)
	}
	reviewer := strings.TrimSpace(req.Reviewer)
	if reviewer == "" {
		reviewer = common.ReviewerFromContext(ctx)
	}

	subs, err := s.pendingWithReference(ctx)
	if err != nil {
		return nil, err
	}
	idx := verify.ParseStatement(req.Statement)

	items := make([]ReconcileItem, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)
	for i, sub := range subs {
		i, sub := i, sub
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			items[i] = s.reconcileOne(gctx, sub, idx, req.RejectMissing, reviewer)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &ReconcileReport{Processed: len(items), Items: items}
	for _, it := range items {
		switch it.Status {
		case ReconcileVerified:
			report.Verified++
		case ReconcileAmountMismatch, ReconcileStatementAmountMismatch:
			report.AmountMismatches++
		case ReconcileNotFound:
			if req.RejectMissing {
				report.Rejected++
			}
		}
	}
	span.SetAttributes(
		attribute.Int("reconcile.processed", report.Processed),
		attribute.Int("reconcile.verified", report.Verified),
	)
	s.logger.Info("review.reconcile.ok",
		"processed", report.Processed,
		"verified", report.Verified,
		"rejected", report.Rejected,
		"amount_mismatches", report.AmountMismatches,
		"reviewed_by", reviewer,
	)
	return report, nil
}

// pendingWithReference loads the whole pending queue up front so settling
// submissions does not shift the pages underneath us.
func (s *Service) pendingWithReference(ctx context.Context) ([]*entity.Submission, error) {
	var out []*entity.Submission
	for page := 1; ; page++ {
		subs, err := s.repo.ListPending(ctx, page, reconcilePageSize)
		if err != nil {
			s.logger.Error("review.reconcile.list_failed", "page", page, "error", err)
			return nil, err
		}
		for _, sub := range subs {
			if strings.TrimSpace(sub.UserReference) != "" {
				out = append(out, sub)
			}
		}
		if len(subs) < reconcilePageSize {
			return out, nil
		}
	}
}

func (s *Service) reconcileOne(ctx context.Context, sub *entity.Submission, idx verify.StatementIndex, rejectMissing bool, reviewer string) ReconcileItem {
	item := ReconcileItem{
		SubmissionID: sub.ID,
		TicketID:     sub.TicketID,
		Reference:    sub.UserReference,
	}

	if amt, ok := sub.DetectedAmount(); ok && !verify.WithinTolerance(amt, sub.ExpectedAmount) {
		item.Status = ReconcileAmountMismatch
		item.Message = fmt.Sprintf("amount mismatch: proof shows %s but ticket price is %s",
			verify.FormatAmount(amt), verify.FormatAmount(sub.ExpectedAmount))
		return item
	}

	amounts, found := idx.Lookup(sub.UserReference)
	if !found {
		item.Status = ReconcileNotFound
		item.Message = reasonNotInStatement
		if rejectMissing {
			reason := reasonNotInStatement
			if err := s.settleAuto(ctx, sub, constants.StatusRejected, &reason, reviewer); err != nil {
				item.Status, item.Message = ReconcileError, err.Error()
			}
		}
		return item
	}
	if len(amounts) == 0 {
		item.Status = ReconcileNeedsReview
		item.Message = "reference found in statement without an amount"
		return item
	}

	for _, a := range amounts {
		if verify.WithinTolerance(a, sub.ExpectedAmount) {
			matched := a
			item.MatchedAmount = &matched
			if err := s.settleAuto(ctx, sub, constants.StatusVerified, nil, reviewer); err != nil {
				item.Status, item.Message = ReconcileError, err.Error()
				return item
			}
			item.Status = ReconcileVerified
			item.Message = "verified against statement"
			return item
		}
	}
	first := amounts[0]
	item.MatchedAmount = &first
	item.Status = ReconcileStatementAmountMismatch
	item.Message = fmt.Sprintf("statement shows %s, expected %s",
		verify.FormatAmount(first), verify.FormatAmount(sub.ExpectedAmount))
	return item
}

func (s *Service) settleAuto(ctx context.Context, sub *entity.Submission, status constants.VerificationStatus, reason *string, reviewer string) error {
	updated, err := s.repo.Review(ctx, sub.ID, entity.ReviewOutcome{
		Status:          status,
		Method:          constants.MethodAuto,
		RejectionReason: reason,
		ReviewedBy:      reviewer,
		ReviewedAt:      s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("review.reconcile.settle_failed", "submission_id", sub.ID, "status", status, "error", err)
		return err
	}
	s.metrics.Review(string(status))
	s.publish(ctx, events.TypeReviewed, updated)
	return nil
}
