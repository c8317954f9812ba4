// Package review runs the payment-proof workflow: submission of a screenshot,
// the reviewer queue and manual verification.
package review

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/devkiraa/makeTicket-sub003/constants"
	"github.com/devkiraa/makeTicket-sub003/internal/common"
	"github.com/devkiraa/makeTicket-sub003/internal/entity"
	"github.com/devkiraa/makeTicket-sub003/internal/events"
	"github.com/devkiraa/makeTicket-sub003/internal/lock"
	"github.com/devkiraa/makeTicket-sub003/internal/metrics"
	"github.com/devkiraa/makeTicket-sub003/internal/ocr"
	"github.com/devkiraa/makeTicket-sub003/internal/repository"
	"github.com/devkiraa/makeTicket-sub003/internal/telemetry"
	"github.com/devkiraa/makeTicket-sub003/internal/verify"
)

// Service handles proof submission and review.
type Service struct {
	recognizer ocr.Recognizer
	repo       repository.SubmissionRepository
	store      ScreenshotStore
	refLock    lock.ReferenceLock
	publisher  events.Publisher
	metrics    *metrics.Metrics
	maxBytes   int64
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithReferenceLock(l lock.ReferenceLock) Option { return func(s *Service) { s.refLock = l } }
func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.publisher = p } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }
func WithMaxBytes(n int64) Option { return func(s *Service) { s.maxBytes = n } }
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(recognizer ocr.Recognizer, repo repository.SubmissionRepository, store ScreenshotStore, opts ...Option) *Service {
	s := &Service{
		recognizer: recognizer,
		repo:       repo,
		store:      store,
		refLock:    lock.Nop{},
		publisher:  events.Nop{},
		maxBytes:   constants.MaxUploadBytes,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SubmitRequest is one uploaded proof.
type SubmitRequest struct {
	TicketID      string
	UserReference string
	Expected      verify.Expected
	Image         []byte
	Filename      string
}

// SubmitOutcome reports what happened to a submission. Submission is nil when
// the gate blocked it.
type SubmitOutcome struct {
	Result     verify.Result       `json:"result"`
	Category   verify.Category     `json:"category"`
	Message    string              `json:"message,omitempty"`
	Decision   verify.GateDecision `json:"decision"`
	Prefill    string              `json:"prefill_reference,omitempty"`
	Submission *entity.Submission  `json:"submission,omitempty"`
}

// Submit verifies a screenshot and, when the gate allows it, stores the image
// and a pending audit record.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitOutcome, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "review.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("ticket_id", req.TicketID))

	ext, err := s.validateSubmit(req)
	if err != nil {
		s.logger.Warn("review.submit.invalid", "ticket_id", req.TicketID, "filename", req.Filename, "error", err)
		return nil, err
	}

	start := s.now()
	rec, err := s.recognizer.Recognize(ctx, req.Image)
	s.metrics.OCR(s.now().Sub(start))
	if err != nil {
		if eris.Is(err, ocr.ErrUnreadableImage) {
			s.logger.Warn("review.submit.ocr_failure", "ticket_id", req.TicketID, "error", err)
			s.metrics.Submission(metrics.OutcomeOCRFailure)
			s.metrics.Category(string(verify.CategoryOCRFailure))
			span.SetStatus(codes.Error, "ocr failure")
			return nil, ErrUnreadableImage
		}
		if eris.Is(err, context.DeadlineExceeded) || eris.Is(err, context.Canceled) {
			s.logger.Warn("review.submit.ocr_timeout", "ticket_id", req.TicketID, "error", err)
			s.metrics.Submission(metrics.OutcomeOCRFailure)
			span.SetStatus(codes.Error, "ocr timeout")
			return nil, ErrOCRTimeout
		}
		s.logger.Error("review.submit.ocr_error", "ticket_id", req.TicketID, "error", err)
		s.metrics.Submission(metrics.OutcomeError)
		span.RecordError(err)
		return nil, common.NewAppError("OCR_ERROR", "screenshot recognition failed", err)
	}

	res := verify.Verify(rec, req.Expected)
	cat := res.Category()
	s.metrics.Category(string(cat))
	decision := verify.Gate(res, req.UserReference)
	out := &SubmitOutcome{
		Result:   res,
		Category: cat,
		Message:  cat.UserMessage(),
		Decision: decision,
		Prefill:  verify.Prefill(res),
	}
	span.SetAttributes(
		attribute.Bool("verify.valid", res.IsValidPayment),
		attribute.String("verify.category", string(cat)),
		attribute.Bool("gate.allowed", decision.Allowed),
	)

	if !decision.Allowed {
		s.logger.Info("review.submit.blocked",
			"ticket_id", req.TicketID,
			"reason", decision.Reason,
			"category", cat,
			"errors", res.Errors,
		)
		s.metrics.Submission(metrics.OutcomeBlocked)
		return out, nil
	}

	release, err := s.refLock.Acquire(ctx, decision.Reference)
	defer release()
	if err != nil {
		if eris.Is(err, lock.ErrHeld) {
			s.logger.Warn("review.submit.duplicate_in_flight", "ticket_id", req.TicketID, "reference", decision.Reference)
			s.metrics.Submission(metrics.OutcomeBlocked)
			return nil, ErrDuplicateInFlight
		}
		// proceed unlocked when the lock backend is unavailable
		s.logger.Error("review.submit.lock_error", "ticket_id", req.TicketID, "error", err)
	}

	now := s.now().UTC()
	path, sha, err := s.store.Save(req.Image, ext, now)
	if err != nil {
		s.logger.Error("review.submit.store_failed", "ticket_id", req.TicketID, "error", err)
		s.metrics.Submission(metrics.OutcomeError)
		return nil, common.NewAppError("STORAGE_ERROR", "could not store screenshot", err)
	}

	sub := &entity.Submission{
		TicketID:         req.TicketID,
		UserReference:    decision.Reference,
		ExpectedAmount:   req.Expected.Amount,
		ScreenshotPath:   path,
		ScreenshotSHA256: sha,
		OCRConfidence:    rec.Confidence,
		Result:           res,
		Status:           constants.StatusPending,
		Method:           constants.MethodNone,
		NeedsReview:      decision.NeedsReview,
		UploadedAt:       now,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		if rmErr := s.store.Remove(path); rmErr != nil {
			s.logger.Warn("review.submit.cleanup_failed", "path", path, "error", rmErr)
		}
		s.metrics.Submission(metrics.OutcomeError)
		span.RecordError(err)
		return nil, err
	}
	out.Submission = sub

	s.publish(ctx, events.TypeSubmitted, sub)
	if sub.NeedsReview {
		s.metrics.Submission(metrics.OutcomeNeedsReview)
	} else {
		s.metrics.Submission(metrics.OutcomeAccepted)
	}
	s.logger.Info("review.submit.ok",
		"submission_id", sub.ID,
		"ticket_id", sub.TicketID,
		"needs_review", sub.NeedsReview,
		"reference_overridden", decision.ReferenceOverridden,
		"category", cat,
	)
	return out, nil
}

// SubmitFile reads an image from disk and submits it.
func (s *Service) SubmitFile(ctx context.Context, path string, req SubmitRequest) (*SubmitOutcome, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, common.NewAppError("NOT_FOUND", "screenshot not found", common.ErrNotFound)
	}
	if info.Size() > s.maxBytes {
		return nil, ErrFileTooLarge
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read screenshot %s", path)
	}
	req.Image = data
	if req.Filename == "" {
		req.Filename = filepath.Base(path)
	}
	return s.Submit(ctx, req)
}

func (s *Service) validateSubmit(req SubmitRequest) (string, error) {
	v := common.NewValidator().
		Field("ticket_id", req.TicketID, common.Required, common.MaxLength(128)).
		Field("expected_amount", req.Expected.Amount, common.PositiveAmount)
	if v.HasErrors() {
		return "", common.NewAppError("INVALID_ARGUMENT", v.ErrorMessage(), common.ErrInvalidInput)
	}
	if int64(len(req.Image)) > s.maxBytes {
		return "", ErrFileTooLarge
	}
	ext := constants.NormalizeExt(filepath.Ext(req.Filename))
	if !constants.IsAllowedExt(ext) {
		return "", ErrUnsupportedType
	}
	switch http.DetectContentType(req.Image) {
	case "image/png", "image/jpeg":
	default:
		return "", ErrUnsupportedType
	}
	return ext, nil
}

// PendingPage is one page of the reviewer queue.
type PendingPage struct {
	Items []entity.PendingSubmission `json:"items"`
	Total int                        `json:"total"`
	Page  int                        `json:"page"`
	Limit int                        `json:"limit"`
	Pages int                        `json:"pages"`
}

// ListPending returns pending submissions newest first. A submission is
// flagged as a duplicate when its reference appears on more than one pending
// or verified submission.
func (s *Service) ListPending(ctx context.Context, page, limit int) (*PendingPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = repository.DefaultPageLimit
	}
	limit = min(limit, repository.MaxPageLimit)

	subs, err := s.repo.ListPending(ctx, page, limit)
	if err != nil {
		s.logger.Error("review.list_pending.failed", "error", err)
		return nil, err
	}
	total, err := s.repo.CountPending(ctx)
	if err != nil {
		s.logger.Error("review.count_pending.failed", "error", err)
		return nil, err
	}

	refs := make([]string, 0, len(subs))
	seen := map[string]bool{}
	for _, sub := range subs {
		if sub.UserReference != "" && !seen[sub.UserReference] {
			seen[sub.UserReference] = true
			refs = append(refs, sub.UserReference)
		}
	}
	counts, err := s.repo.CountByReference(ctx, refs,
		[]constants.VerificationStatus{constants.StatusPending, constants.StatusVerified})
	if err != nil {
		s.logger.Error("review.count_by_reference.failed", "error", err)
		return nil, err
	}

	items := make([]entity.PendingSubmission, 0, len(subs))
	for _, sub := range subs {
		items = append(items, entity.PendingSubmission{
			Submission:         *sub,
			DuplicateReference: sub.UserReference != "" && counts[sub.UserReference] > 1,
		})
	}
	return &PendingPage{
		Items: items,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

// ReviewRequest is a reviewer's decision on a pending submission.
type ReviewRequest struct {
	Status          string
	RejectionReason string
	ForceApprove    bool
	Reviewer        string
}

// ReviewManual settles a pending submission. Approval checks the stored
// amount and reference unless ForceApprove is set; stale proofs only warn.
func (s *Service) ReviewManual(ctx context.Context, id uuid.UUID, req ReviewRequest) (*entity.Submission, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "review.ReviewManual")
	defer span.End()

	status, _ := constants.CanonicalizeReviewStatus(req.Status)
	v := common.NewValidator().
		Field("status", string(status), common.OneOf(constants.ReviewStatusStrings()...))
	if v.HasErrors() {
		s.logger.Info("review.manual.invalid_status", "submission_id", id, "status", req.Status)
		return nil, ErrInvalidStatus
	}
	reviewer := strings.TrimSpace(req.Reviewer)
	if reviewer == "" {
		reviewer = common.ReviewerFromContext(ctx)
	}

	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if status == constants.StatusVerified && !req.ForceApprove {
		if amt, ok := sub.DetectedAmount(); ok && amt > 0 && sub.ExpectedAmount > 0 &&
			!verify.WithinTolerance(amt, sub.ExpectedAmount) {
			s.logger.Info("review.manual.amount_mismatch",
				"submission_id", id, "detected", amt, "expected", sub.ExpectedAmount)
			return nil, ErrAmountMismatch
		}
		if common.Reference("user_reference", sub.UserReference) != nil {
			return nil, ErrMissingReference
		}
		if age := sub.Age(now); age > constants.ProofRetentionDays*24*time.Hour {
			s.logger.Warn("review.manual.stale_proof",
				"submission_id", id, "age_days", int(age.Hours()/24))
		}
	}

	outcome := entity.ReviewOutcome{
		Status:     status,
		Method:     constants.MethodManual,
		ReviewedBy: reviewer,
		ReviewedAt: now,
	}
	if status == constants.StatusRejected {
		if reason := strings.TrimSpace(req.RejectionReason); reason != "" {
			outcome.RejectionReason = &reason
		}
	}

	updated, err := s.repo.Review(ctx, id, outcome)
	if err != nil {
		return nil, err
	}
	s.metrics.Review(string(status))
	s.publish(ctx, events.TypeReviewed, updated)
	s.logger.Info("review.manual.ok",
		"submission_id", id,
		"status", status,
		"force_approve", req.ForceApprove,
		"reviewed_by", reviewer,
	)
	return updated, nil
}

func (s *Service) publish(ctx context.Context, typ string, sub *entity.Submission) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:         typ,
		SubmissionID: sub.ID.String(),
		TicketID:     sub.TicketID,
		Status:       string(sub.Status),
		Method:       string(sub.Method),
		Reference:    sub.UserReference,
		NeedsReview:  sub.NeedsReview,
		Errors:       sub.Result.Errors,
		Timestamp:    s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("review.publish_failed", "type", typ, "submission_id", sub.ID, "error", err)
	}
}
