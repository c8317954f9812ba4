package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/devkiraa/makeTicket-sub003/internal/common"
	"github.com/devkiraa/makeTicket-sub003/internal/entity"
	"github.com/devkiraa/makeTicket-sub003/internal/review"
	"github.com/devkiraa/makeTicket-sub003/internal/verify"
)

// ReviewerMetadataKey carries the acting reviewer on gRPC calls.
const ReviewerMetadataKey = "x-reviewer"

// Reviews is the part of review.Service the transports need.
type Reviews interface {
	Submit(ctx context.Context, req review.SubmitRequest) (*review.SubmitOutcome, error)
	ListPending(ctx context.Context, page, limit int) (*review.PendingPage, error)
	ReviewManual(ctx context.Context, id uuid.UUID, req review.ReviewRequest) (*entity.Submission, error)
	ReconcileStatement(ctx context.Context, req review.ReconcileRequest) (*review.ReconcileReport, error)
}

// PaymentProofService implements PaymentProofServer over the review workflow.
type PaymentProofService struct {
	reviews Reviews
	logger  *slog.Logger
}

func NewPaymentProofService(reviews Reviews, logger *slog.Logger) *PaymentProofService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentProofService{reviews: reviews, logger: logger}
}

type verifyTextRequest struct {
	Text           string  `json:"text"`
	Confidence     float64 `json:"confidence"`
	ExpectedAmount float64 `json:"expected_amount"`
	PayeeName      string  `json:"payee_name"`
	UPIID          string  `json:"upi_id"`
	UserReference  string  `json:"user_reference"`
}

type verifyTextResponse struct {
	Result   verify.Result       `json:"result"`
	Category verify.Category     `json:"category"`
	Message  string              `json:"message,omitempty"`
	Prefill  string              `json:"prefill_reference,omitempty"`
	Decision verify.GateDecision `json:"decision"`
}

// VerifyText runs the engine over already-recognized text. Nothing is stored.
func (s *PaymentProofService) VerifyText(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req verifyTextRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, common.InvalidArgumentErrorf("malformed request: %v", err)
	}
	exp := verify.Expected{Amount: req.ExpectedAmount, PayeeName: req.PayeeName, UPIID: req.UPIID}
	if err := exp.Validate(); err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}

	res := verify.Verify(verify.Recognition{Text: req.Text, Confidence: req.Confidence}, exp)
	cat := res.Category()
	s.logger.Debug("grpc.verify_text",
		"valid", res.IsValidPayment,
		"category", cat,
		"errors", len(res.Errors),
	)
	return encodeStruct(verifyTextResponse{
		Result:   res,
		Category: cat,
		Message:  cat.UserMessage(),
		Prefill:  verify.Prefill(res),
		Decision: verify.Gate(res, req.UserReference),
	})
}

type listPendingRequest struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (s *PaymentProofService) ListPending(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req listPendingRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, common.InvalidArgumentErrorf("malformed request: %v", err)
	}
	page, err := s.reviews.ListPending(ctx, req.Page, req.Limit)
	if err != nil {
		s.logger.Warn("grpc.list_pending.failed", "error", err)
		return nil, common.ToStatus(err)
	}
	return encodeStruct(page)
}

const maxReasonLength = 500

type reviewRequest struct {
	SubmissionID    string `json:"submission_id"`
	Status          string `json:"status"`
	RejectionReason string `json:"rejection_reason"`
	ForceApprove    bool   `json:"force_approve"`
	Reviewer        string `json:"reviewer"`
}

func (s *PaymentProofService) Review(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req reviewRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, common.InvalidArgumentErrorf("malformed request: %v", err)
	}
	req.SubmissionID = strings.TrimSpace(req.SubmissionID)
	v := common.NewValidator().
		Field("submission_id", req.SubmissionID, common.Required, common.UUID).
		Field("rejection_reason", req.RejectionReason, common.MaxLength(maxReasonLength))
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	id := uuid.MustParse(req.SubmissionID)
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(ReviewerMetadataKey); len(v) > 0 {
			ctx = common.WithReviewer(ctx, v[0])
		}
	}

	sub, err := s.reviews.ReviewManual(ctx, id, review.ReviewRequest{
		Status:          req.Status,
		RejectionReason: req.RejectionReason,
		ForceApprove:    req.ForceApprove,
		Reviewer:        req.Reviewer,
	})
	if err != nil {
		s.logger.Warn("grpc.review.failed", "submission_id", id, "error", err)
		return nil, common.ToStatus(err)
	}
	return encodeStruct(map[string]any{"submission": sub})
}

// decodeStruct maps a Struct onto v through its JSON form.
func decodeStruct(in *structpb.Struct, v any) error {
	if in == nil {
		return nil
	}
	b, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func encodeStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}
