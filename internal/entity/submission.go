package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/devkiraa/makeTicket-sub003/constants"
	"github.com/devkiraa/makeTicket-sub003/internal/verify"
)

// Submission is the audit record for one uploaded payment proof.
type Submission struct {
	ID               uuid.UUID                    `json:"id"`
	TicketID         string                       `json:"ticket_id"`
	UserReference    string                       `json:"user_reference"`
	ExpectedAmount   float64                      `json:"expected_amount"`
	ScreenshotPath   string                       `json:"screenshot_path"`
	ScreenshotSHA256 string                       `json:"screenshot_sha256"`
	OCRConfidence    float64                      `json:"ocr_confidence"`
	Result           verify.Result                `json:"result"`
	Status           constants.VerificationStatus `json:"status"`
	Method           constants.VerificationMethod `json:"method"`
	NeedsReview      bool                         `json:"needs_review"`
	RejectionReason  *string                      `json:"rejection_reason,omitempty"`
	ReviewedBy       *string                      `json:"reviewed_by,omitempty"`
	UploadedAt       time.Time                    `json:"uploaded_at"`
	ReviewedAt       *time.Time                   `json:"reviewed_at,omitempty"`
}

// ExtractedReference is the reference read from the screenshot, or "".
func (s *Submission) ExtractedReference() string {
	return s.Result.Reference.OrZero()
}

// DetectedAmount is the amount read from the screenshot, if any.
func (s *Submission) DetectedAmount() (float64, bool) {
	return s.Result.Amount.Get()
}

// Age is how long ago the proof was uploaded relative to now.
func (s *Submission) Age(now time.Time) time.Duration {
	return now.Sub(s.UploadedAt)
}

// PendingSubmission is a Submission as shown in the reviewer queue.
type PendingSubmission struct {
	Submission
	DuplicateReference bool `json:"is_duplicate_reference"`
}

// ReviewOutcome is what a reviewer decided for a submission.
type ReviewOutcome struct {
	Status          constants.VerificationStatus
	Method          constants.VerificationMethod
	RejectionReason *string
	ReviewedBy      string
	ReviewedAt      time.Time
}
