package verify

import (
	"strings"
	"unicode"
)

// BlockReason explains why the upload gate refused a submission.
type BlockReason string

const (
	BlockNone              BlockReason = ""
	BlockAmountMismatch    BlockReason = "amount_mismatch"
	BlockReferenceRequired BlockReason = "reference_required"
)

// GateDecision is the upload flow's view of a verdict plus the reference the
// user confirmed.
type GateDecision struct {
	Allowed   bool        `json:"allowed"`
	Reason    BlockReason `json:"reason,omitempty"`
	Reference string      `json:"reference,omitempty"`
	// NeedsReview is set when the submission proceeds despite verdict errors.
	NeedsReview bool `json:"needs_review"`
	// ReferenceOverridden is set when the user typed something other than the
	// extracted reference.
	ReferenceOverridden bool `json:"reference_overridden"`
}

// Prefill is the value to pre-populate the reference input with. The user may
// still edit it.
func Prefill(r Result) string {
	if v, ok := r.Reference.Get(); ok {
		return v
	}
	return ""
}

// NormalizeReference strips whitespace users commonly paste with a UTR.
func NormalizeReference(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// ValidReference reports whether s is at least 12 ASCII digits.
func ValidReference(s string) bool {
	if len(s) < ReferenceLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Gate applies the submission rules: an amount mismatch is a hard stop no
// matter what the user typed; otherwise a user-confirmed reference of at least
// 12 digits is required. Non-blocking verdict errors and overridden
// references send the submission to review.
func Gate(r Result, userReference string) GateDecision {
	ref := NormalizeReference(userReference)
	d := GateDecision{Reference: ref}

	if r.AmountMismatch() {
		d.Reason = BlockAmountMismatch
		return d
	}
	if !ValidReference(ref) {
		d.Reason = BlockReferenceRequired
		return d
	}

	d.Allowed = true
	if extracted, ok := r.Reference.Get(); ok && extracted != ref {
		d.ReferenceOverridden = true
	}
	d.NeedsReview = !r.Accepted() || d.ReferenceOverridden
	return d
}
