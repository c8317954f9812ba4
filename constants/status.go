package constants

import "strings"

// VerificationStatus is the review state of a payment-proof submission.
// Stored as-is in the submissions table.
type VerificationStatus string

const (
	StatusPending  VerificationStatus = "pending"
	StatusVerified VerificationStatus = "verified"
	StatusRejected VerificationStatus = "rejected"
)

// VerificationMethod records who settled a submission.
type VerificationMethod string

const (
	MethodNone   VerificationMethod = "none"
	MethodAuto   VerificationMethod = "auto"
	MethodManual VerificationMethod = "manual"
)

// ReviewStatuses are the statuses a reviewer may move a pending submission to.
var ReviewStatuses = []VerificationStatus{StatusVerified, StatusRejected}

// ReviewStatusStrings returns ReviewStatuses as plain strings.
func ReviewStatusStrings() []string {
	out := make([]string, len(ReviewStatuses))
	for i, s := range ReviewStatuses {
		out[i] = string(s)
	}
	return out
}

// CanonicalizeReviewStatus maps reviewer input onto a terminal status.
func CanonicalizeReviewStatus(input string) (VerificationStatus, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))

	synonyms := map[string]VerificationStatus{
		"approve":  StatusVerified,
		"approved": StatusVerified,
		"accept":   StatusVerified,
		"reject":   StatusRejected,
		"decline":  StatusRejected,
		"declined": StatusRejected,
	}
	if s, ok := synonyms[normalized]; ok {
		return s, true
	}
	for _, s := range ReviewStatuses {
		if normalized == string(s) {
			return s, true
		}
	}
	return "", false
}
