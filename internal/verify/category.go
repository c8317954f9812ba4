package verify

import "strings"

// Category is the error taxonomy surfaced to the upload flow. Each maps to a
// single actionable message.
type Category string

const (
	CategoryNone                 Category = "none"
	CategoryOCRFailure           Category = "ocr_failure"
	CategoryNotAPayment          Category = "not_a_payment"
	CategoryExtractionIncomplete Category = "extraction_incomplete"
	CategoryAmountMismatch       Category = "amount_mismatch"
)

// Category derives the highest-priority error category of r. OCR failures
// never reach a Result; callers report CategoryOCRFailure themselves.
func (r Result) Category() Category {
	if len(r.Errors) == 0 {
		return CategoryNone
	}
	for _, e := range r.Errors {
		if strings.HasPrefix(e, amountMismatchPrefix) {
			return CategoryAmountMismatch
		}
	}
	switch r.Errors[0] {
	case MsgNotAPayment, MsgUnverifiable:
		return CategoryNotAPayment
	}
	return CategoryExtractionIncomplete
}

// UserMessage is the remediation text shown for a category.
func (c Category) UserMessage() string {
	switch c {
	case CategoryOCRFailure:
		return "could not read image; please upload a clearer screenshot"
	case CategoryNotAPayment:
		return "this does not look like a UPI payment confirmation; please upload the payment success screen"
	case CategoryExtractionIncomplete:
		return "some payment details could not be read; enter the 12-digit reference manually and the proof will be reviewed"
	case CategoryAmountMismatch:
		return "the screenshot shows a different amount than the ticket price; upload the correct payment screenshot"
	}
	return ""
}
