package verify

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// AmountTolerance absorbs OCR digit-rounding noise when comparing amounts.
const AmountTolerance = 1.0

// Error messages, in priority order.
const (
	MsgNotAPayment       = "not a recognizable payment confirmation; no currency indicator or payment keywords found"
	MsgUnverifiable      = "could not verify this as a valid payment screenshot"
	MsgReferenceMissing  = "transaction reference not detected"
	MsgAmountMissing     = "payment amount not detected"
	msgAmountMismatchFmt = "amount mismatch: screenshot shows %s but expected %s"
	amountMismatchPrefix = "amount mismatch:"
)

// Recognition is raw OCR output for one screenshot. Confidence (0..100) is
// diagnostic only and never gates a verdict.
type Recognition struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Expected is what the ticket or order says should have been paid.
type Expected struct {
	Amount    float64 `json:"amount"`
	PayeeName string  `json:"payee_name,omitempty"`
	UPIID     string  `json:"upi_id,omitempty"`
}

var ErrInvalidExpectedAmount = errors.New("expected amount must be a positive number")

// Validate checks the caller-supplied contract.
func (e Expected) Validate() error {
	if math.IsNaN(e.Amount) || math.IsInf(e.Amount, 0) || e.Amount <= 0 {
		return ErrInvalidExpectedAmount
	}
	return nil
}

// Result is the full, explainable verdict for one screenshot.
type Result struct {
	IsValidPayment bool               `json:"is_valid_payment"`
	Reference      Candidate[string]  `json:"transaction_reference"`
	Amount         Candidate[float64] `json:"amount"`
	AmountMatches  bool               `json:"amount_matches"`
	Date           Candidate[string]  `json:"transaction_date"`
	Payee          Candidate[string]  `json:"payee_name"`
	App            string             `json:"payment_application"`
	Errors         []string           `json:"errors"`
}

// Accepted reports whether the submission may proceed without caveats.
func (r Result) Accepted() bool { return len(r.Errors) == 0 }

// AmountMismatch reports a detected amount that differs from the expected one.
func (r Result) AmountMismatch() bool {
	return r.IsValidPayment && r.Amount.OK() && !r.AmountMatches
}

// Verify runs the classifier and every extractor over rec.Text and combines
// them with exp into a verdict. It is pure and never panics; an empty text
// simply yields a not-a-payment result.
func Verify(rec Recognition, exp Expected) Result {
	text := rec.Text

	classified := Classify(text)
	hasCurrency := HasCurrencyToken(text)

	res := Result{
		Reference: ExtractReference(text),
		Amount:    ExtractAmount(text),
		Date:      ExtractDate(text),
		Payee:     ExtractPayee(text),
		App:       DetectApp(text),
		Errors:    []string{},
	}
	res.IsValidPayment = classified && hasCurrency && (res.Reference.OK() || res.Amount.OK())
	if v, ok := res.Amount.Get(); ok {
		res.AmountMatches = WithinTolerance(v, exp.Amount)
	}

	switch {
	case !hasCurrency || !classified:
		res.Errors = append(res.Errors, MsgNotAPayment)
	case !res.IsValidPayment:
		res.Errors = append(res.Errors, MsgUnverifiable)
	default:
		if !res.Reference.OK() {
			res.Errors = append(res.Errors, MsgReferenceMissing)
		}
		if v, ok := res.Amount.Get(); !ok {
			res.Errors = append(res.Errors, MsgAmountMissing)
		} else if !res.AmountMatches {
			res.Errors = append(res.Errors, fmt.Sprintf(msgAmountMismatchFmt, FormatAmount(v), FormatAmount(exp.Amount)))
		}
	}
	return res
}

// WithinTolerance reports whether got is within AmountTolerance of want.
// Both sides are rounded to whole paise first so a difference of exactly
// one rupee is never lost to float error.
func WithinTolerance(got, want float64) bool {
	diff := math.Round(got*100) - math.Round(want*100)
	return math.Abs(diff) <= math.Round(AmountTolerance*100)
}

// FormatAmount renders an amount with the shortest exact decimal form.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
