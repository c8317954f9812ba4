package review

import (
	"github.com/devkiraa/makeTicket-sub003/internal/common"
	"github.com/devkiraa/makeTicket-sub003/internal/verify"
)

// Error codes carried by the AppErrors below. Transports switch on them.
const (
	CodeUnreadableImage  = "OCR_FAILURE"
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeUnsupportedType  = "UNSUPPORTED_FILE_TYPE"
	CodeAmountMismatch   = "AMOUNT_MISMATCH"
	CodeMissingReference = "MISSING_REFERENCE"
	CodeDuplicate        = "DUPLICATE_IN_FLIGHT"
	CodeInvalidStatus    = "INVALID_STATUS"
	CodeOCRTimeout       = "OCR_TIMEOUT"
)

var (
	ErrUnreadableImage = common.NewAppError(CodeUnreadableImage, verify.CategoryOCRFailure.UserMessage(), common.ErrFailedPrecondition)
	ErrFileTooLarge    = common.NewAppError(CodeFileTooLarge, "file too large; maximum size is 10MB", common.ErrInvalidInput)
	ErrUnsupportedType = common.NewAppError(CodeUnsupportedType, "only JPEG and PNG screenshots are allowed", common.ErrInvalidInput)
	ErrInvalidStatus   = common.NewAppError(CodeInvalidStatus, "status must be verified or rejected", common.ErrInvalidInput)
	ErrOCRTimeout      = common.NewAppError(CodeOCRTimeout, "recognition timed out; please retry with a clearer screenshot", common.ErrTimeout)

	// ErrAmountMismatch blocks a manual approval whose detected amount differs
	// from the ticket price, unless forced.
	ErrAmountMismatch = common.NewAppError(CodeAmountMismatch, "detected amount does not match the expected amount; use force approve to override", common.ErrFailedPrecondition)
	// ErrMissingReference blocks a manual approval without a UTR, unless forced.
	ErrMissingReference = common.NewAppError(CodeMissingReference, "UTR/Transaction ID is missing", common.ErrFailedPrecondition)
	// ErrDuplicateInFlight means another submission with the same reference
	// is being processed right now.
	ErrDuplicateInFlight = common.NewAppError(CodeDuplicate, "a submission with this reference is already being processed", common.ErrConflict)
)
