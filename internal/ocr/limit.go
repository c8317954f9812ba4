package ocr

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/devkiraa/makeTicket-sub003/internal/verify"
)

type limitedRecognizer struct {
	next    Recognizer
	limiter *rate.Limiter
}

// RateLimited bounds how often next is invoked. tesseract is CPU-heavy and a
// burst of uploads should queue rather than saturate the host.
func RateLimited(next Recognizer, limiter *rate.Limiter) Recognizer {
	if limiter == nil {
		return next
	}
	return &limitedRecognizer{next: next, limiter: limiter}
}

func (l *limitedRecognizer) Recognize(ctx context.Context, image []byte) (verify.Recognition, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return verify.Recognition{}, eris.Wrap(err, "ocr: rate limit")
	}
	return l.next.Recognize(ctx, image)
}

type timeoutRecognizer struct {
	next    Recognizer
	timeout time.Duration
}

// Timeout caps each recognition at d. A zero d disables the cap.
func Timeout(next Recognizer, d time.Duration) Recognizer {
	if d <= 0 {
		return next
	}
	return &timeoutRecognizer{next: next, timeout: d}
}

func (t *timeoutRecognizer) Recognize(ctx context.Context, image []byte) (verify.Recognition, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Recognize(ctx, image)
}
