package async

import (
	"context"
	"errors"
	"time"

	"github.com/devkiraa/makeTicket-sub003/internal/review"
	"github.com/devkiraa/makeTicket-sub003/internal/verify"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one screenshot on disk waiting for verification.
type Job struct {
	ID            string
	Path          string
	TicketID      string
	UserReference string
	Expected      verify.Expected
	SubmittedAt   time.Time
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Processor verifies a single job.
type Processor interface {
	Process(ctx context.Context, job Job) (*review.SubmitOutcome, error)
}

// ResultHandler observes every finished job. Called from worker goroutines.
type ResultHandler func(job Job, out *review.SubmitOutcome, err error)

// ReviewProcessor submits jobs through the review service.
type ReviewProcessor struct {
	Service *review.Service
}

func (p ReviewProcessor) Process(ctx context.Context, job Job) (*review.SubmitOutcome, error) {
	return p.Service.SubmitFile(ctx, job.Path, review.SubmitRequest{
		TicketID:      job.TicketID,
		UserReference: job.UserReference,
		Expected:      job.Expected,
	})
}
