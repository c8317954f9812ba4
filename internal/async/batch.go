package async

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/devkiraa/makeTicket-sub003/internal/review"
)

// BatchResult pairs a job with its outcome.
type BatchResult struct {
	Job     Job
	Outcome *review.SubmitOutcome
	Err     error
}

// RunBatch processes jobs with at most concurrency in flight and returns
// results in job order. Per-job failures are reported in BatchResult.Err;
// only context cancellation aborts the batch.
func RunBatch(ctx context.Context, proc Processor, jobs []Job, concurrency int, logger *slog.Logger) ([]BatchResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]BatchResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := proc.Process(gctx, job)
			results[i] = BatchResult{Job: job, Outcome: out, Err: err}
			if err != nil {
				logger.Warn("batch job failed", "job_id", job.ID, "path", job.Path, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
