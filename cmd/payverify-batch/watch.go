package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/devkiraa/makeTicket-sub003/internal/app"
	"github.com/devkiraa/makeTicket-sub003/internal/async"
	"github.com/devkiraa/makeTicket-sub003/internal/ingest"
	"github.com/devkiraa/makeTicket-sub003/internal/review"
)

var (
	watchRoots       []string
	watchInitialScan bool
	watchDebounce    time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch drop folders and verify screenshots as they arrive",
	Long:  "Screenshots are picked up once written; their <image>.json sidecar must already be in place.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		queue := async.NewProcessorQueue(async.ReviewProcessor{Service: a.Reviews}, logger,
			async.WithWorkers(cfg.Worker.Workers),
			async.WithQueueSize(cfg.Worker.QueueSize),
			async.WithProcessTimeout(cfg.Worker.ProcessTimeout),
			async.WithResultHandler(func(job async.Job, out *review.SubmitOutcome, err error) {
				if err != nil {
					return
				}
				if out.Submission == nil {
					logger.Info("watch.blocked", "path", job.Path, "reason", out.Decision.Reason)
				}
			}),
		)

		paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       watchRoots,
			InitialScan: watchInitialScan,
			Debounce:    watchDebounce,
			Logger:      logger,
		})
		if err != nil {
			return err
		}
		logger.Info("watch.started", "roots", watchRoots)

		for paths != nil || errs != nil {
			select {
			case p, ok := <-paths:
				if !ok {
					paths = nil
					continue
				}
				job, err := ingest.JobFromPath(p)
				if err != nil {
					if eris.Is(err, ingest.ErrNoSidecar) {
						logger.Warn("watch.no_sidecar", "path", p)
					} else {
						logger.Warn("watch.skip", "path", p, "error", err)
					}
					continue
				}
				if err := queue.Enqueue(ctx, job); err != nil {
					logger.Warn("watch.enqueue_failed", "path", p, "error", err)
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				logger.Error("watch.error", "error", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		queue.Shutdown(shutdownCtx)
		return nil
	},
}

func init() {
	watchCmd.Flags().StringSliceVar(&watchRoots, "root", nil, "directory to watch, repeatable (required)")
	watchCmd.Flags().BoolVar(&watchInitialScan, "initial-scan", true, "verify screenshots already present at startup")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "quiet period before a written file is processed")
	_ = watchCmd.MarkFlagRequired("root")
	rootCmd.AddCommand(watchCmd)
}
