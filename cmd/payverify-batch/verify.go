package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/devkiraa/makeTicket-sub003/internal/app"
	"github.com/devkiraa/makeTicket-sub003/internal/async"
	"github.com/devkiraa/makeTicket-sub003/internal/ingest"
)

var (
	verifyDir         string
	verifyConcurrency int
	verifySkipHidden  bool
	verifyXLSX        string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify every screenshot under a directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		paths, stats, err := ingest.ScanDirectory(verifyDir, verifySkipHidden)
		if err != nil {
			return eris.Wrapf(err, "scan %s", verifyDir)
		}

		jobs := make([]async.Job, 0, len(paths))
		skipped := 0
		for _, p := range paths {
			job, err := ingest.JobFromPath(p)
			if err != nil {
				logger.Warn("batch.skip", "path", p, "error", err)
				skipped++
				continue
			}
			jobs = append(jobs, job)
		}

		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := async.RunBatch(ctx, async.ReviewProcessor{Service: a.Reviews}, jobs, verifyConcurrency, logger)
		if err != nil {
			return eris.Wrap(err, "batch interrupted")
		}

		s := summarize(results)
		s.Scanned, s.Skipped = int(stats.Scanned), skipped
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, r := range results {
			if err := enc.Encode(resultLine(r)); err != nil {
				return err
			}
		}
		logger.Info("batch.done",
			"scanned", s.Scanned,
			"skipped", s.Skipped,
			"accepted", s.Accepted,
			"needs_review", s.NeedsReview,
			"blocked", s.Blocked,
			"failed", s.Failed,
		)

		if verifyXLSX != "" {
			b, err := a.Export.ExportPendingXLSX(ctx)
			if err != nil {
				return err
			}
			if err := os.WriteFile(verifyXLSX, b, 0o644); err != nil {
				return eris.Wrapf(err, "write %s", verifyXLSX)
			}
			logger.Info("batch.export.ok", "path", verifyXLSX)
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyDir, "dir", "", "directory of screenshots with <image>.json sidecars (required)")
	verifyCmd.Flags().IntVar(&verifyConcurrency, "concurrency", 4, "screenshots verified in parallel")
	verifyCmd.Flags().BoolVar(&verifySkipHidden, "skip-hidden", true, "skip dot files and directories")
	verifyCmd.Flags().StringVar(&verifyXLSX, "xlsx", "", "also write the pending queue to this XLSX file")
	_ = verifyCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(verifyCmd)
}
