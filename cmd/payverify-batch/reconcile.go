package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/devkiraa/makeTicket-sub003/internal/app"
	"github.com/devkiraa/makeTicket-sub003/internal/review"
)

var (
	reconcileStatement     string
	reconcileRejectMissing bool
	reconcileReviewer      string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Settle pending submissions against a bank statement",
	Long:  "Reads statement text (a file, or stdin with -) and auto-verifies pending submissions whose reference and amount appear in it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		text, err := readStatement(cmd, reconcileStatement)
		if err != nil {
			return err
		}

		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Reviews.ReconcileStatement(ctx, review.ReconcileRequest{
			Statement:     text,
			RejectMissing: reconcileRejectMissing,
			Reviewer:      reconcileReviewer,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, it := range report.Items {
			if err := enc.Encode(it); err != nil {
				return err
			}
		}
		logger.Info("reconcile.done",
			"processed", report.Processed,
			"verified", report.Verified,
			"rejected", report.Rejected,
			"amount_mismatches", report.AmountMismatches,
		)
		return nil
	},
}

func readStatement(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", eris.Wrap(err, "read statement from stdin")
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "read statement %s", path)
	}
	return string(b), nil
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileStatement, "statement", "", "statement text file, or - for stdin")
	reconcileCmd.Flags().BoolVar(&reconcileRejectMissing, "reject-missing", false, "reject submissions whose reference is not in the statement")
	reconcileCmd.Flags().StringVar(&reconcileReviewer, "reviewer", "payverify-batch", "identity recorded on settled submissions")
	_ = reconcileCmd.MarkFlagRequired("statement")
	rootCmd.AddCommand(reconcileCmd)
}
