package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/devkiraa/makeTicket-sub003/internal/app"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the pending reviewer queue to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		b, err := a.Export.ExportPendingXLSX(ctx)
		if err != nil {
			return err
		}
		if err := os.WriteFile(exportOut, b, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", exportOut)
		}
		logger.Info("export.written", "path", exportOut, "bytes", len(b))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "pending-payments.xlsx", "output XLSX path")
	rootCmd.AddCommand(exportCmd)
}
