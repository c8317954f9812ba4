package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/devkiraa/makeTicket-sub003/internal/common"
)

var (
	cfg        *common.Config
	logger     *slog.Logger
	configPath string
	inmem      bool
)

var rootCmd = &cobra.Command{
	Use:   "payverify-batch",
	Short: "Verify UPI payment screenshots from disk",
	Long:  "Runs the payment-proof verification pipeline over screenshot folders, watches drop folders and exports the reviewer queue.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := common.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if inmem {
			c.Database.Driver = "sqlite"
			c.Database.DSN = "file::memory:?cache=shared"
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		cfg = c

		// batch runs are machine-read; always JSON
		logCfg := cfg.Log
		logCfg.Format = "json"
		logger = common.NewLogger(logCfg, os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to payverify.yaml")
	rootCmd.PersistentFlags().BoolVar(&inmem, "inmem", false, "use an in-memory SQLite database")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
