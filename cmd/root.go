package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/helvemed/meddiff/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "meddiff",
	Short: "Swiss pharmaceutical registry diff tool",
	Long:  "Downloads the Swissmedic packages export and the FOPH SL FHIR export, diffs dated snapshots, and merges both change-sets into a flag-coded report.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
