package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/calder-retail/replenish-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "replenish-cli",
	Short: "Daily supplier replenishment pipeline",
	Long:  "Aggregates per-market sales, nets them against stock positions, and plans pack-compliant supplier orders with a full data-quality audit trail.",
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
