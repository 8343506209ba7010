package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/glenross/fundly-bot/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fundly-bot",
	Short: "Fundly lead scanner and outreach pipeline",
	Long:  "Scans the Fundly portal for new funding leads, normalizes and scores them against funding program requirements, persists them, and sends outreach to qualified leads.",
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
