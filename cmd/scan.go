package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/glenross/fundly-bot/internal/mailer"
	"github.com/glenross/fundly-bot/internal/pipeline"
	"github.com/glenross/fundly-bot/internal/scrape"
)

var (
	scanOnce         bool
	scanIntervalSecs int
	scanDryRun       bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the portal for new leads",
	Long:  "Logs into the Fundly portal, pulls the newest pipeline lead, saves it, and sends outreach when the lead qualifies. Runs once or on an interval.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		ml, err := mailer.New(mailer.Config{
			SMTPHost:  cfg.Email.SMTPHost,
			SMTPPort:  cfg.Email.SMTPPort,
			SMTPUser:  cfg.Email.SMTPUser,
			SMTPPass:  cfg.Email.SMTPPass,
			FromName:  cfg.Email.FromName,
			FromEmail: cfg.Email.FromEmail,
			Subject:   cfg.Email.Subject,
		})
		if err != nil {
			return err
		}

		interval := time.Duration(scanIntervalSecs) * time.Second
		if scanIntervalSecs == 0 {
			interval = time.Duration(cfg.Scan.IntervalSecs) * time.Second
		}
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		trigger := "cli"
		if !scanOnce {
			trigger = "interval"
		}
		if cfg.Scan.RunContext != "" {
			trigger = cfg.Scan.RunContext
		}

		scanCfg := pipeline.Config{
			DryRun:         scanDryRun || cfg.Scan.DryRun,
			SendingEnabled: cfg.Scan.SendingEnabled(),
			Trigger:        trigger,
		}

		runScan := func(ctx context.Context) error {
			sc := scrape.New(scrape.Config{
				LoginURL: cfg.Fundly.LoginURL,
				Email:    cfg.Fundly.Email,
				Password: cfg.Fundly.Password,
				Headless: cfg.Fundly.Headless,
			})
			if err := sc.Start(ctx); err != nil {
				return err
			}
			defer sc.Close() //nolint:errcheck
			if err := sc.Login(ctx); err != nil {
				return err
			}

			scanner := pipeline.NewScanner(st, sc, ml, scanCfg)
			_, err := scanner.RunOnce(ctx)
			return err
		}

		if scanOnce {
			return runScan(ctx)
		}

		zap.L().Info("starting scan loop", zap.Duration("interval", interval))
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// First scan immediately, then on the interval.
		for {
			if err := runScan(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				zap.L().Error("scan failed", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanOnce, "once", false, "run a single scan and exit")
	scanCmd.Flags().IntVar(&scanIntervalSecs, "interval", 0, "seconds between scans (default from config)")
	scanCmd.Flags().BoolVar(&scanDryRun, "dry-run", false, "save leads but log instead of sending outreach")
	rootCmd.AddCommand(scanCmd)
}
