package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/glenross/fundly-bot/internal/mailer"
	"github.com/glenross/fundly-bot/internal/model"
)

var sendForce bool

var sendCmd = &cobra.Command{
	Use:   "send <email>",
	Short: "Send outreach to a stored lead",
	Long:  "Sends the outreach email to one stored lead, pitching its matched program. Refuses leads that opted out or were already emailed unless --force.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		to := args[0]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		lead, err := st.GetLeadByEmail(ctx, to)
		if err != nil {
			return err
		}
		if lead == nil {
			return eris.Errorf("cmd: no lead with email %q", to)
		}

		if !sendForce {
			ok, err := st.CanContact(ctx, to)
			if err != nil {
				return err
			}
			if !ok {
				return eris.Errorf("cmd: lead %q opted out of contact", to)
			}
			sent, err := st.EmailAlreadySent(ctx, to)
			if err != nil {
				return err
			}
			if sent {
				return eris.Errorf("cmd: lead %q already emailed (use --force to resend)", to)
			}
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

		programKey := ""
		if lead.FilterSuccess != nil && *lead.FilterSuccess != model.FilterFailAll {
			programKey = *lead.FilterSuccess
		}
		contactName := lead.ContactName
		if contactName == model.LockedSentinel {
			contactName = ""
		}

		if err := ml.Send(ctx, to, contactName, programKey); err != nil {
			return err
		}
		if err := st.MarkEmailSent(ctx, to, time.Now().UTC()); err != nil {
			return err
		}

		zap.L().Info("outreach sent",
			zap.String("email", to),
			zap.String("program", programKey))
		return nil
	},
}

func init() {
	sendCmd.Flags().BoolVar(&sendForce, "force", false, "send even if already emailed or opted out")
	rootCmd.AddCommand(sendCmd)
}
