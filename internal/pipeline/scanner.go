package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/glenross/fundly-bot/internal/eligibility"
	"github.com/glenross/fundly-bot/internal/mailer"
	"github.com/glenross/fundly-bot/internal/model"
	"github.com/glenross/fundly-bot/internal/resilience"
	"github.com/glenross/fundly-bot/internal/scrape"
	"github.com/glenross/fundly-bot/internal/store"
)

// Scraper is the portal session the scanner drives.
type Scraper interface {
	ScanOnce(ctx context.Context) (*scrape.RawLead, error)
}

// Mailer delivers outreach email.
type Mailer interface {
	Send(ctx context.Context, to, contactName, programKey string) error
}

// Config controls a scan run's outreach behavior.
type Config struct {
	// DryRun logs the outreach decision without sending.
	DryRun bool

	// SendingEnabled gates actual delivery. Scans still persist leads when
	// false; the send step is logged as suppressed.
	SendingEnabled bool

	// Trigger is recorded in the run log ("cli", "interval", "launchd").
	Trigger string

	// Retry overrides the default retry policy for scrape and send.
	Retry resilience.RetryConfig
}

// Summary reports what one scan run did.
type Summary struct {
	RunID      int64
	Discovered int
	Saved      int
	Emailed    int
}

// Scanner runs the scan → assemble → upsert → outreach cycle.
type Scanner struct {
	store   store.Store
	scraper Scraper
	mailer  Mailer
	cfg     Config
}

// NewScanner wires a scanner from its collaborators. mailer may be nil for
// scan-only deployments.
func NewScanner(st store.Store, sc Scraper, ml Mailer, cfg Config) *Scanner {
	return &Scanner{store: st, scraper: sc, mailer: ml, cfg: cfg}
}

// RunOnce performs one complete scan run, bookkeeping it in the run log.
// The returned Summary is valid even when an error is returned.
func (s *Scanner) RunOnce(ctx context.Context) (Summary, error) {
	// Correlation id for tying log lines to the stored run record.
	scanID := uuid.NewString()
	details, _ := json.Marshal(map[string]string{"trigger": s.cfg.Trigger, "scan_id": scanID})
	run, err := s.store.StartRun(ctx, details)
	if err != nil {
		return Summary{}, eris.Wrap(err, "pipeline: start run log")
	}
	sum := Summary{RunID: run.ID}
	zap.L().Info("scan run started",
		zap.Int64("run_id", run.ID),
		zap.String("scan_id", scanID),
		zap.String("trigger", s.cfg.Trigger))

	runErr := s.scanAndSave(ctx, &sum)

	status := string(model.RunStatusOK)
	patch := store.RunPatch{
		Status:     &status,
		Discovered: &sum.Discovered,
		Saved:      &sum.Saved,
		Emailed:    &sum.Emailed,
	}
	if runErr != nil {
		status = string(model.RunStatusError)
		msg := runErr.Error()
		patch.ErrorMessage = &msg
	}
	if err := s.store.FinishRun(ctx, run.ID, patch); err != nil {
		zap.L().Error("finishing run log failed", zap.Int64("run_id", run.ID), zap.Error(err))
	}

	zap.L().Info("scan run finished",
		zap.Int64("run_id", run.ID),
		zap.String("status", status),
		zap.Int("discovered", sum.Discovered),
		zap.Int("saved", sum.Saved),
		zap.Int("emailed", sum.Emailed),
	)
	return sum, runErr
}

func (s *Scanner) scanAndSave(ctx context.Context, sum *Summary) error {
	retryCfg := s.cfg.Retry
	retryCfg.OnRetry = resilience.RetryLogger("fundly", "scan")

	raw, err := resilience.DoVal(ctx, retryCfg, s.scraper.ScanOnce)
	if err != nil {
		return eris.Wrap(err, "pipeline: scan")
	}
	sum.Discovered = 1

	lead, res := Assemble(*raw, time.Now())
	saved, err := s.store.UpsertLead(ctx, lead)
	if err != nil {
		return eris.Wrap(err, "pipeline: save lead")
	}
	sum.Saved = 1
	zap.L().Info("lead saved",
		zap.Int64("id", saved.ID),
		zap.String("fundly_id", saved.FundlyID),
		zap.Stringp("filter_success", saved.FilterSuccess),
	)

	emailed, err := s.maybeSendOutreach(ctx, saved, res)
	if emailed {
		sum.Emailed = 1
	}
	return err
}

// maybeSendOutreach applies the outreach decision to a freshly saved lead:
// created today, qualifies for at least one program, has an email we have
// not contacted yet, and is allowed to be contacted.
func (s *Scanner) maybeSendOutreach(ctx context.Context, saved *model.Lead, res eligibility.Result) (bool, error) {
	now := time.Now().UTC()
	newToday := saved.CreatedAt.UTC().Truncate(24 * time.Hour).Equal(now.Truncate(24 * time.Hour))

	if !newToday || !res.AnyQualified || !saved.HasEmail() {
		zap.L().Info("outreach skipped",
			zap.Bool("new_today", newToday),
			zap.Bool("any_qualified", res.AnyQualified),
			zap.Bool("has_email", saved.HasEmail()),
		)
		return false, nil
	}

	email := *saved.Email
	already, err := s.store.EmailAlreadySent(ctx, email)
	if err != nil {
		return false, eris.Wrap(err, "pipeline: check email history")
	}
	allowed, err := s.store.CanContact(ctx, email)
	if err != nil {
		return false, eris.Wrap(err, "pipeline: check contact permission")
	}
	if already || !allowed {
		zap.L().Info("outreach skipped", zap.Bool("already_sent", already), zap.Bool("can_contact", allowed))
		return false, nil
	}

	if s.cfg.DryRun {
		zap.L().Info("outreach suppressed (dry run)", zap.String("to", email))
		return false, nil
	}
	if !s.cfg.SendingEnabled || s.mailer == nil {
		zap.L().Info("outreach suppressed (sending disabled)", zap.String("to", email))
		return false, nil
	}

	programKey := ""
	if saved.FilterSuccess != nil && *saved.FilterSuccess != model.FilterFailAll {
		programKey = *saved.FilterSuccess
	}
	contactName := saved.ContactName
	if contactName == model.LockedSentinel {
		contactName = ""
	}

	retryCfg := s.cfg.Retry
	retryCfg.OnRetry = resilience.RetryLogger("smtp", "send")
	err = resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
		return s.mailer.Send(ctx, email, contactName, programKey)
	})
	if eris.Is(err, mailer.ErrNotConfigured) {
		zap.L().Warn("outreach skipped: smtp not configured", zap.String("to", email))
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "pipeline: send outreach to %s", email)
	}

	if err := s.store.MarkEmailSent(ctx, email, now); err != nil {
		return true, eris.Wrap(err, "pipeline: mark email sent")
	}
	return true, nil
}
