package store

import (
	"context"
	"time"

	"github.com/glenross/fundly-bot/internal/model"
)

// RunPatch carries the fields written when a scan run finishes. Nil fields
// keep the existing value (COALESCE semantics in both backends).
type RunPatch struct {
	Status       *string
	Discovered   *int
	Saved        *int
	Emailed      *int
	ErrorMessage *string
	Details      []byte
}

// Store defines the persistence interface for leads and run logs.
//
// UpsertLead merges on email when the lead has one, else on fundly_id.
// Raw fields overwrite; normalized columns and email_sent_at merge with
// keep-old-when-new-is-NULL semantics, so a scrape that could not derive a
// fact never erases one a previous scrape did derive.
type Store interface {
	UpsertLead(ctx context.Context, lead model.Lead) (*model.Lead, error)
	BulkUpsertLeads(ctx context.Context, leads []model.Lead) (int64, error)
	GetLeadByEmail(ctx context.Context, email string) (*model.Lead, error)
	GetLeadByFundlyID(ctx context.Context, fundlyID string) (*model.Lead, error)
	ListLeads(ctx context.Context, limit int) ([]model.Lead, error)

	MarkEmailSent(ctx context.Context, email string, at time.Time) error
	EmailAlreadySent(ctx context.Context, email string) (bool, error)
	CanContact(ctx context.Context, email string) (bool, error)

	StartRun(ctx context.Context, details []byte) (*model.RunLog, error)
	FinishRun(ctx context.Context, id int64, patch RunPatch) error
	ListRuns(ctx context.Context, limit int) ([]model.RunLog, error)

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
