package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/glenross/fundly-bot/internal/db"
	"github.com/glenross/fundly-bot/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying pool for subsystems that need direct query
// access (the bulk import path).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS fundly_leads (
	id                        BIGSERIAL PRIMARY KEY,
	fundly_id                 TEXT NOT NULL,
	contact_name              TEXT NOT NULL DEFAULT '',
	email                     TEXT,
	phone                     TEXT,
	background_info           TEXT NOT NULL DEFAULT '',
	email_sent_at             TIMESTAMPTZ,
	created_at                TIMESTAMPTZ NOT NULL DEFAULT now(),
	can_contact               BOOLEAN NOT NULL DEFAULT true,
	locked                    BOOLEAN NOT NULL DEFAULT false,
	use_of_funds              TEXT NOT NULL DEFAULT '',
	location                  TEXT NOT NULL DEFAULT '',
	urgency                   TEXT NOT NULL DEFAULT '',
	time_in_business          TEXT NOT NULL DEFAULT '',
	bank_account              TEXT NOT NULL DEFAULT '',
	annual_revenue            TEXT NOT NULL DEFAULT '',
	industry                  TEXT NOT NULL DEFAULT '',
	looking_for               TEXT,
	looking_for_min           TEXT NOT NULL DEFAULT '',
	looking_for_max           TEXT NOT NULL DEFAULT '',
	urgency_code              TEXT,
	tib_months                INTEGER,
	annual_revenue_min_usd    DOUBLE PRECISION,
	annual_revenue_max_usd    DOUBLE PRECISION,
	annual_revenue_usd_approx DOUBLE PRECISION,
	bank_account_bool         BOOLEAN,
	use_of_funds_norm         TEXT,
	industry_norm             TEXT,
	filter_success            TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_fundly_leads_fundly_id ON fundly_leads(fundly_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_fundly_leads_email ON fundly_leads(email) WHERE email IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_fundly_leads_created_at ON fundly_leads(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_fundly_leads_filter_success ON fundly_leads(filter_success);

CREATE TABLE IF NOT EXISTS scan_run_logs (
	id               BIGSERIAL PRIMARY KEY,
	started_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	ended_at         TIMESTAMPTZ,
	status           TEXT,
	discovered_count INTEGER NOT NULL DEFAULT 0,
	saved_count      INTEGER NOT NULL DEFAULT 0,
	emailed_count    INTEGER NOT NULL DEFAULT 0,
	error_message    TEXT,
	details          JSONB
);

CREATE INDEX IF NOT EXISTS idx_scan_run_logs_started_at ON scan_run_logs(started_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// leadColumns is the insert column list shared by both upsert variants.
const leadColumns = `fundly_id, contact_name, email, phone, background_info, email_sent_at, created_at,
	can_contact, locked, use_of_funds, location, urgency, time_in_business, bank_account,
	annual_revenue, industry, looking_for, looking_for_min, looking_for_max,
	urgency_code, tib_months, annual_revenue_min_usd, annual_revenue_max_usd,
	annual_revenue_usd_approx, bank_account_bool, use_of_funds_norm, industry_norm, filter_success`

const leadPlaceholders = `$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
	$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28`

// leadUpdateSet overwrites raw fields and merges nullable-derived columns:
// a fresh scrape that failed to derive a fact must not erase one a prior
// scrape derived.
const leadUpdateSet = `
	contact_name = EXCLUDED.contact_name,
	phone = EXCLUDED.phone,
	background_info = EXCLUDED.background_info,
	email_sent_at = COALESCE(EXCLUDED.email_sent_at, fundly_leads.email_sent_at),
	can_contact = EXCLUDED.can_contact,
	locked = EXCLUDED.locked,
	use_of_funds = EXCLUDED.use_of_funds,
	location = EXCLUDED.location,
	urgency = EXCLUDED.urgency,
	time_in_business = EXCLUDED.time_in_business,
	bank_account = EXCLUDED.bank_account,
	annual_revenue = EXCLUDED.annual_revenue,
	industry = EXCLUDED.industry,
	looking_for = EXCLUDED.looking_for,
	looking_for_min = EXCLUDED.looking_for_min,
	looking_for_max = EXCLUDED.looking_for_max,
	urgency_code = COALESCE(EXCLUDED.urgency_code, fundly_leads.urgency_code),
	tib_months = COALESCE(EXCLUDED.tib_months, fundly_leads.tib_months),
	annual_revenue_min_usd = COALESCE(EXCLUDED.annual_revenue_min_usd, fundly_leads.annual_revenue_min_usd),
	annual_revenue_max_usd = COALESCE(EXCLUDED.annual_revenue_max_usd, fundly_leads.annual_revenue_max_usd),
	annual_revenue_usd_approx = COALESCE(EXCLUDED.annual_revenue_usd_approx, fundly_leads.annual_revenue_usd_approx),
	bank_account_bool = COALESCE(EXCLUDED.bank_account_bool, fundly_leads.bank_account_bool),
	use_of_funds_norm = COALESCE(EXCLUDED.use_of_funds_norm, fundly_leads.use_of_funds_norm),
	industry_norm = COALESCE(EXCLUDED.industry_norm, fundly_leads.industry_norm),
	filter_success = COALESCE(EXCLUDED.filter_success, fundly_leads.filter_success),
	created_at = CASE WHEN fundly_leads.created_at IS NULL THEN EXCLUDED.created_at ELSE fundly_leads.created_at END`

const leadReturning = `RETURNING id, ` + leadColumns

var upsertLeadByEmail = `INSERT INTO fundly_leads (` + leadColumns + `) VALUES (` + leadPlaceholders + `)
	ON CONFLICT (email) WHERE email IS NOT NULL DO UPDATE SET
	fundly_id = EXCLUDED.fundly_id,` + leadUpdateSet + ` ` + leadReturning

var upsertLeadByFundlyID = `INSERT INTO fundly_leads (` + leadColumns + `) VALUES (` + leadPlaceholders + `)
	ON CONFLICT (fundly_id) DO UPDATE SET` + leadUpdateSet + ` ` + leadReturning

func leadArgs(l model.Lead) []any {
	return []any{
		l.FundlyID, l.ContactName, l.Email, l.Phone, l.BackgroundInfo, l.EmailSentAt, l.CreatedAt,
		l.CanContact, l.Locked, l.UseOfFunds, l.Location, l.Urgency, l.TimeInBusiness, l.BankAccount,
		l.AnnualRevenue, l.Industry, l.LookingFor, l.LookingForMin, l.LookingForMax,
		l.UrgencyCode, l.TIBMonths, l.RevenueMinUSD, l.RevenueMaxUSD,
		l.RevenueApproxUSD, l.BankAccountBool, l.UseOfFundsNorm, l.IndustryNorm, l.FilterSuccess,
	}
}

func scanLead(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	err := row.Scan(
		&l.ID, &l.FundlyID, &l.ContactName, &l.Email, &l.Phone, &l.BackgroundInfo, &l.EmailSentAt, &l.CreatedAt,
		&l.CanContact, &l.Locked, &l.UseOfFunds, &l.Location, &l.Urgency, &l.TimeInBusiness, &l.BankAccount,
		&l.AnnualRevenue, &l.Industry, &l.LookingFor, &l.LookingForMin, &l.LookingForMax,
		&l.UrgencyCode, &l.TIBMonths, &l.RevenueMinUSD, &l.RevenueMaxUSD,
		&l.RevenueApproxUSD, &l.BankAccountBool, &l.UseOfFundsNorm, &l.IndustryNorm, &l.FilterSuccess,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *PostgresStore) UpsertLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	sql := upsertLeadByFundlyID
	if lead.HasEmail() {
		sql = upsertLeadByEmail
	}
	saved, err := scanLead(s.pool.QueryRow(ctx, sql, leadArgs(lead)...))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert lead %s", lead.FundlyID)
	}
	return saved, nil
}

// leadColumnList splits leadColumns into a slice for the bulk-upsert helper.
func leadColumnList() []string {
	cols := strings.Split(leadColumns, ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	return cols
}

// BulkUpsertLeads merges a batch of leads in one round trip via a temp
// table. Used by the spreadsheet import; conflicts resolve on fundly_id,
// keeping previously derived columns when the batch has NULLs.
func (s *PostgresStore) BulkUpsertLeads(ctx context.Context, leads []model.Lead) (int64, error) {
	rows := make([][]any, len(leads))
	for i, l := range leads {
		rows[i] = leadArgs(l)
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "fundly_leads",
		Columns:      leadColumnList(),
		ConflictKeys: []string{"fundly_id"},
		CoalesceCols: []string{
			"email_sent_at", "urgency_code", "tib_months",
			"annual_revenue_min_usd", "annual_revenue_max_usd", "annual_revenue_usd_approx",
			"bank_account_bool", "use_of_funds_norm", "industry_norm", "filter_success",
		},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: bulk upsert leads")
	}
	return n, nil
}

func (s *PostgresStore) GetLeadByEmail(ctx context.Context, email string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, `+leadColumns+` FROM fundly_leads WHERE email = $1`, email)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead by email")
	}
	return lead, nil
}

func (s *PostgresStore) GetLeadByFundlyID(ctx context.Context, fundlyID string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, `+leadColumns+` FROM fundly_leads WHERE fundly_id = $1`, fundlyID)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", fundlyID)
	}
	return lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, `+leadColumns+` FROM fundly_leads ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) MarkEmailSent(ctx context.Context, email string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE fundly_leads SET email_sent_at = $1 WHERE email = $2`, at, email)
	if err != nil {
		return eris.Wrap(err, "postgres: mark email sent")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead not found: %s", email)
	}
	return nil
}

func (s *PostgresStore) EmailAlreadySent(ctx context.Context, email string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM fundly_leads WHERE email = $1 AND email_sent_at IS NOT NULL LIMIT 1`, email).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "postgres: email already sent")
	}
	return true, nil
}

func (s *PostgresStore) CanContact(ctx context.Context, email string) (bool, error) {
	var can bool
	err := s.pool.QueryRow(ctx,
		`SELECT can_contact FROM fundly_leads WHERE email = $1 ORDER BY created_at DESC LIMIT 1`, email).Scan(&can)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "postgres: can contact")
	}
	return can, nil
}

func (s *PostgresStore) StartRun(ctx context.Context, details []byte) (*model.RunLog, error) {
	var run model.RunLog
	err := s.pool.QueryRow(ctx,
		`INSERT INTO scan_run_logs (details) VALUES ($1) RETURNING id, started_at`, details).
		Scan(&run.ID, &run.StartedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: start run")
	}
	run.Details = details
	return &run, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, id int64, patch RunPatch) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scan_run_logs
		SET ended_at = now(),
		    status = COALESCE($2, status),
		    discovered_count = COALESCE($3, discovered_count),
		    saved_count = COALESCE($4, saved_count),
		    emailed_count = COALESCE($5, emailed_count),
		    error_message = COALESCE($6, error_message),
		    details = COALESCE($7, details)
		WHERE id = $1`,
		id, patch.Status, patch.Discovered, patch.Saved, patch.Emailed, patch.ErrorMessage, patch.Details)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %d", id)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.RunLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, started_at, ended_at, status, discovered_count, saved_count, emailed_count, error_message, details
		FROM scan_run_logs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.RunLog
	for rows.Next() {
		var r model.RunLog
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.EndedAt, &r.Status,
			&r.Discovered, &r.Saved, &r.Emailed, &r.ErrorMessage, &r.Details); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run log")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
