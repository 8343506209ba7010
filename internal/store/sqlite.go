package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/glenross/fundly-bot/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It exists for
// local development and one-off runs without a Postgres instance.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sdb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS fundly_leads (
	id                        INTEGER PRIMARY KEY AUTOINCREMENT,
	fundly_id                 TEXT NOT NULL,
	contact_name              TEXT NOT NULL DEFAULT '',
	email                     TEXT,
	phone                     TEXT,
	background_info           TEXT NOT NULL DEFAULT '',
	email_sent_at             DATETIME,
	created_at                DATETIME NOT NULL DEFAULT (datetime('now')),
	can_contact               BOOLEAN NOT NULL DEFAULT 1,
	locked                    BOOLEAN NOT NULL DEFAULT 0,
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
	annual_revenue_min_usd    REAL,
	annual_revenue_max_usd    REAL,
	annual_revenue_usd_approx REAL,
	bank_account_bool         BOOLEAN,
	use_of_funds_norm         TEXT,
	industry_norm             TEXT,
	filter_success            TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_fundly_leads_fundly_id ON fundly_leads(fundly_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_fundly_leads_email ON fundly_leads(email) WHERE email IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_fundly_leads_created_at ON fundly_leads(created_at DESC);

CREATE TABLE IF NOT EXISTS scan_run_logs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	ended_at         DATETIME,
	status           TEXT,
	discovered_count INTEGER NOT NULL DEFAULT 0,
	saved_count      INTEGER NOT NULL DEFAULT 0,
	emailed_count    INTEGER NOT NULL DEFAULT 0,
	error_message    TEXT,
	details          TEXT
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return eris.Wrap(s.db.Close(), "sqlite: close")
}

const sqliteLeadPlaceholders = `?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?`

const sqliteLeadUpdateSet = `
	contact_name = excluded.contact_name,
	phone = excluded.phone,
	background_info = excluded.background_info,
	email_sent_at = COALESCE(excluded.email_sent_at, fundly_leads.email_sent_at),
	can_contact = excluded.can_contact,
	locked = excluded.locked,
	use_of_funds = excluded.use_of_funds,
	location = excluded.location,
	urgency = excluded.urgency,
	time_in_business = excluded.time_in_business,
	bank_account = excluded.bank_account,
	annual_revenue = excluded.annual_revenue,
	industry = excluded.industry,
	looking_for = excluded.looking_for,
	looking_for_min = excluded.looking_for_min,
	looking_for_max = excluded.looking_for_max,
	urgency_code = COALESCE(excluded.urgency_code, fundly_leads.urgency_code),
	tib_months = COALESCE(excluded.tib_months, fundly_leads.tib_months),
	annual_revenue_min_usd = COALESCE(excluded.annual_revenue_min_usd, fundly_leads.annual_revenue_min_usd),
	annual_revenue_max_usd = COALESCE(excluded.annual_revenue_max_usd, fundly_leads.annual_revenue_max_usd),
	annual_revenue_usd_approx = COALESCE(excluded.annual_revenue_usd_approx, fundly_leads.annual_revenue_usd_approx),
	bank_account_bool = COALESCE(excluded.bank_account_bool, fundly_leads.bank_account_bool),
	use_of_funds_norm = COALESCE(excluded.use_of_funds_norm, fundly_leads.use_of_funds_norm),
	industry_norm = COALESCE(excluded.industry_norm, fundly_leads.industry_norm),
	filter_success = COALESCE(excluded.filter_success, fundly_leads.filter_success)`

func (s *SQLiteStore) UpsertLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	conflict := `(fundly_id)`
	if lead.HasEmail() {
		conflict = `(email) WHERE email IS NOT NULL`
	}
	query := `INSERT INTO fundly_leads (` + leadColumns + `) VALUES (` + sqliteLeadPlaceholders + `)
		ON CONFLICT ` + conflict + ` DO UPDATE SET
		fundly_id = excluded.fundly_id,` + sqliteLeadUpdateSet

	if _, err := s.db.ExecContext(ctx, query, leadArgs(lead)...); err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert lead %s", lead.FundlyID)
	}
	return s.GetLeadByFundlyID(ctx, lead.FundlyID)
}

// BulkUpsertLeads merges a batch of leads. SQLite has no COPY path, so
// this is a sequential upsert loop.
func (s *SQLiteStore) BulkUpsertLeads(ctx context.Context, leads []model.Lead) (int64, error) {
	var n int64
	for _, lead := range leads {
		if _, err := s.UpsertLead(ctx, lead); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *SQLiteStore) scanLeadRow(row *sql.Row) (*model.Lead, error) {
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

func (s *SQLiteStore) GetLeadByEmail(ctx context.Context, email string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, `+leadColumns+` FROM fundly_leads WHERE email = ?`, email)
	lead, err := s.scanLeadRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get lead by email")
	}
	return lead, nil
}

func (s *SQLiteStore) GetLeadByFundlyID(ctx context.Context, fundlyID string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, `+leadColumns+` FROM fundly_leads WHERE fundly_id = ?`, fundlyID)
	lead, err := s.scanLeadRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", fundlyID)
	}
	return lead, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, `+leadColumns+` FROM fundly_leads ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		if err := rows.Scan(
			&l.ID, &l.FundlyID, &l.ContactName, &l.Email, &l.Phone, &l.BackgroundInfo, &l.EmailSentAt, &l.CreatedAt,
			&l.CanContact, &l.Locked, &l.UseOfFunds, &l.Location, &l.Urgency, &l.TimeInBusiness, &l.BankAccount,
			&l.AnnualRevenue, &l.Industry, &l.LookingFor, &l.LookingForMin, &l.LookingForMax,
			&l.UrgencyCode, &l.TIBMonths, &l.RevenueMinUSD, &l.RevenueMaxUSD,
			&l.RevenueApproxUSD, &l.BankAccountBool, &l.UseOfFundsNorm, &l.IndustryNorm, &l.FilterSuccess,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) MarkEmailSent(ctx context.Context, email string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE fundly_leads SET email_sent_at = ? WHERE email = ?`, at.UTC(), email)
	if err != nil {
		return eris.Wrap(err, "sqlite: mark email sent")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("lead not found: %s", email)
	}
	return nil
}

func (s *SQLiteStore) EmailAlreadySent(ctx context.Context, email string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM fundly_leads WHERE email = ? AND email_sent_at IS NOT NULL LIMIT 1`, email).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "sqlite: email already sent")
	}
	return true, nil
}

func (s *SQLiteStore) CanContact(ctx context.Context, email string) (bool, error) {
	var can bool
	err := s.db.QueryRowContext(ctx,
		`SELECT can_contact FROM fundly_leads WHERE email = ? ORDER BY created_at DESC LIMIT 1`, email).Scan(&can)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "sqlite: can contact")
	}
	return can, nil
}

func (s *SQLiteStore) StartRun(ctx context.Context, details []byte) (*model.RunLog, error) {
	now := time.Now().UTC()
	var detailsVal any
	if len(details) > 0 {
		detailsVal = string(details)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scan_run_logs (started_at, details) VALUES (?, ?)`, now, detailsVal)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: start run")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last insert id")
	}
	return &model.RunLog{ID: id, StartedAt: now, Details: details}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, id int64, patch RunPatch) error {
	var detailsVal any
	if len(patch.Details) > 0 {
		detailsVal = string(patch.Details)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE scan_run_logs
		SET ended_at = ?,
		    status = COALESCE(?, status),
		    discovered_count = COALESCE(?, discovered_count),
		    saved_count = COALESCE(?, saved_count),
		    emailed_count = COALESCE(?, emailed_count),
		    error_message = COALESCE(?, error_message),
		    details = COALESCE(?, details)
		WHERE id = ?`,
		time.Now().UTC(), patch.Status, patch.Discovered, patch.Saved, patch.Emailed,
		patch.ErrorMessage, detailsVal, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("run not found: %d", id)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, ended_at, status, discovered_count, saved_count, emailed_count, error_message, details
		FROM scan_run_logs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.RunLog
	for rows.Next() {
		var r model.RunLog
		var details sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.EndedAt, &r.Status,
			&r.Discovered, &r.Saved, &r.Emailed, &r.ErrorMessage, &details); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run log")
		}
		if details.Valid {
			r.Details = []byte(details.String)
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}
