package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glenross/fundly-bot/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var leadRowColumns = []string{
	"id", "fundly_id", "contact_name", "email", "phone", "background_info", "email_sent_at", "created_at",
	"can_contact", "locked", "use_of_funds", "location", "urgency", "time_in_business", "bank_account",
	"annual_revenue", "industry", "looking_for", "looking_for_min", "looking_for_max",
	"urgency_code", "tib_months", "annual_revenue_min_usd", "annual_revenue_max_usd",
	"annual_revenue_usd_approx", "bank_account_bool", "use_of_funds_norm", "industry_norm", "filter_success",
}

func leadRow(id int64, fundlyID string, email *string) *pgxmock.Rows {
	return pgxmock.NewRows(leadRowColumns).AddRow(
		id, fundlyID, "Jane Doe", email, (*string)(nil), "runs a bakery", (*time.Time)(nil), time.Now().UTC(),
		true, false, "Working capital", "Austin, TX", "ASAP", "2-5 years", "yes",
		"$500,000", "food", (*string)(nil), "", "",
		(*string)(nil), (*int)(nil), (*float64)(nil), (*float64)(nil),
		(*float64)(nil), (*bool)(nil), (*string)(nil), (*string)(nil), (*string)(nil),
	)
}

func TestPostgresStore_GetLeadByEmail_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM fundly_leads WHERE email = \$1`).
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)

	lead, err := s.GetLeadByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, lead)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLeadByFundlyID_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	email := "jane@example.com"
	mock.ExpectQuery(`FROM fundly_leads WHERE fundly_id = \$1`).
		WithArgs("FND-123").
		WillReturnRows(leadRow(7, "FND-123", &email))

	lead, err := s.GetLeadByFundlyID(context.Background(), "FND-123")
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, int64(7), lead.ID)
	assert.Equal(t, "FND-123", lead.FundlyID)
	require.NotNil(t, lead.Email)
	assert.Equal(t, "jane@example.com", *lead.Email)
	assert.True(t, lead.CanContact)
	assert.Nil(t, lead.TIBMonths)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertLead_ConflictsOnEmailWhenPresent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	email := "jane@example.com"
	args := make([]any, 28)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	mock.ExpectQuery(`ON CONFLICT \(email\) WHERE email IS NOT NULL DO UPDATE`).
		WithArgs(args...).
		WillReturnRows(leadRow(1, "FND-9", &email))

	saved, err := s.UpsertLead(context.Background(), model.Lead{FundlyID: "FND-9", Email: &email})
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "FND-9", saved.FundlyID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertLead_ConflictsOnFundlyIDWithoutEmail(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	args := make([]any, 28)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	mock.ExpectQuery(`ON CONFLICT \(fundly_id\) DO UPDATE`).
		WithArgs(args...).
		WillReturnRows(leadRow(2, "FND-10", nil))

	saved, err := s.UpsertLead(context.Background(), model.Lead{FundlyID: "FND-10"})
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Nil(t, saved.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkEmailSent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	at := time.Now().UTC()
	mock.ExpectExec(`UPDATE fundly_leads SET email_sent_at = \$1 WHERE email = \$2`).
		WithArgs(at, "jane@example.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.MarkEmailSent(context.Background(), "jane@example.com", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkEmailSent_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	at := time.Now().UTC()
	mock.ExpectExec(`UPDATE fundly_leads SET email_sent_at`).
		WithArgs(at, "ghost@example.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.MarkEmailSent(context.Background(), "ghost@example.com", at)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lead not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EmailAlreadySent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT 1 FROM fundly_leads WHERE email = \$1 AND email_sent_at IS NOT NULL`).
		WithArgs("jane@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	sent, err := s.EmailAlreadySent(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.True(t, sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EmailAlreadySent_Never(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT 1 FROM fundly_leads`).
		WithArgs("fresh@example.com").
		WillReturnError(pgx.ErrNoRows)

	sent, err := s.EmailAlreadySent(context.Background(), "fresh@example.com")
	require.NoError(t, err)
	assert.False(t, sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CanContact_UnknownLeadDefaultsFalse(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT can_contact FROM fundly_leads`).
		WithArgs("unknown@example.com").
		WillReturnError(pgx.ErrNoRows)

	can, err := s.CanContact(context.Background(), "unknown@example.com")
	require.NoError(t, err)
	assert.False(t, can)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StartRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Now().UTC()
	mock.ExpectQuery(`INSERT INTO scan_run_logs \(details\) VALUES \(\$1\) RETURNING id, started_at`).
		WithArgs([]byte(`{"trigger":"cli"}`)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "started_at"}).AddRow(int64(42), started))

	run, err := s.StartRun(context.Background(), []byte(`{"trigger":"cli"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(42), run.ID)
	assert.Equal(t, started, run.StartedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	status := string(model.RunStatusOK)
	discovered := 12
	mock.ExpectExec(`UPDATE scan_run_logs`).
		WithArgs(int64(42), &status, &discovered, (*int)(nil), (*int)(nil), (*string)(nil), []byte(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.FinishRun(context.Background(), 42, RunPatch{Status: &status, Discovered: &discovered})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE scan_run_logs`).
		WithArgs(int64(999), (*string)(nil), (*int)(nil), (*int)(nil), (*int)(nil), (*string)(nil), []byte(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.FinishRun(context.Background(), 999, RunPatch{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Now().UTC()
	ended := started.Add(30 * time.Second)
	status := string(model.RunStatusOK)
	mock.ExpectQuery(`FROM scan_run_logs ORDER BY started_at DESC`).
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "started_at", "ended_at", "status", "discovered_count",
			"saved_count", "emailed_count", "error_message", "details",
		}).AddRow(int64(1), started, &ended, &status, 5, 4, 2, (*string)(nil), []byte(nil)))

	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 5, runs[0].Discovered)
	assert.Equal(t, 2, runs[0].Emailed)
	require.NotNil(t, runs[0].Status)
	assert.Equal(t, string(model.RunStatusOK), *runs[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
