package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glenross/fundly-bot/internal/model"
	"github.com/glenross/fundly-bot/internal/scrape"
	"github.com/glenross/fundly-bot/internal/store"
)

type stubScraper struct {
	raw  *scrape.RawLead
	err  error
	runs int
}

func (s *stubScraper) ScanOnce(context.Context) (*scrape.RawLead, error) {
	s.runs++
	return s.raw, s.err
}

type stubMailer struct {
	sent []string
	err  error
}

func (m *stubMailer) Send(_ context.Context, to, _, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

func newScannerStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "scan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestRunOnce_SavesAndEmailsQualifiedLead(t *testing.T) {
	st := newScannerStore(t)
	raw := fullRawLead()
	ml := &stubMailer{}
	sc := NewScanner(st, &stubScraper{raw: &raw}, ml, Config{SendingEnabled: true, Trigger: "test"})

	sum, err := sc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Discovered)
	assert.Equal(t, 1, sum.Saved)
	assert.Equal(t, 1, sum.Emailed)
	assert.Equal(t, []string{"jane@example.com"}, ml.sent)

	saved, err := st.GetLeadByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.NotNil(t, saved.EmailSentAt)

	runs, err := st.ListRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.NotNil(t, runs[0].Status)
	assert.Equal(t, string(model.RunStatusOK), *runs[0].Status)
	assert.Equal(t, 1, runs[0].Emailed)
}

func TestRunOnce_SecondScanDoesNotEmailTwice(t *testing.T) {
	st := newScannerStore(t)
	raw := fullRawLead()
	ml := &stubMailer{}
	sc := NewScanner(st, &stubScraper{raw: &raw}, ml, Config{SendingEnabled: true})

	_, err := sc.RunOnce(context.Background())
	require.NoError(t, err)
	sum, err := sc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, sum.Emailed)
	assert.Len(t, ml.sent, 1)
}

func TestRunOnce_DryRunSuppressesSend(t *testing.T) {
	st := newScannerStore(t)
	raw := fullRawLead()
	ml := &stubMailer{}
	sc := NewScanner(st, &stubScraper{raw: &raw}, ml, Config{SendingEnabled: true, DryRun: true})

	sum, err := sc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Saved)
	assert.Equal(t, 0, sum.Emailed)
	assert.Empty(t, ml.sent)
}

func TestRunOnce_UnqualifiedLeadSavedButNotEmailed(t *testing.T) {
	st := newScannerStore(t)
	raw := scrape.RawLead{FundlyID: "55", ContactName: "Bob", Email: "bob@example.com"}
	ml := &stubMailer{}
	sc := NewScanner(st, &stubScraper{raw: &raw}, ml, Config{SendingEnabled: true})

	sum, err := sc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Saved)
	assert.Equal(t, 0, sum.Emailed)
	assert.Empty(t, ml.sent)

	saved, err := st.GetLeadByEmail(context.Background(), "bob@example.com")
	require.NoError(t, err)
	require.NotNil(t, saved)
	require.NotNil(t, saved.FilterSuccess)
	assert.Equal(t, model.FilterFailAll, *saved.FilterSuccess)
}

func TestRunOnce_ScrapeFailureRecordsErrorRun(t *testing.T) {
	st := newScannerStore(t)
	sc := NewScanner(st, &stubScraper{err: errors.New("no pipeline leads visible")}, nil, Config{})

	sum, err := sc.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, sum.Saved)

	runs, lerr := st.ListRuns(context.Background(), 1)
	require.NoError(t, lerr)
	require.Len(t, runs, 1)
	require.NotNil(t, runs[0].Status)
	assert.Equal(t, string(model.RunStatusError), *runs[0].Status)
	require.NotNil(t, runs[0].ErrorMessage)
	assert.Contains(t, *runs[0].ErrorMessage, "no pipeline leads")
}

func TestRunOnce_ExclusiveLeadSavedWithoutOutreach(t *testing.T) {
	st := newScannerStore(t)
	raw := fullRawLead()
	raw.Exclusive = true
	ml := &stubMailer{}
	sc := NewScanner(st, &stubScraper{raw: &raw}, ml, Config{SendingEnabled: true})

	sum, err := sc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Saved)
	assert.Equal(t, 0, sum.Emailed)

	saved, err := st.GetLeadByFundlyID(context.Background(), "182736")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.True(t, saved.Locked)
	assert.Nil(t, saved.Email)
}
