package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderBody_GeneralFallback(t *testing.T) {
	m, err := New(Config{FromName: "Acme Funding"})
	require.NoError(t, err)

	body, err := m.RenderBody("", "")
	require.NoError(t, err)
	assert.Contains(t, body, "Hi there,")
	assert.Contains(t, body, "Acme Funding")
	assert.Contains(t, body, "funding opportunities")
	assert.NotContains(t, body, "working capital advance")
}

func TestRenderBody_ProgramPitch(t *testing.T) {
	m, err := New(Config{FromName: "Acme Funding"})
	require.NoError(t, err)

	body, err := m.RenderBody("Jane", "working_capital")
	require.NoError(t, err)
	assert.Contains(t, body, "Hi Jane,")
	assert.Contains(t, body, "working capital advance")
}

func TestRenderBody_UnknownProgramRendersGeneral(t *testing.T) {
	m, err := New(Config{})
	require.NoError(t, err)

	body, err := m.RenderBody("Jane", "FAIL_ALL")
	require.NoError(t, err)
	assert.Contains(t, body, "Hi Jane,")
	for _, pitch := range programPitches {
		assert.NotContains(t, body, pitch)
	}
}

func TestRenderBody_EscapesContactName(t *testing.T) {
	m, err := New(Config{})
	require.NoError(t, err)

	body, err := m.RenderBody("<script>alert(1)</script>", "")
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
}

func TestSend_NotConfigured(t *testing.T) {
	m, err := New(Config{})
	require.NoError(t, err)

	err = m.Send(context.Background(), "jane@example.com", "Jane", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestConfig_Configured(t *testing.T) {
	assert.False(t, Config{}.Configured())
	assert.False(t, Config{SMTPHost: "smtp.example.com"}.Configured())
	assert.True(t, Config{SMTPHost: "smtp.example.com", SMTPUser: "u", SMTPPass: "p"}.Configured())
}
