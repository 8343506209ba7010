// Package mailer sends outreach email to qualified leads over SMTP,
// with a per-program pitch rendered into a shared HTML template.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"html/template"

	"github.com/rotisserie/eris"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// ErrNotConfigured is returned when SMTP settings are absent. Callers
// treat it as a skip, not a failure.
var ErrNotConfigured = eris.New("mailer: smtp not configured")

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "Funding Application — Next Steps"

// programPitches maps a funding program key to the one-line pitch included
// in the outreach body. Unknown keys fall back to the general template with
// no pitch line.
var programPitches = map[string]string{
	"working_capital":     "Your revenue profile looks like a strong fit for a working capital advance, which can fund in as little as one business day.",
	"line_of_credit":      "You appear to qualify for a revolving line of credit, so you only pay for what you draw.",
	"business_term_loan":  "Your time in business and revenue suggest a business term loan with predictable monthly payments.",
	"sba_loan":            "You may be a candidate for an SBA-backed loan with some of the lowest rates available to small businesses.",
	"bank_loc":            "Your profile looks strong enough for a bank line of credit, typically the cheapest revolving option.",
	"equipment_financing": "Since you're looking at equipment, we can likely finance it directly with the equipment itself as collateral.",
	"first_campaign":      "You look like a great fit for our fast-track funding campaign for newer businesses with strong monthly revenue.",
}

// Config holds SMTP delivery settings.
type Config struct {
	SMTPHost  string
	SMTPPort  int
	SMTPUser  string
	SMTPPass  string
	FromName  string
	FromEmail string
	Subject   string
}

// Configured reports whether enough SMTP settings are present to send.
func (c Config) Configured() bool {
	return c.SMTPHost != "" && c.SMTPUser != "" && c.SMTPPass != ""
}

// Mailer renders and delivers outreach email.
type Mailer struct {
	cfg Config
	tpl *template.Template
}

// New creates a Mailer. It succeeds even when SMTP is unconfigured so the
// pipeline can run in scan-only mode; Send then returns ErrNotConfigured.
func New(cfg Config) (*Mailer, error) {
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.FromName == "" {
		cfg.FromName = "Fundly Bot"
	}
	if cfg.FromEmail == "" {
		cfg.FromEmail = cfg.SMTPUser
	}

	tpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, eris.Wrap(err, "mailer: parse templates")
	}
	return &Mailer{cfg: cfg, tpl: tpl}, nil
}

type templateData struct {
	Greeting     string
	ProgramPitch string
	FromName     string
}

// RenderBody produces the outreach HTML for a recipient. programKey selects
// the pitch line; an empty or unknown key renders the general body.
func (m *Mailer) RenderBody(contactName, programKey string) (string, error) {
	greeting := "Hi there,"
	if contactName != "" {
		greeting = "Hi " + contactName + ","
	}

	var buf bytes.Buffer
	err := m.tpl.ExecuteTemplate(&buf, "outreach.html", templateData{
		Greeting:     greeting,
		ProgramPitch: programPitches[programKey],
		FromName:     m.cfg.FromName,
	})
	if err != nil {
		return "", eris.Wrap(err, "mailer: render body")
	}
	return buf.String(), nil
}

// Send delivers one outreach email. programKey comes from the lead's
// matched funding program and may be empty.
func (m *Mailer) Send(ctx context.Context, to, contactName, programKey string) error {
	if !m.cfg.Configured() {
		return ErrNotConfigured
	}

	body, err := m.RenderBody(contactName, programKey)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(m.cfg.FromName, m.cfg.FromEmail); err != nil {
		return eris.Wrap(err, "mailer: set from")
	}
	if err := msg.To(to); err != nil {
		return eris.Wrapf(err, "mailer: set recipient %s", to)
	}
	msg.Subject(m.cfg.Subject)
	msg.SetBodyString(mail.TypeTextHTML, body)

	opts := []mail.Option{
		mail.WithPort(m.cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.SMTPUser),
		mail.WithPassword(m.cfg.SMTPPass),
	}
	if m.cfg.SMTPPort == 465 {
		opts = append(opts, mail.WithSSLPort(false))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(m.cfg.SMTPHost, opts...)
	if err != nil {
		return eris.Wrap(err, "mailer: create smtp client")
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return eris.Wrapf(err, "mailer: send to %s", to)
	}

	zap.L().Info("outreach email sent",
		zap.String("to", to),
		zap.String("program", programKey),
	)
	return nil
}
