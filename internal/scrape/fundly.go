package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultLoginURL is the portal login page, redirecting to the business
// dashboard after authentication.
const DefaultLoginURL = "https://app.getfundly.com/login?redirectTo=/c/business"

// Config configures the Fundly portal scraper.
type Config struct {
	LoginURL string
	Email    string
	Password string
	Headless bool

	// NavTimeout bounds each navigation or element wait. Default: 15s.
	NavTimeout time.Duration

	// ActionsPerSecond throttles clicks and scrolls so the session looks
	// like a human and stays under the portal's rate limits. Default: 2.
	ActionsPerSecond float64
}

func (c *Config) defaults() {
	if c.LoginURL == "" {
		c.LoginURL = DefaultLoginURL
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 15 * time.Second
	}
	if c.ActionsPerSecond <= 0 {
		c.ActionsPerSecond = 2
	}
}

// Scraper drives a headless Chrome session against the Fundly portal.
type Scraper struct {
	cfg      Config
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	limiter  *rate.Limiter
}

// New creates a Scraper. Call Start before use and Close when done.
func New(cfg Config) *Scraper {
	cfg.defaults()
	return &Scraper{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.ActionsPerSecond), 1),
	}
}

// Start launches Chrome and connects a browser session.
func (s *Scraper) Start(ctx context.Context) error {
	if s.cfg.Email == "" || s.cfg.Password == "" {
		return eris.New("scrape: missing portal credentials")
	}

	s.launcher = launcher.New().Headless(s.cfg.Headless)
	controlURL, err := s.launcher.Launch()
	if err != nil {
		return eris.Wrap(err, "scrape: launch browser")
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		s.launcher.Cleanup()
		return eris.Wrap(err, "scrape: connect browser")
	}
	s.browser = browser
	return nil
}

// Close shuts down the page, browser and Chrome process.
func (s *Scraper) Close() error {
	var firstErr error
	if s.page != nil {
		if err := s.page.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.page = nil
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.browser = nil
	}
	if s.launcher != nil {
		s.launcher.Cleanup()
		s.launcher = nil
	}
	return eris.Wrap(firstErr, "scrape: close")
}

func (s *Scraper) pace(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}

// Login signs into the portal and waits for the business dashboard.
func (s *Scraper) Login(ctx context.Context) error {
	if s.browser == nil {
		return eris.New("scrape: browser not started")
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{URL: s.cfg.LoginURL})
	if err != nil {
		return eris.Wrap(err, "scrape: open login page")
	}
	s.page = page.Context(ctx).Timeout(s.cfg.NavTimeout)

	if err := s.page.WaitLoad(); err != nil {
		return eris.Wrap(err, "scrape: load login page")
	}

	emailInput, err := s.page.Element(`input[name="email"], input[type="email"]`)
	if err != nil {
		return eris.Wrap(err, "scrape: find email input")
	}
	if err := emailInput.Input(s.cfg.Email); err != nil {
		return eris.Wrap(err, "scrape: fill email")
	}

	passInput, err := s.page.Element(`input[name="password"], input[type="password"]`)
	if err != nil {
		return eris.Wrap(err, "scrape: find password input")
	}
	if err := passInput.Input(s.cfg.Password); err != nil {
		return eris.Wrap(err, "scrape: fill password")
	}

	loginBtn, err := s.page.ElementR("button", "/Login/i")
	if err != nil {
		return eris.Wrap(err, "scrape: find login button")
	}
	if err := s.pace(ctx); err != nil {
		return err
	}
	if err := loginBtn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return eris.Wrap(err, "scrape: click login")
	}

	if err := s.page.WaitStable(time.Second); err != nil {
		return eris.Wrap(err, "scrape: wait for dashboard")
	}
	info, err := s.page.Info()
	if err != nil {
		return eris.Wrap(err, "scrape: page info after login")
	}
	if !strings.Contains(info.URL, "/c/business") {
		return eris.Errorf("scrape: login did not reach dashboard (at %s)", info.URL)
	}

	// The timeline header renders last; not fatal if it is slow.
	_ = rod.Try(func() {
		s.page.Timeout(10 * time.Second).MustElementR("p,h1,h2", "Realtime Lead Timeline")
	})

	zap.L().Info("signed in to portal")
	return nil
}

// AddTimelineLeads clicks every visible "Add to My Pipeline" button,
// scrolling the timeline a few times to surface more. Returns the number
// of leads added.
func (s *Scraper) AddTimelineLeads(ctx context.Context) (int, error) {
	if s.page == nil {
		return 0, eris.New("scrape: not logged in")
	}

	total := 0
	clickVisible := func() int {
		clicked := 0
		for attempts := 0; attempts < 50; attempts++ {
			err := rod.Try(func() {
				btn := s.page.Timeout(3 * time.Second).MustElementR("button", "/Add to My Pipeline/i")
				btn.MustClick()
			})
			if err != nil {
				break
			}
			clicked++
			if err := s.pace(ctx); err != nil {
				break
			}
		}
		return clicked
	}

	total += clickVisible()
	for scroll := 0; scroll < 4; scroll++ {
		if ctx.Err() != nil {
			return total, eris.Wrap(ctx.Err(), "scrape: add timeline leads")
		}
		_ = rod.Try(func() {
			s.page.MustEval(`() => window.scrollTo(0, document.body.scrollHeight)`)
		})
		if err := s.pace(ctx); err != nil {
			return total, err
		}
		total += clickVisible()
	}

	zap.L().Info("added timeline leads to pipeline", zap.Int("count", total))
	return total, nil
}

// ScanOnce performs one full scan: adds visible timeline leads to the
// pipeline, opens the first pipeline lead, reveals contact details when
// possible, and extracts the raw field set.
func (s *Scraper) ScanOnce(ctx context.Context) (*RawLead, error) {
	if _, err := s.AddTimelineLeads(ctx); err != nil {
		zap.L().Warn("adding timeline leads failed, continuing with pipeline", zap.Error(err))
	}

	leadID, err := s.openFirstPipelineLead(ctx)
	if err != nil {
		return nil, err
	}
	return s.extractLead(ctx, leadID)
}

func (s *Scraper) openFirstPipelineLead(ctx context.Context) (string, error) {
	pipelineLink, err := s.page.ElementR("a", "My Pipeline")
	if err != nil {
		return "", eris.Wrap(err, "scrape: find pipeline link")
	}
	if err := s.pace(ctx); err != nil {
		return "", err
	}
	if err := pipelineLink.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return "", eris.Wrap(err, "scrape: open pipeline")
	}
	if err := s.page.WaitStable(time.Second); err != nil {
		return "", eris.Wrap(err, "scrape: wait for pipeline")
	}

	var ids []string
	err = rod.Try(func() {
		res := s.page.MustEval(`() => Array.from(document.querySelectorAll('div[id]')).map(el => el.id)`)
		for _, v := range res.Arr() {
			ids = append(ids, v.Str())
		}
	})
	if err != nil {
		return "", eris.Wrap(err, "scrape: collect pipeline ids")
	}

	leadID := PickLeadID(ids)
	if leadID == "" {
		return "", eris.New("scrape: no pipeline leads visible")
	}

	card, err := s.page.Element(`div[id="` + leadID + `"]`)
	if err != nil {
		return "", eris.Wrapf(err, "scrape: find lead card %s", leadID)
	}
	if err := s.pace(ctx); err != nil {
		return "", err
	}
	if err := card.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return "", eris.Wrapf(err, "scrape: open lead %s", leadID)
	}
	if err := s.page.WaitStable(time.Second); err != nil {
		return "", eris.Wrap(err, "scrape: wait for lead detail")
	}
	return leadID, nil
}

func (s *Scraper) extractLead(ctx context.Context, leadID string) (*RawLead, error) {
	raw := &RawLead{FundlyID: leadID}

	// Reveal contact details when the button is present. Nothing to do
	// when it isn't: either already revealed or locked.
	revealed := rod.Try(func() {
		btn := s.page.Timeout(2 * time.Second).MustElementR("button", "/Reveal/i")
		btn.MustScrollIntoView()
		btn.MustClick()
	}) == nil
	if revealed {
		if err := s.pace(ctx); err != nil {
			return nil, err
		}
		_ = s.page.WaitStable(time.Second)
	}

	raw.Exclusive = s.detectExclusive()

	raw.Email = s.labelValue("Email")
	if raw.Email == "" {
		_ = rod.Try(func() {
			href := s.page.Timeout(2 * time.Second).MustElement(`a[href^="mailto:"]`).MustProperty("href").Str()
			raw.Email = StripMailto(href)
		})
	}
	raw.Phone = s.labelValue("Phone")
	if raw.Phone == "" {
		_ = rod.Try(func() {
			href := s.page.Timeout(2 * time.Second).MustElement(`a[href^="tel:"]`).MustProperty("href").Str()
			raw.Phone = StripTel(href)
		})
	}

	raw.ContactName = CleanName(s.labelValue("Name"))
	if raw.ContactName == "" {
		raw.ContactName = CleanName(s.labelValue("Full Name"))
	}
	if raw.ContactName == "" && raw.Exclusive {
		_ = rod.Try(func() {
			notice := s.page.Timeout(2 * time.Second).
				MustElementR("p", "exclusively working with another agent").MustText()
			raw.ContactName = NameFromExclusivityNotice(notice)
		})
	}

	// Expand the background section before reading it.
	_ = rod.Try(func() {
		s.page.Timeout(2 * time.Second).MustElementR("button,span,p", "Show more").MustClick()
	})
	raw.BackgroundInfo = TrimBackground(s.labelValue("Background Info"))

	raw.UseOfFunds = s.labelValue("Use of Funds")
	raw.Location = s.labelValue("Location")
	raw.Urgency = s.labelValue("Urgency")
	raw.TimeInBusiness = s.labelValue("Time in Business")
	raw.BankAccount = s.labelValue("Bank Account")
	raw.AnnualRevenue = s.labelValue("Annual Revenue")
	raw.Industry = s.labelValue("Industry")

	zap.L().Info("extracted lead",
		zap.String("fundly_id", raw.FundlyID),
		zap.Bool("exclusive", raw.Exclusive),
		zap.Bool("has_email", raw.Email != ""),
		zap.Int("background_len", len(raw.BackgroundInfo)),
	)
	return raw, nil
}

// labelValue reads the value paragraph following a label paragraph in the
// detail pane. Fields are rendered as <p>Label</p><p>value</p> pairs.
func (s *Scraper) labelValue(label string) string {
	var value string
	_ = rod.Try(func() {
		el := s.page.Timeout(2 * time.Second).MustElementR("p", "/^"+label+"$/")
		value = el.MustNext().MustText()
	})
	return strings.TrimSpace(value)
}

// detectExclusive looks for the exclusivity banner or note shown when the
// lead is already committed to another agent.
func (s *Scraper) detectExclusive() bool {
	if rod.Try(func() {
		s.page.Timeout(2 * time.Second).MustElementR("h2", "Exclusive with Others")
	}) == nil {
		return true
	}
	return rod.Try(func() {
		s.page.Timeout(2 * time.Second).MustElementR("p", "exclusively working with another agent")
	}) == nil
}
