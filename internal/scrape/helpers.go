package scrape

import (
	"regexp"
	"strings"
)

// RawLead is the unprocessed field set lifted from one lead detail page.
// Empty strings mean the field was not visible; the assembler decides how
// gaps are recorded.
type RawLead struct {
	FundlyID       string
	ContactName    string
	Email          string
	Phone          string
	BackgroundInfo string
	UseOfFunds     string
	Location       string
	Urgency        string
	TimeInBusiness string
	BankAccount    string
	AnnualRevenue  string
	Industry       string

	// Exclusive marks a lead whose contact details are withheld because the
	// lead is working with another agent.
	Exclusive bool
}

var (
	meridiemRe       = regexp.MustCompile(`(?i)\b(am|pm)\b`)
	whitespaceRe     = regexp.MustCompile(`\s{2,}`)
	exclusivityWhoRe = regexp.MustCompile(`(?i)\b([A-Za-z][A-Za-z'\-]+(?:\s+[A-Za-z][A-Za-z'\-]+){0,2})\s+is\s+exclusively\s+working\s+with\s+another\s+agent\b`)
	showLessRe       = regexp.MustCompile(`(?i)Show less$`)
)

// CleanName strips timeline timestamps and collapsed whitespace from a
// scraped contact name. The detail pane renders the lead's last-activity
// time next to the name, so "am"/"pm" fragments bleed into the text.
func CleanName(name string) string {
	s := strings.Join(strings.Fields(name), " ")
	s = meridiemRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NameFromExclusivityNotice recovers the lead's first name from the
// "<Name> is exclusively working with another agent." banner, the only
// place a locked lead's name appears.
func NameFromExclusivityNotice(text string) string {
	m := exclusivityWhoRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return CleanName(m[1])
}

// TrimBackground removes the "Show less" toggle text appended when the
// background section is expanded.
func TrimBackground(text string) string {
	return strings.TrimSpace(showLessRe.ReplaceAllString(strings.TrimSpace(text), ""))
}

// PickLeadID selects the most plausible lead container id from the DOM ids
// visible on the pipeline page. Framework containers (root, tab and menu
// wrappers) are excluded; purely numeric ids are the lead cards and win
// over anything else.
func PickLeadID(ids []string) string {
	var candidates, numeric []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		lower := strings.ToLower(id)
		if lower == "root" || strings.HasPrefix(lower, "tabs-") || strings.HasPrefix(lower, "menu-") {
			continue
		}
		candidates = append(candidates, id)
		if isNumeric(id) {
			numeric = append(numeric, id)
		}
	}
	if len(numeric) > 0 {
		return numeric[0]
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// StripMailto extracts the address from a mailto: href, dropping any query
// string.
func StripMailto(href string) string {
	s := strings.TrimPrefix(strings.TrimPrefix(href, "mailto:"), "MAILTO:")
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// StripTel extracts the number from a tel: href.
func StripTel(href string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(href, "tel:"), "TEL:"))
}
