package normalize

import (
	"regexp"
	"strings"
)

// The contact panel sometimes concatenates UI chrome onto the address
// ("jane@acme.comPhone", "ExclusivityEmail"). Strip the known artifacts
// before matching.
var (
	emailArtifactsRe = regexp.MustCompile(`(?i)\b(?:AM|PM)?\s*Archive\s*Summary\s*Activity\s*Email|\bExclusivityEmail\b|\bPhone\b`)
	emailRe          = regexp.MustCompile(`(?i)([A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,})`)
	trailingPhoneRe  = regexp.MustCompile(`(?i)phone$`)
	giveyouUpRe      = regexp.MustCompile(`@.*giveyou\.up\b`)
	phoneDomainRe    = regexp.MustCompile(`@.*phone\b`)
)

// ExtractFirstEmail pulls the first plausible email address out of scraped
// text. Empty string when none is found.
func ExtractFirstEmail(text string) string {
	cleaned := emailArtifactsRe.ReplaceAllString(text, " ")
	m := emailRe.FindStringSubmatch(cleaned)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(trailingPhoneRe.ReplaceAllString(m[1], ""))
}

// IsAllowedEmail rejects the placeholder addresses Fundly renders for
// locked contacts.
func IsAllowedEmail(email string) bool {
	if email == "" {
		return false
	}
	e := strings.ToLower(email)
	if strings.Contains(e, "exclusivityemail") || strings.Contains(e, "giveyou.upphone") {
		return false
	}
	if giveyouUpRe.MatchString(e) {
		return false
	}
	if strings.HasSuffix(e, ".phone") || phoneDomainRe.MatchString(e) {
		return false
	}
	return true
}

// SanitizeEmail extracts and validates an address from scraped text,
// returning it lower-cased, or empty string when nothing usable remains.
func SanitizeEmail(text string) string {
	extracted := ExtractFirstEmail(text)
	if !IsAllowedEmail(extracted) {
		return ""
	}
	return strings.ToLower(extracted)
}
