// Package normalize turns the free-text fields scraped from Fundly into
// typed values. Every function is pure and total: any input, including
// empty strings and the LOCKED placeholder, maps to a documented sentinel
// rather than an error.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// UrgencyCode is the closed set of normalized urgency values.
type UrgencyCode string

const (
	UrgencyASAP          UrgencyCode = "asap"
	UrgencyLikeYesterday UrgencyCode = "like_yesterday"
	UrgencyThisWeek      UrgencyCode = "this_week"
	UrgencyThisMonth     UrgencyCode = "this_month"
	UrgencyWithin30Days  UrgencyCode = "within_30_days"
	UrgencyNow           UrgencyCode = "now"
	UrgencyUnknown       UrgencyCode = "unknown"
)

// UseOfFundsCategory is the normalized use-of-funds bucket.
type UseOfFundsCategory string

const (
	UseEquipment UseOfFundsCategory = "equipment"
	UsePayroll   UseOfFundsCategory = "payroll"
	UseExpansion UseOfFundsCategory = "expansion"
	UseDebtRefi  UseOfFundsCategory = "debt_refi"
	UseOther     UseOfFundsCategory = "other"
)

// RevenueRange holds the dollar amounts found in a revenue field. Approx is
// the rounded midpoint of Min and Max when more than one amount was found,
// else the single amount. All nil when no amount parses.
type RevenueRange struct {
	Min    *float64
	Max    *float64
	Approx *float64
}

// currencyTokenRe matches one dollar amount with an optional k/m suffix,
// e.g. "$80,000", "120k", "$1.2m".
var currencyTokenRe = regexp.MustCompile(`(?i)\$?([0-9][0-9,]*(?:\.[0-9]+)?)\s*([km])?`)

func currencyToken(digits, suffix string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(suffix) {
	case "k":
		n *= 1_000
	case "m":
		n *= 1_000_000
	}
	return n, true
}

// ParseCurrency extracts the first dollar amount from text. Returns nil when
// no numeric token is present.
func ParseCurrency(text string) *float64 {
	m := currencyTokenRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, ok := currencyToken(m[1], m[2])
	if !ok {
		return nil
	}
	return &n
}

// ParseRevenueRange extracts every dollar amount from text and reduces them
// to min/max/approx. "$80,000 - $120,000" yields {80000, 120000, 100000}.
func ParseRevenueRange(text string) RevenueRange {
	var amounts []float64
	for _, m := range currencyTokenRe.FindAllStringSubmatch(text, -1) {
		if n, ok := currencyToken(m[1], m[2]); ok {
			amounts = append(amounts, n)
		}
	}
	if len(amounts) == 0 {
		return RevenueRange{}
	}

	lo, hi := amounts[0], amounts[0]
	for _, n := range amounts[1:] {
		if n < lo {
			lo = n
		}
		if n > hi {
			hi = n
		}
	}
	approx := lo
	if len(amounts) > 1 {
		approx = math.Round((lo + hi) / 2)
	}
	return RevenueRange{Min: &lo, Max: &hi, Approx: &approx}
}

// tibPhrases maps Fundly's vague range phrases to a conservative month
// count: the lower bound of the range, because downstream gates are all
// "at least N months" comparisons. First match wins, largest ranges first
// so "5-10 years" never falls through to the bare "10" pattern.
var tibPhrases = []struct {
	re     *regexp.Regexp
	months int
}{
	{regexp.MustCompile(`10\s*\+`), 120},
	{regexp.MustCompile(`\b5\s*[-–]\s*10\s*years?|\b5\s*\+\s*years?`), 60},
	{regexp.MustCompile(`\b2\s*[-–]\s*5\s*years?|\b2\s*\+\s*years?`), 24},
	{regexp.MustCompile(`\b1\s*[-–]\s*2\s*years?|\b1\s*\+\s*years?|at\s*least\s*1\s*year`), 12},
}

var (
	tibMonthsRe = regexp.MustCompile(`([0-9]+)\s*months?`)
	tibYearsRe  = regexp.MustCompile(`([0-9]+)\s*years?`)
)

// ParseTIBMonths converts a time-in-business phrase to months. Returns nil
// when nothing parses.
func ParseTIBMonths(text string) *int {
	t := strings.ToLower(text)
	if strings.TrimSpace(t) == "" {
		return nil
	}
	for _, p := range tibPhrases {
		if p.re.MatchString(t) {
			n := p.months
			return &n
		}
	}
	if m := tibMonthsRe.FindStringSubmatch(t); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return &n
		}
	}
	if m := tibYearsRe.FindStringSubmatch(t); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			n *= 12
			return &n
		}
	}
	return nil
}

// urgencyPhrases is checked in order; the first hit decides the code.
var urgencyPhrases = []struct {
	re   *regexp.Regexp
	code UrgencyCode
}{
	{regexp.MustCompile(`\basap\b`), UrgencyASAP},
	{regexp.MustCompile(`like\s*yesterday`), UrgencyLikeYesterday},
	{regexp.MustCompile(`this\s*week`), UrgencyThisWeek},
	{regexp.MustCompile(`this\s*month`), UrgencyThisMonth},
	{regexp.MustCompile(`within\s*30\s*days|<\s*1\s*month`), UrgencyWithin30Days},
	{regexp.MustCompile(`\bnow\b`), UrgencyNow},
}

// Urgency maps free-text urgency to its code. Empty or unmatched text is
// UrgencyUnknown.
func Urgency(text string) UrgencyCode {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return UrgencyUnknown
	}
	for _, p := range urgencyPhrases {
		if p.re.MatchString(t) {
			return p.code
		}
	}
	return UrgencyUnknown
}

var withinOneMonthRe = regexp.MustCompile(
	`asap|this\s*week|this\s*month|within\s*30\s*days|<\s*1\s*month|\bnow\b|like\s*yesterday`)

// UrgencyWithinOneMonth reports whether the urgency text signals funding is
// needed within roughly one month. "like yesterday" counts.
func UrgencyWithinOneMonth(text string) bool {
	return withinOneMonthRe.MatchString(strings.ToLower(text))
}

var (
	bankYesRe = regexp.MustCompile(`\b(yes|y)\b|business|checking`)
	bankNoRe  = regexp.MustCompile(`\b(no|n)\b|none|no\s*account`)
)

// BankAccount normalizes a bank-account answer to a tri-state: true, false,
// or nil when the field is empty or the text matches neither direction.
// Eligibility treats nil as "not confirmed".
func BankAccount(text string) *bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return nil
	}
	if bankYesRe.MatchString(t) {
		v := true
		return &v
	}
	if bankNoRe.MatchString(t) {
		v := false
		return &v
	}
	return nil
}

var useOfFundsPhrases = []struct {
	re  *regexp.Regexp
	cat UseOfFundsCategory
}{
	{regexp.MustCompile(`equip`), UseEquipment},
	{regexp.MustCompile(`payroll`), UsePayroll},
	{regexp.MustCompile(`expan`), UseExpansion},
	{regexp.MustCompile(`debt|refi|refinanc`), UseDebtRefi},
}

// UseOfFunds buckets a use-of-funds answer. Anything unmatched, including
// empty text, is UseOther.
func UseOfFunds(text string) UseOfFundsCategory {
	t := strings.ToLower(text)
	for _, p := range useOfFundsPhrases {
		if p.re.MatchString(t) {
			return p.cat
		}
	}
	return UseOther
}

// Industry lower-cases and trims an industry answer.
func Industry(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

var lookingForRe = regexp.MustCompile(`How much they are looking for:\s*\$([0-9,]+)\s*-\s*\$([0-9,]+)`)

// ParseLookingFor extracts the "How much they are looking for: $X - $Y"
// range Fundly embeds in background text. Empty strings when absent.
func ParseLookingFor(background string) (min, max string) {
	m := lookingForRe.FindStringSubmatch(background)
	if m == nil {
		return "", ""
	}
	return "$" + m[1], "$" + m[2]
}
