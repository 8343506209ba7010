// Package pipeline turns raw scraped leads into persisted records and
// orchestrates the scan → save → outreach cycle.
package pipeline

import (
	"time"

	"github.com/glenross/fundly-bot/internal/eligibility"
	"github.com/glenross/fundly-bot/internal/model"
	"github.com/glenross/fundly-bot/internal/normalize"
	"github.com/glenross/fundly-bot/internal/scrape"
)

// orLocked substitutes the portal's LOCKED placeholder for fields the
// scrape could not read, matching what the portal itself renders.
func orLocked(s string) string {
	if s == "" {
		return model.LockedSentinel
	}
	return s
}

func strPtr(s string) *string { return &s }

// Assemble builds the persistable lead record from one scrape: raw fields
// with LOCKED defaults, normalized columns (SQL NULL when underivable),
// and the matched funding program in filter_success. The returned Result
// is the full program evaluation for callers that need the reasons.
func Assemble(raw scrape.RawLead, now time.Time) (model.Lead, eligibility.Result) {
	lead := model.Lead{
		FundlyID:       raw.FundlyID,
		ContactName:    orLocked(raw.ContactName),
		BackgroundInfo: orLocked(raw.BackgroundInfo),
		CreatedAt:      now.UTC(),
		CanContact:     true,
		Locked:         raw.Exclusive,
		UseOfFunds:     orLocked(raw.UseOfFunds),
		Location:       orLocked(raw.Location),
		Urgency:        orLocked(raw.Urgency),
		TimeInBusiness: orLocked(raw.TimeInBusiness),
		BankAccount:    orLocked(raw.BankAccount),
		AnnualRevenue:  orLocked(raw.AnnualRevenue),
		Industry:       orLocked(raw.Industry),
	}

	// Contact details are withheld entirely for exclusive leads; a partial
	// phone or email scraped around the lock banner is stale UI text.
	if !raw.Exclusive {
		if email := normalize.SanitizeEmail(raw.Email); email != "" {
			lead.Email = &email
		}
		if phone := raw.Phone; phone != "" {
			lead.Phone = &phone
		}
	}

	lead.LookingForMin, lead.LookingForMax = normalize.ParseLookingFor(raw.BackgroundInfo)
	if lead.LookingForMin == "" {
		lead.LookingForMin = model.LockedSentinel
	}
	if lead.LookingForMax == "" {
		lead.LookingForMax = model.LockedSentinel
	} else if lead.LookingForMin != model.LockedSentinel {
		lead.LookingFor = strPtr(lead.LookingForMin + " - " + lead.LookingForMax)
	}

	// Normalized columns. String codes take "locked" when the raw field is
	// the LOCKED placeholder; numeric columns stay NULL when underivable.
	urgency := normalize.Urgency(lead.Urgency)
	switch {
	case lead.Urgency == model.LockedSentinel:
		lead.UrgencyCode = strPtr(model.LockedCode)
	default:
		lead.UrgencyCode = strPtr(string(urgency))
	}

	lead.TIBMonths = normalize.ParseTIBMonths(lead.TimeInBusiness)
	rev := normalize.ParseRevenueRange(lead.AnnualRevenue)
	lead.RevenueMinUSD = rev.Min
	lead.RevenueMaxUSD = rev.Max
	lead.RevenueApproxUSD = rev.Approx
	lead.BankAccountBool = normalize.BankAccount(lead.BankAccount)

	if lead.UseOfFunds == model.LockedSentinel {
		lead.UseOfFundsNorm = strPtr(model.LockedCode)
	} else {
		lead.UseOfFundsNorm = strPtr(string(normalize.UseOfFunds(lead.UseOfFunds)))
	}
	if lead.Industry == model.LockedSentinel {
		lead.IndustryNorm = strPtr(model.LockedCode)
	} else if norm := normalize.Industry(lead.Industry); norm != "" {
		lead.IndustryNorm = strPtr(norm)
	} else {
		lead.IndustryNorm = strPtr(model.LockedCode)
	}

	res := eligibility.Evaluate(EvaluationInput(lead))
	if primary, ok := eligibility.PrimaryProgram(res, lead.UseOfFunds, lead.BackgroundInfo); ok {
		lead.FilterSuccess = strPtr(string(primary))
	} else {
		lead.FilterSuccess = strPtr(model.FilterFailAll)
	}

	return lead, res
}

// Reassemble recomputes a stored lead's normalized columns and program match
// from its raw fields, preserving identity, contact details, and outreach
// state. Used by the backfill command after rule or parser changes.
func Reassemble(lead model.Lead) model.Lead {
	raw := scrape.RawLead{
		FundlyID:       lead.FundlyID,
		ContactName:    lead.ContactName,
		BackgroundInfo: lead.BackgroundInfo,
		UseOfFunds:     lead.UseOfFunds,
		Location:       lead.Location,
		Urgency:        lead.Urgency,
		TimeInBusiness: lead.TimeInBusiness,
		BankAccount:    lead.BankAccount,
		AnnualRevenue:  lead.AnnualRevenue,
		Industry:       lead.Industry,
		Exclusive:      lead.Locked,
	}
	next, _ := Assemble(raw, lead.CreatedAt)
	next.ID = lead.ID
	next.Email = lead.Email
	next.Phone = lead.Phone
	next.EmailSentAt = lead.EmailSentAt
	next.CanContact = lead.CanContact
	next.CreatedAt = lead.CreatedAt
	return next
}

// EvaluationInput maps a stored lead's raw fields onto the rule engine's
// input, for re-evaluation of existing rows.
func EvaluationInput(lead model.Lead) eligibility.Input {
	return eligibility.Input{
		AnnualRevenue:  lead.AnnualRevenue,
		TimeInBusiness: lead.TimeInBusiness,
		Urgency:        lead.Urgency,
		BankAccount:    lead.BankAccount,
		BackgroundInfo: lead.BackgroundInfo,
	}
}
