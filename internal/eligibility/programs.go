// Package eligibility evaluates a scraped lead against the seven funding
// programs and picks the primary program for outreach. Evaluation is
// deterministic and side-effect free: every program is always evaluated,
// every failing gate produces a reason, and unparseable input fails gates
// instead of erroring.
package eligibility

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/glenross/fundly-bot/internal/normalize"
)

// ProgramKey names one of the seven funding programs.
type ProgramKey string

const (
	ProgramFirstCampaign      ProgramKey = "first_campaign"
	ProgramBusinessTermLoan   ProgramKey = "business_term_loan"
	ProgramEquipmentFinancing ProgramKey = "equipment_financing"
	ProgramLineOfCredit       ProgramKey = "line_of_credit"
	ProgramSBALoan            ProgramKey = "sba_loan"
	ProgramBankLOC            ProgramKey = "bank_loc"
	ProgramWorkingCapital     ProgramKey = "working_capital"
)

// EvaluationOrder is the fixed order programs are evaluated and reported in.
var EvaluationOrder = []ProgramKey{
	ProgramFirstCampaign,
	ProgramBusinessTermLoan,
	ProgramEquipmentFinancing,
	ProgramLineOfCredit,
	ProgramSBALoan,
	ProgramBankLOC,
	ProgramWorkingCapital,
}

// ProgramResult is the outcome for one program: whether the lead clears its
// gates, plus reasons. Reasons mix blocking explanations with informational
// notes (FICO requirements we cannot check from a scrape).
type ProgramResult struct {
	Key      ProgramKey `json:"key"`
	Eligible bool       `json:"eligible"`
	Reasons  []string   `json:"reasons"`
}

// Result is the full evaluation across all seven programs.
type Result struct {
	AnyQualified bool            `json:"any_qualified"`
	Programs     []ProgramResult `json:"programs"`
}

// Qualified returns the keys of the eligible programs in evaluation order.
func (r Result) Qualified() []ProgramKey {
	var keys []ProgramKey
	for _, p := range r.Programs {
		if p.Eligible {
			keys = append(keys, p.Key)
		}
	}
	return keys
}

// Input carries the raw scraped fields the rule engine consumes. Fields may
// be empty, free text, or the LOCKED placeholder; all of those simply fail
// the gates they feed.
type Input struct {
	AnnualRevenue  string
	TimeInBusiness string
	Urgency        string
	BankAccount    string
	BackgroundInfo string
}

// usd prints dollar amounts with thousands grouping for reason strings.
var usd = message.NewPrinter(language.AmericanEnglish)

func dollars(n float64) string {
	return usd.Sprintf("%d", int64(math.Round(n)))
}

// Evaluate runs the lead through every program. Revenue comes from the
// canonical range parser (midpoint when the field holds a range) and
// time-in-business from the canonical phrase parser; both collapse to zero
// when unparseable so the corresponding gates fail with a reason.
func Evaluate(in Input) Result {
	annual := 0.0
	if r := normalize.ParseRevenueRange(in.AnnualRevenue); r.Approx != nil {
		annual = *r.Approx
	}
	monthly := 0.0
	if annual > 0 {
		monthly = annual / 12
	}
	months := 0
	if m := normalize.ParseTIBMonths(in.TimeInBusiness); m != nil {
		months = *m
	}
	bankTri := normalize.BankAccount(in.BankAccount)
	bank := bankTri != nil && *bankTri

	// A lead whose every consumed field is empty or LOCKED yields nothing to
	// evaluate; without this guard the ungated equipment program would mark
	// fully locked leads as qualified.
	hasData := annual > 0 || months > 0 || bankTri != nil ||
		normalize.Urgency(in.Urgency) != normalize.UrgencyUnknown

	programs := make([]ProgramResult, 0, len(EvaluationOrder))

	// First test campaign: $10k+ monthly, 12+ months, funding needed within
	// a month, bank account confirmed.
	{
		var reasons []string
		monthlyOK := monthly >= 10_000
		tibOK := months >= 12
		urgencyOK := normalize.UrgencyWithinOneMonth(in.Urgency)
		if !monthlyOK {
			reasons = append(reasons, fmt.Sprintf("Needs >= $10k monthly (has ~$%s/mo)", dollars(monthly)))
		}
		if !tibOK {
			reasons = append(reasons, fmt.Sprintf("Needs >= 12 months in business (has %dm)", months))
		}
		if !urgencyOK {
			reasons = append(reasons, "Urgency must be within ~1 month")
		}
		if !bank {
			reasons = append(reasons, "Business bank account not confirmed")
		}
		programs = append(programs, ProgramResult{
			Key:      ProgramFirstCampaign,
			Eligible: monthlyOK && tibOK && urgencyOK && bank,
			Reasons:  reasons,
		})
	}

	programs = append(programs, gatedProgram(ProgramBusinessTermLoan, months, 24, annual, 250_000, "$250k",
		"FICO 650+ required (not collected)"))

	// Equipment financing has no minimums; FICO note only. It still needs
	// at least one scraped fact so that fully locked leads stay FAIL_ALL.
	{
		reasons := []string{"FICO 600+ preferred (not collected)"}
		if !hasData {
			reasons = append([]string{"No usable data scraped (lead locked or blank)"}, reasons...)
		}
		programs = append(programs, ProgramResult{
			Key:      ProgramEquipmentFinancing,
			Eligible: hasData,
			Reasons:  reasons,
		})
	}

	programs = append(programs, gatedProgram(ProgramLineOfCredit, months, 6, annual, 120_000, "$120k",
		"FICO 600+ required (not collected)"))
	programs = append(programs, gatedProgram(ProgramSBALoan, months, 24, annual, 120_000, "$120k",
		"FICO 675+ required (not collected)"))
	programs = append(programs, gatedProgram(ProgramBankLOC, months, 36, annual, 350_000, "$350k",
		"FICO 700+ required (not collected)"))
	programs = append(programs, gatedProgram(ProgramWorkingCapital, months, 3, annual, 100_000, "$100k", ""))

	any := false
	for _, p := range programs {
		if p.Eligible {
			any = true
			break
		}
	}
	return Result{AnyQualified: any, Programs: programs}
}

// gatedProgram evaluates the common shape shared by five programs:
// a time-in-business floor, an annual-revenue floor, and an optional
// informational FICO note appended regardless of outcome.
func gatedProgram(key ProgramKey, months, minMonths int, annual, minAnnual float64, minLabel, ficoNote string) ProgramResult {
	var reasons []string
	tibOK := months >= minMonths
	revOK := annual >= minAnnual
	if !tibOK {
		reasons = append(reasons, fmt.Sprintf("Needs >= %d months in business (has %dm)", minMonths, months))
	}
	if !revOK {
		reasons = append(reasons, fmt.Sprintf("Needs >= %s annual (has ~$%s)", minLabel, dollars(annual)))
	}
	if ficoNote != "" {
		reasons = append(reasons, ficoNote)
	}
	return ProgramResult{Key: key, Eligible: tibOK && revOK, Reasons: reasons}
}

// PassesRequirements reports whether the lead qualifies for at least one
// program.
func PassesRequirements(in Input) bool {
	return Evaluate(in).AnyQualified
}
