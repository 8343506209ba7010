package eligibility

import (
	"regexp"
	"strings"
)

// primaryPriority orders programs for outreach when several qualify.
// Narrower products come before broad catch-alls: a specific financing
// conversation converts better than the baseline campaign.
var primaryPriority = []ProgramKey{
	ProgramWorkingCapital,
	ProgramLineOfCredit,
	ProgramBusinessTermLoan,
	ProgramSBALoan,
	ProgramBankLOC,
	ProgramEquipmentFinancing,
	ProgramFirstCampaign,
}

var equipmentSignalRe = regexp.MustCompile(`equipment|invoice|quote`)

// PrimaryProgram picks the single program to pitch. When the lead's
// use-of-funds or background text mentions equipment (or an invoice/quote)
// and equipment financing qualifies, that wins outright; otherwise the
// first qualifying program in priority order. ok is false when nothing
// qualifies, in which case the record gets FilterFailAll.
func PrimaryProgram(res Result, useOfFunds, backgroundInfo string) (key ProgramKey, ok bool) {
	qualified := make(map[ProgramKey]bool)
	for _, p := range res.Programs {
		if p.Eligible {
			qualified[p.Key] = true
		}
	}
	if len(qualified) == 0 {
		return "", false
	}

	text := strings.ToLower(useOfFunds + " " + backgroundInfo)
	if qualified[ProgramEquipmentFinancing] && equipmentSignalRe.MatchString(text) {
		return ProgramEquipmentFinancing, true
	}

	for _, k := range primaryPriority {
		if qualified[k] {
			return k, true
		}
	}

	// Unreachable while primaryPriority covers every key; fall back to
	// evaluation order.
	for _, p := range res.Programs {
		if p.Eligible {
			return p.Key, true
		}
	}
	return "", false
}
