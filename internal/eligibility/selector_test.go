package eligibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimaryProgramPriorityOrder(t *testing.T) {
	t.Parallel()

	// Strong lead, no equipment keywords: working capital wins the walk.
	res := Evaluate(strongLead())
	key, ok := PrimaryProgram(res, "growth", "steady landscaping business")
	require.True(t, ok)
	assert.Equal(t, ProgramWorkingCapital, key)
}

func TestPrimaryProgramEquipmentOverride(t *testing.T) {
	t.Parallel()

	t.Run("background mention", func(t *testing.T) {
		t.Parallel()
		res := Evaluate(strongLead())
		key, ok := PrimaryProgram(res, "working capital", "need equipment for the new site")
		require.True(t, ok)
		assert.Equal(t, ProgramEquipmentFinancing, key)
	})

	t.Run("use of funds mention", func(t *testing.T) {
		t.Parallel()
		res := Evaluate(strongLead())
		key, ok := PrimaryProgram(res, "Equipment", "")
		require.True(t, ok)
		assert.Equal(t, ProgramEquipmentFinancing, key)
	})

	t.Run("invoice and quote count as equipment signals", func(t *testing.T) {
		t.Parallel()
		res := Evaluate(strongLead())
		for _, bg := range []string{"attached an invoice", "got a quote from the dealer"} {
			key, ok := PrimaryProgram(res, "", bg)
			require.True(t, ok)
			assert.Equal(t, ProgramEquipmentFinancing, key, bg)
		}
	})

	t.Run("no override when equipment not qualified", func(t *testing.T) {
		t.Parallel()
		// Hand-built result: equipment ineligible, working capital eligible.
		res := Result{
			AnyQualified: true,
			Programs: []ProgramResult{
				{Key: ProgramEquipmentFinancing, Eligible: false},
				{Key: ProgramWorkingCapital, Eligible: true},
			},
		}
		key, ok := PrimaryProgram(res, "equipment", "equipment")
		require.True(t, ok)
		assert.Equal(t, ProgramWorkingCapital, key)
	})
}

func TestPrimaryProgramNoQualifiers(t *testing.T) {
	t.Parallel()

	res := Evaluate(Input{})
	_, ok := PrimaryProgram(res, "", "")
	assert.False(t, ok)
}

func TestPrimaryProgramSkipsToNextInPriority(t *testing.T) {
	t.Parallel()

	// Only SBA and first_campaign qualify: SBA outranks the catch-all.
	res := Result{
		AnyQualified: true,
		Programs: []ProgramResult{
			{Key: ProgramFirstCampaign, Eligible: true},
			{Key: ProgramSBALoan, Eligible: true},
		},
	}
	key, ok := PrimaryProgram(res, "", "")
	require.True(t, ok)
	assert.Equal(t, ProgramSBALoan, key)
}
