package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(f float64) *float64 { return &f }

func TestParseCurrency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want *float64
	}{
		{"plain dollars", "$10,000", fptr(10000)},
		{"no dollar sign", "250000", fptr(250000)},
		{"decimal", "$1,234.56", fptr(1234.56)},
		{"k suffix", "120k", fptr(120000)},
		{"m suffix", "$1.2M", fptr(1200000)},
		{"first token wins", "$80,000 - $120,000", fptr(80000)},
		{"no numbers", "no info", nil},
		{"empty", "", nil},
		{"locked placeholder", "LOCKED", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ParseCurrency(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 0.001)
		})
	}
}

func TestParseRevenueRange(t *testing.T) {
	t.Parallel()

	t.Run("single amount", func(t *testing.T) {
		t.Parallel()
		r := ParseRevenueRange("$10,000")
		require.NotNil(t, r.Min)
		require.NotNil(t, r.Max)
		require.NotNil(t, r.Approx)
		assert.Equal(t, 10000.0, *r.Min)
		assert.Equal(t, 10000.0, *r.Max)
		assert.Equal(t, 10000.0, *r.Approx)
	})

	t.Run("range takes midpoint of extremes", func(t *testing.T) {
		t.Parallel()
		r := ParseRevenueRange("$80,000 - $120,000")
		require.NotNil(t, r.Approx)
		assert.Equal(t, 80000.0, *r.Min)
		assert.Equal(t, 120000.0, *r.Max)
		assert.Equal(t, 100000.0, *r.Approx)
	})

	t.Run("midpoint ignores middle values", func(t *testing.T) {
		t.Parallel()
		r := ParseRevenueRange("$100k, $500k or $900k")
		require.NotNil(t, r.Approx)
		assert.Equal(t, 100000.0, *r.Min)
		assert.Equal(t, 900000.0, *r.Max)
		assert.Equal(t, 500000.0, *r.Approx)
	})

	t.Run("suffix range", func(t *testing.T) {
		t.Parallel()
		r := ParseRevenueRange("$80k - $120k")
		require.NotNil(t, r.Approx)
		assert.Equal(t, 100000.0, *r.Approx)
	})

	t.Run("no amounts", func(t *testing.T) {
		t.Parallel()
		r := ParseRevenueRange("no info")
		assert.Nil(t, r.Min)
		assert.Nil(t, r.Max)
		assert.Nil(t, r.Approx)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		r := ParseRevenueRange("")
		assert.Nil(t, r.Approx)
	})
}

func TestParseTIBMonths(t *testing.T) {
	t.Parallel()

	iptr := func(n int) *int { return &n }
	tests := []struct {
		name string
		in   string
		want *int
	}{
		{"ten plus years", "10+ years", iptr(120)},
		{"five to ten", "5-10 years", iptr(60)},
		{"five plus", "5+ years", iptr(60)},
		{"two to five maps to lower bound", "2-5 years", iptr(24)},
		{"two plus", "2+ years", iptr(24)},
		{"one to two", "1-2 years", iptr(12)},
		{"at least one year", "at least 1 year", iptr(12)},
		{"en dash range", "2–5 years", iptr(24)},
		{"literal months", "18 months", iptr(18)},
		{"literal years", "3 years", iptr(36)},
		{"single month", "1 month", iptr(1)},
		{"empty", "", nil},
		{"locked", "LOCKED", nil},
		{"gibberish", "a while", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ParseTIBMonths(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestUrgency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want UrgencyCode
	}{
		{"ASAP, need funds now", UrgencyASAP}, // asap outranks now
		{"like yesterday", UrgencyLikeYesterday},
		{"This Week", UrgencyThisWeek},
		{"sometime this month", UrgencyThisMonth},
		{"within 30 days", UrgencyWithin30Days},
		{"< 1 month", UrgencyWithin30Days},
		{"now", UrgencyNow},
		{"whenever", UrgencyUnknown},
		{"", UrgencyUnknown},
		{"LOCKED", UrgencyUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Urgency(tt.in))
		})
	}
}

func TestUrgencyWithinOneMonth(t *testing.T) {
	t.Parallel()

	for _, urgent := range []string{"ASAP", "this week", "this month", "within 30 days", "< 1 month", "now", "like yesterday"} {
		assert.True(t, UrgencyWithinOneMonth(urgent), urgent)
	}
	for _, notUrgent := range []string{"", "next quarter", "in 6 months", "LOCKED"} {
		assert.False(t, UrgencyWithinOneMonth(notUrgent), notUrgent)
	}
}

func TestBankAccount(t *testing.T) {
	t.Parallel()

	bptr := func(b bool) *bool { return &b }
	tests := []struct {
		name string
		in   string
		want *bool
	}{
		{"yes", "Yes", bptr(true)},
		{"y", "y", bptr(true)},
		{"business checking", "business checking w/ Chase", bptr(true)},
		{"no", "No", bptr(false)},
		{"n", "n", bptr(false)},
		{"none", "none", bptr(false)},
		{"empty is unknown", "", nil},
		{"unmatched text is unknown", "LOCKED", nil},
		{"ambiguous text is unknown", "maybe soon", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := BankAccount(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestUseOfFunds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want UseOfFundsCategory
	}{
		{"Equipment purchase", UseEquipment},
		{"new equip for the shop", UseEquipment},
		{"Payroll", UsePayroll},
		{"expansion into a second location", UseExpansion},
		{"expanding", UseExpansion},
		{"debt consolidation", UseDebtRefi},
		{"refinance", UseDebtRefi},
		{"refi", UseDebtRefi},
		{"inventory", UseOther},
		{"", UseOther},
		{"LOCKED", UseOther},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, UseOfFunds(tt.in))
		})
	}
}

func TestIndustry(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "construction", Industry("  Construction "))
	assert.Equal(t, "", Industry(""))
}

func TestParseLookingFor(t *testing.T) {
	t.Parallel()

	min, max := ParseLookingFor("How much they are looking for: $50,000 - $100,000\nrest of text")
	assert.Equal(t, "$50,000", min)
	assert.Equal(t, "$100,000", max)

	min, max = ParseLookingFor("no range here")
	assert.Empty(t, min)
	assert.Empty(t, max)
}

// Normalizers must be total: arbitrary input never panics and repeated
// application is stable.
func TestNormalizersTotalAndIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"", "LOCKED", "���", "$$$$", strings.Repeat("9", 400),
		strings.Repeat("$1,000 ", 10000), "année 2-5 ans", "yes\x00no",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			ParseCurrency(in)
			ParseRevenueRange(in)
			ParseTIBMonths(in)
			Urgency(in)
			UrgencyWithinOneMonth(in)
			BankAccount(in)
			UseOfFunds(in)
			Industry(in)
			SanitizeEmail(in)
		})
		assert.Equal(t, Urgency(in), Urgency(in))
		assert.Equal(t, UseOfFunds(in), UseOfFunds(in))
	}
}
