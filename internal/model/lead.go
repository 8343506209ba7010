package model

import "time"

// LockedSentinel is the raw-field placeholder Fundly shows when a lead is
// exclusively working with another agent and the real value is withheld.
const LockedSentinel = "LOCKED"

// LockedCode is the normalized-column counterpart of LockedSentinel.
const LockedCode = "locked"

// FilterFailAll is stored in filter_success when no funding program qualifies.
const FilterFailAll = "FAIL_ALL"

// Lead is one prospective funding applicant scraped from Fundly, with the
// raw free-text fields alongside their normalized columns. Nullable columns
// are pointers so the upsert's COALESCE merge can keep an existing value
// when a fresh scrape could not derive one.
type Lead struct {
	ID             int64      `json:"id,omitempty"`
	FundlyID       string     `json:"fundly_id"`
	ContactName    string     `json:"contact_name"`
	Email          *string    `json:"email"`
	Phone          *string    `json:"phone"`
	BackgroundInfo string     `json:"background_info"`
	EmailSentAt    *time.Time `json:"email_sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CanContact     bool       `json:"can_contact"`
	Locked         bool       `json:"locked"`

	UseOfFunds     string `json:"use_of_funds"`
	Location       string `json:"location"`
	Urgency        string `json:"urgency"`
	TimeInBusiness string `json:"time_in_business"`
	BankAccount    string `json:"bank_account"`
	AnnualRevenue  string `json:"annual_revenue"`
	Industry       string `json:"industry"`
	LookingFor     *string `json:"looking_for,omitempty"`
	LookingForMin  string  `json:"looking_for_min"`
	LookingForMax  string  `json:"looking_for_max"`

	// Normalized columns. NULL means "could not derive from this scrape".
	UrgencyCode      *string  `json:"urgency_code"`
	TIBMonths        *int     `json:"tib_months"`
	RevenueMinUSD    *float64 `json:"annual_revenue_min_usd"`
	RevenueMaxUSD    *float64 `json:"annual_revenue_max_usd"`
	RevenueApproxUSD *float64 `json:"annual_revenue_usd_approx"`
	BankAccountBool  *bool    `json:"bank_account_bool"`
	UseOfFundsNorm   *string  `json:"use_of_funds_norm"`
	IndustryNorm     *string  `json:"industry_norm"`
	FilterSuccess    *string  `json:"filter_success"`
}

// HasEmail reports whether the lead carries a usable email address.
func (l *Lead) HasEmail() bool {
	return l.Email != nil && *l.Email != ""
}

// RunStatus is the terminal state of one scan run.
type RunStatus string

const (
	RunStatusOK    RunStatus = "ok"
	RunStatusError RunStatus = "error"
)

// RunLog records one scan run for observability.
type RunLog struct {
	ID           int64      `json:"id"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at"`
	Status       *string    `json:"status"`
	Discovered   int        `json:"discovered_count"`
	Saved        int        `json:"saved_count"`
	Emailed      int        `json:"emailed_count"`
	ErrorMessage *string    `json:"error_message"`
	Details      []byte     `json:"details,omitempty"`
}
