package domain

import "time"

// Lead statuses accepted by the CRM import.
const (
	LeadStatusNew          = "New"
	LeadStatusConnected    = "Connected"
	LeadStatusQualified    = "Qualified"
	LeadStatusDisqualified = "Disqualified"
	LeadStatusFollowUp     = "FollowUp"
)

// Lead is one row of the leads table, matching the CRM spreadsheet layout.
type Lead struct {
	ID                      int64      `json:"id"                        db:"id"`
	CRMID                   string     `json:"crm_id"                    db:"crm_id"`
	Name                    string     `json:"name"                      db:"name"`
	Email                   string     `json:"email"                     db:"email"`
	CountryCode             string     `json:"country_code"              db:"country_code"`
	Phone                   string     `json:"phone"                     db:"phone"`
	UnitType                string     `json:"unit_type"                 db:"unit_type"` // e.g. "2 bed"
	BudgetMin               *float64   `json:"budget_min"                db:"budget_min"`
	BudgetMax               *float64   `json:"budget_max"                db:"budget_max"`
	Status                  string     `json:"status"                    db:"status"`
	LastConversationDate    *time.Time `json:"last_conversation_date"    db:"last_conversation_date"`
	LastConversationSummary string     `json:"last_conversation_summary" db:"last_conversation_summary"`
	ProjectEnquired         string     `json:"project_enquired"          db:"project_enquired"`
	CreatedAt               time.Time  `json:"created_at"                db:"created_at"`
}

// ShortlistFilter narrows leads by project, budget envelope, unit types,
// status and last-conversation date range. Zero values mean "no filter".
type ShortlistFilter struct {
	ProjectEnquired string
	BudgetMin       *float64
	BudgetMax       *float64
	UnitTypes       []string
	Status          string
	DateFrom        *time.Time
	DateTo          *time.Time
}
