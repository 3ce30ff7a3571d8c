// Package leads holds the lead and activity records served by the CRM API.
package leads

import "time"

// Lead pipeline statuses.
const (
	StatusNew         = "new"
	StatusContacted   = "contacted"
	StatusQualified   = "qualified"
	StatusNegotiation = "negotiation"
	StatusClosed      = "closed"
	StatusLost        = "lost"
)

// Activity types.
const (
	ActivityCall    = "call"
	ActivityEmail   = "email"
	ActivityMeeting = "meeting"
	ActivityNote    = "note"
)

// Lead is a single sales lead. Leads are soft-deleted: DELETE flips IsActive
// to false and a restore call brings the record back.
type Lead struct {
	ID               int64     `json:"id"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	FullName         string    `json:"full_name,omitempty"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone,omitempty"`
	Status           string    `json:"status"`
	Source           string    `json:"source,omitempty"`
	BudgetMin        *int64    `json:"budget_min,omitempty"`
	BudgetMax        *int64    `json:"budget_max,omitempty"`
	PropertyInterest string    `json:"property_interest,omitempty"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewLead is the writable subset used to create a lead.
type NewLead struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone,omitempty"`
	Status           string `json:"status,omitempty"`
	Source           string `json:"source,omitempty"`
	BudgetMin        *int64 `json:"budget_min,omitempty"`
	BudgetMax        *int64 `json:"budget_max,omitempty"`
	PropertyInterest string `json:"property_interest,omitempty"`
}

// LeadPatch is a partial lead update; nil fields are left untouched.
type LeadPatch struct {
	FirstName        *string `json:"first_name,omitempty"`
	LastName         *string `json:"last_name,omitempty"`
	Email            *string `json:"email,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	Status           *string `json:"status,omitempty"`
	Source           *string `json:"source,omitempty"`
	BudgetMin        *int64  `json:"budget_min,omitempty"`
	BudgetMax        *int64  `json:"budget_max,omitempty"`
	PropertyInterest *string `json:"property_interest,omitempty"`
}

// Activity is a logged touchpoint against a lead.
type Activity struct {
	ID           int64     `json:"id"`
	LeadID       int64     `json:"lead_id"`
	UserID       int64     `json:"user_id"`
	UserUsername string    `json:"user_username,omitempty"`
	ActivityType string    `json:"activity_type"`
	Title        string    `json:"title"`
	Notes        string    `json:"notes,omitempty"`
	Duration     *int64    `json:"duration,omitempty"` // minutes
	ActivityDate time.Time `json:"activity_date"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewActivity is the writable subset used to log an activity.
type NewActivity struct {
	ActivityType string    `json:"activity_type"`
	Title        string    `json:"title"`
	Notes        string    `json:"notes,omitempty"`
	Duration     *int64    `json:"duration,omitempty"`
	ActivityDate time.Time `json:"activity_date"`
}

// ActivityPatch is a partial activity update; nil fields are left untouched.
type ActivityPatch struct {
	ActivityType *string    `json:"activity_type,omitempty"`
	Title        *string    `json:"title,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
	Duration     *int64     `json:"duration,omitempty"`
	ActivityDate *time.Time `json:"activity_date,omitempty"`
}
