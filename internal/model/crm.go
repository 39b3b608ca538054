package model

import "time"

// Contact is a customer record in a tenant's CRM.
type Contact struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email,omitempty" db:"email"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	Address   string    `json:"address,omitempty" db:"address"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Lead pipeline statuses. A lead moves new -> contacted -> quoted and
// terminates in won or lost.
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusQuoted    = "quoted"
	LeadStatusWon       = "won"
	LeadStatusLost      = "lost"
)

// LeadStatuses lists the valid pipeline states in order.
var LeadStatuses = []string{
	LeadStatusNew,
	LeadStatusContacted,
	LeadStatusQuoted,
	LeadStatusWon,
	LeadStatusLost,
}

// ValidLeadStatus reports whether s is a known pipeline state.
func ValidLeadStatus(s string) bool {
	for _, known := range LeadStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Lead is a prospective job captured from a call, form, or assistant
// conversation.
type Lead struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email,omitempty" db:"email"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	Source    string    `json:"source,omitempty" db:"source"`
	Status    string    `json:"status" db:"status"`
	Notes     string    `json:"notes,omitempty" db:"notes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Event is a calendar entry: a booked meeting, site visit, or job slot.
// StartAt/EndAt are stored as UTC unix seconds for portable range queries.
type Event struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	ContactID string    `json:"contact_id,omitempty" db:"contact_id"`
	Title     string    `json:"title" db:"title"`
	StartAt   int64     `json:"start_at" db:"start_at"`
	EndAt     int64     `json:"end_at" db:"end_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Start returns the event start as a time.Time in UTC.
func (e *Event) Start() time.Time { return time.Unix(e.StartAt, 0).UTC() }

// End returns the event end as a time.Time in UTC.
func (e *Event) End() time.Time { return time.Unix(e.EndAt, 0).UTC() }
