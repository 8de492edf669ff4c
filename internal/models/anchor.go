package models

import (
	"time"

	"github.com/google/uuid"
)

// Category groups anchor events (birthdays, anniversaries, renewals, ...).
type Category struct {
	CategoryID   uuid.UUID  `json:"category_id"`
	OrgID        uuid.UUID  `json:"org_id"`
	CategoryName string     `json:"category_name"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at"`
}

// AnchorEvent is a dated item owned by one person. Lead-time reminder rules
// derive their fire time from the anchor's occurrence date.
type AnchorEvent struct {
	AnchorEventID  uuid.UUID  `json:"anchor_event_id"`
	OrgID          uuid.UUID  `json:"org_id"`
	PersonID       uuid.UUID  `json:"person_id"`
	CategoryID     uuid.UUID  `json:"category_id"`
	Title          string     `json:"title"`
	DateValue      time.Time  `json:"date_value"`       // calendar date, no time component
	RecurrenceRule string     `json:"recurrence_rule"`  // RFC 5545 RRULE, empty for one-off dates
	NextOccurrence *time.Time `json:"next_occurrence"`  // derived; equals DateValue when not recurring
	Notes          string     `json:"notes"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at"`
}

// IsRecurring returns true if this anchor has a recurrence rule.
func (a *AnchorEvent) IsRecurring() bool {
	return a.RecurrenceRule != ""
}

// OccurrenceDate is the date lead-time rules are computed against:
// the derived next occurrence when known, otherwise the primary date.
func (a *AnchorEvent) OccurrenceDate() time.Time {
	if a.NextOccurrence != nil {
		return *a.NextOccurrence
	}
	return a.DateValue
}
