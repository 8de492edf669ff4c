package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ReminderType distinguishes fixed-instant rules from anchor-relative ones.
type ReminderType string

const (
	// ReminderScheduled fires at a user-specified absolute instant.
	ReminderScheduled ReminderType = "scheduled"
	// ReminderLeadTime fires N days before its anchor event's occurrence.
	ReminderLeadTime ReminderType = "lead_time"
)

// RuleMetadata is the free-form payload stored with a rule: the
// human-readable action plus full parse provenance.
type RuleMetadata struct {
	Action      string          `json:"action"`
	CreatedBy   string          `json:"created_by,omitempty"`
	UserRequest json.RawMessage `json:"user_request,omitempty"`
	ChannelKind string          `json:"channel_kind,omitempty"`
}

// ReminderRule is one durable scheduled notification.
//
// Exactly one of the two shapes holds: ScheduledAt user-specified
// (type scheduled), or ScheduledAt derived from LeadTimeDays and the
// anchor's occurrence date (type lead_time).
type ReminderRule struct {
	ReminderRuleID   uuid.UUID    `json:"reminder_rule_id"`
	OrgID            uuid.UUID    `json:"org_id"`
	AnchorEventID    *uuid.UUID   `json:"anchor_event_id"` // nil => standalone reminder
	CommIdentityID   uuid.UUID    `json:"comm_identity_id"`
	ReminderType     ReminderType `json:"reminder_type"`
	LeadTimeDays     *int         `json:"lead_time_days"` // present iff type lead_time
	ScheduledAt      *time.Time   `json:"scheduled_at"`
	SentAt           *time.Time   `json:"sent_at"`
	DeliveryAttempts int          `json:"delivery_attempts"`
	Metadata         RuleMetadata `json:"metadata"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	DeletedAt        *time.Time   `json:"deleted_at"`
}

// Due reports whether the rule should fire: unsent and past its fire time.
func (r *ReminderRule) Due(now time.Time) bool {
	return r.SentAt == nil && r.ScheduledAt != nil && !r.ScheduledAt.After(now)
}

// IsLeadTime returns true for anchor-relative rules.
func (r *ReminderRule) IsLeadTime() bool {
	return r.ReminderType == ReminderLeadTime
}

// Action returns the human-readable description of what to remind about.
func (r *ReminderRule) Action() string {
	if r.Metadata.Action != "" {
		return r.Metadata.Action
	}
	return "Reminder"
}
