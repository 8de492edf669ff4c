// Package oracle wraps the text-generation model behind a narrow interface.
// Consumers must treat its output as potentially malformed: ParseResult
// decoding degrades to an error the caller turns into a clarification, and
// never into a crash.
package oracle

import (
	"context"
	"encoding/json"
	"time"
)

// ParseResult is the strictly-typed outcome of parsing one reminder request.
type ParseResult struct {
	Action            string `json:"action"`
	ReminderType      string `json:"reminder_type"` // scheduled | lead_time
	ScheduledDatetime string `json:"scheduled_datetime,omitempty"`

	// Exactly one of the delta fields is set instead of ScheduledDatetime
	// when the request is a plain offset from now ("in 5 minutes"); the
	// caller performs the arithmetic against its own anchor instant.
	DeltaMinutes int `json:"delta_minutes,omitempty"`
	DeltaHours   int `json:"delta_hours,omitempty"`
	DeltaDays    int `json:"delta_days,omitempty"`

	LeadTimeDays          int    `json:"lead_time_days,omitempty"`
	AnchorTitle           string `json:"date_item_title,omitempty"`
	CreateAnchor          bool   `json:"create_date_item,omitempty"`
	DateValue             string `json:"date_value,omitempty"` // YYYY-MM-DD
	Notes                 string `json:"notes,omitempty"`
	NeedsClarification    bool   `json:"needs_clarification"`
	ClarificationQuestion string `json:"clarification_question,omitempty"`

	// Raw is the model's verbatim structured output, kept for provenance.
	Raw json.RawMessage `json:"-"`
}

// Oracle is the text-generation collaborator consumed by the parser and the
// delivery dispatcher.
type Oracle interface {
	// ParseReminder turns one free-text reminder request into a structured
	// result, given the requester's local "now" and timezone name.
	ParseReminder(ctx context.Context, now time.Time, timezone, userText string) (*ParseResult, error)

	// Render produces free-form message text from a system instruction and
	// a prompt.
	Render(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
