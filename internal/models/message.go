package models

import (
	"time"

	"github.com/google/uuid"
)

// ReminderSubject is the subject of the conversation that collects
// outbound reminder messages for a person on a channel.
const ReminderSubject = "Reminders"

type Conversation struct {
	ConversationID uuid.UUID   `json:"conversation_id"`
	OrgID          uuid.UUID   `json:"org_id"`
	PersonID       uuid.UUID   `json:"person_id"`
	ChannelKind    ChannelKind `json:"channel_kind"`
	Subject        string      `json:"subject"`
	Status         string      `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	DeletedAt      *time.Time  `json:"deleted_at"`
}

// Message is one entry in a conversation's history. Outbound reminder
// messages are persisted here so future oracle context windows see what
// was already sent.
type Message struct {
	MessageID      uuid.UUID `json:"message_id"`
	OrgID          uuid.UUID `json:"org_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Direction      string    `json:"direction"` // inbound | outbound
	AgentName      string    `json:"agent_name"`
	ContentText    string    `json:"content_text"`
	CreatedAt      time.Time `json:"created_at"`
}
