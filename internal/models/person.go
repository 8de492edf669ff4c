package models

import (
	"time"

	"github.com/google/uuid"
)

type Person struct {
	PersonID      uuid.UUID  `json:"person_id"`
	OrgID         uuid.UUID  `json:"org_id"`
	FullName      string     `json:"full_name"`
	PreferredName string     `json:"preferred_name"`
	Timezone      string     `json:"timezone"` // IANA name, e.g. "America/New_York"
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at"`
}

// Location resolves the person's timezone, falling back to the given default
// when the stored name is empty or unknown.
func (p *Person) Location(fallback *time.Location) (*time.Location, bool) {
	if p.Timezone == "" {
		return fallback, false
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return fallback, false
	}
	return loc, true
}

// PreferredOrFullName returns the name to address the person by.
func (p *Person) PreferredOrFullName() string {
	if p.PreferredName != "" {
		return p.PreferredName
	}
	return p.FullName
}

// ChannelKind identifies the outbound delivery channel of a CommIdentity.
type ChannelKind string

const (
	ChannelChat  ChannelKind = "chat"
	ChannelEmail ChannelKind = "email"
	ChannelSMS   ChannelKind = "sms"
)

// CommIdentity is a deliverable address (chat id, email address, phone
// number) owned by exactly one person. Every reminder rule targets one.
type CommIdentity struct {
	CommIdentityID uuid.UUID   `json:"comm_identity_id"`
	OrgID          uuid.UUID   `json:"org_id"`
	PersonID       uuid.UUID   `json:"person_id"`
	ChannelKind    ChannelKind `json:"channel_kind"`
	Address        string      `json:"address"`
	IsPrimary      bool        `json:"is_primary"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	DeletedAt      *time.Time  `json:"deleted_at"`
}
