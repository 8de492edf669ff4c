// Package parser turns one free-text reminder request into a persisted
// ReminderRule, or into a reply asking the user to clarify. It owns all
// validation of the candidate send time; the oracle's output is never
// trusted blindly.
package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/example/concierge/internal/models"
	"github.com/example/concierge/internal/oracle"
	"github.com/example/concierge/internal/repository"
	"github.com/example/concierge/internal/service"
	"github.com/example/concierge/internal/timeres"
)

const (
	// pastGrace tolerates clock skew between the requester and this host.
	pastGrace = time.Minute
	// maxFutureDays caps how far ahead a reminder may be scheduled.
	maxFutureDays = 365

	createdBy = "assistant"
)

// ErrNoCommIdentity means the person has no deliverable address, so no
// reminder rule can target them.
var ErrNoCommIdentity = errors.New("person has no comm identity")

// relativeTokens flag a scheduled_datetime the oracle failed to make
// absolute. An ISO-8601 instant contains none of these words.
var relativeTokens = []string{
	"in ", "minute", "hour", "tomorrow", "today", "tonight",
	"next ", "later", "noon", "midnight", "week",
}

// Replies for each validation failure. Distinct on purpose so the user
// learns what to fix rather than getting one generic error.
const (
	replyRephrase = "I couldn't work out when to send that reminder. " +
		"Could you rephrase it with a specific time, like \"remind me at 3pm tomorrow\"?"
	replyNoTime = "I got what to remind you about, but not when. " +
		"When should I send it?"
	replyNotAbsolute = "I couldn't pin down the exact time you meant. " +
		"Could you give me a specific date and time?"
	replyUnreadableTime = "I couldn't read the time for that reminder. " +
		"Could you state it differently, with a date and a time of day?"
	replyInPast = "That time has already passed, so the reminder would never be sent. " +
		"Did you mean a time in the future?"
	replyTooFar = "I can only schedule reminders up to a year ahead. " +
		"Could you pick a closer date?"
	replyBadLeadDays = "I need to know how many days before the event to remind you. " +
		"For example: \"remind me 2 weeks before\"."
	replyNoAnchorTitle = "I need to know which event that reminder is for. " +
		"What is the event called?"
	replyNoAnchorDate = "I don't have a date for that event yet. " +
		"When is it?"
	replyNoIdentity = "I don't have a way to reach you for reminders yet. " +
		"Please set up a contact channel first."
	replyNoOracle = "Natural-language reminders aren't set up on this deployment yet."
)

// AnchorProvider resolves or creates the anchor event a lead-time rule
// hangs off.
type AnchorProvider interface {
	GetOrCreate(ctx context.Context, orgID, personID uuid.UUID, title string, dateValue *time.Time, recurrence, notes string) (*models.AnchorEvent, bool, error)
}

type IdentityStore interface {
	PrimaryIdentity(ctx context.Context, personID uuid.UUID) (*models.CommIdentity, error)
}

type RuleStore interface {
	Create(ctx context.Context, rule *models.ReminderRule) error
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Result is the outcome of one request: Reply always carries the text to
// send back; Rule is set only when a reminder was actually persisted.
type Result struct {
	Rule  *models.ReminderRule
	Reply string
}

type Parser struct {
	oracle     oracle.Oracle
	anchors    AnchorProvider
	identities IdentityStore
	rules      RuleStore
	tx         TxRunner
	clock      clockwork.Clock
	defaultLoc *time.Location
	logger     *slog.Logger
}

func New(
	o oracle.Oracle,
	anchors AnchorProvider,
	identities IdentityStore,
	rules RuleStore,
	tx TxRunner,
	clock clockwork.Clock,
	defaultLoc *time.Location,
	logger *slog.Logger,
) *Parser {
	return &Parser{
		oracle:     o,
		anchors:    anchors,
		identities: identities,
		rules:      rules,
		tx:         tx,
		clock:      clock,
		defaultLoc: defaultLoc,
		logger:     logger,
	}
}

// HandleRequest parses the person's free-text request and persists the
// resulting rule. Validation failures and oracle trouble come back as a
// user-facing Reply, never as an error; errors are reserved for the
// persistence layer.
func (p *Parser) HandleRequest(ctx context.Context, person *models.Person, text string) (*Result, error) {
	if p.oracle == nil {
		return &Result{Reply: replyNoOracle}, nil
	}

	loc, known := person.Location(p.defaultLoc)
	if !known && person.Timezone != "" {
		p.logger.Warn("unknown person timezone, using default",
			"person_id", person.PersonID, "timezone", person.Timezone)
	}
	now := p.clock.Now().In(loc)

	parsed, err := p.oracle.ParseReminder(ctx, now, loc.String(), text)
	if err != nil {
		p.logger.Warn("oracle parse failed", "person_id", person.PersonID, "error", err)
		return &Result{Reply: replyRephrase}, nil
	}

	if parsed.NeedsClarification {
		reply := parsed.ClarificationQuestion
		if reply == "" {
			reply = replyRephrase
		}
		return &Result{Reply: reply}, nil
	}

	switch parsed.ReminderType {
	case string(models.ReminderScheduled):
		return p.handleScheduled(ctx, person, parsed, now, loc)
	case string(models.ReminderLeadTime):
		return p.handleLeadTime(ctx, person, parsed, loc)
	default:
		p.logger.Warn("oracle returned unknown reminder type",
			"person_id", person.PersonID, "reminder_type", parsed.ReminderType)
		return &Result{Reply: replyRephrase}, nil
	}
}

func (p *Parser) handleScheduled(ctx context.Context, person *models.Person, parsed *oracle.ParseResult, now time.Time, loc *time.Location) (*Result, error) {
	scheduledAt, reply := resolveScheduled(parsed, now)
	if reply != "" {
		return &Result{Reply: reply}, nil
	}

	rule := &models.ReminderRule{
		ReminderRuleID: uuid.New(),
		OrgID:          person.OrgID,
		ReminderType:   models.ReminderScheduled,
		ScheduledAt:    &scheduledAt,
		Metadata: models.RuleMetadata{
			Action:      parsed.Action,
			CreatedBy:   createdBy,
			UserRequest: parsed.Raw,
		},
	}

	err := p.tx.RunInTx(ctx, func(ctx context.Context) error {
		identity, err := p.identities.PrimaryIdentity(ctx, person.PersonID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNoCommIdentity
		}
		if err != nil {
			return fmt.Errorf("resolve delivery identity: %w", err)
		}
		rule.CommIdentityID = identity.CommIdentityID
		rule.Metadata.ChannelKind = string(identity.ChannelKind)

		if parsed.AnchorTitle != "" {
			anchor, _, err := p.anchors.GetOrCreate(ctx, person.OrgID, person.PersonID,
				parsed.AnchorTitle, anchorDate(parsed, loc), "", parsed.Notes)
			if err != nil && !errors.Is(err, service.ErrDateRequired) {
				return err
			}
			if anchor != nil {
				rule.AnchorEventID = &anchor.AnchorEventID
			}
		}

		return p.rules.Create(ctx, rule)
	})
	if err != nil {
		if reply := userReply(err); reply != "" {
			return &Result{Reply: reply}, nil
		}
		return nil, err
	}

	p.logger.Info("scheduled reminder created",
		"reminder_rule_id", rule.ReminderRuleID,
		"person_id", person.PersonID,
		"scheduled_at", scheduledAt.Format(time.RFC3339))

	return &Result{
		Rule:  rule,
		Reply: fmt.Sprintf("Got it. I'll remind you about %s %s.", parsed.Action, whenPhrase(scheduledAt, now, loc)),
	}, nil
}

func (p *Parser) handleLeadTime(ctx context.Context, person *models.Person, parsed *oracle.ParseResult, loc *time.Location) (*Result, error) {
	if parsed.LeadTimeDays < 1 {
		return &Result{Reply: replyBadLeadDays}, nil
	}
	if parsed.AnchorTitle == "" {
		return &Result{Reply: replyNoAnchorTitle}, nil
	}

	rule := &models.ReminderRule{
		ReminderRuleID: uuid.New(),
		OrgID:          person.OrgID,
		ReminderType:   models.ReminderLeadTime,
		LeadTimeDays:   &parsed.LeadTimeDays,
		Metadata: models.RuleMetadata{
			Action:      parsed.Action,
			CreatedBy:   createdBy,
			UserRequest: parsed.Raw,
		},
	}

	var scheduledAt time.Time
	err := p.tx.RunInTx(ctx, func(ctx context.Context) error {
		identity, err := p.identities.PrimaryIdentity(ctx, person.PersonID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNoCommIdentity
		}
		if err != nil {
			return fmt.Errorf("resolve delivery identity: %w", err)
		}
		rule.CommIdentityID = identity.CommIdentityID
		rule.Metadata.ChannelKind = string(identity.ChannelKind)

		anchor, _, err := p.anchors.GetOrCreate(ctx, person.OrgID, person.PersonID,
			parsed.AnchorTitle, anchorDate(parsed, loc), "", parsed.Notes)
		if err != nil {
			return err
		}
		rule.AnchorEventID = &anchor.AnchorEventID

		scheduledAt = service.LeadTimeSchedule(anchor.OccurrenceDate(), parsed.LeadTimeDays, p.defaultLoc)
		rule.ScheduledAt = &scheduledAt

		return p.rules.Create(ctx, rule)
	})
	if err != nil {
		if reply := userReply(err); reply != "" {
			return &Result{Reply: reply}, nil
		}
		return nil, err
	}

	p.logger.Info("lead-time reminder created",
		"reminder_rule_id", rule.ReminderRuleID,
		"person_id", person.PersonID,
		"lead_time_days", parsed.LeadTimeDays,
		"scheduled_at", scheduledAt.Format(time.RFC3339))

	return &Result{
		Rule: rule,
		Reply: fmt.Sprintf("Got it. I'll remind you about %s %d days ahead, on %s.",
			parsed.AnchorTitle, parsed.LeadTimeDays, scheduledAt.In(loc).Format("January 2, 2006")),
	}, nil
}

// resolveScheduled turns the oracle's output into the send instant,
// applying the delta arithmetic when given one and the full validation
// chain either way. A non-empty reply means rejection.
func resolveScheduled(parsed *oracle.ParseResult, now time.Time) (time.Time, string) {
	var (
		candidate time.Time
		err       error
	)

	switch {
	case parsed.DeltaMinutes > 0:
		candidate, err = timeres.Resolve(now, timeres.Minutes(parsed.DeltaMinutes))
	case parsed.DeltaHours > 0:
		candidate, err = timeres.Resolve(now, timeres.Hours(parsed.DeltaHours))
	case parsed.DeltaDays > 0:
		candidate, err = timeres.Resolve(now, timeres.Days(parsed.DeltaDays))
	case parsed.ScheduledDatetime == "":
		return time.Time{}, replyNoTime
	default:
		lower := strings.ToLower(parsed.ScheduledDatetime)
		for _, token := range relativeTokens {
			if strings.Contains(lower, token) {
				return time.Time{}, replyNotAbsolute
			}
		}
		candidate, err = time.Parse(time.RFC3339, parsed.ScheduledDatetime)
	}
	if err != nil {
		return time.Time{}, replyUnreadableTime
	}

	if candidate.Before(now.Add(-pastGrace)) {
		return time.Time{}, replyInPast
	}
	if candidate.After(now.AddDate(0, 0, maxFutureDays)) {
		return time.Time{}, replyTooFar
	}
	return candidate, ""
}

// anchorDate extracts the event date the oracle reported, interpreted in
// the requester's location. Nil when the user never stated one.
func anchorDate(parsed *oracle.ParseResult, loc *time.Location) *time.Time {
	if parsed.DateValue == "" {
		return nil
	}
	d, err := time.ParseInLocation("2006-01-02", parsed.DateValue, loc)
	if err != nil {
		return nil
	}
	return &d
}

// whenPhrase matches how people talk about near and far times: minutes
// count for anything under an hour, an explicit date and time otherwise.
func whenPhrase(at, now time.Time, loc *time.Location) string {
	diff := at.Sub(now)
	if diff < time.Hour {
		minutes := int(diff.Round(time.Minute) / time.Minute)
		if minutes <= 1 {
			return "in 1 minute"
		}
		return fmt.Sprintf("in %d minutes", minutes)
	}
	return "on " + at.In(loc).Format("January 2 at 3:04 PM")
}

// userReply maps known persistence failures to a user-facing message.
// Empty means the error is internal and should propagate.
func userReply(err error) string {
	switch {
	case errors.Is(err, service.ErrDateRequired):
		return replyNoAnchorDate
	case errors.Is(err, ErrNoCommIdentity):
		return replyNoIdentity
	default:
		return ""
	}
}
