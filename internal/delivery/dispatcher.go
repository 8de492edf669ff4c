package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/example/concierge/internal/models"
	"github.com/example/concierge/internal/oracle"
)

type IdentityStore interface {
	GetIdentityByID(ctx context.Context, identityID uuid.UUID) (*models.CommIdentity, error)
	GetByID(ctx context.Context, personID uuid.UUID) (*models.Person, error)
}

type AnchorStore interface {
	GetByID(ctx context.Context, anchorID uuid.UUID) (*models.AnchorEvent, error)
}

// MessageStore records the outbound message in the person's reminder
// conversation.
type MessageStore interface {
	GetOrCreateConversation(ctx context.Context, orgID, personID uuid.UUID, kind models.ChannelKind, subject string) (*models.Conversation, error)
	Insert(ctx context.Context, msg *models.Message) error
}

const renderSystemPrompt = `You write one short, warm reminder message for a
concierge assistant. Address the person by name when given one. State what
the reminder is about; for reminders ahead of a dated event, mention the
event and its date. One or two sentences, no preamble, no sign-off.`

// Dispatcher turns a due rule into delivered message text. Rendering
// degrades to a plain fallback when the oracle is unavailable; a reminder
// is never held hostage by the text generator.
type Dispatcher struct {
	people   IdentityStore
	anchors  AnchorStore
	messages MessageStore
	oracle   oracle.Oracle // nil when no model is configured
	adapters map[models.ChannelKind]Adapter
	logger   *slog.Logger
}

func NewDispatcher(
	people IdentityStore,
	anchors AnchorStore,
	messages MessageStore,
	o oracle.Oracle,
	adapters map[models.ChannelKind]Adapter,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		people:   people,
		anchors:  anchors,
		messages: messages,
		oracle:   o,
		adapters: adapters,
		logger:   logger,
	}
}

// Dispatch resolves the rule's delivery identity, renders the message and
// sends it. Any returned error means the send cannot be confirmed and the
// scanner should retry.
func (d *Dispatcher) Dispatch(ctx context.Context, rule *models.ReminderRule) error {
	identity, err := d.people.GetIdentityByID(ctx, rule.CommIdentityID)
	if err != nil {
		return fmt.Errorf("resolve delivery identity: %w", err)
	}

	person, err := d.people.GetByID(ctx, identity.PersonID)
	if err != nil {
		return fmt.Errorf("resolve person: %w", err)
	}

	var anchor *models.AnchorEvent
	if rule.AnchorEventID != nil {
		anchor, err = d.anchors.GetByID(ctx, *rule.AnchorEventID)
		if err != nil {
			return fmt.Errorf("resolve anchor event: %w", err)
		}
	}

	adapter, ok := d.adapters[identity.ChannelKind]
	if !ok {
		return fmt.Errorf("no adapter for channel %q", identity.ChannelKind)
	}

	message := d.render(ctx, person, rule, anchor)

	if err := adapter.Send(ctx, identity.Address, message); err != nil {
		return fmt.Errorf("send on %s: %w", identity.ChannelKind, err)
	}

	d.recordOutbound(ctx, identity, message)
	return nil
}

func (d *Dispatcher) render(ctx context.Context, person *models.Person, rule *models.ReminderRule, anchor *models.AnchorEvent) string {
	fallback := fallbackMessage(rule, anchor)
	if d.oracle == nil {
		return fallback
	}

	prompt := fmt.Sprintf("Person's name: %s\nReminder: %s", person.PreferredOrFullName(), rule.Action())
	if anchor != nil {
		prompt += fmt.Sprintf("\nEvent: %s on %s",
			anchor.Title, anchor.OccurrenceDate().Format("January 2, 2006"))
	}

	text, err := d.oracle.Render(ctx, renderSystemPrompt, prompt)
	if err != nil || text == "" {
		d.logger.Warn("reminder rendering failed, using fallback",
			"reminder_rule_id", rule.ReminderRuleID, "error", err)
		return fallback
	}
	return text
}

func fallbackMessage(rule *models.ReminderRule, anchor *models.AnchorEvent) string {
	msg := "Reminder: " + rule.Action()
	if anchor != nil {
		msg += fmt.Sprintf(" (%s on %s)", anchor.Title, anchor.OccurrenceDate().Format("January 2, 2006"))
	}
	return msg
}

// recordOutbound logs the sent message into the person's reminder
// conversation. The reminder already went out, so failures here are
// logged and swallowed; failing the dispatch would cause a duplicate send.
func (d *Dispatcher) recordOutbound(ctx context.Context, identity *models.CommIdentity, text string) {
	conv, err := d.messages.GetOrCreateConversation(ctx,
		identity.OrgID, identity.PersonID, identity.ChannelKind, models.ReminderSubject)
	if err != nil {
		d.logger.Warn("open reminder conversation", "person_id", identity.PersonID, "error", err)
		return
	}

	err = d.messages.Insert(ctx, &models.Message{
		MessageID:      uuid.New(),
		OrgID:          identity.OrgID,
		ConversationID: conv.ConversationID,
		Direction:      "outbound",
		AgentName:      "reminder",
		ContentText:    text,
	})
	if err != nil {
		d.logger.Warn("record outbound reminder", "person_id", identity.PersonID, "error", err)
	}
}
