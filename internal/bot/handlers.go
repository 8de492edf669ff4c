package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/example/concierge/internal/models"
	"github.com/example/concierge/internal/parser"
	"github.com/example/concierge/internal/repository"
)

// Notifier wakes the reminder scanner after a new rule is persisted.
type Notifier interface {
	Notify()
}

type PersonStore interface {
	Create(ctx context.Context, person *models.Person) error
	GetByID(ctx context.Context, personID uuid.UUID) (*models.Person, error)
	CreateIdentity(ctx context.Context, identity *models.CommIdentity) error
	FindByAddress(ctx context.Context, kind models.ChannelKind, address string) (*models.CommIdentity, error)
}

type ReminderLister interface {
	ListPendingByPerson(ctx context.Context, personID uuid.UUID) ([]*models.ReminderRule, error)
}

type ReminderAdmin interface {
	RetryReminder(ctx context.Context, ruleID uuid.UUID) error
	DeleteReminder(ctx context.Context, ruleID uuid.UUID) error
	UpdateDateByTitle(ctx context.Context, personID uuid.UUID, title string, dateValue time.Time) (*models.AnchorEvent, error)
	DeleteByTitle(ctx context.Context, personID uuid.UUID, title string) error
}

type MessageLister interface {
	GetOrCreateConversation(ctx context.Context, orgID, personID uuid.UUID, kind models.ChannelKind, subject string) (*models.Conversation, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.Message, error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Handlers struct {
	api        *tgbotapi.BotAPI
	parser     *parser.Parser
	people     PersonStore
	reminders  ReminderLister
	admin      ReminderAdmin
	messages   MessageLister
	tx         TxRunner
	notifier   Notifier
	defaultLoc *time.Location
	logger     *slog.Logger

	// listings maps a chat to the rule IDs of its last /list output, so
	// /delete and /retry can take the displayed ordinal.
	mu       sync.Mutex
	listings map[int64][]uuid.UUID
}

func NewHandlers(
	api *tgbotapi.BotAPI,
	p *parser.Parser,
	people PersonStore,
	reminders ReminderLister,
	admin ReminderAdmin,
	messages MessageLister,
	tx TxRunner,
	notifier Notifier,
	defaultLoc *time.Location,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		api:        api,
		parser:     p,
		people:     people,
		reminders:  reminders,
		admin:      admin,
		messages:   messages,
		tx:         tx,
		notifier:   notifier,
		defaultLoc: defaultLoc,
		logger:     logger,
		listings:   make(map[int64][]uuid.UUID),
	}
}

const helpText = `Tell me what to remind you about, in your own words:

• "remind me in 20 minutes to take the pizza out"
• "remind me tomorrow at 3pm about the dentist"
• "remind me 2 weeks before Mom's birthday, March 15"

Commands:
/list - show pending reminders
/delete N - delete reminder N from the last list
/retry N - resend reminder N right now
/reschedule <event> <YYYY-MM-DD> - move an event, reminders follow
/forget <event> - delete an event and its reminders
/history - recently delivered reminders
/help - this message`

func (h *Handlers) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		h.handleStart(ctx, msg)
	case "list":
		h.handleList(ctx, msg)
	case "delete":
		h.handleByOrdinal(ctx, msg, "delete")
	case "retry":
		h.handleByOrdinal(ctx, msg, "retry")
	case "reschedule":
		h.handleReschedule(ctx, msg)
	case "forget":
		h.handleForget(ctx, msg)
	case "history":
		h.handleHistory(ctx, msg)
	case "help":
		h.reply(msg.Chat.ID, helpText)
	default:
		h.reply(msg.Chat.ID, "I don't know that command. Try /help.")
	}
}

// HandleMessage treats any non-command text as a reminder request.
func (h *Handlers) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if strings.TrimSpace(msg.Text) == "" {
		return
	}

	person, err := h.ensurePerson(ctx, msg)
	if err != nil {
		h.logger.Error("resolve person", "chat_id", msg.Chat.ID, "error", err)
		h.reply(msg.Chat.ID, "Something went wrong on my side. Please try again.")
		return
	}

	result, err := h.parser.HandleRequest(ctx, person, msg.Text)
	if err != nil {
		h.logger.Error("handle reminder request", "person_id", person.PersonID, "error", err)
		h.reply(msg.Chat.ID, "Something went wrong saving that reminder. Please try again.")
		return
	}

	if result.Rule != nil {
		h.notifier.Notify()
	}
	h.reply(msg.Chat.ID, result.Reply)
}

func (h *Handlers) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	person, err := h.ensurePerson(ctx, msg)
	if err != nil {
		h.logger.Error("register person", "chat_id", msg.Chat.ID, "error", err)
		h.reply(msg.Chat.ID, "Something went wrong on my side. Please try again.")
		return
	}

	h.reply(msg.Chat.ID, fmt.Sprintf("Hi %s! I can remind you about things.\n\n%s",
		person.PreferredOrFullName(), helpText))
}

func (h *Handlers) handleList(ctx context.Context, msg *tgbotapi.Message) {
	person, err := h.ensurePerson(ctx, msg)
	if err != nil {
		h.logger.Error("resolve person", "chat_id", msg.Chat.ID, "error", err)
		return
	}

	rules, err := h.reminders.ListPendingByPerson(ctx, person.PersonID)
	if err != nil {
		h.logger.Error("list reminders", "person_id", person.PersonID, "error", err)
		h.reply(msg.Chat.ID, "I couldn't fetch your reminders. Please try again.")
		return
	}

	if len(rules) == 0 {
		h.reply(msg.Chat.ID, "You have no pending reminders.")
		return
	}

	loc, _ := person.Location(h.defaultLoc)
	ids := make([]uuid.UUID, 0, len(rules))
	var sb strings.Builder
	sb.WriteString("Pending reminders:\n")
	for i, rule := range rules {
		ids = append(ids, rule.ReminderRuleID)
		fmt.Fprintf(&sb, "%d. %s", i+1, rule.Action())
		if rule.ScheduledAt != nil {
			fmt.Fprintf(&sb, " — %s", rule.ScheduledAt.In(loc).Format("January 2 at 3:04 PM"))
		}
		sb.WriteString("\n")
	}

	h.mu.Lock()
	h.listings[msg.Chat.ID] = ids
	h.mu.Unlock()

	h.reply(msg.Chat.ID, sb.String())
}

// handleByOrdinal resolves "/delete 2" style commands against the chat's
// last listing.
func (h *Handlers) handleByOrdinal(ctx context.Context, msg *tgbotapi.Message, verb string) {
	n, err := strconv.Atoi(strings.TrimSpace(msg.CommandArguments()))
	if err != nil {
		h.reply(msg.Chat.ID, fmt.Sprintf("Usage: /%s N, where N is a number from /list.", verb))
		return
	}

	h.mu.Lock()
	ids := h.listings[msg.Chat.ID]
	h.mu.Unlock()

	if len(ids) == 0 {
		h.reply(msg.Chat.ID, "Run /list first so I know which reminder you mean.")
		return
	}
	if n < 1 || n > len(ids) {
		h.reply(msg.Chat.ID, fmt.Sprintf("Pick a number between 1 and %d.", len(ids)))
		return
	}
	ruleID := ids[n-1]

	switch verb {
	case "delete":
		err = h.admin.DeleteReminder(ctx, ruleID)
	case "retry":
		err = h.admin.RetryReminder(ctx, ruleID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.reply(msg.Chat.ID, "That reminder no longer exists. Run /list again.")
			return
		}
		h.logger.Error("reminder admin command", "verb", verb, "reminder_rule_id", ruleID, "error", err)
		h.reply(msg.Chat.ID, "Something went wrong. Please try again.")
		return
	}

	if verb == "retry" {
		h.notifier.Notify()
		h.reply(msg.Chat.ID, "On it, sending that reminder again now.")
		return
	}
	h.reply(msg.Chat.ID, "Deleted.")
}

const historyLimit = 10

func (h *Handlers) handleHistory(ctx context.Context, msg *tgbotapi.Message) {
	person, err := h.ensurePerson(ctx, msg)
	if err != nil {
		h.logger.Error("resolve person", "chat_id", msg.Chat.ID, "error", err)
		return
	}

	conv, err := h.messages.GetOrCreateConversation(ctx, person.OrgID, person.PersonID,
		models.ChannelChat, models.ReminderSubject)
	if err != nil {
		h.logger.Error("open reminder conversation", "person_id", person.PersonID, "error", err)
		h.reply(msg.Chat.ID, "I couldn't fetch your history. Please try again.")
		return
	}

	history, err := h.messages.ListByConversation(ctx, conv.ConversationID, historyLimit)
	if err != nil {
		h.logger.Error("list reminder history", "person_id", person.PersonID, "error", err)
		h.reply(msg.Chat.ID, "I couldn't fetch your history. Please try again.")
		return
	}

	if len(history) == 0 {
		h.reply(msg.Chat.ID, "No reminders have been delivered yet.")
		return
	}

	loc, _ := person.Location(h.defaultLoc)
	var sb strings.Builder
	sb.WriteString("Recently delivered:\n")
	for _, m := range history {
		fmt.Fprintf(&sb, "• %s — %s\n", m.CreatedAt.In(loc).Format("January 2 at 3:04 PM"), m.ContentText)
	}
	h.reply(msg.Chat.ID, sb.String())
}

// handleReschedule moves an anchor event to a new date; unsent lead-time
// reminders hanging off it are recomputed in the same transaction.
func (h *Handlers) handleReschedule(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		h.reply(msg.Chat.ID, "Usage: /reschedule <event> <YYYY-MM-DD>")
		return
	}

	title := strings.Join(args[:len(args)-1], " ")
	date, err := time.ParseInLocation("2006-01-02", args[len(args)-1], h.defaultLoc)
	if err != nil {
		h.reply(msg.Chat.ID, "I couldn't read that date. Use YYYY-MM-DD, like 2026-03-15.")
		return
	}

	person, err := h.ensurePerson(ctx, msg)
	if err != nil {
		h.logger.Error("resolve person", "chat_id", msg.Chat.ID, "error", err)
		return
	}

	anchor, err := h.admin.UpdateDateByTitle(ctx, person.PersonID, title, date)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.reply(msg.Chat.ID, fmt.Sprintf("I don't know an event called %q.", title))
			return
		}
		h.logger.Error("reschedule anchor", "title", title, "error", err)
		h.reply(msg.Chat.ID, "Something went wrong. Please try again.")
		return
	}

	h.notifier.Notify()
	h.reply(msg.Chat.ID, fmt.Sprintf("%s is now on %s. Your reminders have been moved with it.",
		anchor.Title, date.Format("January 2, 2006")))
}

func (h *Handlers) handleForget(ctx context.Context, msg *tgbotapi.Message) {
	title := strings.TrimSpace(msg.CommandArguments())
	if title == "" {
		h.reply(msg.Chat.ID, "Usage: /forget <event>")
		return
	}

	person, err := h.ensurePerson(ctx, msg)
	if err != nil {
		h.logger.Error("resolve person", "chat_id", msg.Chat.ID, "error", err)
		return
	}

	if err := h.admin.DeleteByTitle(ctx, person.PersonID, title); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.reply(msg.Chat.ID, fmt.Sprintf("I don't know an event called %q.", title))
			return
		}
		h.logger.Error("forget anchor", "title", title, "error", err)
		h.reply(msg.Chat.ID, "Something went wrong. Please try again.")
		return
	}

	h.reply(msg.Chat.ID, fmt.Sprintf("Forgot %s and its reminders.", title))
}

// ensurePerson resolves the sender to a person record, registering a new
// person with this chat as their primary channel on first contact.
func (h *Handlers) ensurePerson(ctx context.Context, msg *tgbotapi.Message) (*models.Person, error) {
	address := strconv.FormatInt(msg.Chat.ID, 10)

	identity, err := h.people.FindByAddress(ctx, models.ChannelChat, address)
	if err == nil {
		return h.people.GetByID(ctx, identity.PersonID)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	person := &models.Person{
		PersonID:      uuid.New(),
		OrgID:         uuid.New(),
		FullName:      strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName),
		PreferredName: msg.From.FirstName,
	}

	err = h.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := h.people.Create(ctx, person); err != nil {
			return fmt.Errorf("create person: %w", err)
		}
		return h.people.CreateIdentity(ctx, &models.CommIdentity{
			CommIdentityID: uuid.New(),
			OrgID:          person.OrgID,
			PersonID:       person.PersonID,
			ChannelKind:    models.ChannelChat,
			Address:        address,
			IsPrimary:      true,
		})
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("person registered", "person_id", person.PersonID, "chat_id", msg.Chat.ID)
	return person, nil
}

func (h *Handlers) reply(chatID int64, text string) {
	if _, err := h.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.logger.Error("send telegram reply", "chat_id", chatID, "error", err)
	}
}
