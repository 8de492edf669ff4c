// Package service holds the application logic that spans repositories:
// anchor get-or-create, date changes with reminder recompute, and the
// soft-delete cascade.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/example/concierge/internal/models"
	"github.com/example/concierge/internal/repository"
	"github.com/example/concierge/internal/rrule"
)

// DefaultCategoryName is assigned to anchors created implicitly while
// handling a reminder request.
const DefaultCategoryName = "General"

// ErrDateRequired is returned when an anchor must be created but no
// date was supplied for it.
var ErrDateRequired = errors.New("anchor date required to create a new anchor event")

// AnchorStore is the subset of the anchor repository the service uses.
type AnchorStore interface {
	Create(ctx context.Context, anchor *models.AnchorEvent) error
	GetByID(ctx context.Context, anchorID uuid.UUID) (*models.AnchorEvent, error)
	GetByTitle(ctx context.Context, personID uuid.UUID, title string) (*models.AnchorEvent, error)
	UpdateDates(ctx context.Context, anchorID uuid.UUID, dateValue time.Time, nextOccurrence *time.Time) error
	SoftDelete(ctx context.Context, anchorID uuid.UUID) error
}

type CategoryStore interface {
	FirstActiveByOrg(ctx context.Context, orgID uuid.UUID) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
}

type ReminderStore interface {
	Retry(ctx context.Context, ruleID uuid.UUID, now time.Time) error
	ListUnsentLeadTimeByAnchor(ctx context.Context, anchorID uuid.UUID) ([]*models.ReminderRule, error)
	UpdateScheduledAt(ctx context.Context, ruleID uuid.UUID, at time.Time) error
	SoftDelete(ctx context.Context, ruleID uuid.UUID) error
	SoftDeleteByAnchor(ctx context.Context, anchorID uuid.UUID) error
}

// TxRunner runs fn inside one database transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AnchorService struct {
	anchors    AnchorStore
	categories CategoryStore
	reminders  ReminderStore
	tx         TxRunner
	clock      clockwork.Clock
	defaultLoc *time.Location
	logger     *slog.Logger
}

func NewAnchorService(
	anchors AnchorStore,
	categories CategoryStore,
	reminders ReminderStore,
	tx TxRunner,
	clock clockwork.Clock,
	defaultLoc *time.Location,
	logger *slog.Logger,
) *AnchorService {
	return &AnchorService{
		anchors:    anchors,
		categories: categories,
		reminders:  reminders,
		tx:         tx,
		clock:      clock,
		defaultLoc: defaultLoc,
		logger:     logger,
	}
}

// LeadTimeSchedule computes the fire time of a lead-time rule: midnight of
// the day leadDays before the occurrence, in loc.
func LeadTimeSchedule(occurrence time.Time, leadDays int, loc *time.Location) time.Time {
	day := occurrence.AddDate(0, 0, -leadDays)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
}

// GetOrCreate returns the person's anchor with the given title, creating it
// when absent. Creation requires a date; recurrence and notes are optional.
// Looking up an existing anchor never modifies it, so repeated requests
// naming the same event converge on one row.
func (s *AnchorService) GetOrCreate(ctx context.Context, orgID, personID uuid.UUID, title string, dateValue *time.Time, recurrence, notes string) (*models.AnchorEvent, bool, error) {
	existing, err := s.anchors.GetByTitle(ctx, personID, title)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("look up anchor %q: %w", title, err)
	}

	if dateValue == nil {
		return nil, false, ErrDateRequired
	}

	category, err := s.defaultCategory(ctx, orgID)
	if err != nil {
		return nil, false, err
	}

	anchor := &models.AnchorEvent{
		AnchorEventID:  uuid.New(),
		OrgID:          orgID,
		PersonID:       personID,
		CategoryID:     category.CategoryID,
		Title:          title,
		DateValue:      *dateValue,
		RecurrenceRule: recurrence,
		Notes:          notes,
	}

	next, err := s.nextOccurrence(anchor)
	if err != nil {
		return nil, false, err
	}
	anchor.NextOccurrence = next

	if err := s.anchors.Create(ctx, anchor); err != nil {
		return nil, false, fmt.Errorf("create anchor %q: %w", title, err)
	}

	s.logger.Info("anchor created",
		"anchor_event_id", anchor.AnchorEventID,
		"title", title,
		"date_value", anchor.DateValue.Format("2006-01-02"))
	return anchor, true, nil
}

// UpdateDate changes the anchor's date and recomputes every unsent lead-time
// rule hanging off it, all in one transaction. Rules already sent keep their
// history; rules whose recomputed time is already past fire on the next scan.
func (s *AnchorService) UpdateDate(ctx context.Context, anchorID uuid.UUID, dateValue time.Time) (*models.AnchorEvent, error) {
	var updated *models.AnchorEvent

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		anchor, err := s.anchors.GetByID(ctx, anchorID)
		if err != nil {
			return fmt.Errorf("load anchor: %w", err)
		}

		anchor.DateValue = dateValue
		next, err := s.nextOccurrence(anchor)
		if err != nil {
			return err
		}
		anchor.NextOccurrence = next

		if err := s.anchors.UpdateDates(ctx, anchorID, dateValue, next); err != nil {
			return fmt.Errorf("update anchor dates: %w", err)
		}

		rules, err := s.reminders.ListUnsentLeadTimeByAnchor(ctx, anchorID)
		if err != nil {
			return fmt.Errorf("list lead-time rules: %w", err)
		}

		occurrence := anchor.OccurrenceDate()
		for _, rule := range rules {
			if rule.LeadTimeDays == nil {
				continue
			}
			at := LeadTimeSchedule(occurrence, *rule.LeadTimeDays, s.defaultLoc)
			if err := s.reminders.UpdateScheduledAt(ctx, rule.ReminderRuleID, at); err != nil {
				return fmt.Errorf("reschedule rule %s: %w", rule.ReminderRuleID, err)
			}
		}

		s.logger.Info("anchor date updated",
			"anchor_event_id", anchorID,
			"date_value", dateValue.Format("2006-01-02"),
			"rules_recomputed", len(rules))
		updated = anchor
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateDateByTitle is UpdateDate addressed the way users name events.
func (s *AnchorService) UpdateDateByTitle(ctx context.Context, personID uuid.UUID, title string, dateValue time.Time) (*models.AnchorEvent, error) {
	anchor, err := s.anchors.GetByTitle(ctx, personID, title)
	if err != nil {
		return nil, err
	}
	return s.UpdateDate(ctx, anchor.AnchorEventID, dateValue)
}

// DeleteByTitle resolves the person's anchor by title and deletes it with
// its attached rules.
func (s *AnchorService) DeleteByTitle(ctx context.Context, personID uuid.UUID, title string) error {
	anchor, err := s.anchors.GetByTitle(ctx, personID, title)
	if err != nil {
		return err
	}
	return s.Delete(ctx, anchor.AnchorEventID)
}

// Delete soft-deletes the anchor and every reminder rule attached to it.
func (s *AnchorService) Delete(ctx context.Context, anchorID uuid.UUID) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.anchors.SoftDelete(ctx, anchorID); err != nil {
			return fmt.Errorf("delete anchor: %w", err)
		}
		if err := s.reminders.SoftDeleteByAnchor(ctx, anchorID); err != nil {
			return fmt.Errorf("delete attached rules: %w", err)
		}
		s.logger.Info("anchor deleted", "anchor_event_id", anchorID)
		return nil
	})
}

// RetryReminder requeues a sent rule for immediate redelivery: the sent
// marker is cleared and the fire time becomes now.
func (s *AnchorService) RetryReminder(ctx context.Context, ruleID uuid.UUID) error {
	if err := s.reminders.Retry(ctx, ruleID, s.clock.Now().UTC()); err != nil {
		return err
	}
	s.logger.Info("reminder requeued", "reminder_rule_id", ruleID)
	return nil
}

// DeleteReminder soft-deletes a single rule.
func (s *AnchorService) DeleteReminder(ctx context.Context, ruleID uuid.UUID) error {
	return s.reminders.SoftDelete(ctx, ruleID)
}

// defaultCategory returns the org's first active category, creating
// "General" when the org has none yet.
func (s *AnchorService) defaultCategory(ctx context.Context, orgID uuid.UUID) (*models.Category, error) {
	category, err := s.categories.FirstActiveByOrg(ctx, orgID)
	if err == nil {
		return category, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("look up category: %w", err)
	}

	category = &models.Category{
		CategoryID:   uuid.New(),
		OrgID:        orgID,
		CategoryName: DefaultCategoryName,
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("create default category: %w", err)
	}
	return category, nil
}

// nextOccurrence derives the anchor's next occurrence. Non-recurring anchors
// carry no derived date; recurring ones get the first occurrence at or after
// now, or at or after the primary date when that is still in the future.
func (s *AnchorService) nextOccurrence(anchor *models.AnchorEvent) (*time.Time, error) {
	if !anchor.IsRecurring() {
		return nil, nil
	}

	after := s.clock.Now().In(s.defaultLoc)
	if anchor.DateValue.After(after) {
		after = anchor.DateValue
	}

	next, err := rrule.NextOccurrence(anchor.RecurrenceRule, anchor.DateValue, after)
	if err != nil {
		return nil, fmt.Errorf("recurrence rule for %q: %w", anchor.Title, err)
	}
	return next, nil
}
