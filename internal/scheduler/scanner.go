// Package scheduler polls for due reminder rules and hands them to the
// dispatcher. Delivery is at-least-once: a rule is marked sent only after
// a successful dispatch, and the mark is conditional so concurrent sweeps
// cannot double-mark.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/example/concierge/internal/models"
)

// ReminderStore is the persistence surface the scanner sweeps against.
type ReminderStore interface {
	Due(ctx context.Context, now time.Time) ([]*models.ReminderRule, error)
	MarkSent(ctx context.Context, ruleID uuid.UUID, at time.Time) (bool, error)
	IncrementAttempts(ctx context.Context, ruleID uuid.UUID) error
}

// Dispatcher renders and sends one reminder.
type Dispatcher interface {
	Dispatch(ctx context.Context, rule *models.ReminderRule) error
}

type Scanner struct {
	store           ReminderStore
	dispatcher      Dispatcher
	clock           clockwork.Clock
	interval        time.Duration
	dispatchTimeout time.Duration
	maxAttempts     int
	concurrency     int
	notify          chan struct{}
	logger          *slog.Logger
}

func NewScanner(
	store ReminderStore,
	dispatcher Dispatcher,
	clock clockwork.Clock,
	interval, dispatchTimeout time.Duration,
	maxAttempts, concurrency int,
	logger *slog.Logger,
) *Scanner {
	return &Scanner{
		store:           store,
		dispatcher:      dispatcher,
		clock:           clock,
		interval:        interval,
		dispatchTimeout: dispatchTimeout,
		maxAttempts:     maxAttempts,
		concurrency:     concurrency,
		notify:          make(chan struct{}, 1),
		logger:          logger,
	}
}

// Notify wakes the scanner ahead of its next tick, so a reminder created
// for the immediate future does not wait a full interval. Never blocks.
func (s *Scanner) Notify() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Start runs the polling loop until ctx is cancelled.
func (s *Scanner) Start(ctx context.Context) {
	s.logger.Info("reminder scanner started", "interval", s.interval)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder scanner stopped")
			return
		case <-ticker.Chan():
			s.sweep(ctx)
		case <-s.notify:
			s.sweep(ctx)
		}
	}
}

// sweep fetches everything due right now and dispatches with bounded
// concurrency. One rule's failure never affects its siblings.
func (s *Scanner) sweep(ctx context.Context) {
	now := s.clock.Now().UTC()

	rules, err := s.store.Due(ctx, now)
	if err != nil {
		s.logger.Error("fetch due reminders", "error", err)
		return
	}
	if len(rules) == 0 {
		return
	}
	s.logger.Info("due reminders found", "count", len(rules))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, rule := range rules {
		rule := rule
		g.Go(func() error {
			s.dispatchOne(ctx, rule)
			return nil
		})
	}
	g.Wait()
}

func (s *Scanner) dispatchOne(ctx context.Context, rule *models.ReminderRule) {
	logger := s.logger.With("reminder_rule_id", rule.ReminderRuleID)

	if rule.DeliveryAttempts >= s.maxAttempts {
		logger.Warn("reminder abandoned after repeated failures",
			"attempts", rule.DeliveryAttempts)
		return
	}

	dctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	err := s.dispatcher.Dispatch(dctx, rule)
	cancel()
	if err != nil {
		logger.Error("dispatch failed, will retry next sweep", "error", err)
		if err := s.store.IncrementAttempts(ctx, rule.ReminderRuleID); err != nil {
			logger.Error("record delivery attempt", "error", err)
		}
		return
	}

	sent, err := s.store.MarkSent(ctx, rule.ReminderRuleID, s.clock.Now().UTC())
	if err != nil {
		// The reminder went out but the mark did not land; the next sweep
		// re-sends. At-least-once, by contract.
		logger.Error("mark sent failed", "error", err)
		return
	}
	if !sent {
		logger.Warn("reminder already marked sent by a concurrent sweep")
		return
	}
	logger.Info("reminder delivered")
}
