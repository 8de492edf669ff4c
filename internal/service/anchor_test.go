package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/concierge/internal/models"
	"github.com/example/concierge/internal/repository"
)

type stubAnchorStore struct {
	anchors map[uuid.UUID]*models.AnchorEvent
	created []*models.AnchorEvent
	deleted []uuid.UUID
}

func newStubAnchorStore() *stubAnchorStore {
	return &stubAnchorStore{anchors: make(map[uuid.UUID]*models.AnchorEvent)}
}

func (s *stubAnchorStore) Create(_ context.Context, anchor *models.AnchorEvent) error {
	s.anchors[anchor.AnchorEventID] = anchor
	s.created = append(s.created, anchor)
	return nil
}

func (s *stubAnchorStore) GetByID(_ context.Context, anchorID uuid.UUID) (*models.AnchorEvent, error) {
	anchor, ok := s.anchors[anchorID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return anchor, nil
}

func (s *stubAnchorStore) GetByTitle(_ context.Context, personID uuid.UUID, title string) (*models.AnchorEvent, error) {
	for _, anchor := range s.anchors {
		if anchor.PersonID == personID && anchor.Title == title {
			return anchor, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubAnchorStore) UpdateDates(_ context.Context, anchorID uuid.UUID, dateValue time.Time, next *time.Time) error {
	anchor, ok := s.anchors[anchorID]
	if !ok {
		return repository.ErrNotFound
	}
	anchor.DateValue = dateValue
	anchor.NextOccurrence = next
	return nil
}

func (s *stubAnchorStore) SoftDelete(_ context.Context, anchorID uuid.UUID) error {
	s.deleted = append(s.deleted, anchorID)
	return nil
}

type stubCategoryStore struct {
	existing *models.Category
	created  []*models.Category
}

func (s *stubCategoryStore) FirstActiveByOrg(_ context.Context, _ uuid.UUID) (*models.Category, error) {
	if s.existing == nil {
		return nil, repository.ErrNotFound
	}
	return s.existing, nil
}

func (s *stubCategoryStore) Create(_ context.Context, category *models.Category) error {
	s.created = append(s.created, category)
	return nil
}

type stubReminderStore struct {
	leadTime    []*models.ReminderRule
	rescheduled map[uuid.UUID]time.Time
	retried     []uuid.UUID
	retriedAt   time.Time
	deleted     []uuid.UUID
	cascaded    []uuid.UUID
}

func newStubReminderStore() *stubReminderStore {
	return &stubReminderStore{rescheduled: make(map[uuid.UUID]time.Time)}
}

func (s *stubReminderStore) Retry(_ context.Context, ruleID uuid.UUID, now time.Time) error {
	s.retried = append(s.retried, ruleID)
	s.retriedAt = now
	return nil
}

func (s *stubReminderStore) ListUnsentLeadTimeByAnchor(_ context.Context, _ uuid.UUID) ([]*models.ReminderRule, error) {
	return s.leadTime, nil
}

func (s *stubReminderStore) UpdateScheduledAt(_ context.Context, ruleID uuid.UUID, at time.Time) error {
	s.rescheduled[ruleID] = at
	return nil
}

func (s *stubReminderStore) SoftDelete(_ context.Context, ruleID uuid.UUID) error {
	s.deleted = append(s.deleted, ruleID)
	return nil
}

func (s *stubReminderStore) SoftDeleteByAnchor(_ context.Context, anchorID uuid.UUID) error {
	s.cascaded = append(s.cascaded, anchorID)
	return nil
}

type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService(anchors *stubAnchorStore, categories *stubCategoryStore, reminders *stubReminderStore, clock clockwork.Clock) *AnchorService {
	return NewAnchorService(anchors, categories, reminders, passthroughTx{}, clock, time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func intPtr(v int) *int { return &v }

func datePtr(v time.Time) *time.Time { return &v }

func TestGetOrCreate(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()
	personID := uuid.New()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 10, 24, 12, 0, 0, 0, time.UTC))

	t.Run("returns existing anchor untouched", func(t *testing.T) {
		anchors := newStubAnchorStore()
		existing := &models.AnchorEvent{
			AnchorEventID: uuid.New(),
			PersonID:      personID,
			Title:         "Mom's birthday",
			DateValue:     time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		}
		anchors.anchors[existing.AnchorEventID] = existing
		svc := newTestService(anchors, &stubCategoryStore{}, newStubReminderStore(), clock)

		later := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		got, created, err := svc.GetOrCreate(ctx, orgID, personID, "Mom's birthday", datePtr(later), "", "")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, existing.AnchorEventID, got.AnchorEventID)
		assert.Equal(t, existing.DateValue, got.DateValue, "lookup must not modify the stored date")
		assert.Empty(t, anchors.created)
	})

	t.Run("creates anchor with default category", func(t *testing.T) {
		anchors := newStubAnchorStore()
		categories := &stubCategoryStore{}
		svc := newTestService(anchors, categories, newStubReminderStore(), clock)

		date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
		got, created, err := svc.GetOrCreate(ctx, orgID, personID, "Passport renewal", datePtr(date), "", "expires soon")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, date, got.DateValue)
		assert.Nil(t, got.NextOccurrence)

		require.Len(t, categories.created, 1)
		assert.Equal(t, DefaultCategoryName, categories.created[0].CategoryName)
		assert.Equal(t, categories.created[0].CategoryID, got.CategoryID)
	})

	t.Run("reuses existing category", func(t *testing.T) {
		anchors := newStubAnchorStore()
		categories := &stubCategoryStore{existing: &models.Category{CategoryID: uuid.New(), CategoryName: "Family"}}
		svc := newTestService(anchors, categories, newStubReminderStore(), clock)

		got, _, err := svc.GetOrCreate(ctx, orgID, personID, "Anniversary", datePtr(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)), "", "")
		require.NoError(t, err)
		assert.Equal(t, categories.existing.CategoryID, got.CategoryID)
		assert.Empty(t, categories.created)
	})

	t.Run("recurring anchor gets a next occurrence", func(t *testing.T) {
		anchors := newStubAnchorStore()
		svc := newTestService(anchors, &stubCategoryStore{}, newStubReminderStore(), clock)

		// Anchor date already past; the derived occurrence rolls forward.
		date := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
		got, _, err := svc.GetOrCreate(ctx, orgID, personID, "Mom's birthday", datePtr(date), "FREQ=YEARLY", "")
		require.NoError(t, err)
		require.NotNil(t, got.NextOccurrence)
		assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), *got.NextOccurrence)
	})

	t.Run("missing date on create", func(t *testing.T) {
		svc := newTestService(newStubAnchorStore(), &stubCategoryStore{}, newStubReminderStore(), clock)

		_, _, err := svc.GetOrCreate(ctx, orgID, personID, "Unknown event", nil, "", "")
		assert.ErrorIs(t, err, ErrDateRequired)
	})
}

func TestUpdateDate(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 10, 24, 12, 0, 0, 0, time.UTC))

	anchors := newStubAnchorStore()
	anchor := &models.AnchorEvent{
		AnchorEventID: uuid.New(),
		PersonID:      uuid.New(),
		Title:         "Mom's birthday",
		DateValue:     time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
	}
	anchors.anchors[anchor.AnchorEventID] = anchor

	reminders := newStubReminderStore()
	rule := &models.ReminderRule{
		ReminderRuleID: uuid.New(),
		AnchorEventID:  &anchor.AnchorEventID,
		ReminderType:   models.ReminderLeadTime,
		LeadTimeDays:   intPtr(14),
	}
	reminders.leadTime = []*models.ReminderRule{rule}

	svc := newTestService(anchors, &stubCategoryStore{}, reminders, clock)

	newDate := time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)
	updated, err := svc.UpdateDate(ctx, anchor.AnchorEventID, newDate)
	require.NoError(t, err)
	assert.Equal(t, newDate, updated.DateValue)

	// 14 days before April 20 is April 6, at midnight.
	at, ok := reminders.rescheduled[rule.ReminderRuleID]
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC), at)
}

func TestUpdateDateUnknownAnchor(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 10, 24, 12, 0, 0, 0, time.UTC))
	svc := newTestService(newStubAnchorStore(), &stubCategoryStore{}, newStubReminderStore(), clock)

	_, err := svc.UpdateDate(context.Background(), uuid.New(), time.Now())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateDateByTitle(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 10, 24, 12, 0, 0, 0, time.UTC))

	anchors := newStubAnchorStore()
	personID := uuid.New()
	anchor := &models.AnchorEvent{
		AnchorEventID: uuid.New(),
		PersonID:      personID,
		Title:         "Passport renewal",
		DateValue:     time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
	}
	anchors.anchors[anchor.AnchorEventID] = anchor
	svc := newTestService(anchors, &stubCategoryStore{}, newStubReminderStore(), clock)

	newDate := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	updated, err := svc.UpdateDateByTitle(ctx, personID, "Passport renewal", newDate)
	require.NoError(t, err)
	assert.Equal(t, newDate, updated.DateValue)

	_, err = svc.UpdateDateByTitle(ctx, personID, "No such event", newDate)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteByTitle(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 10, 24, 12, 0, 0, 0, time.UTC))
	anchors := newStubAnchorStore()
	reminders := newStubReminderStore()
	personID := uuid.New()
	anchor := &models.AnchorEvent{AnchorEventID: uuid.New(), PersonID: personID, Title: "Anniversary"}
	anchors.anchors[anchor.AnchorEventID] = anchor
	svc := newTestService(anchors, &stubCategoryStore{}, reminders, clock)

	require.NoError(t, svc.DeleteByTitle(context.Background(), personID, "Anniversary"))
	assert.Equal(t, []uuid.UUID{anchor.AnchorEventID}, anchors.deleted)
	assert.Equal(t, []uuid.UUID{anchor.AnchorEventID}, reminders.cascaded)
}

func TestDeleteCascades(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 10, 24, 12, 0, 0, 0, time.UTC))
	anchors := newStubAnchorStore()
	reminders := newStubReminderStore()
	svc := newTestService(anchors, &stubCategoryStore{}, reminders, clock)

	anchorID := uuid.New()
	anchors.anchors[anchorID] = &models.AnchorEvent{AnchorEventID: anchorID}

	require.NoError(t, svc.Delete(context.Background(), anchorID))
	assert.Equal(t, []uuid.UUID{anchorID}, anchors.deleted)
	assert.Equal(t, []uuid.UUID{anchorID}, reminders.cascaded)
}

func TestRetryReminder(t *testing.T) {
	now := time.Date(2025, 10, 24, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	reminders := newStubReminderStore()
	svc := newTestService(newStubAnchorStore(), &stubCategoryStore{}, reminders, clock)

	ruleID := uuid.New()
	require.NoError(t, svc.RetryReminder(context.Background(), ruleID))
	assert.Equal(t, []uuid.UUID{ruleID}, reminders.retried)
	assert.Equal(t, now, reminders.retriedAt)
}

func TestLeadTimeSchedule(t *testing.T) {
	occurrence := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	at := LeadTimeSchedule(occurrence, 14, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), at)

	// Lead time crossing a month boundary.
	at = LeadTimeSchedule(time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), 10, time.UTC)
	assert.Equal(t, time.Date(2024, 12, 26, 0, 0, 0, 0, time.UTC), at)
}
