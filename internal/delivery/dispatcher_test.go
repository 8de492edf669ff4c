package delivery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/concierge/internal/models"
	"github.com/example/concierge/internal/oracle"
	"github.com/example/concierge/internal/repository"
)

type stubPeople struct {
	identity *models.CommIdentity
	person   *models.Person
}

func (s *stubPeople) GetIdentityByID(_ context.Context, _ uuid.UUID) (*models.CommIdentity, error) {
	if s.identity == nil {
		return nil, repository.ErrNotFound
	}
	return s.identity, nil
}

func (s *stubPeople) GetByID(_ context.Context, _ uuid.UUID) (*models.Person, error) {
	if s.person == nil {
		return nil, repository.ErrNotFound
	}
	return s.person, nil
}

type stubAnchors struct {
	anchor *models.AnchorEvent
}

func (s *stubAnchors) GetByID(_ context.Context, _ uuid.UUID) (*models.AnchorEvent, error) {
	if s.anchor == nil {
		return nil, repository.ErrNotFound
	}
	return s.anchor, nil
}

type stubMessages struct {
	inserted []*models.Message
	err      error
}

func (s *stubMessages) GetOrCreateConversation(_ context.Context, orgID, personID uuid.UUID, kind models.ChannelKind, subject string) (*models.Conversation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Conversation{
		ConversationID: uuid.New(),
		OrgID:          orgID,
		PersonID:       personID,
		ChannelKind:    kind,
		Subject:        subject,
	}, nil
}

func (s *stubMessages) Insert(_ context.Context, msg *models.Message) error {
	if s.err != nil {
		return s.err
	}
	s.inserted = append(s.inserted, msg)
	return nil
}

type stubAdapter struct {
	sentTo   []string
	messages []string
	err      error
}

func (a *stubAdapter) Send(_ context.Context, address, message string) error {
	if a.err != nil {
		return a.err
	}
	a.sentTo = append(a.sentTo, address)
	a.messages = append(a.messages, message)
	return nil
}

type stubRenderer struct {
	text string
	err  error
}

func (s *stubRenderer) ParseReminder(_ context.Context, _ time.Time, _, _ string) (*oracle.ParseResult, error) {
	return nil, errors.New("not used")
}

func (s *stubRenderer) Render(_ context.Context, _, _ string) (string, error) {
	return s.text, s.err
}

func testFixtures() (*stubPeople, *models.ReminderRule) {
	personID := uuid.New()
	people := &stubPeople{
		identity: &models.CommIdentity{
			CommIdentityID: uuid.New(),
			PersonID:       personID,
			ChannelKind:    models.ChannelChat,
			Address:        "12345",
		},
		person: &models.Person{PersonID: personID, FullName: "Dana"},
	}
	rule := &models.ReminderRule{
		ReminderRuleID: uuid.New(),
		CommIdentityID: people.identity.CommIdentityID,
		ReminderType:   models.ReminderScheduled,
		Metadata:       models.RuleMetadata{Action: "call John"},
	}
	return people, rule
}

func newTestDispatcher(people *stubPeople, anchors *stubAnchors, messages *stubMessages, o oracle.Oracle, adapter Adapter) *Dispatcher {
	return NewDispatcher(people, anchors, messages, o,
		map[models.ChannelKind]Adapter{models.ChannelChat: adapter},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDispatch_SendsRenderedMessage(t *testing.T) {
	people, rule := testFixtures()
	adapter := &stubAdapter{}
	messages := &stubMessages{}
	d := newTestDispatcher(people, &stubAnchors{}, messages,
		&stubRenderer{text: "Hi Dana, time to call John!"}, adapter)

	require.NoError(t, d.Dispatch(context.Background(), rule))
	assert.Equal(t, []string{"12345"}, adapter.sentTo)
	assert.Equal(t, []string{"Hi Dana, time to call John!"}, adapter.messages)

	require.Len(t, messages.inserted, 1)
	assert.Equal(t, "outbound", messages.inserted[0].Direction)
	assert.Equal(t, "reminder", messages.inserted[0].AgentName)
	assert.Equal(t, "Hi Dana, time to call John!", messages.inserted[0].ContentText)
}

func TestDispatch_FallsBackWhenRenderFails(t *testing.T) {
	people, rule := testFixtures()
	adapter := &stubAdapter{}
	d := newTestDispatcher(people, &stubAnchors{}, &stubMessages{},
		&stubRenderer{err: errors.New("model down")}, adapter)

	require.NoError(t, d.Dispatch(context.Background(), rule))
	require.Len(t, adapter.messages, 1)
	assert.Equal(t, "Reminder: call John", adapter.messages[0])
}

func TestDispatch_NoOracleUsesFallback(t *testing.T) {
	people, rule := testFixtures()
	adapter := &stubAdapter{}
	d := newTestDispatcher(people, &stubAnchors{}, &stubMessages{}, nil, adapter)

	require.NoError(t, d.Dispatch(context.Background(), rule))
	require.Len(t, adapter.messages, 1)
	assert.Equal(t, "Reminder: call John", adapter.messages[0])
}

func TestDispatch_IncludesAnchorContext(t *testing.T) {
	people, rule := testFixtures()
	anchorID := uuid.New()
	rule.AnchorEventID = &anchorID
	anchors := &stubAnchors{anchor: &models.AnchorEvent{
		AnchorEventID: anchorID,
		Title:         "Mom's Birthday",
		DateValue:     time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
	}}
	adapter := &stubAdapter{}
	d := newTestDispatcher(people, anchors, &stubMessages{}, nil, adapter)

	require.NoError(t, d.Dispatch(context.Background(), rule))
	require.Len(t, adapter.messages, 1)
	assert.Equal(t, "Reminder: call John (Mom's Birthday on March 15, 2026)", adapter.messages[0])
}

func TestDispatch_AdapterFailurePropagates(t *testing.T) {
	people, rule := testFixtures()
	messages := &stubMessages{}
	d := newTestDispatcher(people, &stubAnchors{}, messages, nil,
		&stubAdapter{err: errors.New("telegram down")})

	err := d.Dispatch(context.Background(), rule)
	require.Error(t, err)
	assert.Empty(t, messages.inserted, "failed sends must not be logged as delivered")
}

func TestDispatch_MessageLogFailureDoesNotFailDelivery(t *testing.T) {
	people, rule := testFixtures()
	adapter := &stubAdapter{}
	d := newTestDispatcher(people, &stubAnchors{}, &stubMessages{err: errors.New("db down")}, nil, adapter)

	require.NoError(t, d.Dispatch(context.Background(), rule))
	assert.Len(t, adapter.sentTo, 1)
}

func TestDispatch_UnknownIdentity(t *testing.T) {
	_, rule := testFixtures()
	d := newTestDispatcher(&stubPeople{}, &stubAnchors{}, &stubMessages{}, nil, &stubAdapter{})

	err := d.Dispatch(context.Background(), rule)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDispatch_NoAdapterForChannel(t *testing.T) {
	people, rule := testFixtures()
	people.identity.ChannelKind = models.ChannelEmail
	d := newTestDispatcher(people, &stubAnchors{}, &stubMessages{}, nil, &stubAdapter{})

	err := d.Dispatch(context.Background(), rule)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no adapter")
}
