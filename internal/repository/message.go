package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/example/concierge/internal/database"
	"github.com/example/concierge/internal/models"
)

type MessageRepository struct {
	db *database.DB
}

func NewMessageRepository(db *database.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// GetOrCreateConversation resolves the person's conversation for a subject
// on a channel, creating it on first use.
func (r *MessageRepository) GetOrCreateConversation(ctx context.Context, orgID, personID uuid.UUID, kind models.ChannelKind, subject string) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := r.db.Querier(ctx).QueryRow(ctx,
		`SELECT conversation_id, org_id, person_id, channel_kind, subject, status, created_at, updated_at, deleted_at
		 FROM conversations
		 WHERE person_id = $1 AND channel_kind = $2 AND subject = $3 AND deleted_at IS NULL
		 LIMIT 1`,
		personID, kind, subject,
	).Scan(&conv.ConversationID, &conv.OrgID, &conv.PersonID, &conv.ChannelKind,
		&conv.Subject, &conv.Status, &conv.CreatedAt, &conv.UpdatedAt, &conv.DeletedAt)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	conv = &models.Conversation{
		ConversationID: uuid.New(),
		OrgID:          orgID,
		PersonID:       personID,
		ChannelKind:    kind,
		Subject:        subject,
		Status:         "active",
	}
	err = r.db.Querier(ctx).QueryRow(ctx,
		`INSERT INTO conversations (conversation_id, org_id, person_id, channel_kind, subject, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		conv.ConversationID, conv.OrgID, conv.PersonID, conv.ChannelKind, conv.Subject, conv.Status,
	).Scan(&conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *MessageRepository) Insert(ctx context.Context, msg *models.Message) error {
	return r.db.Querier(ctx).QueryRow(ctx,
		`INSERT INTO messages (message_id, org_id, conversation_id, direction, agent_name, content_text)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		msg.MessageID, msg.OrgID, msg.ConversationID, msg.Direction, msg.AgentName, msg.ContentText,
	).Scan(&msg.CreatedAt)
}

// ListByConversation returns a conversation's messages, oldest first.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.Message, error) {
	rows, err := r.db.Querier(ctx).Query(ctx,
		`SELECT message_id, org_id, conversation_id, direction, agent_name, content_text, created_at
		 FROM messages WHERE conversation_id = $1
		 ORDER BY created_at ASC LIMIT $2`,
		conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		if err := rows.Scan(&msg.MessageID, &msg.OrgID, &msg.ConversationID, &msg.Direction,
			&msg.AgentName, &msg.ContentText, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
