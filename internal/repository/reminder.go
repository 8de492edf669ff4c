package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/example/concierge/internal/database"
	"github.com/example/concierge/internal/models"
)

const reminderColumns = `reminder_rule_id, org_id, anchor_event_id, comm_identity_id, reminder_type,
	 lead_time_days, scheduled_at, sent_at, delivery_attempts, metadata, created_at, updated_at, deleted_at`

type ReminderRepository struct {
	db *database.DB
}

func NewReminderRepository(db *database.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) Create(ctx context.Context, rule *models.ReminderRule) error {
	meta, err := json.Marshal(rule.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	return r.db.Querier(ctx).QueryRow(ctx,
		`INSERT INTO reminder_rules (reminder_rule_id, org_id, anchor_event_id, comm_identity_id,
		 reminder_type, lead_time_days, scheduled_at, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		rule.ReminderRuleID, rule.OrgID, rule.AnchorEventID, rule.CommIdentityID,
		rule.ReminderType, rule.LeadTimeDays, rule.ScheduledAt, meta,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
}

func (r *ReminderRepository) GetByID(ctx context.Context, ruleID uuid.UUID) (*models.ReminderRule, error) {
	row := r.db.Querier(ctx).QueryRow(ctx,
		`SELECT `+reminderColumns+`
		 FROM reminder_rules WHERE reminder_rule_id = $1 AND deleted_at IS NULL`,
		ruleID,
	)
	rule, err := scanReminder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rule, err
}

// Due returns every non-deleted rule with sent_at unset and a fire time at
// or before now, oldest first. Ordering is best-effort, not a guarantee.
func (r *ReminderRepository) Due(ctx context.Context, now time.Time) ([]*models.ReminderRule, error) {
	rows, err := r.db.Querier(ctx).Query(ctx,
		`SELECT `+reminderColumns+`
		 FROM reminder_rules
		 WHERE sent_at IS NULL AND deleted_at IS NULL AND scheduled_at IS NOT NULL AND scheduled_at <= $1
		 ORDER BY scheduled_at ASC`,
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReminders(rows)
}

// MarkSent records delivery, conditional on no prior delivery. It returns
// false when another writer already marked the rule sent; the caller's
// dispatch in that window is the accepted duplicate-send cost.
func (r *ReminderRepository) MarkSent(ctx context.Context, ruleID uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.db.Querier(ctx).Exec(ctx,
		`UPDATE reminder_rules SET sent_at = $2, updated_at = now()
		 WHERE reminder_rule_id = $1 AND sent_at IS NULL AND deleted_at IS NULL`,
		ruleID, at,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ReminderRepository) IncrementAttempts(ctx context.Context, ruleID uuid.UUID) error {
	_, err := r.db.Querier(ctx).Exec(ctx,
		`UPDATE reminder_rules SET delivery_attempts = delivery_attempts + 1, updated_at = now()
		 WHERE reminder_rule_id = $1`,
		ruleID,
	)
	return err
}

// Retry re-arms a rule: delivery history is cleared and the fire time is
// reset to now so it re-enters the due set on the next sweep.
func (r *ReminderRepository) Retry(ctx context.Context, ruleID uuid.UUID, now time.Time) error {
	tag, err := r.db.Querier(ctx).Exec(ctx,
		`UPDATE reminder_rules SET sent_at = NULL, scheduled_at = $2, delivery_attempts = 0, updated_at = now()
		 WHERE reminder_rule_id = $1 AND deleted_at IS NULL`,
		ruleID, now,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Update mutates a pre-send rule. Sent rules are immutable.
func (r *ReminderRepository) Update(ctx context.Context, rule *models.ReminderRule) error {
	meta, err := json.Marshal(rule.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tag, err := r.db.Querier(ctx).Exec(ctx,
		`UPDATE reminder_rules SET reminder_type = $2, lead_time_days = $3, scheduled_at = $4,
		 anchor_event_id = $5, metadata = $6, updated_at = now()
		 WHERE reminder_rule_id = $1 AND deleted_at IS NULL AND sent_at IS NULL`,
		rule.ReminderRuleID, rule.ReminderType, rule.LeadTimeDays, rule.ScheduledAt,
		rule.AnchorEventID, meta,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		existing, getErr := r.GetByID(ctx, rule.ReminderRuleID)
		if getErr != nil {
			return getErr
		}
		if existing.SentAt != nil {
			return ErrAlreadySent
		}
		return ErrNotFound
	}
	return nil
}

// UpdateScheduledAt rewrites the derived fire time of an unsent rule.
// Used by the anchor-change recompute.
func (r *ReminderRepository) UpdateScheduledAt(ctx context.Context, ruleID uuid.UUID, at time.Time) error {
	_, err := r.db.Querier(ctx).Exec(ctx,
		`UPDATE reminder_rules SET scheduled_at = $2, updated_at = now()
		 WHERE reminder_rule_id = $1 AND sent_at IS NULL AND deleted_at IS NULL`,
		ruleID, at,
	)
	return err
}

// ListUnsentLeadTimeByAnchor returns the rules whose fire time must be
// recomputed when the anchor's date changes.
func (r *ReminderRepository) ListUnsentLeadTimeByAnchor(ctx context.Context, anchorID uuid.UUID) ([]*models.ReminderRule, error) {
	rows, err := r.db.Querier(ctx).Query(ctx,
		`SELECT `+reminderColumns+`
		 FROM reminder_rules
		 WHERE anchor_event_id = $1 AND reminder_type = $2 AND sent_at IS NULL AND deleted_at IS NULL`,
		anchorID, models.ReminderLeadTime,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReminders(rows)
}

// ListPendingByPerson returns unsent rules targeting any of the person's
// comm identities, soonest first.
func (r *ReminderRepository) ListPendingByPerson(ctx context.Context, personID uuid.UUID) ([]*models.ReminderRule, error) {
	rows, err := r.db.Querier(ctx).Query(ctx,
		`SELECT `+prefixedReminderColumns("rr")+`
		 FROM reminder_rules rr
		 JOIN comm_identities ci ON ci.comm_identity_id = rr.comm_identity_id
		 WHERE ci.person_id = $1 AND rr.sent_at IS NULL AND rr.deleted_at IS NULL
		 ORDER BY rr.scheduled_at ASC NULLS LAST`,
		personID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReminders(rows)
}

func (r *ReminderRepository) SoftDelete(ctx context.Context, ruleID uuid.UUID) error {
	tag, err := r.db.Querier(ctx).Exec(ctx,
		`UPDATE reminder_rules SET deleted_at = now(), updated_at = now()
		 WHERE reminder_rule_id = $1 AND deleted_at IS NULL`,
		ruleID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteByAnchor logically cascades an anchor deletion to its rules.
// Historical send records are preserved.
func (r *ReminderRepository) SoftDeleteByAnchor(ctx context.Context, anchorID uuid.UUID) error {
	_, err := r.db.Querier(ctx).Exec(ctx,
		`UPDATE reminder_rules SET deleted_at = now(), updated_at = now()
		 WHERE anchor_event_id = $1 AND deleted_at IS NULL`,
		anchorID,
	)
	return err
}

func prefixedReminderColumns(alias string) string {
	return alias + `.reminder_rule_id, ` + alias + `.org_id, ` + alias + `.anchor_event_id, ` +
		alias + `.comm_identity_id, ` + alias + `.reminder_type, ` + alias + `.lead_time_days, ` +
		alias + `.scheduled_at, ` + alias + `.sent_at, ` + alias + `.delivery_attempts, ` +
		alias + `.metadata, ` + alias + `.created_at, ` + alias + `.updated_at, ` + alias + `.deleted_at`
}

func scanReminder(row pgx.Row) (*models.ReminderRule, error) {
	rule := &models.ReminderRule{}
	var meta []byte
	if err := row.Scan(&rule.ReminderRuleID, &rule.OrgID, &rule.AnchorEventID, &rule.CommIdentityID,
		&rule.ReminderType, &rule.LeadTimeDays, &rule.ScheduledAt, &rule.SentAt,
		&rule.DeliveryAttempts, &meta, &rule.CreatedAt, &rule.UpdatedAt, &rule.DeletedAt); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &rule.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return rule, nil
}

func scanReminders(rows pgx.Rows) ([]*models.ReminderRule, error) {
	var rules []*models.ReminderRule
	for rows.Next() {
		rule, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
