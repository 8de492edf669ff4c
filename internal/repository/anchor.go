package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/example/concierge/internal/database"
	"github.com/example/concierge/internal/models"
)

const anchorColumns = `anchor_event_id, org_id, person_id, category_id, title, date_value,
	 recurrence_rule, next_occurrence, notes, created_at, updated_at, deleted_at`

type AnchorRepository struct {
	db *database.DB
}

func NewAnchorRepository(db *database.DB) *AnchorRepository {
	return &AnchorRepository{db: db}
}

func (r *AnchorRepository) Create(ctx context.Context, anchor *models.AnchorEvent) error {
	return r.db.Querier(ctx).QueryRow(ctx,
		`INSERT INTO anchor_events (anchor_event_id, org_id, person_id, category_id, title,
		 date_value, recurrence_rule, next_occurrence, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, updated_at`,
		anchor.AnchorEventID, anchor.OrgID, anchor.PersonID, anchor.CategoryID, anchor.Title,
		anchor.DateValue, anchor.RecurrenceRule, anchor.NextOccurrence, anchor.Notes,
	).Scan(&anchor.CreatedAt, &anchor.UpdatedAt)
}

func (r *AnchorRepository) GetByID(ctx context.Context, anchorID uuid.UUID) (*models.AnchorEvent, error) {
	row := r.db.Querier(ctx).QueryRow(ctx,
		`SELECT `+anchorColumns+`
		 FROM anchor_events WHERE anchor_event_id = $1 AND deleted_at IS NULL`,
		anchorID,
	)
	anchor, err := scanAnchor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return anchor, err
}

// GetByTitle looks up a non-deleted anchor by exact (owner, title) match.
func (r *AnchorRepository) GetByTitle(ctx context.Context, personID uuid.UUID, title string) (*models.AnchorEvent, error) {
	row := r.db.Querier(ctx).QueryRow(ctx,
		`SELECT `+anchorColumns+`
		 FROM anchor_events WHERE person_id = $1 AND title = $2 AND deleted_at IS NULL
		 LIMIT 1`,
		personID, title,
	)
	anchor, err := scanAnchor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return anchor, err
}

// UpdateDates rewrites the anchor's primary date and derived occurrence.
func (r *AnchorRepository) UpdateDates(ctx context.Context, anchorID uuid.UUID, dateValue time.Time, nextOccurrence *time.Time) error {
	tag, err := r.db.Querier(ctx).Exec(ctx,
		`UPDATE anchor_events SET date_value = $2, next_occurrence = $3, updated_at = now()
		 WHERE anchor_event_id = $1 AND deleted_at IS NULL`,
		anchorID, dateValue, nextOccurrence,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AnchorRepository) SoftDelete(ctx context.Context, anchorID uuid.UUID) error {
	tag, err := r.db.Querier(ctx).Exec(ctx,
		`UPDATE anchor_events SET deleted_at = now(), updated_at = now()
		 WHERE anchor_event_id = $1 AND deleted_at IS NULL`,
		anchorID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAnchor(row pgx.Row) (*models.AnchorEvent, error) {
	anchor := &models.AnchorEvent{}
	if err := row.Scan(&anchor.AnchorEventID, &anchor.OrgID, &anchor.PersonID, &anchor.CategoryID,
		&anchor.Title, &anchor.DateValue, &anchor.RecurrenceRule, &anchor.NextOccurrence,
		&anchor.Notes, &anchor.CreatedAt, &anchor.UpdatedAt, &anchor.DeletedAt); err != nil {
		return nil, err
	}
	return anchor, nil
}

type CategoryRepository struct {
	db *database.DB
}

func NewCategoryRepository(db *database.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// FirstActiveByOrg returns any non-deleted category for the org, or
// ErrNotFound when the org has none yet.
func (r *CategoryRepository) FirstActiveByOrg(ctx context.Context, orgID uuid.UUID) (*models.Category, error) {
	category := &models.Category{}
	err := r.db.Querier(ctx).QueryRow(ctx,
		`SELECT category_id, org_id, category_name, created_at, updated_at, deleted_at
		 FROM categories WHERE org_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at ASC LIMIT 1`,
		orgID,
	).Scan(&category.CategoryID, &category.OrgID, &category.CategoryName,
		&category.CreatedAt, &category.UpdatedAt, &category.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return category, nil
}

func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	return r.db.Querier(ctx).QueryRow(ctx,
		`INSERT INTO categories (category_id, org_id, category_name)
		 VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		category.CategoryID, category.OrgID, category.CategoryName,
	).Scan(&category.CreatedAt, &category.UpdatedAt)
}
