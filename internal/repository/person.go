package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/example/concierge/internal/database"
	"github.com/example/concierge/internal/models"
)

type PersonRepository struct {
	db *database.DB
}

func NewPersonRepository(db *database.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

func (r *PersonRepository) Create(ctx context.Context, person *models.Person) error {
	return r.db.Querier(ctx).QueryRow(ctx,
		`INSERT INTO persons (person_id, org_id, full_name, preferred_name, timezone)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		person.PersonID, person.OrgID, person.FullName, person.PreferredName, person.Timezone,
	).Scan(&person.CreatedAt, &person.UpdatedAt)
}

func (r *PersonRepository) GetByID(ctx context.Context, personID uuid.UUID) (*models.Person, error) {
	person := &models.Person{}
	err := r.db.Querier(ctx).QueryRow(ctx,
		`SELECT person_id, org_id, full_name, preferred_name, timezone, created_at, updated_at, deleted_at
		 FROM persons WHERE person_id = $1 AND deleted_at IS NULL`,
		personID,
	).Scan(&person.PersonID, &person.OrgID, &person.FullName, &person.PreferredName,
		&person.Timezone, &person.CreatedAt, &person.UpdatedAt, &person.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return person, nil
}

const identityColumns = `comm_identity_id, org_id, person_id, channel_kind, address, is_primary,
	 created_at, updated_at, deleted_at`

func (r *PersonRepository) CreateIdentity(ctx context.Context, identity *models.CommIdentity) error {
	return r.db.Querier(ctx).QueryRow(ctx,
		`INSERT INTO comm_identities (comm_identity_id, org_id, person_id, channel_kind, address, is_primary)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		identity.CommIdentityID, identity.OrgID, identity.PersonID, identity.ChannelKind,
		identity.Address, identity.IsPrimary,
	).Scan(&identity.CreatedAt, &identity.UpdatedAt)
}

func (r *PersonRepository) GetIdentityByID(ctx context.Context, identityID uuid.UUID) (*models.CommIdentity, error) {
	row := r.db.Querier(ctx).QueryRow(ctx,
		`SELECT `+identityColumns+`
		 FROM comm_identities WHERE comm_identity_id = $1 AND deleted_at IS NULL`,
		identityID,
	)
	identity, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return identity, err
}

// PrimaryIdentity returns the person's primary comm identity, or any
// identity when no primary is flagged.
func (r *PersonRepository) PrimaryIdentity(ctx context.Context, personID uuid.UUID) (*models.CommIdentity, error) {
	row := r.db.Querier(ctx).QueryRow(ctx,
		`SELECT `+identityColumns+`
		 FROM comm_identities WHERE person_id = $1 AND deleted_at IS NULL
		 ORDER BY is_primary DESC, created_at ASC LIMIT 1`,
		personID,
	)
	identity, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return identity, err
}

// FindByAddress resolves a channel address to its identity.
func (r *PersonRepository) FindByAddress(ctx context.Context, kind models.ChannelKind, address string) (*models.CommIdentity, error) {
	row := r.db.Querier(ctx).QueryRow(ctx,
		`SELECT `+identityColumns+`
		 FROM comm_identities WHERE channel_kind = $1 AND address = $2 AND deleted_at IS NULL
		 LIMIT 1`,
		kind, address,
	)
	identity, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return identity, err
}

func scanIdentity(row pgx.Row) (*models.CommIdentity, error) {
	identity := &models.CommIdentity{}
	if err := row.Scan(&identity.CommIdentityID, &identity.OrgID, &identity.PersonID,
		&identity.ChannelKind, &identity.Address, &identity.IsPrimary,
		&identity.CreatedAt, &identity.UpdatedAt, &identity.DeletedAt); err != nil {
		return nil, err
	}
	return identity, nil
}
