package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const linkColumns = `id, owner_id, original_url, short_code, custom_alias, description,
	clicks, is_active, expires_at, created_at, updated_at`

func scanLink(row interface{ Scan(dest ...any) error }) (Link, error) {
	var l Link
	err := row.Scan(
		&l.ID,
		&l.OwnerID,
		&l.OriginalUrl,
		&l.ShortCode,
		&l.CustomAlias,
		&l.Description,
		&l.Clicks,
		&l.IsActive,
		&l.ExpiresAt,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	return l, err
}

const createLink = `
INSERT INTO links (id, owner_id, original_url, short_code, custom_alias, description, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + linkColumns

// CreateLinkParams holds the arguments for CreateLink.
type CreateLinkParams struct {
	ID          uuid.UUID
	OwnerID     string
	OriginalUrl string
	ShortCode   string
	CustomAlias pgtype.Text
	Description pgtype.Text
	ExpiresAt   pgtype.Timestamptz
}

// CreateLink inserts a new link row. Clicks and is_active take their
// column defaults (0, true).
func (q *Queries) CreateLink(ctx context.Context, arg CreateLinkParams) (Link, error) {
	row := q.db.QueryRow(ctx, createLink,
		arg.ID,
		arg.OwnerID,
		arg.OriginalUrl,
		arg.ShortCode,
		arg.CustomAlias,
		arg.Description,
		arg.ExpiresAt,
	)
	return scanLink(row)
}

const getLinkByCode = `
SELECT ` + linkColumns + `
FROM links
WHERE short_code = $1
LIMIT 1`

// GetLinkByCode fetches a link by its short code.
func (q *Queries) GetLinkByCode(ctx context.Context, shortCode string) (Link, error) {
	return scanLink(q.db.QueryRow(ctx, getLinkByCode, shortCode))
}

const getLinkByID = `
SELECT ` + linkColumns + `
FROM links
WHERE id = $1
LIMIT 1`

// GetLinkByID fetches a link by its primary key.
func (q *Queries) GetLinkByID(ctx context.Context, id uuid.UUID) (Link, error) {
	return scanLink(q.db.QueryRow(ctx, getLinkByID, id))
}

const getLinkByIDAndOwner = `
SELECT ` + linkColumns + `
FROM links
WHERE id = $1 AND owner_id = $2
LIMIT 1`

// GetLinkByIDAndOwnerParams holds the arguments for GetLinkByIDAndOwner.
type GetLinkByIDAndOwnerParams struct {
	ID      uuid.UUID
	OwnerID string
}

// GetLinkByIDAndOwner fetches a link by id scoped to its owner.
func (q *Queries) GetLinkByIDAndOwner(ctx context.Context, arg GetLinkByIDAndOwnerParams) (Link, error) {
	return scanLink(q.db.QueryRow(ctx, getLinkByIDAndOwner, arg.ID, arg.OwnerID))
}

const listLinksByOwner = `
SELECT ` + linkColumns + `
FROM links
WHERE owner_id = $1 AND is_active
ORDER BY created_at DESC`

// ListLinksByOwner returns the owner's active links, newest first.
func (q *Queries) ListLinksByOwner(ctx context.Context, ownerID string) ([]Link, error) {
	rows, err := q.db.Query(ctx, listLinksByOwner, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

const incrementLinkClicks = `
UPDATE links
SET clicks = clicks + 1, updated_at = now()
WHERE short_code = $1`

// IncrementLinkClicks bumps the click counter for a code and reports
// the number of rows affected so callers can detect no-ops.
func (q *Queries) IncrementLinkClicks(ctx context.Context, shortCode string) (int64, error) {
	tag, err := q.db.Exec(ctx, incrementLinkClicks, shortCode)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const setLinkActive = `
UPDATE links
SET is_active = $3, updated_at = now()
WHERE id = $1 AND owner_id = $2`

// SetLinkActiveParams holds the arguments for SetLinkActive.
type SetLinkActiveParams struct {
	ID       uuid.UUID
	OwnerID  string
	IsActive bool
}

// SetLinkActive flips the active flag on an owner's link and reports
// rows affected.
func (q *Queries) SetLinkActive(ctx context.Context, arg SetLinkActiveParams) (int64, error) {
	tag, err := q.db.Exec(ctx, setLinkActive, arg.ID, arg.OwnerID, arg.IsActive)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const linkCodeExists = `
SELECT EXISTS (
	SELECT 1 FROM links WHERE short_code = $1
)`

// LinkCodeExists reports whether a short code is already taken.
func (q *Queries) LinkCodeExists(ctx context.Context, shortCode string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, linkCodeExists, shortCode).Scan(&exists)
	return exists, err
}

const linkAliasExists = `
SELECT EXISTS (
	SELECT 1 FROM links WHERE short_code = $1 OR custom_alias = $1
)`

// LinkAliasExists reports whether an alias is already taken, either as
// a short code or as another link's custom alias.
func (q *Queries) LinkAliasExists(ctx context.Context, alias string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, linkAliasExists, alias).Scan(&exists)
	return exists, err
}
