package shortener

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/snipurl/snipurl/internal/db"
	"github.com/snipurl/snipurl/internal/errx"
	"github.com/snipurl/snipurl/internal/idgen"
)

// querier is an internal interface that abstracts *db.Queries
type querier interface {
	CreateLink(ctx context.Context, arg db.CreateLinkParams) (db.Link, error)
	GetLinkByCode(ctx context.Context, shortCode string) (db.Link, error)
	GetLinkByID(ctx context.Context, id uuid.UUID) (db.Link, error)
	GetLinkByIDAndOwner(ctx context.Context, arg db.GetLinkByIDAndOwnerParams) (db.Link, error)
	ListLinksByOwner(ctx context.Context, ownerID string) ([]db.Link, error)
	IncrementLinkClicks(ctx context.Context, shortCode string) (int64, error)
	SetLinkActive(ctx context.Context, arg db.SetLinkActiveParams) (int64, error)
	LinkCodeExists(ctx context.Context, shortCode string) (bool, error)
	LinkAliasExists(ctx context.Context, alias string) (bool, error)
}

type repo struct {
	q   querier
	ids idgen.Generator
}

// RepositoryConfig holds configuration for the repository
type RepositoryConfig struct {
	IDGenerator idgen.Generator
}

// NewRepository creates a new Repository implementation
func NewRepository(q querier, config *RepositoryConfig) Repository {
	if config == nil {
		config = &RepositoryConfig{}
	}

	// Default: UUID v7 (good for DB locality). Retry once by default inside idgen.NewV7.
	if config.IDGenerator == nil {
		config.IDGenerator = idgen.NewV7(idgen.WithRetries(1))
	}

	return &repo{
		q:   q,
		ids: config.IDGenerator,
	}
}

// normalizeCode lowercases a short code or alias. Centralized at the
// store boundary so case-insensitive uniqueness holds no matter what
// callers pass in.
func normalizeCode(code string) string {
	return strings.ToLower(code)
}

func mustTime(ts pgtype.Timestamptz, field string) (time.Time, error) {
	if !ts.Valid {
		return time.Time{}, fmt.Errorf("%s unexpectedly NULL", field)
	}
	return ts.Time, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func toPgText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func toPgTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func toDomainLink(x db.Link) (Link, error) {
	createdAt, err := mustTime(x.CreatedAt, "created_at")
	if err != nil {
		return Link{}, err
	}
	updatedAt, err := mustTime(x.UpdatedAt, "updated_at")
	if err != nil {
		return Link{}, err
	}

	return Link{
		ID:          x.ID,
		OwnerID:     x.OwnerID,
		OriginalURL: x.OriginalUrl,
		ShortCode:   x.ShortCode,
		CustomAlias: textPtr(x.CustomAlias),
		Description: textPtr(x.Description),
		Clicks:      x.Clicks,
		IsActive:    x.IsActive,
		ExpiresAt:   timePtr(x.ExpiresAt),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)

	case isCodeUniqueViolation(err):
		return errx.E(op, errx.Conflict, err)

	default:
		return errx.E(op, errx.Internal, err)
	}
}

func (r *repo) Insert(ctx context.Context, link Link) (Link, error) {
	const op = "shortener.repo.Insert"

	// Generate ID if not provided
	if link.ID == uuid.Nil {
		id, err := r.ids.Generate()
		if err != nil {
			return Link{}, errx.E(op, errx.Internal, err)
		}
		link.ID = id
	}

	alias := link.CustomAlias
	if alias != nil {
		a := normalizeCode(*alias)
		alias = &a
	}

	row, err := r.q.CreateLink(ctx, db.CreateLinkParams{
		ID:          link.ID,
		OwnerID:     link.OwnerID,
		OriginalUrl: link.OriginalURL,
		ShortCode:   normalizeCode(link.ShortCode),
		CustomAlias: toPgText(alias),
		Description: toPgText(link.Description),
		ExpiresAt:   toPgTimestamptz(link.ExpiresAt),
	})
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}

	return toDomainLink(row)
}

func (r *repo) FindByCode(ctx context.Context, code string) (Link, error) {
	const op = "shortener.repo.FindByCode"

	row, err := r.q.GetLinkByCode(ctx, normalizeCode(code))
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return toDomainLink(row)
}

func (r *repo) FindByID(ctx context.Context, id uuid.UUID) (Link, error) {
	const op = "shortener.repo.FindByID"

	row, err := r.q.GetLinkByID(ctx, id)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return toDomainLink(row)
}

func (r *repo) FindByIDAndOwner(ctx context.Context, id uuid.UUID, ownerID string) (Link, error) {
	const op = "shortener.repo.FindByIDAndOwner"

	row, err := r.q.GetLinkByIDAndOwner(ctx, db.GetLinkByIDAndOwnerParams{
		ID:      id,
		OwnerID: ownerID,
	})
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return toDomainLink(row)
}

func (r *repo) ListByOwner(ctx context.Context, ownerID string) ([]Link, error) {
	const op = "shortener.repo.ListByOwner"

	rows, err := r.q.ListLinksByOwner(ctx, ownerID)
	if err != nil {
		return nil, mapRepoError(op, err)
	}

	links := make([]Link, 0, len(rows))
	for _, row := range rows {
		link, err := toDomainLink(row)
		if err != nil {
			return nil, errx.E(op, errx.Internal, err)
		}
		links = append(links, link)
	}
	return links, nil
}

func (r *repo) IncrementClicks(ctx context.Context, code string) (int64, error) {
	const op = "shortener.repo.IncrementClicks"

	affected, err := r.q.IncrementLinkClicks(ctx, normalizeCode(code))
	if err != nil {
		return 0, mapRepoError(op, err)
	}
	return affected, nil
}

func (r *repo) SetActive(ctx context.Context, id uuid.UUID, ownerID string, active bool) (int64, error) {
	const op = "shortener.repo.SetActive"

	affected, err := r.q.SetLinkActive(ctx, db.SetLinkActiveParams{
		ID:       id,
		OwnerID:  ownerID,
		IsActive: active,
	})
	if err != nil {
		return 0, mapRepoError(op, err)
	}
	return affected, nil
}

func (r *repo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	const op = "shortener.repo.ExistsByCode"

	exists, err := r.q.LinkCodeExists(ctx, normalizeCode(code))
	if err != nil {
		return false, mapRepoError(op, err)
	}
	return exists, nil
}

func (r *repo) ExistsByAlias(ctx context.Context, alias string) (bool, error) {
	const op = "shortener.repo.ExistsByAlias"

	exists, err := r.q.LinkAliasExists(ctx, normalizeCode(alias))
	if err != nil {
		return false, mapRepoError(op, err)
	}
	return exists, nil
}
