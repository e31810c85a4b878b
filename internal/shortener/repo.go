package shortener

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence operations for Link records.
// Short codes and aliases are case-insensitive: implementations
// normalize them to lowercase at this boundary so every caller gets
// consistent behavior. Write operations that can no-op report rows
// affected so callers can detect it.
type Repository interface {
	Insert(ctx context.Context, link Link) (Link, error)
	FindByCode(ctx context.Context, code string) (Link, error)
	FindByID(ctx context.Context, id uuid.UUID) (Link, error)
	FindByIDAndOwner(ctx context.Context, id uuid.UUID, ownerID string) (Link, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Link, error)
	IncrementClicks(ctx context.Context, code string) (int64, error)
	SetActive(ctx context.Context, id uuid.UUID, ownerID string, active bool) (int64, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	ExistsByAlias(ctx context.Context, alias string) (bool, error)
}
