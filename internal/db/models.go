package db

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Link is a row of the links table.
type Link struct {
	ID          uuid.UUID
	OwnerID     string
	OriginalUrl string
	ShortCode   string
	CustomAlias pgtype.Text
	Description pgtype.Text
	Clicks      int64
	IsActive    bool
	ExpiresAt   pgtype.Timestamptz
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}
