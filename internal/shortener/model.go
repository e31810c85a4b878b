package shortener

import (
	"time"

	"github.com/google/uuid"
)

// Link is a shortened URL record. ShortCode is globally unique and
// always stored lowercased; CustomAlias, when present, equals ShortCode.
type Link struct {
	ID          uuid.UUID
	OwnerID     string
	OriginalURL string
	ShortCode   string
	CustomAlias *string
	Description *string
	Clicks      int64
	IsActive    bool
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Expired reports whether the link's expiry, if set, is strictly before now.
func (l Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}
