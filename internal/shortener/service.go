package shortener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/snipurl/snipurl/codegen"
	"github.com/snipurl/snipurl/internal/errx"
)

const (
	RandomCodeLength       = 8
	MinAliasLength         = 3
	MaxAliasLength         = 30
	MaxDescriptionLength   = 500
	MaxURLLength           = 2048
	DefaultCodeMaxAttempts = 5
)

// IssueLinkRequest represents the parameters for creating a new link.
type IssueLinkRequest struct {
	OwnerID     string
	OriginalURL string
	CustomAlias string // Optional: if empty, a code will be generated
	Description string // Optional
	ExpiresAt   *time.Time
}

// Service defines the business logic operations for URL shortening.
type Service interface {
	Issue(ctx context.Context, req IssueLinkRequest) (Link, error)
	Resolve(ctx context.Context, code string) (string, error)
	GetByID(ctx context.Context, id uuid.UUID, ownerID string) (Link, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Link, error)
	Deactivate(ctx context.Context, id uuid.UUID, ownerID string) error
}

// service implements the Service interface.
type service struct {
	repo            Repository
	codeGenerator   codegen.Generator
	codeLength      int
	codeMaxAttempts int
	logger          *slog.Logger
	now             func() time.Time
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	CodeGenerator   codegen.Generator
	CodeLength      int
	CodeMaxAttempts int // attempts when generating a unique code (default: 5)
	Logger          *slog.Logger
	Now             func() time.Time // clock override for tests
}

// NewService creates a new service instance.
func NewService(repo Repository, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	gen := config.CodeGenerator
	if gen == nil {
		gen = codegen.NewAlphanumeric()
	}

	codeLength := config.CodeLength
	if codeLength <= 0 {
		codeLength = RandomCodeLength
	}

	attempts := config.CodeMaxAttempts
	if attempts <= 0 {
		attempts = DefaultCodeMaxAttempts
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &service{
		repo:            repo,
		codeGenerator:   gen,
		codeLength:      codeLength,
		codeMaxAttempts: attempts,
		logger:          logger,
		now:             now,
	}
}

// Issue creates a new short link with an optional custom alias.
func (s *service) Issue(ctx context.Context, req IssueLinkRequest) (Link, error) {
	const op = "shortener.service.Issue"

	if req.OwnerID == "" {
		return Link{}, errx.E(op, errx.Unauthorized, errors.New("owner is required"))
	}
	if err := validateURL(req.OriginalURL); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}
	if err := validateDescription(req.Description); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return Link{}, errx.E(op, errx.Invalid, errors.New("expiry must be in the future"))
	}

	link := Link{
		OwnerID:     req.OwnerID,
		OriginalURL: req.OriginalURL,
		ExpiresAt:   req.ExpiresAt,
	}
	if req.Description != "" {
		link.Description = &req.Description
	}

	// Custom alias path: validate and create once. Alias conflicts are
	// user-correctable, never retried here.
	if req.CustomAlias != "" {
		alias := strings.ToLower(req.CustomAlias)
		if err := validateAlias(alias); err != nil {
			return Link{}, errx.E(op, errx.Invalid, err)
		}

		taken, err := s.repo.ExistsByAlias(ctx, alias)
		if err != nil {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
		if taken {
			return Link{}, errx.E(op, errx.Conflict, errors.New("custom alias already in use"))
		}

		link.ShortCode = alias
		link.CustomAlias = &alias

		created, err := s.repo.Insert(ctx, link)
		if err != nil {
			// Lost a race on the unique constraint: still a conflict for the caller.
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
		return created, nil
	}

	// Generated code path: retry on collisions, but never unboundedly.
	for attempt := 0; attempt < s.codeMaxAttempts; attempt++ {
		code, err := s.codeGenerator.Generate(s.codeLength)
		if err != nil {
			return Link{}, errx.E(op, errx.Internal, err)
		}
		code = strings.ToLower(code)

		exists, err := s.repo.ExistsByCode(ctx, code)
		if err != nil {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
		if exists {
			continue
		}

		link.ShortCode = code
		created, err := s.repo.Insert(ctx, link)
		if err == nil {
			return created, nil
		}

		// Retry a lost insert race on the code, fail on other errors.
		if errx.KindOf(err) != errx.Conflict {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
	}

	return Link{}, errx.E(op, errx.Internal,
		fmt.Errorf("could not generate unique short code after %d attempts", s.codeMaxAttempts))
}

// Resolve returns the redirect target for a short code, recording the
// click. Inactive and expired links are both reported as Gone.
func (s *service) Resolve(ctx context.Context, code string) (string, error) {
	const op = "shortener.service.Resolve"

	if code == "" {
		return "", errx.E(op, errx.Invalid, errors.New("code cannot be empty"))
	}

	link, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return "", errx.E(op, errx.KindOf(err), err)
	}

	if !link.IsActive {
		return "", errx.E(op, errx.Gone, errors.New("link has been disabled"))
	}
	if link.Expired(s.now()) {
		return "", errx.E(op, errx.Gone, errors.New("link has expired"))
	}

	// Best-effort click tracking: a lost counter update must never
	// break the redirect.
	affected, err := s.repo.IncrementClicks(ctx, link.ShortCode)
	switch {
	case err != nil:
		s.logger.WarnContext(ctx, "click increment failed",
			"code", link.ShortCode,
			"error", err.Error(),
		)
	case affected == 0:
		s.logger.WarnContext(ctx, "click increment affected no rows",
			"code", link.ShortCode,
		)
	}

	// The stored URL passed validation at issuance, but re-check before
	// telling anyone to redirect to it.
	if err := validateURL(link.OriginalURL); err != nil {
		return "", errx.E(op, errx.Invalid, fmt.Errorf("stored url is not redirectable: %w", err))
	}

	return link.OriginalURL, nil
}

// GetByID returns a single link scoped to its owner.
func (s *service) GetByID(ctx context.Context, id uuid.UUID, ownerID string) (Link, error) {
	const op = "shortener.service.GetByID"

	if ownerID == "" {
		return Link{}, errx.E(op, errx.Unauthorized, errors.New("owner is required"))
	}

	link, err := s.repo.FindByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return link, nil
}

// ListByOwner returns the owner's active links.
func (s *service) ListByOwner(ctx context.Context, ownerID string) ([]Link, error) {
	const op = "shortener.service.ListByOwner"

	if ownerID == "" {
		return nil, errx.E(op, errx.Unauthorized, errors.New("owner is required"))
	}

	links, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}
	return links, nil
}

// Deactivate soft-deletes a link: the record stays, redirects stop.
func (s *service) Deactivate(ctx context.Context, id uuid.UUID, ownerID string) error {
	const op = "shortener.service.Deactivate"

	if ownerID == "" {
		return errx.E(op, errx.Unauthorized, errors.New("owner is required"))
	}

	link, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}
	if link.OwnerID != ownerID {
		return errx.E(op, errx.Forbidden, errors.New("link belongs to another owner"))
	}

	affected, err := s.repo.SetActive(ctx, id, ownerID, false)
	if err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}
	if affected == 0 {
		return errx.E(op, errx.NotFound, errors.New("link no longer exists"))
	}
	return nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("url cannot be empty")
	}
	if len(rawURL) > MaxURLLength {
		return errors.New("url too long (max 2048 characters)")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid url format")
	}
	if parsedURL.Scheme == "" {
		return errors.New("url must include scheme (http or https)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	if parsedURL.Host == "" {
		return errors.New("url must include host")
	}
	return nil
}

func validateAlias(alias string) error {
	if len(alias) < MinAliasLength {
		return errors.New("custom alias too short (minimum 3 characters)")
	}
	if len(alias) > MaxAliasLength {
		return errors.New("custom alias too long (maximum 30 characters)")
	}

	for _, char := range alias {
		if !isValidAliasChar(char) {
			return errors.New("custom alias contains invalid characters (only alphanumeric, dash, and underscore allowed)")
		}
	}
	return nil
}

func validateDescription(description string) error {
	if len(description) > MaxDescriptionLength {
		return errors.New("description too long (maximum 500 characters)")
	}
	return nil
}

func isValidAliasChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	default:
		return false
	}
}
