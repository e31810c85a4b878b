package shortener

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/snipurl/snipurl/internal/auth"
	"github.com/snipurl/snipurl/internal/errx"
	"github.com/snipurl/snipurl/internal/httpx"
)

// CreateLinkRequestBody represents the JSON request body for creating a link.
type CreateLinkRequestBody struct {
	OriginalURL string  `json:"originalUrl"`
	CustomAlias string  `json:"customAlias,omitempty"`
	Description string  `json:"description,omitempty"`
	ExpiresAt   *string `json:"expiresAt,omitempty"` // RFC 3339
}

// LinkResponse represents the JSON response for a link.
type LinkResponse struct {
	ID          string  `json:"id"`
	ShortCode   string  `json:"shortCode"`
	ShortURL    string  `json:"shortUrl"`
	OriginalURL string  `json:"originalUrl"`
	CustomAlias *string `json:"customAlias,omitempty"`
	Description *string `json:"description,omitempty"`
	Clicks      int64   `json:"clicks"`
	IsActive    bool    `json:"isActive"`
	ExpiresAt   *string `json:"expiresAt,omitempty"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

// ListLinksResponse represents the JSON response for a link listing.
type ListLinksResponse struct {
	Links []LinkResponse `json:"links"`
}

// Handler provides HTTP handlers for the URL shortener service.
type Handler struct {
	service Service
	logger  *slog.Logger
	baseURL string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
	BaseURL string // Base URL for constructing short URLs (e.g., "https://snip.url")
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
		baseURL: cfg.BaseURL,
	}
}

// CreateLink handles POST requests to create a new short link.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(ctx, r)

	req, err := httpx.DecodeJSON[CreateLinkRequestBody](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request",
			"error", err.Error(),
		)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	if req.OriginalURL == "" {
		logger.WarnContext(ctx, "request validation failed", "error", "originalUrl is required")
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "originalUrl is required", nil)
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil {
		ts, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			logger.WarnContext(ctx, "request validation failed",
				"error", err.Error(),
				"expires_at", *req.ExpiresAt,
			)
			httpx.WriteError(w, http.StatusBadRequest, "validation_failed",
				"expiresAt must be an RFC 3339 timestamp", nil)
			return
		}
		expiresAt = &ts
	}

	link, err := h.service.Issue(ctx, IssueLinkRequest{
		OwnerID:     auth.UserID(ctx),
		OriginalURL: req.OriginalURL,
		CustomAlias: req.CustomAlias,
		Description: req.Description,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		h.handleIssueError(ctx, w, err)
		return
	}

	logger.InfoContext(ctx, "link created",
		"link_id", link.ID.String(),
		"short_code", link.ShortCode,
		"custom_alias", req.CustomAlias != "",
	)

	httpx.WriteJSON(w, http.StatusCreated, h.toLinkResponse(link))
}

// ListLinks handles GET requests for all active links owned by the caller.
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(ctx, r)

	links, err := h.service.ListByOwner(ctx, auth.UserID(ctx))
	if err != nil {
		h.handleLinkError(ctx, w, err, "failed to list links")
		return
	}

	resp := ListLinksResponse{Links: make([]LinkResponse, 0, len(links))}
	for _, link := range links {
		resp.Links = append(resp.Links, h.toLinkResponse(link))
	}

	logger.InfoContext(ctx, "links listed", "count", len(links))

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// GetLink handles GET requests for a single link owned by the caller.
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "link not found", nil)
		return
	}

	link, err := h.service.GetByID(ctx, id, auth.UserID(ctx))
	if err != nil {
		h.handleLinkError(ctx, w, err, "failed to get link")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, h.toLinkResponse(link))
}

// DeleteLink handles DELETE requests to deactivate a link. The row is
// kept and marked inactive so its code stays reserved.
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(ctx, r)

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "link not found", nil)
		return
	}

	if err := h.service.Deactivate(ctx, id, auth.UserID(ctx)); err != nil {
		h.handleLinkError(ctx, w, err, "failed to deactivate link")
		return
	}

	logger.InfoContext(ctx, "link deactivated", "link_id", id.String())

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// Redirect handles GET requests to resolve a short code and redirect to
// the original URL. The redirect is a 307 so clients do not cache it and
// a later deactivation takes effect immediately.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(ctx, r)

	code := r.PathValue("code")
	if code == "" || len(code) > MaxAliasLength {
		logger.WarnContext(ctx, "invalid short code in path", "code", code)
		httpx.WriteError(w, http.StatusNotFound, "not_found", "short link doesn't exist", nil)
		return
	}

	originalURL, err := h.service.Resolve(ctx, code)
	if err != nil {
		h.handleResolveError(ctx, w, err, code)
		return
	}

	logger.InfoContext(ctx, "short code resolved",
		"code", code,
		"user_agent", r.UserAgent(),
		"referer", r.Referer(),
	)

	http.Redirect(w, r, originalURL, http.StatusTemporaryRedirect)
}

// handleIssueError handles errors from the Issue service method.
func (h *Handler) handleIssueError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.Conflict:
		h.logger.WarnContext(ctx, "alias conflict", logAttrs...)
		httpx.WriteError(w, http.StatusConflict, "conflict",
			"This alias is already taken",
			map[string]string{
				"hint": "Try a different custom alias or let us generate a code for you",
			})

	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid link request", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)

	case errx.Unauthorized:
		h.logger.WarnContext(ctx, "unauthenticated link request", logAttrs...)
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", err.Error(), nil)

	default:
		h.logger.ErrorContext(ctx, "unexpected error creating link", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to create short link at this time. Please try again.", nil)
	}
}

// handleResolveError handles errors from the Resolve service method.
func (h *Handler) handleResolveError(ctx context.Context, w http.ResponseWriter, err error, code string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
		"code", code,
	}

	switch kind {
	case errx.NotFound:
		h.logger.WarnContext(ctx, "short code not found", logAttrs...)
		httpx.WriteError(w, http.StatusNotFound, "not_found",
			"short link doesn't exist", nil)

	case errx.Gone:
		h.logger.WarnContext(ctx, "short link gone", logAttrs...)
		httpx.WriteError(w, http.StatusGone, "gone", err.Error(), nil)

	case errx.Invalid:
		h.logger.ErrorContext(ctx, "stored url not redirectable", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input",
			"this link cannot be redirected", nil)

	default:
		h.logger.ErrorContext(ctx, "unexpected error resolving link", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to resolve this link at this time", nil)
	}
}

// handleLinkError handles errors from the owner-scoped link operations.
func (h *Handler) handleLinkError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.NotFound:
		h.logger.WarnContext(ctx, msg, logAttrs...)
		httpx.WriteError(w, http.StatusNotFound, "not_found", "link not found", nil)

	case errx.Forbidden:
		h.logger.WarnContext(ctx, msg, logAttrs...)
		httpx.WriteError(w, http.StatusForbidden, "forbidden",
			"you do not own this link", nil)

	case errx.Unauthorized:
		h.logger.WarnContext(ctx, msg, logAttrs...)
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", err.Error(), nil)

	default:
		h.logger.ErrorContext(ctx, msg, logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Something went wrong. Please try again.", nil)
	}
}

func (h *Handler) requestLogger(ctx context.Context, r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(ctx),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

func (h *Handler) toLinkResponse(link Link) LinkResponse {
	resp := LinkResponse{
		ID:          link.ID.String(),
		ShortCode:   link.ShortCode,
		ShortURL:    fmt.Sprintf("%s/%s", h.baseURL, link.ShortCode),
		OriginalURL: link.OriginalURL,
		CustomAlias: link.CustomAlias,
		Description: link.Description,
		Clicks:      link.Clicks,
		IsActive:    link.IsActive,
		CreatedAt:   link.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   link.UpdatedAt.Format(time.RFC3339),
	}
	if link.ExpiresAt != nil {
		ts := link.ExpiresAt.Format(time.RFC3339)
		resp.ExpiresAt = &ts
	}
	return resp
}
