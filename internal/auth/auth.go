// Package auth verifies bearer tokens issued by the external identity
// provider and exposes the authenticated owner id on the request
// context. Token issuance and login flows live with the provider, not
// here.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/snipurl/snipurl/internal/errx"
	"github.com/snipurl/snipurl/internal/httpx"
)

// contextKey is the type for context keys to avoid collisions.
type contextKey string

const userIDContextKey contextKey = "user_id"

// Verifier validates bearer JWTs signed with a shared HMAC secret.
type Verifier struct {
	secret []byte
	issuer string
	logger *slog.Logger
}

// VerifierConfig holds configuration for the Verifier.
type VerifierConfig struct {
	Secret string
	Issuer string // optional: when set, tokens must carry this issuer
	Logger *slog.Logger
}

// NewVerifier creates a new Verifier instance.
func NewVerifier(cfg VerifierConfig) *Verifier {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Verifier{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		logger: logger,
	}
}

// Middleware rejects requests without a valid bearer token and places
// the token subject (the owner id) on the request context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, ok := bearerToken(r)
		if !ok {
			httpx.WriteKindError(w, errx.Unauthorized, "missing bearer token")
			return
		}

		userID, err := v.Verify(token)
		if err != nil {
			v.logger.WarnContext(ctx, "token verification failed",
				"request_id", httpx.GetRequestID(ctx),
				"error", err.Error(),
			)
			httpx.WriteKindError(w, errx.Unauthorized, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(ctx, userID)))
	})
}

// Verify parses and validates a token string, returning its subject.
func (v *Verifier) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", jwt.ErrTokenInvalidSubject
	}

	return claims.Subject, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

// UserID extracts the authenticated owner id from context.
// Returns empty string if not found.
func UserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDContextKey).(string); ok {
		return id
	}
	return ""
}

// WithUserID adds an owner id to the context.
// This is useful for testing or internal calls.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
