package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/snipurl/snipurl/internal/auth"
	"github.com/snipurl/snipurl/internal/db"
	"github.com/snipurl/snipurl/internal/ratelimit"
	"github.com/snipurl/snipurl/internal/shortener"
)

const (
	testJWTSecret = "0123456789abcdef0123456789abcdef"
	testBaseURL   = "http://localhost:8080"
)

// testApp holds the application components for e2e testing
type testApp struct {
	mux     *http.ServeMux
	dbPool  *pgxpool.Pool
	limiter *ratelimit.Limiter
	cleanup func()
}

// setupTestApp creates a test application with a real database, the
// same wiring the server uses: auth on the dashboard API, rate limiting
// on creation, public redirects.
func setupTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	// Get connection string
	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	// Connect to database
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2

	dbPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}

	// Verify connection
	if err := dbPool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	// Apply schema
	if err := applySchema(ctx, dbPool); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	// Setup application components
	logger := setupTestLogger()

	queries := db.New(dbPool)
	repo := shortener.NewRepository(queries, nil)
	svc := shortener.NewService(repo, &shortener.ServiceConfig{Logger: logger})

	handler := shortener.NewHandler(shortener.HandlerConfig{
		Service: svc,
		Logger:  logger,
		BaseURL: testBaseURL,
	})

	verifier := auth.NewVerifier(auth.VerifierConfig{
		Secret: testJWTSecret,
		Logger: logger,
	})

	// High limit so only the dedicated rate-limit test trips it.
	limiter := ratelimit.New(ratelimit.Config{
		MaxRequests: 1000,
		Window:      10 * time.Second,
	})

	authed := verifier.Middleware
	limited := ratelimit.Middleware(limiter)

	mux := http.NewServeMux()
	mux.Handle("POST /api/links", authed(limited(http.HandlerFunc(handler.CreateLink))))
	mux.Handle("GET /api/links", authed(http.HandlerFunc(handler.ListLinks)))
	mux.Handle("GET /api/links/{id}", authed(http.HandlerFunc(handler.GetLink)))
	mux.Handle("DELETE /api/links/{id}", authed(http.HandlerFunc(handler.DeleteLink)))
	mux.HandleFunc("GET /{code}", handler.Redirect)

	// Cleanup function
	cleanup := func() {
		limiter.Close()
		dbPool.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	}

	return &testApp{
		mux:     mux,
		dbPool:  dbPool,
		limiter: limiter,
		cleanup: cleanup,
	}
}

// signToken issues a short-lived bearer token for the given user.
func signToken(t *testing.T, userID string) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func (app *testApp) createLink(t *testing.T, userID string, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	payload, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", "/api/links", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(t, userID))
	}
	rr := httptest.NewRecorder()
	app.mux.ServeHTTP(rr, req)
	return rr
}

func TestCreateLink_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	tests := []struct {
		name           string
		requestBody    map[string]string
		expectedStatus int
		checkResponse  func(*testing.T, map[string]any)
	}{
		{
			name: "create link with generated code",
			requestBody: map[string]string{
				"originalUrl": "https://example.com/test",
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, resp map[string]any) {
				code, _ := resp["shortCode"].(string)
				if len(code) != shortener.RandomCodeLength {
					t.Errorf("expected %d-char shortCode, got %q", shortener.RandomCodeLength, code)
				}
				if resp["originalUrl"] != "https://example.com/test" {
					t.Errorf("expected originalUrl 'https://example.com/test', got %v", resp["originalUrl"])
				}
				if resp["shortUrl"] != testBaseURL+"/"+code {
					t.Errorf("expected shortUrl %q, got %v", testBaseURL+"/"+code, resp["shortUrl"])
				}
			},
		},
		{
			name: "create link with custom alias",
			requestBody: map[string]string{
				"originalUrl": "https://example.com/custom",
				"customAlias": "My-Custom-Link",
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, resp map[string]any) {
				if resp["shortCode"] != "my-custom-link" {
					t.Errorf("expected lowercased shortCode 'my-custom-link', got %v", resp["shortCode"])
				}
			},
		},
		{
			name:           "missing originalUrl",
			requestBody:    map[string]string{},
			expectedStatus: http.StatusBadRequest,
			checkResponse:  func(t *testing.T, resp map[string]any) {},
		},
		{
			name: "invalid url format",
			requestBody: map[string]string{
				"originalUrl": "not-a-valid-url",
			},
			expectedStatus: http.StatusBadRequest,
			checkResponse:  func(t *testing.T, resp map[string]any) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := app.createLink(t, "user-1", tt.requestBody)

			if rr.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rr.Code)
				t.Logf("response body: %s", rr.Body.String())
			}

			if tt.expectedStatus == http.StatusCreated {
				var response map[string]any
				if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				tt.checkResponse(t, response)
			}
		})
	}

	t.Run("rejects request without token", func(t *testing.T) {
		rr := app.createLink(t, "", map[string]string{
			"originalUrl": "https://example.com/anon",
		})
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", rr.Code)
		}
	})
}

func TestRedirect_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	rr := app.createLink(t, "user-1", map[string]string{
		"originalUrl": "https://example.com/redirect-test",
		"customAlias": "test-redirect",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("failed to create link: status %d", rr.Code)
	}

	tests := []struct {
		name           string
		code           string
		expectedStatus int
		expectedURL    string
	}{
		{
			name:           "resolve existing code",
			code:           "test-redirect",
			expectedStatus: http.StatusTemporaryRedirect,
			expectedURL:    "https://example.com/redirect-test",
		},
		{
			name:           "resolve is case insensitive",
			code:           "Test-Redirect",
			expectedStatus: http.StatusTemporaryRedirect,
			expectedURL:    "https://example.com/redirect-test",
		},
		{
			name:           "resolve non-existent code",
			code:           "non-existent",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/"+tt.code, nil)
			rr := httptest.NewRecorder()
			app.mux.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rr.Code)
			}

			if tt.expectedStatus == http.StatusTemporaryRedirect {
				location := rr.Header().Get("Location")
				if location != tt.expectedURL {
					t.Errorf("expected location %s, got %s", tt.expectedURL, location)
				}
			}
		})
	}
}

func TestDuplicateAlias_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	rr1 := app.createLink(t, "user-1", map[string]string{
		"originalUrl": "https://example.com/first",
		"customAlias": "duplicate-test",
	})
	if rr1.Code != http.StatusCreated {
		t.Fatalf("failed to create first link: status %d", rr1.Code)
	}

	// Same alias again, even from another user, conflicts.
	rr2 := app.createLink(t, "user-2", map[string]string{
		"originalUrl": "https://example.com/second",
		"customAlias": "duplicate-test",
	})
	if rr2.Code != http.StatusConflict {
		t.Errorf("expected status 409 (conflict), got %d", rr2.Code)
	}

	var errorResp map[string]any
	if err := json.NewDecoder(rr2.Body).Decode(&errorResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if errorResp["error"] != "conflict" {
		t.Errorf("expected error code 'conflict', got %v", errorResp["error"])
	}
}

func TestClickTracking_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	ctx := context.Background()

	rr := app.createLink(t, "user-1", map[string]string{
		"originalUrl": "https://example.com/track-test",
		"customAlias": "track-clicks",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("failed to create link: status %d", rr.Code)
	}

	// Follow the link a few times
	for i := range 3 {
		req := httptest.NewRequest("GET", "/track-clicks", nil)
		rec := httptest.NewRecorder()
		app.mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusTemporaryRedirect {
			t.Errorf("redirect attempt %d failed with status %d", i+1, rec.Code)
		}
	}

	// Check click count in database
	queries := db.New(app.dbPool)
	link, err := queries.GetLinkByCode(ctx, "track-clicks")
	if err != nil {
		t.Fatalf("failed to get link from database: %v", err)
	}

	if link.Clicks != 3 {
		t.Errorf("expected 3 clicks, got %d", link.Clicks)
	}
}

func TestDeactivate_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	rr := app.createLink(t, "user-1", map[string]string{
		"originalUrl": "https://example.com/soft-delete",
		"customAlias": "soon-gone",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("failed to create link: status %d", rr.Code)
	}

	var created map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	linkID, _ := created["id"].(string)
	if linkID == "" {
		t.Fatal("expected link id in response")
	}

	t.Run("another user cannot delete the link", func(t *testing.T) {
		req := httptest.NewRequest("DELETE", "/api/links/"+linkID, nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "user-2"))
		rec := httptest.NewRecorder()
		app.mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", rec.Code)
		}
	})

	t.Run("owner deletes the link", func(t *testing.T) {
		req := httptest.NewRequest("DELETE", "/api/links/"+linkID, nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1"))
		rec := httptest.NewRecorder()
		app.mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("deactivated link returns 410 on redirect", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/soon-gone", nil)
		rec := httptest.NewRecorder()
		app.mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusGone {
			t.Errorf("expected status 410, got %d", rec.Code)
		}
	})

	t.Run("alias stays reserved after deactivation", func(t *testing.T) {
		rr := app.createLink(t, "user-1", map[string]string{
			"originalUrl": "https://example.com/reuse-attempt",
			"customAlias": "soon-gone",
		})
		if rr.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rr.Code)
		}
	})
}

func TestListLinks_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	for i := range 3 {
		rr := app.createLink(t, "user-1", map[string]string{
			"originalUrl": fmt.Sprintf("https://example.com/page-%d", i),
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("failed to create link %d: status %d", i, rr.Code)
		}
	}
	if rr := app.createLink(t, "user-2", map[string]string{
		"originalUrl": "https://example.com/other",
	}); rr.Code != http.StatusCreated {
		t.Fatalf("failed to create other user's link: status %d", rr.Code)
	}

	req := httptest.NewRequest("GET", "/api/links", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1"))
	rec := httptest.NewRecorder()
	app.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp struct {
		Links []map[string]any `json:"links"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Links) != 3 {
		t.Errorf("expected 3 links for user-1, got %d", len(resp.Links))
	}
}

func TestRateLimit_E2E(t *testing.T) {
	// A dedicated low-limit limiter wired the same way the server wires it.
	limiter := ratelimit.New(ratelimit.Config{
		MaxRequests: 2,
		Window:      10 * time.Second,
	})
	defer limiter.Close()

	limited := ratelimit.Middleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := range 2 {
		req := httptest.NewRequest("POST", "/api/links", nil)
		req.RemoteAddr = "203.0.113.7:40000"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest("POST", "/api/links", nil)
	req.RemoteAddr = "203.0.113.7:40000"
	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after limit, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestConcurrentLinkCreation_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	// Create multiple links concurrently with generated codes
	concurrency := 10
	errChan := make(chan error, concurrency)
	codeChan := make(chan string, concurrency)
	token := signToken(t, "user-1")

	for i := range concurrency {
		go func(index int) {
			payload, _ := json.Marshal(map[string]string{
				"originalUrl": fmt.Sprintf("https://example.com/concurrent-%d", index),
			})
			req := httptest.NewRequest("POST", "/api/links", bytes.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)
			rr := httptest.NewRecorder()
			app.mux.ServeHTTP(rr, req)

			if rr.Code != http.StatusCreated {
				errChan <- fmt.Errorf("request %d failed with status %d", index, rr.Code)
				return
			}

			var response map[string]any
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				errChan <- err
				return
			}

			codeChan <- response["shortCode"].(string)
			errChan <- nil
		}(i)
	}

	// Collect results
	codes := make(map[string]bool)
	for range concurrency {
		if err := <-errChan; err != nil {
			t.Errorf("concurrent request failed: %v", err)
			continue
		}
		code := <-codeChan
		if codes[code] {
			t.Errorf("duplicate short code generated: %s", code)
		}
		codes[code] = true
	}
}

// Helper functions

func applySchema(ctx context.Context, pool *pgxpool.Pool) error {
	schema, err := os.ReadFile("../../db/schema.sql")
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, string(schema))
	return err
}

func setupTestLogger() *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	})
	return slog.New(handler)
}
