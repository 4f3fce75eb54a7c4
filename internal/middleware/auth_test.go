package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func authErrorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return resp.Error.Code
}

func TestJWTMiddlewareValidToken(t *testing.T) {
	auth := NewJWTAuth("test-secret", 30*time.Minute)
	userID := uuid.New()

	token, err := auth.GenerateAccessToken(userID, "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	var gotID uuid.UUID
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetUserID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if gotID != userID {
		t.Errorf("Expected user ID %s in context, got %s", userID, gotID)
	}
}

func TestJWTMiddlewareMissingHeader(t *testing.T) {
	auth := NewJWTAuth("test-secret", 30*time.Minute)
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", rr.Code)
	}
	if code := authErrorCode(t, rr); code != "UNAUTHORIZED" {
		t.Errorf("Expected UNAUTHORIZED, got %q", code)
	}
}

func TestJWTMiddlewareMalformedToken(t *testing.T) {
	auth := NewJWTAuth("test-secret", 30*time.Minute)
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be reached")
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"not bearer", "Basic abc123"},
		{"garbage token", "Bearer not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("Expected status 401, got %d", rr.Code)
			}
			if code := authErrorCode(t, rr); code != "UNAUTHORIZED" {
				t.Errorf("Expected UNAUTHORIZED, got %q", code)
			}
		})
	}
}

func TestJWTMiddlewareExpiredToken(t *testing.T) {
	auth := NewJWTAuth("test-secret", -time.Minute)

	token, err := auth.GenerateAccessToken(uuid.New(), "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", rr.Code)
	}
	if code := authErrorCode(t, rr); code != "TOKEN_EXPIRED" {
		t.Errorf("Expected TOKEN_EXPIRED, got %q", code)
	}
}

func TestJWTMiddlewareWrongSecret(t *testing.T) {
	issuer := NewJWTAuth("issuer-secret", 30*time.Minute)
	verifier := NewJWTAuth("other-secret", 30*time.Minute)

	token, err := issuer.GenerateAccessToken(uuid.New(), "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	handler := verifier.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", rr.Code)
	}
	if code := authErrorCode(t, rr); code != "UNAUTHORIZED" {
		t.Errorf("Expected UNAUTHORIZED, got %q", code)
	}
}
