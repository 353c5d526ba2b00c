package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

func authConfig(required bool) *common.Config {
	cfg := common.NewDefaultConfig()
	cfg.Auth.JWTSecret = testSecret
	cfg.Auth.Required = required
	return cfg
}

func TestBearerTokenMiddleware_ValidTokenPopulatesUser(t *testing.T) {
	var got *common.UserContext
	handler := bearerTokenMiddleware(authConfig(false))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = common.UserContextFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/portfolios", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "alice", "admin"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if got == nil || got.UserID != "alice" || got.Role != "admin" {
		t.Errorf("unexpected user context: %+v", got)
	}
}

func TestBearerTokenMiddleware_Rejections(t *testing.T) {
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte(testSecret))
	wrongKey, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}).SignedString([]byte("other"))
	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "admin"}).SignedString([]byte(testSecret))

	tests := []struct {
		name     string
		required bool
		path     string
		header   string
		want     int
	}{
		{"no header optional", false, "/api/portfolios", "", http.StatusOK},
		{"no header required", true, "/api/portfolios", "", http.StatusUnauthorized},
		{"health is public", true, "/api/health", "", http.StatusOK},
		{"expired", false, "/api/portfolios", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", false, "/api/portfolios", "Bearer " + wrongKey, http.StatusUnauthorized},
		{"no subject", false, "/api/portfolios", "Bearer " + noSubject, http.StatusUnauthorized},
		{"garbage", false, "/api/portfolios", "Bearer not-a-token", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := bearerTokenMiddleware(authConfig(tt.required))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("Expected %d, got %d", tt.want, rr.Code)
			}
			if tt.want == http.StatusUnauthorized && rr.Header().Get("WWW-Authenticate") == "" {
				t.Error("Expected WWW-Authenticate header")
			}
		})
	}
}

func TestCorrelationIDMiddleware_PreservesRequestID(t *testing.T) {
	handler := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Correlation-ID"); got != "abc123" {
		t.Errorf("Expected abc123, got %q", got)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if got := rr.Header().Get("X-Correlation-ID"); len(got) != 8 {
		t.Errorf("Expected generated 8-char id, got %q", got)
	}
}

func TestRecoveryMiddleware_Returns500(t *testing.T) {
	handler := recoveryMiddleware(common.NewSilentLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rr.Code)
	}
}

func TestCorsMiddleware_Preflight(t *testing.T) {
	called := false
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/portfolios", nil))
	if rr.Code != http.StatusNoContent || called {
		t.Errorf("Expected 204 without calling next, got %d called=%v", rr.Code, called)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS origin header")
	}
}
