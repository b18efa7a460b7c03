package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	testSecret = "test-secret"
	testIssuer = "practice-portal"
)

func signToken(t *testing.T, claims Claims, secret string) string {
	t.Helper()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func accessClaims(userID uuid.UUID) Claims {
	now := time.Now()
	return Claims{
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
		},
	}
}

// TestParseAccessToken проверяет прием корректного токена и отказы.
func TestParseAccessToken(t *testing.T) {
	manager := NewTokenManager(testSecret, testIssuer)
	userID := uuid.New()

	claims, err := manager.ParseAccessToken(signToken(t, accessClaims(userID), testSecret))
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if claims.Subject != userID.String() {
		t.Fatalf("expected subject %s, got %s", userID, claims.Subject)
	}

	refresh := accessClaims(userID)
	refresh.TokenType = "refresh"

	foreign := accessClaims(userID)
	foreign.Issuer = "someone-else"

	expired := accessClaims(userID)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExpiry := accessClaims(userID)
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name  string
		token string
	}{
		{name: "refresh token", token: signToken(t, refresh, testSecret)},
		{name: "wrong issuer", token: signToken(t, foreign, testSecret)},
		{name: "expired", token: signToken(t, expired, testSecret)},
		{name: "no expiry", token: signToken(t, noExpiry, testSecret)},
		{name: "wrong secret", token: signToken(t, accessClaims(userID), "other-secret")},
		{name: "garbage", token: "not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := manager.ParseAccessToken(tt.token); err == nil {
				t.Fatalf("expected token to be rejected")
			}
		})
	}
}

// TestJWTMiddleware проверяет, что user_id попадает в контекст.
func TestJWTMiddleware(t *testing.T) {
	manager := NewTokenManager(testSecret, testIssuer)
	userID := uuid.New()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, accessClaims(userID), testSecret))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got uuid.UUID
	handler := JWTMiddleware(manager)(func(c echo.Context) error {
		got, _ = UserIDFromContext(c)
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != userID {
		t.Fatalf("expected user %s, got %s", userID, got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	c = e.NewContext(req, httptest.NewRecorder())

	err := handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 http error, got %v", err)
	}
}

// TestStreamJWTMiddlewareQueryToken проверяет токен из query только для SSE-потока.
func TestStreamJWTMiddlewareQueryToken(t *testing.T) {
	manager := NewTokenManager(testSecret, testIssuer)
	userID := uuid.New()
	token := signToken(t, accessClaims(userID), testSecret)

	ok := func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token="+token, nil)
	c := e.NewContext(req, httptest.NewRecorder())
	if err := StreamJWTMiddleware(manager)(ok)(c); err != nil {
		t.Fatalf("expected query token to be accepted, got %v", err)
	}
	if got, _ := UserIDFromContext(c); got != userID {
		t.Fatalf("expected user %s, got %s", userID, got)
	}

	req = httptest.NewRequest(http.MethodGet, "/trends?access_token="+token, nil)
	c = e.NewContext(req, httptest.NewRecorder())
	if err := JWTMiddleware(manager)(ok)(c); err == nil {
		t.Fatalf("expected query token to be rejected outside the stream")
	}
}
