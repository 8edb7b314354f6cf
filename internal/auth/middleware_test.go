package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func invoke(t *testing.T, authHeader string) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	c := e.NewContext(req, httptest.NewRecorder())

	handler := Middleware(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return c, handler(c)
}

func TestMiddleware_ValidTokenSetsUserID(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	userID := uuid.New()
	token, err := generateToken(userID)
	if err != nil {
		t.Fatalf("generateToken: %v", err)
	}

	c, err := invoke(t, "Bearer "+token)
	if err != nil {
		t.Fatalf("middleware rejected a valid token: %v", err)
	}
	got, err := GetUserIDFromContext(c)
	if err != nil {
		t.Fatalf("GetUserIDFromContext: %v", err)
	}
	if got != userID {
		t.Fatalf("user id = %s, want %s", got, userID)
	}
}

func TestMiddleware_RejectsBadRequests(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not a bearer token", "Basic abc123"},
		{"garbage token", "Bearer not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := invoke(t, tt.header)
			he, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("error = %v, want *echo.HTTPError", err)
			}
			if he.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", he.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestGetUserIDFromContext_WithoutMiddleware(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if _, err := GetUserIDFromContext(c); err == nil {
		t.Fatal("expected an error when no user is set on the context")
	}
}
