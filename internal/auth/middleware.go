package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const userIDContextKey = "auth.user_id"

// Middleware rejects requests without a valid Bearer token and stores the
// authenticated user id on the echo context for handlers that need it.
func Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, found := strings.CutPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
		if !found || raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}

		secret, err := jwtSecretFromEnv()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "server auth configuration error")
		}

		token, err := jwt.Parse(raw,
			func(*jwt.Token) (any, error) { return secret, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}

		sub, err := token.Claims.GetSubject()
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
		}
		userID, err := uuid.Parse(sub)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid user id in token")
		}

		c.Set(userIDContextKey, userID)
		return next(c)
	}
}

// GetUserIDFromContext returns the user id stored by Middleware.
func GetUserIDFromContext(c echo.Context) (uuid.UUID, error) {
	id, ok := c.Get(userIDContextKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.New("no authenticated user in context")
	}
	return id, nil
}
