package auth

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	ContextUserIDKey = "user_id"
	queryTokenParam  = "access_token"
)

type AccessTokenParser interface {
	ParseAccessToken(tokenString string) (*Claims, error)
}

// JWTMiddleware проверяет access-токен и сохраняет user_id в контексте.
func JWTMiddleware(parser AccessTokenParser) echo.MiddlewareFunc {
	return jwtMiddleware(parser, false)
}

// StreamJWTMiddleware работает как JWTMiddleware, но без заголовка берет токен из query access_token.
func StreamJWTMiddleware(parser AccessTokenParser) echo.MiddlewareFunc {
	return jwtMiddleware(parser, true)
}

func jwtMiddleware(parser AccessTokenParser, allowQuery bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := bearerToken(c, allowQuery)
			if err != nil {
				return err
			}

			claims, err := parser.ParseAccessToken(tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
			}

			c.Set(ContextUserIDKey, userID)
			return next(c)
		}
	}
}

func bearerToken(c echo.Context, allowQuery bool) (string, error) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		if allowQuery {
			if token := strings.TrimSpace(c.QueryParam(queryTokenParam)); token != "" {
				return token, nil
			}
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}

	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
	}

	return token, nil
}

// UserIDFromContext извлекает идентификатор пользователя из контекста.
func UserIDFromContext(c echo.Context) (uuid.UUID, bool) {
	userID, ok := c.Get(ContextUserIDKey).(uuid.UUID)
	return userID, ok
}
