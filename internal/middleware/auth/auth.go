// Package auth authenticates requests with access tokens issued by the
// identity service.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/cravings/internal/policy"
	"github.com/Skotchmaster/cravings/pkg/logging"
	"github.com/Skotchmaster/cravings/pkg/tokens"
)

const (
	principalKey = "principal"
	tokenKey     = "access_token"
)

var ErrNoPrincipal = errors.New("no authenticated principal")

type SimpleAuth struct {
	JWTSecret []byte
}

func NewSimpleAuth(secret []byte) *SimpleAuth {
	return &SimpleAuth{JWTSecret: secret}
}

// AccessToken reads the bearer token, falling back to the accessToken
// cookie.
func AccessToken(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	if ck, err := c.Cookie("accessToken"); err == nil {
		return ck.Value
	}
	return ""
}

func (m *SimpleAuth) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		l := logging.FromContext(c.Request().Context()).With("middleware", "auth")

		raw := AccessToken(c)
		if raw == "" {
			l.Warn("auth_failed", "status", 401, "reason", "missing access token")
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := tokens.AccessClaimsFromToken(raw, m.JWTSecret)
		if err != nil || claims == nil {
			l.Warn("auth_failed", "status", 401, "reason", "invalid or expired token", "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}

		id, err := uuid.Parse(claims.Subject)
		if err != nil {
			l.Warn("auth_failed", "status", 401, "reason", "subject is not a uuid", "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}

		p := policy.Principal{
			ID:       id,
			Username: claims.Username,
			Roles:    policy.ParseRoles(claims.Roles),
			IsStaff:  claims.IsStaff,
		}
		c.Set(principalKey, p)
		c.Set(tokenKey, raw)
		c.Set("user_id", id.String())

		return next(c)
	}
}

// PrincipalFrom returns the principal stored by RequireAuth.
func PrincipalFrom(c echo.Context) (policy.Principal, error) {
	p, ok := c.Get(principalKey).(policy.Principal)
	if !ok {
		return policy.Principal{}, ErrNoPrincipal
	}
	return p, nil
}

// TokenFrom returns the raw access token of the request.
func TokenFrom(c echo.Context) string {
	tok, _ := c.Get(tokenKey).(string)
	return tok
}
