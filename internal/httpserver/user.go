package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/cravings/internal/middleware/auth"
	"github.com/Skotchmaster/cravings/internal/policy"
	"github.com/Skotchmaster/cravings/internal/transport"
	"github.com/Skotchmaster/cravings/pkg/authclient"
	"github.com/Skotchmaster/cravings/pkg/logging"
)

// ProfileClient is the part of the identity service the profile routes use.
type ProfileClient interface {
	LookupUser(ctx context.Context, id uuid.UUID) (*authclient.User, error)
	UpdateProfile(ctx context.Context, accessToken string, upd authclient.ProfileUpdate) (*authclient.User, error)
}

type UserHTTP struct {
	Identity ProfileClient
}

func (h *UserHTTP) GetRole(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get.user_role")

	p, err := principal(c, l, "get_user_role_error")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, transport.RoleResponse{Role: policy.PrimaryRole(p)})
}

func identityError(l *slog.Logger, event string, err error) error {
	if errors.Is(err, authclient.ErrUserNotFound) {
		l.Warn(event, "status", http.StatusNotFound, "reason", "user not found", "error", err)
		return echo.NewHTTPError(http.StatusNotFound, errorBody(kindNotFound, "user not found"))
	}
	l.Error(event, "status", http.StatusBadGateway, "reason", "identity service unavailable", "error", err)
	return echo.NewHTTPError(http.StatusBadGateway, errorBody(kindInternal, "identity service unavailable"))
}

func (h *UserHTTP) GetProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get.profile")

	p, err := principal(c, l, "get_profile_error")
	if err != nil {
		return err
	}

	user, err := h.Identity.LookupUser(ctx, p.ID)
	if err != nil {
		return identityError(l, "get_profile_error", err)
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateProfile forwards the change to the identity service with the
// caller's own token.
func (h *UserHTTP) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update.profile")

	if _, err := principal(c, l, "update_profile_error"); err != nil {
		return err
	}

	var req transport.ProfileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_profile_error", "invalid body", err)
	}

	user, err := h.Identity.UpdateProfile(ctx, auth.TokenFrom(c), authclient.ProfileUpdate{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return identityError(l, "update_profile_error", err)
	}

	l.Info("profile successfully updated")
	return c.JSON(http.StatusOK, user)
}
