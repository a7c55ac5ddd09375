package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/cravings/internal/apperr"
	"github.com/Skotchmaster/cravings/internal/middleware/auth"
	"github.com/Skotchmaster/cravings/internal/policy"
	"github.com/Skotchmaster/cravings/internal/transport"
)

const (
	kindValidation      = "validation_error"
	kindUnauthenticated = "unauthenticated"
	kindForbidden       = "authorization_error"
	kindNotFound        = "not_found"
	kindConflict        = "conflict"
	kindState           = "state_error"
	kindInternal        = "internal_error"
)

func errorBody(kind, message string) transport.ErrorResponse {
	return transport.ErrorResponse{Status: "error", Error: kind, Message: message}
}

func classify(err error) (int, string, string) {
	switch apperr.Kind(err) {
	case apperr.ErrValidation:
		return http.StatusBadRequest, kindValidation, apperr.Reason(err)
	case apperr.ErrForbidden:
		return http.StatusForbidden, kindForbidden, apperr.Reason(err)
	case apperr.ErrNotFound:
		return http.StatusNotFound, kindNotFound, apperr.Reason(err)
	case apperr.ErrConflict:
		return http.StatusConflict, kindConflict, apperr.Reason(err)
	case apperr.ErrState:
		return http.StatusConflict, kindState, apperr.Reason(err)
	}
	return http.StatusInternalServerError, kindInternal, "internal server error"
}

// fail logs err under event and turns it into the response error.
func fail(l *slog.Logger, event string, err error) error {
	status, kind, msg := classify(err)
	if status >= http.StatusInternalServerError {
		l.Error(event, "status", status, "reason", msg, "error", err)
	} else {
		l.Warn(event, "status", status, "reason", msg, "error", err)
	}
	return echo.NewHTTPError(status, errorBody(kind, msg))
}

func badRequest(l *slog.Logger, event, reason string, err error) error {
	l.Warn(event, "status", http.StatusBadRequest, "reason", reason, "error", err)
	return echo.NewHTTPError(http.StatusBadRequest, errorBody(kindValidation, reason))
}

func principal(c echo.Context, l *slog.Logger, event string) (policy.Principal, error) {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		l.Warn(event, "status", http.StatusUnauthorized, "reason", "no principal", "error", err)
		return p, echo.NewHTTPError(http.StatusUnauthorized, errorBody(kindUnauthenticated, "authentication required"))
	}
	return p, nil
}

func pathID(c echo.Context, l *slog.Logger, event, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, badRequest(l, event, name+" is not a uuid", err)
	}
	return id, nil
}

func kindForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return kindValidation
	case http.StatusUnauthorized:
		return kindUnauthenticated
	case http.StatusForbidden:
		return kindForbidden
	case http.StatusNotFound:
		return kindNotFound
	case http.StatusConflict:
		return kindConflict
	}
	if status >= http.StatusInternalServerError {
		return kindInternal
	}
	return "error"
}

// HTTPErrorHandler renders every error, including the ones raised by echo
// and its middleware, with the common error body.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, kind, msg := classify(err)
	body := errorBody(kind, msg)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch m := he.Message.(type) {
		case transport.ErrorResponse:
			body = m
		case string:
			body = errorBody(kindForStatus(status), m)
		default:
			body = errorBody(kindForStatus(status), http.StatusText(status))
		}
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		c.Logger().Error(err)
	}
}
