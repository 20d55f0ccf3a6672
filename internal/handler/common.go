// Package handler contains the HTTP handlers of the room queue API.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/iliyamo/room-queue/internal/middleware"
	"github.com/iliyamo/room-queue/internal/service"
)

// retryAfterSeconds is sent with 503 responses.
const retryAfterSeconds = "1"

var errNoUser = errors.New("missing user id in context")

// getUserID returns the authenticated subject stored by JWTAuth.
func getUserID(c echo.Context) (string, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return "", errNoUser
	}
	return id, nil
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidUser):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotRegistered):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotServing):
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

// writeError renders err as {"error", "reason"}.  System failures hide
// their detail from the client and ask it to retry.
func writeError(c echo.Context, err error) error {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusServiceUnavailable {
		middleware.RecordError(c, err)
		c.Response().Header().Set("Retry-After", retryAfterSeconds)
		msg = "service temporarily unavailable"
	}
	return c.JSON(status, echo.Map{"error": msg, "reason": service.Reason(err)})
}
