package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-queue/internal/service"
)

// DashboardSource produces the staff dashboard figures.
type DashboardSource interface {
	Stats(ctx context.Context) (service.DashboardStats, error)
}

// StaffHandler serves staff-only operations.
type StaffHandler struct {
	Queue     *QueueHandler
	Dashboard DashboardSource
}

func NewStaffHandler(queue *QueueHandler, dashboard DashboardSource) *StaffHandler {
	if queue == nil || dashboard == nil {
		panic("nil dependency passed to NewStaffHandler")
	}
	return &StaffHandler{Queue: queue, Dashboard: dashboard}
}

// releaseRequest names the member a staff action applies to.
type releaseRequest struct {
	UserID string `json:"user_id"`
}

// ReleaseRoom finishes a member's session on their behalf.
func (h *StaffHandler) ReleaseRoom(c echo.Context) error {
	var req releaseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return writeError(c, service.ErrInvalidUser)
	}
	return h.Queue.release(c, req.UserID)
}

// CheckIn checks a registered member in at the front desk, for members
// who arrive without using the chat client.
func (h *StaffHandler) CheckIn(c echo.Context) error {
	var req releaseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return writeError(c, service.ErrInvalidUser)
	}
	return h.Queue.checkIn(c, req.UserID)
}

// GetDashboard returns member and queue statistics.
func (h *StaffHandler) GetDashboard(c echo.Context) error {
	stats, err := h.Dashboard.Stats(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
