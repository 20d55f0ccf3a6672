package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-queue/internal/model"
)

// MemberDirectory is the member store the handlers need.
type MemberDirectory interface {
	Register(ctx context.Context, m model.Member) (bool, error)
	Get(ctx context.Context, userID string) (model.Member, error)
}

// MemberHandler serves member registration.
type MemberHandler struct {
	Members MemberDirectory
}

func NewMemberHandler(members MemberDirectory) *MemberHandler {
	if members == nil {
		panic("nil member directory passed to NewMemberHandler")
	}
	return &MemberHandler{Members: members}
}

type registerRequest struct {
	DisplayName string `json:"display_name"`
	PictureURL  string `json:"picture_url"`
}

// Register records the caller as a member.  The first call answers 201;
// repeated calls answer 200 with the stored profile.
func (h *MemberHandler) Register(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" || len(name) > 255 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "display_name is required (max 255 chars)"})
	}

	ctx := c.Request().Context()
	created, err := h.Members.Register(ctx, model.Member{
		UserID:      userID,
		DisplayName: name,
		PictureURL:  strings.TrimSpace(req.PictureURL),
	})
	if err != nil {
		return writeError(c, err)
	}
	m, err := h.Members.Get(ctx, userID)
	if err != nil {
		return writeError(c, err)
	}
	if !created {
		return c.JSON(http.StatusOK, echo.Map{"member": m, "already_registered": true})
	}
	return c.JSON(http.StatusCreated, echo.Map{"member": m, "already_registered": false})
}
