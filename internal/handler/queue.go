package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/iliyamo/room-queue/internal/model"
	"github.com/iliyamo/room-queue/internal/repository"
	"github.com/iliyamo/room-queue/internal/service"
)

// RoomQueue is the manager surface used by the HTTP layer.
type RoomQueue interface {
	RequestEntry(ctx context.Context, userID, displayName string) (service.Placement, error)
	ReleaseRoom(ctx context.Context, userID string) (service.Release, error)
	StatusSnapshot(ctx context.Context) (service.Snapshot, error)
	TotalRooms() int
}

// QueueHandler serves member check-in, finish and the public status board.
type QueueHandler struct {
	Queue   RoomQueue
	Members MemberDirectory
}

func NewQueueHandler(queue RoomQueue, members MemberDirectory) *QueueHandler {
	if queue == nil || members == nil {
		panic("nil dependency passed to NewQueueHandler")
	}
	return &QueueHandler{Queue: queue, Members: members}
}

// placementResponse is the check-in reply.  Exactly one of RoomNumber and
// QueueNumber is set.
type placementResponse struct {
	Status           model.EntryStatus `json:"status"`
	RoomNumber       int               `json:"room_number,omitempty"`
	QueueNumber      int64             `json:"queue_number,omitempty"`
	Ahead            int               `json:"ahead"`
	AlreadyCheckedIn bool              `json:"already_checked_in"`
	Entry            model.QueueEntry  `json:"entry"`
}

// CheckIn places the registered caller in a room or in the waiting line.
// Repeated check-ins return the caller's current place unchanged.
func (h *QueueHandler) CheckIn(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return h.checkIn(c, userID)
}

func (h *QueueHandler) checkIn(c echo.Context, userID string) error {
	ctx := c.Request().Context()

	member, err := h.Members.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return writeError(c, service.ErrNotRegistered)
	}
	if err != nil {
		return writeError(c, err)
	}

	p, err := h.Queue.RequestEntry(ctx, userID, member.DisplayName)
	if err != nil {
		return writeError(c, err)
	}
	status := http.StatusCreated
	if p.Existing {
		status = http.StatusOK
	}
	return c.JSON(status, placementResponse{
		Status:           p.Entry.Status,
		RoomNumber:       p.Entry.RoomNumber,
		QueueNumber:      p.Entry.QueueNumber,
		Ahead:            p.Ahead,
		AlreadyCheckedIn: p.Existing,
		Entry:            p.Entry,
	})
}

// Finish releases the caller's room.
func (h *QueueHandler) Finish(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return h.release(c, userID)
}

func (h *QueueHandler) release(c echo.Context, userID string) error {
	r, err := h.Queue.ReleaseRoom(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	resp := echo.Map{
		"status":      model.StatusFinished,
		"room_number": r.Room,
		"entry":       r.Finished,
		"next":        nil,
	}
	if r.Promoted != nil {
		resp["next"] = echo.Map{
			"user_id":      r.Promoted.UserID,
			"display_name": r.Promoted.DisplayName,
			"queue_number": r.Promoted.QueueNumber,
			"room_number":  r.Promoted.RoomNumber,
		}
	}
	return c.JSON(http.StatusOK, resp)
}

type servingView struct {
	RoomNumber  int        `json:"room_number"`
	DisplayName string     `json:"display_name"`
	Since       *time.Time `json:"since,omitempty"`
}

type waitingView struct {
	QueueNumber int64     `json:"queue_number"`
	DisplayName string    `json:"display_name"`
	CheckInTime time.Time `json:"check_in_time"`
}

// Status renders the public board.  User ids are not exposed.
func (h *QueueHandler) Status(c echo.Context) error {
	snap, err := h.Queue.StatusSnapshot(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	serving := make([]servingView, 0, len(snap.Serving))
	for _, e := range snap.Serving {
		serving = append(serving, servingView{RoomNumber: e.RoomNumber, DisplayName: e.DisplayName, Since: e.ServeTime})
	}
	waiting := make([]waitingView, 0, len(snap.Waiting))
	for _, e := range snap.Waiting {
		waiting = append(waiting, waitingView{QueueNumber: e.QueueNumber, DisplayName: e.DisplayName, CheckInTime: e.CheckInTime})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"total_rooms": h.Queue.TotalRooms(),
		"free_rooms":  max(0, h.Queue.TotalRooms()-len(serving)),
		"serving":     serving,
		"waiting":     waiting,
	})
}
