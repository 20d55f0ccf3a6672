// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-queue/internal/handler"
	"github.com/iliyamo/room-queue/internal/middleware"
	"github.com/iliyamo/room-queue/internal/utils"
)

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Members *handler.MemberHandler
	Queue   *handler.QueueHandler
	Staff   *handler.StaffHandler
}

// Middlewares are the Redis-backed wrappers.  Nil entries are skipped.
type Middlewares struct {
	RateLimit   echo.MiddlewareFunc // member endpoints
	StatusCache echo.MiddlewareFunc // public status board
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterPublic exposes the status board.  Responses may be served from
// the cache for a few seconds.
func RegisterPublic(e *echo.Echo, h Handlers, mw Middlewares) {
	e.GET("/v1/queue/status", h.Queue.Status, compact(mw.StatusCache)...)
}

// RegisterMember registers MEMBER-scoped endpoints.  All of them require a
// valid JWT whose subject is the chat user id.
func RegisterMember(e *echo.Echo, h Handlers, mw Middlewares, jwtSecret string) {
	chain := compact(
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleMember),
		mw.RateLimit,
	)
	e.POST("/v1/members/register", h.Members.Register, chain...)
	e.POST("/v1/queue/check-in", h.Queue.CheckIn, chain...)
	e.POST("/v1/queue/finish", h.Queue.Finish, chain...)
}

// RegisterStaff registers STAFF-scoped endpoints under /v1/staff.
func RegisterStaff(e *echo.Echo, h Handlers, jwtSecret string) {
	g := e.Group("/v1/staff",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleStaff),
	)
	g.POST("/check-in", h.Staff.CheckIn)
	g.POST("/rooms/release", h.Staff.ReleaseRoom)
	g.GET("/dashboard", h.Staff.GetDashboard)
}

func compact(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mws))
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}
