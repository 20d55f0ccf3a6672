package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/room-queue/internal/handler"
	"github.com/iliyamo/room-queue/internal/repository"
	"github.com/iliyamo/room-queue/internal/service"
	"github.com/iliyamo/room-queue/internal/utils"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T, rooms int) *echo.Echo {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	members := repository.NewMemoryMemberRepo()
	store := repository.NewMemoryQueueRepo()
	q := service.NewRoomQueue(store, nil, service.Options{TotalRooms: rooms}, logger)

	qh := handler.NewQueueHandler(q, members)
	h := Handlers{
		Members: handler.NewMemberHandler(members),
		Queue:   qh,
		Staff:   handler.NewStaffHandler(qh, service.NewDashboard(members, store)),
	}
	e := echo.New()
	RegisterRoutes(e, nil)
	RegisterPublic(e, h, Middlewares{})
	RegisterMember(e, h, Middlewares{}, testSecret)
	RegisterStaff(e, h, testSecret)
	return e
}

func token(t *testing.T, sub, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, sub, role, time.Hour)
	require.NoError(t, err)
	return tok.Token
}

func do(t *testing.T, e *echo.Echo, method, path, tok, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var out map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func register(t *testing.T, e *echo.Echo, user string) string {
	t.Helper()
	tok := token(t, user, utils.RoleMember)
	rec, _ := do(t, e, http.MethodPost, "/v1/members/register", tok, `{"display_name":"`+user+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	return tok
}

func TestHealthz(t *testing.T) {
	e := newTestServer(t, 2)
	rec, body := do(t, e, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestRegisterIsIdempotent(t *testing.T) {
	e := newTestServer(t, 2)
	tok := register(t, e, "U1")

	rec, body := do(t, e, http.MethodPost, "/v1/members/register", tok, `{"display_name":"Other"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["already_registered"])
	member := body["member"].(map[string]interface{})
	assert.Equal(t, "U1", member["display_name"])

	rec, _ = do(t, e, http.MethodPost, "/v1/members/register", tok, `{"display_name":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckInFlow(t *testing.T) {
	e := newTestServer(t, 2)

	stranger := token(t, "nobody", utils.RoleMember)
	rec, body := do(t, e, http.MethodPost, "/v1/queue/check-in", stranger, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, service.ReasonNotRegistered, body["reason"])

	u1 := register(t, e, "U1")
	u2 := register(t, e, "U2")
	u3 := register(t, e, "U3")

	rec, body = do(t, e, http.MethodPost, "/v1/queue/check-in", u1, "")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "SERVING", body["status"])
	assert.Equal(t, float64(1), body["room_number"])

	rec, body = do(t, e, http.MethodPost, "/v1/queue/check-in", u1, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["already_checked_in"])

	do(t, e, http.MethodPost, "/v1/queue/check-in", u2, "")
	rec, body = do(t, e, http.MethodPost, "/v1/queue/check-in", u3, "")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "WAITING", body["status"])
	assert.Equal(t, float64(1), body["queue_number"])
	assert.Nil(t, body["room_number"])

	rec, body = do(t, e, http.MethodGet, "/v1/queue/status", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["total_rooms"])
	assert.Equal(t, float64(0), body["free_rooms"])
	assert.Len(t, body["serving"], 2)
	assert.Len(t, body["waiting"], 1)
	assert.NotContains(t, rec.Body.String(), "user_id")

	rec, body = do(t, e, http.MethodPost, "/v1/queue/finish", u1, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "FINISHED", body["status"])
	next := body["next"].(map[string]interface{})
	assert.Equal(t, "U3", next["user_id"])
	assert.Equal(t, float64(1), next["room_number"])

	rec, body = do(t, e, http.MethodPost, "/v1/queue/finish", u1, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, service.ReasonNotServing, body["reason"])
}

func TestStaffEndpoints(t *testing.T) {
	e := newTestServer(t, 1)
	u1 := register(t, e, "U1")
	do(t, e, http.MethodPost, "/v1/queue/check-in", u1, "")
	staff := token(t, "S1", utils.RoleStaff)

	rec, _ := do(t, e, http.MethodGet, "/v1/staff/dashboard", u1, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body := do(t, e, http.MethodGet, "/v1/staff/dashboard", staff, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["total_users"])
	assert.Equal(t, float64(1), body["checkins_today"])
	chart := body["user_chart"].(map[string]interface{})
	assert.Len(t, chart["labels"], 7)

	rec, body = do(t, e, http.MethodPost, "/v1/staff/rooms/release", staff, `{"user_id":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.ReasonInvalidUser, body["reason"])

	rec, body = do(t, e, http.MethodPost, "/v1/staff/rooms/release", staff, `{"user_id":"U1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["room_number"])
	assert.Nil(t, body["next"])

	rec, _ = do(t, e, http.MethodPost, "/v1/queue/check-in", staff, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStaffCheckIn(t *testing.T) {
	e := newTestServer(t, 1)
	register(t, e, "U1")
	register(t, e, "U2")
	staff := token(t, "S1", utils.RoleStaff)

	rec, body := do(t, e, http.MethodPost, "/v1/staff/check-in", staff, `{"user_id":"ghost"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, service.ReasonNotRegistered, body["reason"])

	rec, body = do(t, e, http.MethodPost, "/v1/staff/check-in", staff, `{"user_id":" "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.ReasonInvalidUser, body["reason"])

	rec, body = do(t, e, http.MethodPost, "/v1/staff/check-in", staff, `{"user_id":"U1"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "SERVING", body["status"])
	assert.Equal(t, float64(1), body["room_number"])

	rec, body = do(t, e, http.MethodPost, "/v1/staff/check-in", staff, `{"user_id":"U2"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "WAITING", body["status"])
	assert.Equal(t, float64(1), body["queue_number"])

	rec, body = do(t, e, http.MethodPost, "/v1/staff/check-in", staff, `{"user_id":"U1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["already_checked_in"])

	member := token(t, "U1", utils.RoleMember)
	rec, _ = do(t, e, http.MethodPost, "/v1/staff/check-in", member, `{"user_id":"U2"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
