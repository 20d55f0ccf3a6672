package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/room-queue/internal/service"
)

type downQueue struct{}

func (downQueue) RequestEntry(ctx context.Context, userID, displayName string) (service.Placement, error) {
	return service.Placement{}, &service.SystemError{Op: "request entry", Err: errors.New("dial tcp: refused")}
}

func (downQueue) ReleaseRoom(ctx context.Context, userID string) (service.Release, error) {
	return service.Release{}, &service.SystemError{Op: "release room", Err: errors.New("dial tcp: refused")}
}

func (downQueue) StatusSnapshot(ctx context.Context) (service.Snapshot, error) {
	return service.Snapshot{}, &service.SystemError{Op: "status snapshot", Err: errors.New("timeout")}
}

func (downQueue) TotalRooms() int { return 2 }

func TestSystemErrorsRenderAs503(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/v1/queue/finish", nil), rec)
	c.Set("user_id", "U1")

	h := &QueueHandler{Queue: downQueue{}}
	require.NoError(t, h.Finish(c))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, service.ReasonUnavailable, body["reason"])
	assert.NotContains(t, body["error"], "dial tcp")
}

func TestMissingUserIsUnauthorized(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/v1/queue/check-in", nil), rec)

	h := &QueueHandler{Queue: downQueue{}}
	require.NoError(t, h.CheckIn(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type failingPinger struct{}

func (failingPinger) PingContext(ctx context.Context) error { return errors.New("down") }

func TestHealthReportsDatabase(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)
	require.NoError(t, Health(failingPinger{})(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(errors.Wrap(service.ErrNotServing, "release")))
	assert.Equal(t, http.StatusForbidden, statusFor(service.ErrNotRegistered))
	assert.Equal(t, http.StatusBadRequest, statusFor(service.ErrInvalidUser))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(errors.New("other")))
}
