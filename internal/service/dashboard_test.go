package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/room-queue/internal/model"
	"github.com/iliyamo/room-queue/internal/repository"
)

func TestDashboard_Stats(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	members := repository.NewMemoryMemberRepo()
	for _, m := range []model.Member{
		{UserID: "old", RegisteredAt: now.AddDate(0, 0, -30)},
		{UserID: "a", RegisteredAt: now.AddDate(0, 0, -6)},
		{UserID: "b", RegisteredAt: now.AddDate(0, 0, -6).Add(time.Hour)},
		{UserID: "c", RegisteredAt: now},
	} {
		_, err := members.Register(ctx, m)
		require.NoError(t, err)
	}

	store := repository.NewMemoryQueueRepo()
	q, _ := newTestQueue(t, store, Options{TotalRooms: 1})
	q.now = func() time.Time { return now }
	mustRequest(t, q, "a")
	mustRequest(t, q, "b")
	mustRequest(t, q, "c")

	d := NewDashboard(members, store)
	d.now = func() time.Time { return now }
	s, err := d.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, s.TotalUsers)
	assert.Equal(t, 3, s.CheckinsToday)
	assert.Equal(t, QueueCounts{Serving: 1, Waiting: 2}, s.QueueStatus)
	assert.Equal(t, []string{
		"2026-03-04", "2026-03-05", "2026-03-06", "2026-03-07", "2026-03-08", "2026-03-09", "2026-03-10",
	}, s.UserChart.Labels)
	assert.Equal(t, []int{2, 0, 0, 0, 0, 0, 1}, s.UserChart.Data)
}
