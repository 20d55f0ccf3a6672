package service

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/room-queue/internal/repository"
)

// chartDays is the length of the registration chart, today included.
const chartDays = 7

// MemberStats is the slice of the member store the dashboard reads.
type MemberStats interface {
	Count(ctx context.Context) (int, error)
	RegistrationsByDay(ctx context.Context, since time.Time) (map[string]int, error)
}

// DashboardStats is the staff dashboard payload.
type DashboardStats struct {
	TotalUsers    int         `json:"total_users"`
	CheckinsToday int         `json:"checkins_today"`
	QueueStatus   QueueCounts `json:"queue_status"`
	UserChart     Chart       `json:"user_chart"`
}

type QueueCounts struct {
	Serving int `json:"serving"`
	Waiting int `json:"waiting"`
}

// Chart holds one label per UTC day (2006-01-02), oldest first, and the
// number of registrations on that day.
type Chart struct {
	Labels []string `json:"labels"`
	Data   []int    `json:"data"`
}

// Dashboard aggregates member and queue figures for staff.
type Dashboard struct {
	members MemberStats
	queue   repository.QueueStore
	now     func() time.Time
}

func NewDashboard(members MemberStats, queue repository.QueueStore) *Dashboard {
	return &Dashboard{members: members, queue: queue, now: time.Now}
}

// Stats collects the dashboard figures.  "Today" is the current UTC day.
func (d *Dashboard) Stats(ctx context.Context) (DashboardStats, error) {
	var s DashboardStats
	today := startOfDay(d.now())

	total, err := d.members.Count(ctx)
	if err != nil {
		return s, errors.Wrap(err, "count members")
	}
	s.TotalUsers = total

	if s.CheckinsToday, err = d.queue.CheckinsSince(ctx, today); err != nil {
		return s, errors.Wrap(err, "count check-ins")
	}

	serving, err := d.queue.Serving(ctx)
	if err != nil {
		return s, errors.Wrap(err, "list serving")
	}
	waiting, err := d.queue.Waiting(ctx)
	if err != nil {
		return s, errors.Wrap(err, "list waiting")
	}
	s.QueueStatus = QueueCounts{Serving: len(serving), Waiting: len(waiting)}

	first := today.AddDate(0, 0, -(chartDays - 1))
	perDay, err := d.members.RegistrationsByDay(ctx, first)
	if err != nil {
		return s, errors.Wrap(err, "registrations by day")
	}
	s.UserChart = Chart{Labels: make([]string, 0, chartDays), Data: make([]int, 0, chartDays)}
	for i := 0; i < chartDays; i++ {
		day := first.AddDate(0, 0, i).Format("2006-01-02")
		s.UserChart.Labels = append(s.UserChart.Labels, day)
		s.UserChart.Data = append(s.UserChart.Data, perDay[day])
	}
	return s, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
