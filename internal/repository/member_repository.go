package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/room-queue/internal/model"
)

// MemberRepo persists registered chat users in the 'members' table.
type MemberRepo struct{ DB *sql.DB }

func NewMemberRepo(db *sql.DB) *MemberRepo { return &MemberRepo{DB: db} }

// Register inserts the member unless the user id is already registered.
// created is false when the row already existed; the stored profile is
// left untouched in that case.
func (r *MemberRepo) Register(ctx context.Context, m model.Member) (created bool, err error) {
	m.UserID = strings.TrimSpace(m.UserID)
	if m.UserID == "" {
		return false, errors.New("empty user id")
	}
	if m.RegisteredAt.IsZero() {
		m.RegisteredAt = time.Now().UTC()
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT IGNORE INTO members (user_id, display_name, picture_url, registered_at) VALUES (?,?,?,?)",
		m.UserID, m.DisplayName, m.PictureURL, m.RegisteredAt.UTC())
	if err != nil {
		return false, errors.Wrap(err, "insert member")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Get fetches a member by user id.  It returns ErrNotFound when the user
// never registered.
func (r *MemberRepo) Get(ctx context.Context, userID string) (model.Member, error) {
	var m model.Member
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, display_name, picture_url, registered_at FROM members WHERE user_id=? LIMIT 1",
		userID).Scan(&m.UserID, &m.DisplayName, &m.PictureURL, &m.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Member{}, ErrNotFound
	}
	if err != nil {
		return model.Member{}, err
	}
	m.RegisteredAt = m.RegisteredAt.UTC()
	return m, nil
}

// Count returns the number of registered members.
func (r *MemberRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM members").Scan(&n)
	return n, err
}

// RegistrationsByDay counts registrations per UTC day since the given time.
// Keys are formatted as 2006-01-02; days without registrations are absent.
func (r *MemberRepo) RegistrationsByDay(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT DATE(registered_at) AS day, COUNT(*) FROM members WHERE registered_at >= ? GROUP BY day ORDER BY day",
		since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var day time.Time
		var n int
		if err := rows.Scan(&day, &n); err != nil {
			return nil, err
		}
		out[day.UTC().Format("2006-01-02")] = n
	}
	return out, rows.Err()
}
