package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/room-queue/internal/model"
)

// queueCounterName is the queue_counters row that doubles as the global
// lock for queue transactions and as the queue number sequence.
const queueCounterName = "queue_number"

const entryColumns = `id, user_id, display_name, status, queue_number, room_number, check_in_time, serve_time, finish_time`

// QueueRepo is the MySQL implementation of QueueStore.  Entries live in
// queue_entries, room occupancy is materialized in rooms (one row per
// room, entry_id NULL when free) and queue numbers come from
// queue_counters.  All timestamps are stored in UTC.
type QueueRepo struct {
	db *sql.DB
}

// NewQueueRepo returns a new QueueRepo bound to the provided database.
func NewQueueRepo(db *sql.DB) *QueueRepo { return &QueueRepo{db: db} }

// DB exposes the underlying handle.
func (r *QueueRepo) DB() *sql.DB { return r.db }

// EnsureRooms makes sure rooms 1..total exist and removes free rooms above
// total.  Occupied rooms above total are kept until their occupant
// finishes.  It also seeds the queue number counter.
func (r *QueueRepo) EnsureRooms(ctx context.Context, total int) error {
	if total < 1 {
		return errors.Errorf("total rooms must be positive, got %d", total)
	}
	return r.InTx(ctx, func(qtx QueueTx) error {
		tx := qtx.(*queueTx).tx
		if _, err := tx.ExecContext(ctx, `INSERT IGNORE INTO queue_counters (name, value) VALUES (?, 0)`, queueCounterName); err != nil {
			return errors.Wrap(err, "seed queue counter")
		}
		query := `INSERT IGNORE INTO rooms (room_number) VALUES `
		args := make([]interface{}, 0, total)
		for i := 1; i <= total; i++ {
			if i > 1 {
				query += ","
			}
			query += "(?)"
			args = append(args, i)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrap(err, "seed rooms")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE room_number > ? AND entry_id IS NULL`, total); err != nil {
			return errors.Wrap(err, "trim rooms")
		}
		return nil
	})
}

// InTx runs fn inside a database transaction.  The transaction is rolled
// back when fn returns an error and committed otherwise.
func (r *QueueRepo) InTx(ctx context.Context, fn func(tx QueueTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&queueTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(classify(err), "commit transaction")
	}
	committed = true
	return nil
}

// Serving returns every SERVING entry ordered by room number.
func (r *QueueRepo) Serving(ctx context.Context) ([]model.QueueEntry, error) {
	return queryEntries(ctx, r.db, `SELECT `+entryColumns+` FROM queue_entries WHERE status = 'SERVING' ORDER BY room_number`)
}

// Waiting returns every WAITING entry ordered by queue number.
func (r *QueueRepo) Waiting(ctx context.Context) ([]model.QueueEntry, error) {
	return queryEntries(ctx, r.db, `SELECT `+entryColumns+` FROM queue_entries WHERE status = 'WAITING' ORDER BY queue_number`)
}

// CheckinsSince counts entries created at or after since.
func (r *QueueRepo) CheckinsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue_entries WHERE check_in_time >= ?`, since.UTC()).Scan(&n)
	return n, err
}

// queueTx implements QueueTx on top of *sql.Tx.
type queueTx struct {
	tx *sql.Tx
}

func (t *queueTx) Lock(ctx context.Context) error {
	var v int64
	err := t.tx.QueryRowContext(ctx, `SELECT value FROM queue_counters WHERE name = ? FOR UPDATE`, queueCounterName).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.New("queue counter not initialised; run EnsureRooms")
	}
	return classify(err)
}

func (t *queueTx) ActiveByUser(ctx context.Context, userID string) (*model.QueueEntry, error) {
	return queryEntry(ctx, t.tx, `SELECT `+entryColumns+` FROM queue_entries WHERE user_id = ? AND status IN ('WAITING','SERVING') LIMIT 1`, userID)
}

func (t *queueTx) ServingByUser(ctx context.Context, userID string) (*model.QueueEntry, error) {
	return queryEntry(ctx, t.tx, `SELECT `+entryColumns+` FROM queue_entries WHERE user_id = ? AND status = 'SERVING' LIMIT 1`, userID)
}

func (t *queueTx) OldestWaiting(ctx context.Context) (*model.QueueEntry, error) {
	return queryEntry(ctx, t.tx, `SELECT `+entryColumns+` FROM queue_entries WHERE status = 'WAITING' ORDER BY queue_number ASC LIMIT 1`)
}

func (t *queueTx) WaitingAhead(ctx context.Context, queueNumber int64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue_entries WHERE status = 'WAITING' AND queue_number < ?`, queueNumber).Scan(&n)
	return n, err
}

func (t *queueTx) OccupiedRooms(ctx context.Context) ([]int, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT room_number FROM rooms WHERE entry_id IS NOT NULL ORDER BY room_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rooms := []int{}
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		rooms = append(rooms, n)
	}
	return rooms, rows.Err()
}

func (t *queueTx) NextQueueNumber(ctx context.Context) (int64, error) {
	if _, err := t.tx.ExecContext(ctx, `UPDATE queue_counters SET value = value + 1 WHERE name = ?`, queueCounterName); err != nil {
		return 0, classify(err)
	}
	var v int64
	if err := t.tx.QueryRowContext(ctx, `SELECT value FROM queue_counters WHERE name = ?`, queueCounterName).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

func (t *queueTx) Insert(ctx context.Context, e *model.QueueEntry) error {
	const q = `INSERT INTO queue_entries (id, user_id, display_name, status, queue_number, room_number, check_in_time, serve_time) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := t.tx.ExecContext(ctx, q,
		e.ID, e.UserID, e.DisplayName, string(e.Status),
		nullInt(e.QueueNumber), nullInt(int64(e.RoomNumber)),
		e.CheckInTime.UTC(), nullTime(e.ServeTime),
	)
	return classify(err)
}

func (t *queueTx) Promote(ctx context.Context, entryID string, room int, at time.Time) error {
	return t.execOne(ctx, `UPDATE queue_entries SET status = 'SERVING', room_number = ?, serve_time = ? WHERE id = ? AND status = 'WAITING'`, room, at.UTC(), entryID)
}

func (t *queueTx) Finish(ctx context.Context, entryID string, at time.Time) error {
	return t.execOne(ctx, `UPDATE queue_entries SET status = 'FINISHED', finish_time = ? WHERE id = ? AND status = 'SERVING'`, at.UTC(), entryID)
}

func (t *queueTx) Occupy(ctx context.Context, room int, entryID string) error {
	return t.execOne(ctx, `UPDATE rooms SET entry_id = ? WHERE room_number = ? AND entry_id IS NULL`, entryID, room)
}

func (t *queueTx) Vacate(ctx context.Context, room int, entryID string) error {
	return t.execOne(ctx, `UPDATE rooms SET entry_id = NULL WHERE room_number = ? AND entry_id = ?`, room, entryID)
}

// execOne runs a compare-and-swap update that must touch exactly one row.
func (t *queueTx) execOne(ctx context.Context, q string, args ...interface{}) error {
	res, err := t.tx.ExecContext(ctx, q, args...)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func scanEntry(s rowScanner) (model.QueueEntry, error) {
	var (
		e           model.QueueEntry
		status      string
		queueNumber sql.NullInt64
		room        sql.NullInt64
		serve       sql.NullTime
		finish      sql.NullTime
	)
	if err := s.Scan(&e.ID, &e.UserID, &e.DisplayName, &status, &queueNumber, &room, &e.CheckInTime, &serve, &finish); err != nil {
		return model.QueueEntry{}, err
	}
	e.Status = model.EntryStatus(status)
	e.QueueNumber = queueNumber.Int64
	e.RoomNumber = int(room.Int64)
	e.CheckInTime = e.CheckInTime.UTC()
	if serve.Valid {
		t := serve.Time.UTC()
		e.ServeTime = &t
	}
	if finish.Valid {
		t := finish.Time.UTC()
		e.FinishTime = &t
	}
	return e, nil
}

func queryEntry(ctx context.Context, q querier, query string, args ...interface{}) (*model.QueueEntry, error) {
	e, err := scanEntry(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func queryEntries(ctx context.Context, q querier, query string, args ...interface{}) ([]model.QueueEntry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []model.QueueEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullInt(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
