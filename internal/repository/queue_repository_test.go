package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/room-queue/internal/model"
)

func newMockRepo(t *testing.T) (*QueueRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewQueueRepo(db), mock
}

func expectLock(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM queue_counters WHERE name = ? FOR UPDATE")).
		WithArgs(queueCounterName).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(4))
}

var entryCols = []string{"id", "user_id", "display_name", "status", "queue_number", "room_number", "check_in_time", "serve_time", "finish_time"}

func TestQueueRepo_InTxCommits(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	expectLock(mock)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE rooms SET entry_id = ? WHERE room_number = ? AND entry_id IS NULL")).
		WithArgs("e1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.InTx(context.Background(), func(tx QueueTx) error {
		if err := tx.Lock(context.Background()); err != nil {
			return err
		}
		return tx.Occupy(context.Background(), 1, "e1")
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueRepo_OccupyTakenRoomConflicts(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE rooms SET entry_id = ?")).
		WithArgs("e2", 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(tx QueueTx) error {
		return tx.Occupy(context.Background(), 1, "e2")
	})
	assert.True(t, errors.Is(err, ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueRepo_DuplicateActiveEntryConflicts(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO queue_entries")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'u1' for key 'uq_active_user'"})
	mock.ExpectRollback()

	now := time.Now()
	err := repo.InTx(context.Background(), func(tx QueueTx) error {
		return tx.Insert(context.Background(), &model.QueueEntry{
			ID: "e1", UserID: "u1", Status: model.StatusServing, RoomNumber: 1, CheckInTime: now, ServeTime: &now,
		})
	})
	assert.True(t, errors.Is(err, ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueRepo_DeadlockOnCommitConflicts(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})

	err := repo.InTx(context.Background(), func(tx QueueTx) error { return nil })
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestQueueRepo_LockWithoutCounter(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(tx QueueTx) error {
		return tx.Lock(context.Background())
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConflict))
}

func TestQueueRepo_NextQueueNumber(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE queue_counters SET value = value + 1")).
		WithArgs(queueCounterName).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM queue_counters WHERE name = ?")).
		WithArgs(queueCounterName).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(7))
	mock.ExpectCommit()

	var got int64
	err := repo.InTx(context.Background(), func(tx QueueTx) error {
		var err error
		got, err = tx.NextQueueNumber(context.Background())
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)
}

func TestQueueRepo_ActiveByUserNone(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("status IN ('WAITING','SERVING')")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(entryCols))
	mock.ExpectCommit()

	err := repo.InTx(context.Background(), func(tx QueueTx) error {
		e, err := tx.ActiveByUser(context.Background(), "u1")
		assert.Nil(t, e)
		return err
	})
	require.NoError(t, err)
}

func TestQueueRepo_WaitingScansNullableColumns(t *testing.T) {
	repo, mock := newMockRepo(t)
	checkIn := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'WAITING' ORDER BY queue_number")).
		WillReturnRows(sqlmock.NewRows(entryCols).
			AddRow("e1", "u1", "Ann", "WAITING", int64(1), nil, checkIn, nil, nil).
			AddRow("e2", "u2", "Bob", "WAITING", int64(2), nil, checkIn.Add(time.Minute), nil, nil))

	got, err := repo.Waiting(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.StatusWaiting, got[0].Status)
	assert.Equal(t, int64(1), got[0].QueueNumber)
	assert.Zero(t, got[0].RoomNumber)
	assert.Nil(t, got[0].ServeTime)
	assert.Equal(t, "u2", got[1].UserID)
}

func TestQueueRepo_EnsureRooms(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO queue_counters")).
		WithArgs(queueCounterName).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO rooms (room_number) VALUES (?),(?),(?)")).
		WithArgs(1, 2, 3).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM rooms WHERE room_number > ? AND entry_id IS NULL")).
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, repo.EnsureRooms(context.Background(), 3))
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Error(t, repo.EnsureRooms(context.Background(), 0))
}
