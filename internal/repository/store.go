package repository

import (
	"context"
	"time"

	"github.com/iliyamo/room-queue/internal/model"
)

// QueueStore is the persistent ordered store behind the room queue.  All
// mutations happen through InTx, which runs fn as one atomic unit: either
// every write made through the QueueTx commits or none does.
type QueueStore interface {
	InTx(ctx context.Context, fn func(tx QueueTx) error) error

	// Serving returns SERVING entries ordered by room number.
	Serving(ctx context.Context) ([]model.QueueEntry, error)
	// Waiting returns WAITING entries ordered by queue number.
	Waiting(ctx context.Context) ([]model.QueueEntry, error)
	// CheckinsSince counts entries created at or after since.
	CheckinsSince(ctx context.Context, since time.Time) (int, error)
}

// QueueTx is the transaction-scoped view of the store.  Lookups return
// (nil, nil) when nothing matches.  Updates that find the row in an
// unexpected state return ErrConflict.
type QueueTx interface {
	// Lock serializes the transaction against every other queue
	// transaction.  It must be the first call inside InTx.
	Lock(ctx context.Context) error

	ActiveByUser(ctx context.Context, userID string) (*model.QueueEntry, error)
	ServingByUser(ctx context.Context, userID string) (*model.QueueEntry, error)
	OldestWaiting(ctx context.Context) (*model.QueueEntry, error)
	WaitingAhead(ctx context.Context, queueNumber int64) (int, error)

	// OccupiedRooms lists room numbers currently held by a SERVING entry.
	OccupiedRooms(ctx context.Context) ([]int, error)
	// NextQueueNumber increments and returns the queue number sequence.
	NextQueueNumber(ctx context.Context) (int64, error)

	Insert(ctx context.Context, e *model.QueueEntry) error
	Promote(ctx context.Context, entryID string, room int, at time.Time) error
	Finish(ctx context.Context, entryID string, at time.Time) error
	Occupy(ctx context.Context, room int, entryID string) error
	Vacate(ctx context.Context, room int, entryID string) error
}
