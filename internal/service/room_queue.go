// Package service holds the room queue manager and the notification
// handoff that runs after its transactions commit.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/room-queue/internal/model"
	"github.com/iliyamo/room-queue/internal/repository"
)

// Options tune the manager.  Zero values fall back to the defaults below.
type Options struct {
	TotalRooms  int
	MaxAttempts int
	OpTimeout   time.Duration
}

const (
	DefaultTotalRooms  = 2
	DefaultMaxAttempts = 3
	DefaultOpTimeout   = 5 * time.Second
)

func (o Options) withDefaults() Options {
	if o.TotalRooms <= 0 {
		o.TotalRooms = DefaultTotalRooms
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.OpTimeout <= 0 {
		o.OpTimeout = DefaultOpTimeout
	}
	return o
}

// Placement is the outcome of RequestEntry.
//
// Fields:
//  Entry    – the caller's active entry (new or pre-existing).
//  Existing – true when the user already had an active entry.
//  Ahead    – WAITING entries with a lower queue number; zero when SERVING.
type Placement struct {
	Entry    model.QueueEntry
	Existing bool
	Ahead    int
}

// Release is the outcome of ReleaseRoom.
type Release struct {
	Room     int
	Finished model.QueueEntry
	Promoted *model.QueueEntry // nil when nobody was waiting
}

// Snapshot is a read-only view of the queue.
type Snapshot struct {
	Serving []model.QueueEntry `json:"serving"`
	Waiting []model.QueueEntry `json:"waiting"`
}

// RoomQueue assigns rooms to members and advances the waiting line.  Every
// mutation runs in one store transaction that starts with QueueTx.Lock, so
// concurrent callers are serialized on the store rather than in process
// and several server instances can share one database.
type RoomQueue struct {
	store  repository.QueueStore
	notify Notifier
	opts   Options
	log    logrus.FieldLogger

	now   func() time.Time
	newID func() string
}

// NewRoomQueue wires a manager.  notify may be nil, in which case room
// assignments are only logged.
func NewRoomQueue(store repository.QueueStore, notify Notifier, opts Options, log logrus.FieldLogger) *RoomQueue {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RoomQueue{
		store:  store,
		notify: notify,
		opts:   opts.withDefaults(),
		log:    log.WithField("component", "room-queue"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// TotalRooms is the configured room capacity.
func (q *RoomQueue) TotalRooms() int { return q.opts.TotalRooms }

// RequestEntry places the user: their existing active entry when they have
// one, otherwise the lowest free room while fewer than TotalRooms sessions
// run, otherwise the end of the waiting line.
func (q *RoomQueue) RequestEntry(ctx context.Context, userID, displayName string) (Placement, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Placement{}, ErrInvalidUser
	}

	var p Placement
	err := q.withRetry(ctx, "request entry", func(ctx context.Context) error {
		p = Placement{}
		return q.store.InTx(ctx, func(tx repository.QueueTx) error {
			if err := tx.Lock(ctx); err != nil {
				return err
			}
			existing, err := tx.ActiveByUser(ctx, userID)
			if err != nil {
				return errors.Wrap(err, "lookup active entry")
			}
			if existing != nil {
				p.Entry, p.Existing = *existing, true
				if existing.Status == model.StatusWaiting {
					p.Ahead, err = tx.WaitingAhead(ctx, existing.QueueNumber)
				}
				return err
			}

			occupied, err := tx.OccupiedRooms(ctx)
			if err != nil {
				return errors.Wrap(err, "list occupied rooms")
			}
			now := q.now().UTC()
			e := model.QueueEntry{
				ID:          q.newID(),
				UserID:      userID,
				DisplayName: displayName,
				CheckInTime: now,
			}
			room := 0
			if len(occupied) < q.opts.TotalRooms {
				room = lowestFreeRoom(occupied, q.opts.TotalRooms)
			}
			if room > 0 {
				e.Status = model.StatusServing
				e.RoomNumber = room
				e.ServeTime = &now
				if err := tx.Insert(ctx, &e); err != nil {
					return err
				}
				if err := tx.Occupy(ctx, room, e.ID); err != nil {
					return err
				}
			} else {
				n, err := tx.NextQueueNumber(ctx)
				if err != nil {
					return errors.Wrap(err, "next queue number")
				}
				e.Status = model.StatusWaiting
				e.QueueNumber = n
				if err := tx.Insert(ctx, &e); err != nil {
					return err
				}
				if p.Ahead, err = tx.WaitingAhead(ctx, n); err != nil {
					return err
				}
			}
			p.Entry = e
			return nil
		})
	})
	if err != nil {
		return Placement{}, err
	}

	fields := logrus.Fields{"user_id": userID, "entry_id": p.Entry.ID, "status": p.Entry.Status}
	switch {
	case p.Existing:
		q.log.WithFields(fields).Debug("check-in returned existing entry")
	case p.Entry.Status == model.StatusServing:
		q.log.WithFields(fields).WithField("room", p.Entry.RoomNumber).Info("member seated")
	default:
		q.log.WithFields(fields).WithField("queue_number", p.Entry.QueueNumber).Info("member queued")
	}
	return p, nil
}

// ReleaseRoom finishes the user's SERVING entry and hands the freed room to
// the oldest waiting entry in the same transaction.
func (q *RoomQueue) ReleaseRoom(ctx context.Context, userID string) (Release, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Release{}, ErrInvalidUser
	}

	var r Release
	err := q.withRetry(ctx, "release room", func(ctx context.Context) error {
		r = Release{}
		return q.store.InTx(ctx, func(tx repository.QueueTx) error {
			if err := tx.Lock(ctx); err != nil {
				return err
			}
			serving, err := tx.ServingByUser(ctx, userID)
			if err != nil {
				return errors.Wrap(err, "lookup serving entry")
			}
			if serving == nil {
				return ErrNotServing
			}
			now := q.now().UTC()
			if err := tx.Finish(ctx, serving.ID, now); err != nil {
				return err
			}
			if err := tx.Vacate(ctx, serving.RoomNumber, serving.ID); err != nil {
				return err
			}
			finished := *serving
			finished.Status = model.StatusFinished
			finished.FinishTime = &now
			r.Room, r.Finished = serving.RoomNumber, finished

			r.Promoted, err = q.advance(ctx, tx, serving.RoomNumber)
			return err
		})
	})
	if err != nil {
		return Release{}, err
	}

	log := q.log.WithFields(logrus.Fields{"user_id": userID, "entry_id": r.Finished.ID, "room": r.Room})
	if r.Promoted == nil {
		log.Info("room released; nobody waiting")
		return r, nil
	}
	log.WithFields(logrus.Fields{
		"promoted_user_id": r.Promoted.UserID,
		"queue_number":     r.Promoted.QueueNumber,
	}).Info("room released; next member promoted")
	q.announce(*r.Promoted)
	return r, nil
}

// Reconcile fills every free room from the waiting line.  It is run at
// start-up so that a raised room count or an interrupted deployment never
// leaves a room empty while members wait.  It returns the promoted entries.
func (q *RoomQueue) Reconcile(ctx context.Context) ([]model.QueueEntry, error) {
	var promoted []model.QueueEntry
	err := q.withRetry(ctx, "reconcile", func(ctx context.Context) error {
		promoted = nil
		return q.store.InTx(ctx, func(tx repository.QueueTx) error {
			if err := tx.Lock(ctx); err != nil {
				return err
			}
			occupied, err := tx.OccupiedRooms(ctx)
			if err != nil {
				return errors.Wrap(err, "list occupied rooms")
			}
			for _, room := range freeRooms(occupied, q.opts.TotalRooms) {
				next, err := q.advance(ctx, tx, room)
				if err != nil {
					return err
				}
				if next == nil {
					break
				}
				promoted = append(promoted, *next)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	for _, e := range promoted {
		q.log.WithFields(logrus.Fields{"user_id": e.UserID, "room": e.RoomNumber, "queue_number": e.QueueNumber}).
			Info("reconcile promoted waiting member")
		q.announce(e)
	}
	return promoted, nil
}

// StatusSnapshot returns SERVING entries by room and WAITING entries by
// queue number.  The two lists are read separately and may be slightly
// out of step with each other.
func (q *RoomQueue) StatusSnapshot(ctx context.Context) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, q.opts.OpTimeout)
	defer cancel()

	serving, err := q.store.Serving(ctx)
	if err != nil {
		return Snapshot{}, &SystemError{Op: "status snapshot", Err: err}
	}
	waiting, err := q.store.Waiting(ctx)
	if err != nil {
		return Snapshot{}, &SystemError{Op: "status snapshot", Err: err}
	}
	return Snapshot{Serving: serving, Waiting: waiting}, nil
}

// advance promotes the oldest WAITING entry into room.  Rooms above the
// configured capacity are retired instead of refilled, and nobody is
// promoted while sessions in retired rooms still hold the count at or
// above capacity.
func (q *RoomQueue) advance(ctx context.Context, tx repository.QueueTx, room int) (*model.QueueEntry, error) {
	if room < 1 || room > q.opts.TotalRooms {
		return nil, nil
	}
	occupied, err := tx.OccupiedRooms(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list occupied rooms")
	}
	if len(occupied) >= q.opts.TotalRooms {
		return nil, nil
	}
	next, err := tx.OldestWaiting(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "lookup oldest waiting entry")
	}
	if next == nil {
		return nil, nil
	}
	now := q.now().UTC()
	if err := tx.Promote(ctx, next.ID, room, now); err != nil {
		return nil, err
	}
	if err := tx.Occupy(ctx, room, next.ID); err != nil {
		return nil, err
	}
	next.Status = model.StatusServing
	next.RoomNumber = room
	next.ServeTime = &now
	return next, nil
}

// announce hands a committed promotion to the notifier.  Failures are
// logged; the assignment stands either way.
func (q *RoomQueue) announce(e model.QueueEntry) {
	a := assignmentFor(e)
	if q.notify == nil {
		q.log.WithFields(logrus.Fields{"user_id": a.UserID, "room": a.RoomNumber}).Info("room assigned (no notifier)")
		return
	}
	if err := q.notify.NotifyRoomAssigned(context.Background(), a); err != nil {
		q.log.WithError(err).WithField("user_id", a.UserID).Warn("room assignment notification not queued")
	}
}

// withRetry bounds op by the operation timeout and retries store conflicts.
// ErrNotServing passes through untouched; anything else becomes a
// SystemError.
func (q *RoomQueue) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, q.opts.OpTimeout)
	defer cancel()

	var err error
	for attempt := 1; attempt <= q.opts.MaxAttempts; attempt++ {
		err = fn(ctx)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrNotServing):
			return err
		case !errors.Is(err, repository.ErrConflict):
			return &SystemError{Op: op, Err: err}
		}
		q.log.WithError(err).WithFields(logrus.Fields{"op": op, "attempt": attempt}).Warn("queue conflict; retrying")
		if ctx.Err() != nil {
			return &SystemError{Op: op, Err: ctx.Err()}
		}
	}
	return &SystemError{Op: op, Err: errors.Wrapf(err, "gave up after %d attempts", q.opts.MaxAttempts)}
}

// lowestFreeRoom returns the smallest room in [1, total] not in occupied,
// or 0 when every room is taken.
func lowestFreeRoom(occupied []int, total int) int {
	if free := freeRooms(occupied, total); len(free) > 0 {
		return free[0]
	}
	return 0
}

func freeRooms(occupied []int, total int) []int {
	taken := make(map[int]bool, len(occupied))
	for _, r := range occupied {
		taken[r] = true
	}
	var free []int
	for r := 1; r <= total; r++ {
		if !taken[r] {
			free = append(free, r)
		}
	}
	return free
}
