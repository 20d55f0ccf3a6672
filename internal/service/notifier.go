package service

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/room-queue/internal/model"
	"github.com/iliyamo/room-queue/internal/queue"
)

// RoomAssignment tells a member which room is now theirs.
type RoomAssignment struct {
	EntryID     string
	UserID      string
	DisplayName string
	RoomNumber  int
	QueueNumber int64
	AssignedAt  time.Time
}

// Event converts the assignment into its broker payload.
func (a RoomAssignment) Event() queue.RoomAssignedEvent {
	return queue.RoomAssignedEvent{
		EntryID:     a.EntryID,
		UserID:      a.UserID,
		DisplayName: a.DisplayName,
		RoomNumber:  a.RoomNumber,
		QueueNumber: a.QueueNumber,
		AssignedAt:  a.AssignedAt.UTC().Format(time.RFC3339),
	}
}

func assignmentFor(e model.QueueEntry) RoomAssignment {
	a := RoomAssignment{
		EntryID:     e.ID,
		UserID:      e.UserID,
		DisplayName: e.DisplayName,
		RoomNumber:  e.RoomNumber,
		QueueNumber: e.QueueNumber,
	}
	if e.ServeTime != nil {
		a.AssignedAt = *e.ServeTime
	}
	return a
}

// Notifier delivers a best-effort room assignment push.
type Notifier interface {
	NotifyRoomAssigned(ctx context.Context, a RoomAssignment) error
}

// LogNotifier only logs assignments.  It stands in for the broker when
// the server runs without RabbitMQ.
type LogNotifier struct {
	Log logrus.FieldLogger
}

func (n LogNotifier) NotifyRoomAssigned(ctx context.Context, a RoomAssignment) error {
	n.Log.WithFields(logrus.Fields{
		"user_id":      a.UserID,
		"room":         a.RoomNumber,
		"queue_number": a.QueueNumber,
	}).Info("room assigned")
	return nil
}

// ErrDispatcherStopped is returned by NotifyRoomAssigned after Stop.
var ErrDispatcherStopped = errors.New("notification dispatcher stopped")

// Dispatcher decouples notification delivery from the queue transaction.
// NotifyRoomAssigned only enqueues; a pool of workers forwards each
// assignment to the next Notifier with its own timeout.  When the buffer
// is full the assignment is delivered from a detached goroutine instead
// of blocking the caller.
type Dispatcher struct {
	next    Notifier
	jobs    chan RoomAssignment
	workers int
	timeout time.Duration
	log     logrus.FieldLogger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher builds a dispatcher around next.  Call Start before use
// and Stop on shutdown.
func NewDispatcher(next Notifier, workers, buffer int, timeout time.Duration, log logrus.FieldLogger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		next:    next,
		jobs:    make(chan RoomAssignment, buffer),
		workers: workers,
		timeout: timeout,
		log:     log.WithField("component", "notify-dispatcher"),
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for a := range d.jobs {
				d.deliver(a)
			}
		}()
	}
}

// NotifyRoomAssigned enqueues a for delivery and returns immediately.
func (d *Dispatcher) NotifyRoomAssigned(_ context.Context, a RoomAssignment) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	select {
	case d.jobs <- a:
	default:
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliver(a)
		}()
	}
	return nil
}

// Stop refuses new assignments, drains the buffer and waits for in-flight
// deliveries.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) deliver(a RoomAssignment) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.next.NotifyRoomAssigned(ctx, a); err != nil {
		d.log.WithError(err).WithFields(logrus.Fields{
			"user_id": a.UserID,
			"room":    a.RoomNumber,
		}).Error("room assignment notification failed")
	}
}
