package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/room-queue/internal/model"
)

// MemoryQueueRepo is an in-process QueueStore.  InTx holds a single mutex
// for the whole transaction and works on a copy of the state that is only
// swapped in when fn succeeds, so a failed transaction leaves nothing
// behind.  It backs `serve --memory` and the service tests.
type MemoryQueueRepo struct {
	mu    sync.Mutex
	state memState
}

type memState struct {
	entries map[string]model.QueueEntry
	rooms   map[int]string // room number -> entry id, only occupied rooms
	seq     int64
}

// NewMemoryQueueRepo returns an empty store.
func NewMemoryQueueRepo() *MemoryQueueRepo {
	return &MemoryQueueRepo{state: memState{
		entries: map[string]model.QueueEntry{},
		rooms:   map[int]string{},
	}}
}

func (s memState) clone() memState {
	c := memState{
		entries: make(map[string]model.QueueEntry, len(s.entries)),
		rooms:   make(map[int]string, len(s.rooms)),
		seq:     s.seq,
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	for k, v := range s.rooms {
		c.rooms[k] = v
	}
	return c
}

// InTx runs fn against a private copy of the state and commits it on success.
func (r *MemoryQueueRepo) InTx(ctx context.Context, fn func(tx QueueTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := r.state.clone()
	if err := fn(&memTx{s: &work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.state = work
	return nil
}

func (r *MemoryQueueRepo) Serving(ctx context.Context) ([]model.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.state.filter(model.StatusServing)
	sort.Slice(out, func(i, j int) bool { return out[i].RoomNumber < out[j].RoomNumber })
	return out, nil
}

func (r *MemoryQueueRepo) Waiting(ctx context.Context) ([]model.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.state.filter(model.StatusWaiting)
	sort.Slice(out, func(i, j int) bool { return out[i].QueueNumber < out[j].QueueNumber })
	return out, nil
}

func (r *MemoryQueueRepo) CheckinsSince(ctx context.Context, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.state.entries {
		if !e.CheckInTime.Before(since) {
			n++
		}
	}
	return n, nil
}

// Entries returns a copy of every stored entry, finished ones included.
func (r *MemoryQueueRepo) Entries() []model.QueueEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.QueueEntry, 0, len(r.state.entries))
	for _, e := range r.state.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckInTime.Before(out[j].CheckInTime) })
	return out
}

func (s memState) filter(status model.EntryStatus) []model.QueueEntry {
	out := []model.QueueEntry{}
	for _, e := range s.entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

type memTx struct {
	s *memState
}

func (t *memTx) Lock(ctx context.Context) error { return nil }

func (t *memTx) find(match func(model.QueueEntry) bool) *model.QueueEntry {
	for _, e := range t.s.entries {
		if match(e) {
			e := e
			return &e
		}
	}
	return nil
}

func (t *memTx) ActiveByUser(ctx context.Context, userID string) (*model.QueueEntry, error) {
	return t.find(func(e model.QueueEntry) bool { return e.UserID == userID && e.Status.Active() }), nil
}

func (t *memTx) ServingByUser(ctx context.Context, userID string) (*model.QueueEntry, error) {
	return t.find(func(e model.QueueEntry) bool { return e.UserID == userID && e.Status == model.StatusServing }), nil
}

func (t *memTx) OldestWaiting(ctx context.Context) (*model.QueueEntry, error) {
	var oldest *model.QueueEntry
	for _, e := range t.s.entries {
		if e.Status != model.StatusWaiting {
			continue
		}
		if oldest == nil || e.QueueNumber < oldest.QueueNumber {
			e := e
			oldest = &e
		}
	}
	return oldest, nil
}

func (t *memTx) WaitingAhead(ctx context.Context, queueNumber int64) (int, error) {
	n := 0
	for _, e := range t.s.entries {
		if e.Status == model.StatusWaiting && e.QueueNumber < queueNumber {
			n++
		}
	}
	return n, nil
}

func (t *memTx) OccupiedRooms(ctx context.Context) ([]int, error) {
	rooms := make([]int, 0, len(t.s.rooms))
	for n := range t.s.rooms {
		rooms = append(rooms, n)
	}
	sort.Ints(rooms)
	return rooms, nil
}

func (t *memTx) NextQueueNumber(ctx context.Context) (int64, error) {
	t.s.seq++
	return t.s.seq, nil
}

func (t *memTx) Insert(ctx context.Context, e *model.QueueEntry) error {
	if _, ok := t.s.entries[e.ID]; ok {
		return ErrConflict
	}
	if e.Status.Active() && t.find(func(o model.QueueEntry) bool { return o.UserID == e.UserID && o.Status.Active() }) != nil {
		return ErrConflict
	}
	t.s.entries[e.ID] = *e
	return nil
}

func (t *memTx) Promote(ctx context.Context, entryID string, room int, at time.Time) error {
	e, ok := t.s.entries[entryID]
	if !ok || e.Status != model.StatusWaiting {
		return ErrConflict
	}
	at = at.UTC()
	e.Status = model.StatusServing
	e.RoomNumber = room
	e.ServeTime = &at
	t.s.entries[entryID] = e
	return nil
}

func (t *memTx) Finish(ctx context.Context, entryID string, at time.Time) error {
	e, ok := t.s.entries[entryID]
	if !ok || e.Status != model.StatusServing {
		return ErrConflict
	}
	at = at.UTC()
	e.Status = model.StatusFinished
	e.FinishTime = &at
	t.s.entries[entryID] = e
	return nil
}

func (t *memTx) Occupy(ctx context.Context, room int, entryID string) error {
	if _, taken := t.s.rooms[room]; taken {
		return ErrConflict
	}
	t.s.rooms[room] = entryID
	return nil
}

func (t *memTx) Vacate(ctx context.Context, room int, entryID string) error {
	if t.s.rooms[room] != entryID {
		return ErrConflict
	}
	delete(t.s.rooms, room)
	return nil
}
