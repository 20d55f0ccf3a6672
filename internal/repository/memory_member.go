package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/room-queue/internal/model"
)

// MemoryMemberRepo keeps members in process.  Same contract as MemberRepo.
type MemoryMemberRepo struct {
	mu      sync.RWMutex
	members map[string]model.Member
}

func NewMemoryMemberRepo() *MemoryMemberRepo {
	return &MemoryMemberRepo{members: map[string]model.Member{}}
}

func (r *MemoryMemberRepo) Register(ctx context.Context, m model.Member) (bool, error) {
	m.UserID = strings.TrimSpace(m.UserID)
	if m.UserID == "" {
		return false, errors.New("empty user id")
	}
	if m.RegisteredAt.IsZero() {
		m.RegisteredAt = time.Now()
	}
	m.RegisteredAt = m.RegisteredAt.UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[m.UserID]; ok {
		return false, nil
	}
	r.members[m.UserID] = m
	return true, nil
}

func (r *MemoryMemberRepo) Get(ctx context.Context, userID string) (model.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[userID]
	if !ok {
		return model.Member{}, ErrNotFound
	}
	return m, nil
}

func (r *MemoryMemberRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members), nil
}

func (r *MemoryMemberRepo) RegistrationsByDay(ctx context.Context, since time.Time) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[string]int{}
	for _, m := range r.members {
		if m.RegisteredAt.Before(since) {
			continue
		}
		out[m.RegisteredAt.Format("2006-01-02")]++
	}
	return out, nil
}
