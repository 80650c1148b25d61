package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hperssn/focusflow/internal/domain"
)

// MemoryRepository keeps everything in process. Values are copied on the way
// in and out so callers never share state with the store.
type MemoryRepository struct {
	mu        sync.RWMutex
	users     map[string]*domain.User
	sessions  map[string]*domain.Session
	focusData []domain.FocusData
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:    make(map[string]*domain.User),
		sessions: make(map[string]*domain.Session),
	}
}

func (r *MemoryRepository) CreateUser(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Subject == u.Subject {
			return fmt.Errorf("user with subject %q already exists", u.Subject)
		}
	}
	c := *u
	r.users[u.ID] = &c
	return nil
}

func (r *MemoryRepository) UpdateUser(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	// Counters belong to IncrementUserStats.
	stored.Email = u.Email
	stored.Name = u.Name
	stored.Picture = u.Picture
	stored.LastActive = u.LastActive
	stored.Notifications = u.Notifications
	return nil
}

func (r *MemoryRepository) GetUser(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r *MemoryRepository) GetUserBySubject(_ context.Context, subject string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Subject == subject {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) IncrementUserStats(_ context.Context, userID string, sessions, focusMinutes int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.TotalSessions += sessions
	u.TotalFocusMinutes += focusMinutes
	return nil
}

func (r *MemoryRepository) CreateSession(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; exists {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *MemoryRepository) SaveSession(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; !exists {
		return ErrNotFound
	}
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *MemoryRepository) GetSession(_ context.Context, id string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (r *MemoryRepository) FindActiveSession(_ context.Context, userID string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if s.UserID == userID && s.Status == domain.StatusActive {
			return s.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) ListCompletedSessions(_ context.Context, userID string, limit int) ([]*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Session
	for _, s := range r.sessions {
		if s.UserID == userID && s.Status == domain.StatusCompleted {
			out = append(out, s.Clone())
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return endTime(out[i]).After(endTime(out[j]))
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) SaveFocusData(_ context.Context, d *domain.FocusData) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.focusData = append(r.focusData, *d)
	return nil
}

func (r *MemoryRepository) ListFocusData(_ context.Context, userID string, q FocusDataQuery) ([]domain.FocusData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.FocusData
	for _, d := range r.focusData {
		if d.UserID == userID && q.matches(d.Timestamp) {
			out = append(out, d)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if q.Ascending {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *MemoryRepository) Close() error {
	return nil
}
