package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hperssn/focusflow/internal/domain"
)

var ErrNotFound = errors.New("not found")

type Repository interface {
	CreateUser(ctx context.Context, u *domain.User) error
	UpdateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserBySubject(ctx context.Context, subject string) (*domain.User, error)
	// IncrementUserStats adds to the cumulative counters without a read-modify-write.
	IncrementUserStats(ctx context.Context, userID string, sessions, focusMinutes int64) error

	CreateSession(ctx context.Context, s *domain.Session) error
	SaveSession(ctx context.Context, s *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	// FindActiveSession returns ErrNotFound when the user has no active session.
	FindActiveSession(ctx context.Context, userID string) (*domain.Session, error)
	ListCompletedSessions(ctx context.Context, userID string, limit int) ([]*domain.Session, error)

	SaveFocusData(ctx context.Context, d *domain.FocusData) error
	ListFocusData(ctx context.Context, userID string, q FocusDataQuery) ([]domain.FocusData, error)

	Close() error
}

// FocusDataQuery bounds a history read. Zero times are open bounds and a zero
// limit means no limit.
type FocusDataQuery struct {
	Since     time.Time
	Until     time.Time
	Limit     int
	Ascending bool
}

func (q FocusDataQuery) matches(ts time.Time) bool {
	if !q.Since.IsZero() && ts.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && ts.After(q.Until) {
		return false
	}
	return true
}
