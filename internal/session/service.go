// Package session keeps focus sessions and their running statistics.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hperssn/focusflow/internal/config"
	"github.com/hperssn/focusflow/internal/domain"
	"github.com/hperssn/focusflow/internal/metrics"
	"github.com/hperssn/focusflow/internal/storage"
)

const DefaultHistoryLimit = 10

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidStatus   = errors.New("invalid session status")
	ErrInvalidDuration = errors.New("duration must not be negative")
	// ErrSessionCompleted rejects status changes on an archived session.
	ErrSessionCompleted = errors.New("session already completed")
	// ErrActiveSessionExists rejects resuming while another session is active.
	ErrActiveSessionExists = errors.New("user already has an active session")
)

// Patch holds the client-editable fields of a session. Nil fields are left
// alone.
type Patch struct {
	Status   *domain.Status `json:"status,omitempty"`
	Duration *int64         `json:"duration,omitempty"`
	Task     *string        `json:"task,omitempty"`
	Mood     *string        `json:"mood,omitempty"`
}

func (p Patch) Validate() error {
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, *p.Status)
	}
	if p.Duration != nil && *p.Duration < 0 {
		return ErrInvalidDuration
	}
	return nil
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service serialises writes per session and per user inside this process.
type Service struct {
	repo    storage.Repository
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	locks   *lockRegistry
}

func NewService(repo storage.Repository, cfg config.TrackingConfig, logger *zap.Logger, m *metrics.Metrics, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}

	s := &Service{
		repo:    repo,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.locks = newLockRegistry(cfg.LockIdleTTL, s.now)

	return s
}

// Close stops the lock cleanup goroutine.
func (s *Service) Close() {
	s.locks.stop()
}

func userKey(id string) string    { return "user:" + id }
func sessionKey(id string) string { return "session:" + id }

// CreateOrResume returns the user's active session, creating it if there is
// none. created reports whether a new session was made.
func (s *Service) CreateOrResume(ctx context.Context, userID string) (sess *domain.Session, created bool, err error) {
	unlock := s.locks.lock(userKey(userID))
	defer unlock()

	existing, err := s.repo.FindActiveSession(ctx, userID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up active session: %w", err)
	}

	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, ErrUserNotFound
		}
		return nil, false, fmt.Errorf("failed to load user: %w", err)
	}

	sess = domain.NewSession("", userID, s.now())
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, false, fmt.Errorf("failed to create session: %w", err)
	}
	if err := s.repo.IncrementUserStats(ctx, userID, 1, 0); err != nil {
		return nil, false, fmt.Errorf("failed to update user stats: %w", err)
	}

	s.metrics.SessionsStarted.Inc()
	s.logger.Info("session started",
		zap.String("session_id", sess.ID),
		zap.String("user_id", userID),
	)

	return sess, true, nil
}

// RecordPoint appends p and refreshes the session statistics. A missing
// session, or one owned by another user, is logged and skipped: the result is
// nil without an error.
func (s *Service) RecordPoint(ctx context.Context, userID, sessionID string, p domain.Point) (*domain.Session, error) {
	unlock := s.locks.lock(sessionKey(sessionID))
	defer unlock()

	sess, err := s.repo.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("point for unknown session, keeping standalone copy only",
			zap.String("session_id", sessionID),
		)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if sess.UserID != userID {
		s.logger.Warn("point for another user's session, keeping standalone copy only",
			zap.String("session_id", sessionID),
			zap.String("user_id", userID),
		)
		return nil, nil
	}

	sess.AppendPoint(p)
	if err := s.repo.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return sess, nil
}

// End completes the session and credits its whole minutes to the user. An
// already completed session is returned as is.
func (s *Service) End(ctx context.Context, sessionID string) (*domain.Session, error) {
	unlock := s.locks.lock(sessionKey(sessionID))
	defer unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == domain.StatusCompleted {
		return sess, nil
	}

	if err := s.complete(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) complete(ctx context.Context, sess *domain.Session) error {
	sess.Complete(s.now())
	if err := s.repo.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if err := s.repo.IncrementUserStats(ctx, sess.UserID, 0, sess.FocusMinutes()); err != nil {
		return fmt.Errorf("failed to update user stats: %w", err)
	}

	s.metrics.SessionsCompleted.Inc()
	s.logger.Info("session completed",
		zap.String("session_id", sess.ID),
		zap.String("user_id", sess.UserID),
		zap.Int64("duration_sec", sess.DurationSec),
		zap.Float64("average_score", sess.AverageScore),
		zap.Int("points", len(sess.Points)),
	)
	return nil
}

// Update applies a client patch. Moving a session to completed goes through
// the same path as End so duration and user totals stay consistent.
func (s *Service) Update(ctx context.Context, sessionID string, patch Patch) (*domain.Session, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(sessionKey(sessionID))
	defer unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil && sess.Status == domain.StatusCompleted && *patch.Status != domain.StatusCompleted {
		return nil, fmt.Errorf("%w: cannot move to %s", ErrSessionCompleted, *patch.Status)
	}

	if patch.Status != nil && *patch.Status == domain.StatusActive && sess.Status != domain.StatusActive {
		unlockUser := s.locks.lock(userKey(sess.UserID))
		defer unlockUser()

		other, err := s.repo.FindActiveSession(ctx, sess.UserID)
		switch {
		case err == nil && other.ID != sess.ID:
			return nil, fmt.Errorf("%w: %s", ErrActiveSessionExists, other.ID)
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("failed to look up active session: %w", err)
		}
	}

	if patch.Task != nil {
		sess.Task = *patch.Task
	}
	if patch.Mood != nil {
		sess.Mood = *patch.Mood
	}
	if patch.Duration != nil {
		sess.DurationSec = *patch.Duration
	}

	if patch.Status != nil && *patch.Status == domain.StatusCompleted && sess.Status != domain.StatusCompleted {
		if err := s.complete(ctx, sess); err != nil {
			return nil, err
		}
		return sess, nil
	}
	if patch.Status != nil {
		sess.Status = *patch.Status
	}

	if err := s.repo.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return sess, nil
}

// Active returns nil without an error when the user has no active session.
func (s *Service) Active(ctx context.Context, userID string) (*domain.Session, error) {
	sess, err := s.repo.FindActiveSession(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up active session: %w", err)
	}
	return sess, nil
}

func (s *Service) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.load(ctx, sessionID)
}

// History lists completed sessions, most recently ended first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]*domain.Session, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	sessions, err := s.repo.ListCompletedSessions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *Service) load(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, nil
}
