// Package users manages accounts created from identity-provider logins.
package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hperssn/focusflow/internal/domain"
	"github.com/hperssn/focusflow/internal/storage"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrMissingIdentity = errors.New("missing required fields")
)

// PreferencesPatch carries the notification toggles a client wants changed.
type PreferencesPatch struct {
	Enabled          *bool `json:"enabled,omitempty"`
	FocusDropAlerts  *bool `json:"focusDropAlerts,omitempty"`
	SessionSummaries *bool `json:"sessionSummaries,omitempty"`
	WeeklyReports    *bool `json:"weeklyReports,omitempty"`
}

func (p PreferencesPatch) apply(n *domain.NotificationPreferences) {
	if p.Enabled != nil {
		n.Enabled = *p.Enabled
	}
	if p.FocusDropAlerts != nil {
		n.FocusDropAlerts = *p.FocusDropAlerts
	}
	if p.SessionSummaries != nil {
		n.SessionSummaries = *p.SessionSummaries
	}
	if p.WeeklyReports != nil {
		n.WeeklyReports = *p.WeeklyReports
	}
}

type Service struct {
	repo   storage.Repository
	logger *zap.Logger
	now    func() time.Time

	// login serialises create-or-refresh so two first logins for the same
	// subject cannot both create.
	login sync.Mutex
}

func NewService(repo storage.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Login returns the user for ident, creating it on first sight and otherwise
// refreshing LastActive and, when given, the picture.
func (s *Service) Login(ctx context.Context, ident domain.Identity) (*domain.User, error) {
	if ident.Subject == "" || ident.Email == "" || ident.Name == "" {
		return nil, ErrMissingIdentity
	}

	s.login.Lock()
	defer s.login.Unlock()

	now := s.now()

	user, err := s.repo.GetUserBySubject(ctx, ident.Subject)
	if errors.Is(err, storage.ErrNotFound) {
		user = domain.NewUser("", ident, now)
		if err := s.repo.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("subject", user.Subject))
		return user, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user.LastActive = now
	if ident.Picture != "" {
		user.Picture = ident.Picture
	}
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

func (s *Service) GetBySubject(ctx context.Context, subject string) (*domain.User, error) {
	user, err := s.repo.GetUserBySubject(ctx, subject)
	return user, s.mapErr(err)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.repo.GetUser(ctx, id)
	return user, s.mapErr(err)
}

func (s *Service) UpdatePreferences(ctx context.Context, userID string, patch PreferencesPatch) (*domain.User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, s.mapErr(err)
	}

	patch.apply(&user.Notifications)
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

func (s *Service) mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return ErrUserNotFound
	default:
		return fmt.Errorf("failed to load user: %w", err)
	}
}
