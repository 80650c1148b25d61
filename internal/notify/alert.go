// Package notify sends focus-drop alert emails.
package notify

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/hperssn/focusflow/internal/config"
	"github.com/hperssn/focusflow/internal/domain"
	"github.com/hperssn/focusflow/internal/metrics"
)

// Alerter mails a user when their score falls by at least the configured
// threshold between two consecutive points. A nil mailer disables delivery.
type Alerter struct {
	mailer      Mailer
	threshold   float64
	frontendURL string
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

func NewAlerter(mailer Mailer, cfg config.NotifyConfig, logger *zap.Logger, m *metrics.Metrics) *Alerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Alerter{
		mailer:      mailer,
		threshold:   cfg.DropThreshold,
		frontendURL: cfg.FrontendURL,
		logger:      logger,
		metrics:     m,
	}
}

// ShouldAlert reports whether the change from previous to current is a drop
// worth mailing about.
func (a *Alerter) ShouldAlert(previous, current float64) bool {
	return a.threshold > 0 && previous-current >= a.threshold
}

// FocusDrop sends the alert if the drop qualifies and the user opted in. It
// returns whether mail was handed to the relay; failures are only logged.
func (a *Alerter) FocusDrop(ctx context.Context, user *domain.User, previous, current float64) bool {
	if a.mailer == nil || !a.ShouldAlert(previous, current) {
		return false
	}
	if !user.Notifications.WantsFocusDropAlerts() {
		a.logger.Debug("focus drop alerts disabled", zap.String("user_id", user.ID))
		return false
	}

	drop := math.Round(previous - current)
	subject := fmt.Sprintf("⚠️ Focus Alert: Your focus score dropped by %.0f points", drop)

	if err := a.mailer.Send(ctx, user.Email, subject, a.body(user, previous, current, drop)); err != nil {
		a.logger.Warn("focus drop alert failed",
			zap.String("integration", metrics.IntegrationEmail),
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		a.metrics.IntegrationFailures.WithLabelValues(metrics.IntegrationEmail).Inc()
		return false
	}

	a.logger.Info("focus drop alert sent",
		zap.String("user_id", user.ID),
		zap.Float64("previous", previous),
		zap.Float64("current", current),
	)
	return true
}

func (a *Alerter) body(user *domain.User, previous, current, drop float64) string {
	return fmt.Sprintf(`Hello %s,

We noticed a significant drop in your focus score during your current session.

  Previous score: %.0f
  Current score:  %.0f
  Drop:           %.0f points

This might be a good time to:
  - Take a short break (3-5 minutes)
  - Drink some water
  - Do a quick stretch
  - Refocus on your current task

Return to FocusFlow: %s
`, user.Name, previous, current, drop, a.frontendURL)
}
