package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationPreferences struct {
	Enabled          bool `json:"enabled"`
	FocusDropAlerts  bool `json:"focusDropAlerts"`
	SessionSummaries bool `json:"sessionSummaries"`
	WeeklyReports    bool `json:"weeklyReports"`
}

func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		Enabled:         true,
		FocusDropAlerts: true,
	}
}

// WantsFocusDropAlerts requires both the master switch and the alert toggle.
func (n NotificationPreferences) WantsFocusDropAlerts() bool {
	return n.Enabled && n.FocusDropAlerts
}

type User struct {
	ID                string                  `json:"_id"`
	Subject           string                  `json:"auth0Id"`
	Email             string                  `json:"email"`
	Name              string                  `json:"name"`
	Picture           string                  `json:"picture,omitempty"`
	CreatedAt         time.Time               `json:"createdAt"`
	LastActive        time.Time               `json:"lastActive"`
	TotalSessions     int64                   `json:"totalSessions"`
	TotalFocusMinutes int64                   `json:"totalFocusTime"`
	Notifications     NotificationPreferences `json:"emailNotifications"`
}

// Identity is what the identity provider hands over on login.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

func NewUser(id string, ident Identity, now time.Time) *User {
	if id == "" {
		id = uuid.New().String()
	}

	return &User{
		ID:            id,
		Subject:       ident.Subject,
		Email:         ident.Email,
		Name:          ident.Name,
		Picture:       ident.Picture,
		CreatedAt:     now,
		LastActive:    now,
		Notifications: DefaultNotificationPreferences(),
	}
}
