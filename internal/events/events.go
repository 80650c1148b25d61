// Package events fans scored points out to live subscribers and, when
// configured, to NATS.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/hperssn/focusflow/internal/domain"
)

type Type string

const (
	TypePoint        Type = "point"
	TypeSessionEnded Type = "session_ended"
)

type Event struct {
	Type         Type          `json:"type"`
	UserID       string        `json:"userId"`
	SessionID    string        `json:"sessionId,omitempty"`
	Point        *domain.Point `json:"point,omitempty"`
	AverageScore float64       `json:"averageFocusScore,omitempty"`
	MaxScore     float64       `json:"maxFocusScore,omitempty"`
	MinScore     float64       `json:"minFocusScore,omitempty"`
	At           time.Time     `json:"at"`
}

// PointRecorded builds the event for a point. sess may be nil when the point
// was stored without a session.
func PointRecorded(userID string, p domain.Point, sess *domain.Session) Event {
	e := Event{Type: TypePoint, UserID: userID, Point: &p, At: p.Timestamp}
	if sess != nil {
		e.SessionID = sess.ID
		e.AverageScore = sess.AverageScore
		e.MaxScore = sess.MaxScore
		e.MinScore = sess.MinScore
	}
	return e
}

func SessionEnded(sess *domain.Session) Event {
	e := Event{
		Type:         TypeSessionEnded,
		UserID:       sess.UserID,
		SessionID:    sess.ID,
		AverageScore: sess.AverageScore,
		MaxScore:     sess.MaxScore,
		MinScore:     sess.MinScore,
	}
	if sess.EndTime != nil {
		e.At = *sess.EndTime
	}
	return e
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
