package domain

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

const (
	initialMaxScore = 0
	initialMinScore = 100
	defaultMood     = "😊"
)

type Session struct {
	ID           string     `json:"_id"`
	UserID       string     `json:"userId"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	DurationSec  int64      `json:"duration"`
	AverageScore float64    `json:"averageFocusScore"`
	MaxScore     float64    `json:"maxFocusScore"`
	MinScore     float64    `json:"minFocusScore"`
	Status       Status     `json:"status"`
	Task         string     `json:"task"`
	Mood         string     `json:"mood"`
	Points       []Point    `json:"focusDataPoints"`
}

func NewSession(id string, userID string, now time.Time) *Session {
	if id == "" {
		id = uuid.New().String()
	}

	return &Session{
		ID:        id,
		UserID:    userID,
		StartTime: now,
		MaxScore:  initialMaxScore,
		MinScore:  initialMinScore,
		Status:    StatusActive,
		Mood:      defaultMood,
		Points:    []Point{},
	}
}

// AppendPoint adds p to the end of the sequence and refreshes the running stats.
func (s *Session) AppendPoint(p Point) {
	s.Points = append(s.Points, p)
	s.Recompute()
}

// Recompute derives average, max and min from every point. With no points the
// initial values are left untouched.
func (s *Session) Recompute() {
	if len(s.Points) == 0 {
		return
	}

	total := 0.0
	max := s.Points[0].FocusScore
	min := s.Points[0].FocusScore
	for _, p := range s.Points {
		total += p.FocusScore
		if p.FocusScore > max {
			max = p.FocusScore
		}
		if p.FocusScore < min {
			min = p.FocusScore
		}
	}

	s.AverageScore = total / float64(len(s.Points))
	s.MaxScore = max
	s.MinScore = min
}

// Complete closes the session at end. Duration is taken from the timestamps.
func (s *Session) Complete(end time.Time) {
	s.EndTime = &end
	s.Status = StatusCompleted
	s.DurationSec = int64(end.Sub(s.StartTime) / time.Second)
	if s.DurationSec < 0 {
		s.DurationSec = 0
	}
	s.Recompute()
}

func (s *Session) FocusMinutes() int64 {
	return s.DurationSec / 60
}

// LastPoint returns the most recent point, if any.
func (s *Session) LastPoint() (Point, bool) {
	if len(s.Points) == 0 {
		return Point{}, false
	}
	return s.Points[len(s.Points)-1], true
}

func (s *Session) Clone() *Session {
	c := *s
	c.Points = make([]Point, len(s.Points))
	copy(c.Points, s.Points)
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	return &c
}
