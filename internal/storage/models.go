package storage

import (
	"time"

	"github.com/hperssn/focusflow/internal/domain"
)

type UserRecord struct {
	ID                string             `bson:"_id"`
	Subject           string             `bson:"subject"`
	Email             string             `bson:"email"`
	Name              string             `bson:"name"`
	Picture           string             `bson:"picture,omitempty"`
	CreatedAt         time.Time          `bson:"created_at"`
	LastActive        time.Time          `bson:"last_active"`
	TotalSessions     int64              `bson:"total_sessions"`
	TotalFocusMinutes int64              `bson:"total_focus_minutes"`
	Notifications     NotificationRecord `bson:"notifications"`
}

type NotificationRecord struct {
	Enabled          bool `json:"enabled" bson:"enabled"`
	FocusDropAlerts  bool `json:"focusDropAlerts" bson:"focus_drop_alerts"`
	SessionSummaries bool `json:"sessionSummaries" bson:"session_summaries"`
	WeeklyReports    bool `json:"weeklyReports" bson:"weekly_reports"`
}

type SessionRecord struct {
	ID           string        `bson:"_id"`
	UserID       string        `bson:"user_id"`
	Status       string        `bson:"status"`
	Task         string        `bson:"task"`
	Mood         string        `bson:"mood"`
	StartTime    time.Time     `bson:"start_time"`
	EndTime      *time.Time    `bson:"end_time,omitempty"`
	DurationSec  int64         `bson:"duration_sec"`
	AverageScore float64       `bson:"average_score"`
	MaxScore     float64       `bson:"max_score"`
	MinScore     float64       `bson:"min_score"`
	Points       []PointRecord `bson:"points"`
}

// PointRecord is stored as JSON in the SQL backends and as an embedded
// document in Mongo.
type PointRecord struct {
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
	TypingSpeed float64   `json:"typingSpeed" bson:"typing_speed"`
	IdleTime    float64   `json:"idleTime" bson:"idle_time"`
	TabSwitches float64   `json:"tabSwitches" bson:"tab_switches"`
	FocusScore  float64   `json:"focusScore" bson:"focus_score"`
	FocusLabel  string    `json:"focusLabel" bson:"focus_label"`
	AIMessage   string    `json:"aiMessage,omitempty" bson:"ai_message,omitempty"`
	VoiceURL    string    `json:"voiceUrl,omitempty" bson:"voice_url,omitempty"`
}

type FocusDataRecord struct {
	ID          string `bson:"_id"`
	UserID      string `bson:"user_id"`
	SessionID   string `bson:"session_id,omitempty"`
	PointRecord `bson:",inline"`
}

func FromDomainUser(u *domain.User) *UserRecord {
	return &UserRecord{
		ID:                u.ID,
		Subject:           u.Subject,
		Email:             u.Email,
		Name:              u.Name,
		Picture:           u.Picture,
		CreatedAt:         u.CreatedAt.UTC(),
		LastActive:        u.LastActive.UTC(),
		TotalSessions:     u.TotalSessions,
		TotalFocusMinutes: u.TotalFocusMinutes,
		Notifications:     NotificationRecord(u.Notifications),
	}
}

func (r *UserRecord) ToDomain() *domain.User {
	return &domain.User{
		ID:                r.ID,
		Subject:           r.Subject,
		Email:             r.Email,
		Name:              r.Name,
		Picture:           r.Picture,
		CreatedAt:         r.CreatedAt,
		LastActive:        r.LastActive,
		TotalSessions:     r.TotalSessions,
		TotalFocusMinutes: r.TotalFocusMinutes,
		Notifications:     domain.NotificationPreferences(r.Notifications),
	}
}

func FromDomainPoint(p domain.Point) PointRecord {
	return PointRecord{
		Timestamp:   p.Timestamp.UTC(),
		TypingSpeed: p.TypingSpeed,
		IdleTime:    p.IdleTime,
		TabSwitches: p.TabSwitches,
		FocusScore:  p.FocusScore,
		FocusLabel:  string(p.FocusLabel),
		AIMessage:   p.AIMessage,
		VoiceURL:    p.VoiceURL,
	}
}

func (r PointRecord) ToDomain() domain.Point {
	return domain.Point{
		Timestamp:   r.Timestamp,
		TypingSpeed: r.TypingSpeed,
		IdleTime:    r.IdleTime,
		TabSwitches: r.TabSwitches,
		FocusScore:  r.FocusScore,
		FocusLabel:  domain.Label(r.FocusLabel),
		AIMessage:   r.AIMessage,
		VoiceURL:    r.VoiceURL,
	}
}

// FromDomainSession converts a domain.Session to a SessionRecord
func FromDomainSession(s *domain.Session) *SessionRecord {
	points := make([]PointRecord, len(s.Points))
	for i, p := range s.Points {
		points[i] = FromDomainPoint(p)
	}

	var end *time.Time
	if s.EndTime != nil {
		t := s.EndTime.UTC()
		end = &t
	}

	return &SessionRecord{
		ID:           s.ID,
		UserID:       s.UserID,
		Status:       string(s.Status),
		Task:         s.Task,
		Mood:         s.Mood,
		StartTime:    s.StartTime.UTC(),
		EndTime:      end,
		DurationSec:  s.DurationSec,
		AverageScore: s.AverageScore,
		MaxScore:     s.MaxScore,
		MinScore:     s.MinScore,
		Points:       points,
	}
}

func (r *SessionRecord) ToDomain() *domain.Session {
	points := make([]domain.Point, len(r.Points))
	for i, p := range r.Points {
		points[i] = p.ToDomain()
	}

	return &domain.Session{
		ID:           r.ID,
		UserID:       r.UserID,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		DurationSec:  r.DurationSec,
		AverageScore: r.AverageScore,
		MaxScore:     r.MaxScore,
		MinScore:     r.MinScore,
		Status:       domain.Status(r.Status),
		Task:         r.Task,
		Mood:         r.Mood,
		Points:       points,
	}
}

func FromDomainFocusData(d *domain.FocusData) *FocusDataRecord {
	return &FocusDataRecord{
		ID:          d.ID,
		UserID:      d.UserID,
		SessionID:   d.SessionID,
		PointRecord: FromDomainPoint(d.Point),
	}
}

func (r *FocusDataRecord) ToDomain() domain.FocusData {
	return domain.FocusData{
		ID:        r.ID,
		UserID:    r.UserID,
		SessionID: r.SessionID,
		Point:     r.PointRecord.ToDomain(),
	}
}

func endTime(s *domain.Session) time.Time {
	if s.EndTime == nil {
		return time.Time{}
	}
	return *s.EndTime
}
