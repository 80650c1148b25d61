package domain

import "time"

type Label string

const (
	LabelFocused     Label = "Focused"
	LabelLosingFocus Label = "Losing Focus"
	LabelDistracted  Label = "Distracted"
)

func (l Label) Valid() bool {
	switch l {
	case LabelFocused, LabelLosingFocus, LabelDistracted:
		return true
	}
	return false
}

// LabelFor maps a score onto its tier. Boundaries belong to the higher tier.
func LabelFor(score float64) Label {
	switch {
	case score >= 80:
		return LabelFocused
	case score >= 50:
		return LabelLosingFocus
	default:
		return LabelDistracted
	}
}

func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

type Metrics struct {
	TypingSpeed float64 `json:"typingSpeed"`
	IdleTime    float64 `json:"idleTime"`
	TabSwitches float64 `json:"tabSwitches"`
}

// Point is one scored tracking sample embedded in a session.
type Point struct {
	Timestamp   time.Time `json:"timestamp"`
	TypingSpeed float64   `json:"typingSpeed"`
	IdleTime    float64   `json:"idleTime"`
	TabSwitches float64   `json:"tabSwitches"`
	FocusScore  float64   `json:"focusScore"`
	FocusLabel  Label     `json:"focusLabel"`
	AIMessage   string    `json:"aiMessage,omitempty"`
	VoiceURL    string    `json:"voiceUrl,omitempty"`
}

func (p Point) Metrics() Metrics {
	return Metrics{TypingSpeed: p.TypingSpeed, IdleTime: p.IdleTime, TabSwitches: p.TabSwitches}
}

// FocusData is the standalone copy of a point kept for history queries.
type FocusData struct {
	ID        string `json:"_id"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId,omitempty"`
	Point
}
