// Package feedback produces encouragement for degraded focus: a short coach
// message below one threshold and a spoken version of it below a lower one.
package feedback

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hperssn/focusflow/internal/domain"
	"github.com/hperssn/focusflow/internal/metrics"
)

// Gates on the focus score. MessageBelow and the canned tiers are separate
// thresholds and must stay that way.
const (
	MessageBelow = 60
	VoiceBelow   = 40

	cannedHighFrom   = 70
	cannedMediumFrom = 40
)

const (
	cannedHigh   = "You're doing great! Keep up the excellent focus."
	cannedMedium = "Your focus is dropping slightly. Take a deep breath and refocus."
	cannedLow    = "Looks like you're getting tired. Take a 3-minute walk and come back stronger!"
)

type MessageGenerator interface {
	Generate(ctx context.Context, score float64, label domain.Label) (string, error)
}

// VoiceSynthesizer returns a URL the client can play directly.
type VoiceSynthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

type Feedback struct {
	Message  string
	VoiceURL string
}

// Enricher never returns an error. Either collaborator may be nil, which is
// how missing credentials are represented.
type Enricher struct {
	messages MessageGenerator
	voice    VoiceSynthesizer
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewEnricher(messages MessageGenerator, voice VoiceSynthesizer, logger *zap.Logger, m *metrics.Metrics) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Enricher{messages: messages, voice: voice, logger: logger, metrics: m}
}

func (e *Enricher) Enrich(ctx context.Context, score float64, label domain.Label) Feedback {
	var fb Feedback
	if score >= MessageBelow {
		return fb
	}

	fb.Message = e.message(ctx, score, label)

	if score < VoiceBelow && fb.Message != "" {
		fb.VoiceURL = e.speak(ctx, fb.Message)
	}

	return fb
}

func (e *Enricher) message(ctx context.Context, score float64, label domain.Label) string {
	if e.messages != nil {
		msg, err := e.messages.Generate(ctx, score, label)
		msg = strings.TrimSpace(msg)
		if err == nil && msg != "" {
			e.metrics.Enrichments.WithLabelValues("message_llm").Inc()
			return msg
		}
		if err != nil {
			e.logger.Warn("message generation failed, using canned message",
				zap.String("integration", metrics.IntegrationLLM),
				zap.Float64("score", score),
				zap.Error(err),
			)
			e.metrics.IntegrationFailures.WithLabelValues(metrics.IntegrationLLM).Inc()
		}
	}

	e.metrics.Enrichments.WithLabelValues("message_canned").Inc()
	return CannedMessage(score)
}

func (e *Enricher) speak(ctx context.Context, text string) string {
	if e.voice == nil {
		return ""
	}

	url, err := e.voice.Synthesize(ctx, text)
	if err != nil {
		e.logger.Warn("voice synthesis failed, continuing without audio",
			zap.String("integration", metrics.IntegrationVoice),
			zap.Error(err),
		)
		e.metrics.IntegrationFailures.WithLabelValues(metrics.IntegrationVoice).Inc()
		return ""
	}

	e.metrics.Enrichments.WithLabelValues("voice").Inc()
	return url
}

func CannedMessage(score float64) string {
	switch {
	case score >= cannedHighFrom:
		return cannedHigh
	case score >= cannedMediumFrom:
		return cannedMedium
	default:
		return cannedLow
	}
}
