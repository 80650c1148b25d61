// Package tracking runs one tracking sample through scoring, feedback,
// persistence, session aggregation, event fan-out and drop alerts.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hperssn/focusflow/internal/domain"
	"github.com/hperssn/focusflow/internal/events"
	"github.com/hperssn/focusflow/internal/feedback"
	"github.com/hperssn/focusflow/internal/metrics"
	"github.com/hperssn/focusflow/internal/scoring"
	"github.com/hperssn/focusflow/internal/storage"
)

const instrumentationName = "github.com/hperssn/focusflow/internal/tracking"

const alertTimeout = 30 * time.Second

var ErrInvalidRequest = errors.New("invalid tracking request")

var validate = validator.New()

type Scorer interface {
	Score(ctx context.Context, m domain.Metrics) scoring.Result
}

type Enricher interface {
	Enrich(ctx context.Context, score float64, label domain.Label) feedback.Feedback
}

type SessionRecorder interface {
	RecordPoint(ctx context.Context, userID, sessionID string, p domain.Point) (*domain.Session, error)
}

type Alerter interface {
	ShouldAlert(previous, current float64) bool
	FocusDrop(ctx context.Context, user *domain.User, previous, current float64) bool
}

type Request struct {
	UserID      string  `json:"userId" validate:"required"`
	SessionID   string  `json:"sessionId,omitempty"`
	TypingSpeed float64 `json:"typingSpeed" validate:"gte=0"`
	IdleTime    float64 `json:"idleTime" validate:"gte=0"`
	TabSwitches float64 `json:"tabSwitches" validate:"gte=0"`
}

func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		f := fields[0]
		if f.Tag() == "required" {
			return fmt.Errorf("%w: %s is required", ErrInvalidRequest, jsonName(f.Field()))
		}
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidRequest, jsonName(f.Field()))
	}
	return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
}

func jsonName(field string) string {
	if field == "" {
		return field
	}
	if field == "UserID" {
		return "userId"
	}
	return strings.ToLower(field[:1]) + field[1:]
}

type Response struct {
	FocusScore float64      `json:"focusScore"`
	FocusLabel domain.Label `json:"focusLabel"`
	AIMessage  *string      `json:"aiMessage"`
	VoiceURL   *string      `json:"voiceUrl"`
}

type Deps struct {
	Repo      storage.Repository
	Scorer    Scorer
	Enricher  Enricher
	Sessions  SessionRecorder
	Publisher events.Publisher
	Alerter   Alerter
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

type Pipeline struct {
	repo      storage.Repository
	scorer    Scorer
	enricher  Enricher
	sessions  SessionRecorder
	publisher events.Publisher
	alerter   Alerter
	logger    *zap.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time

	alerts sync.WaitGroup
}

// New builds a pipeline. Publisher and Alerter are optional.
func New(d Deps) *Pipeline {
	p := &Pipeline{
		repo:      d.Repo,
		scorer:    d.Scorer,
		enricher:  d.Enricher,
		sessions:  d.Sessions,
		publisher: d.Publisher,
		alerter:   d.Alerter,
		logger:    d.Logger,
		metrics:   d.Metrics,
		tracer:    otel.Tracer(instrumentationName),
		now:       time.Now,
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.metrics == nil {
		p.metrics = metrics.Nop()
	}
	return p
}

// Track scores a sample and records it. Only validation and persistence
// failures are returned; every external integration degrades instead.
func (p *Pipeline) Track(ctx context.Context, req Request) (Response, error) {
	if err := req.Validate(); err != nil {
		p.metrics.TrackingRequests.WithLabelValues("invalid").Inc()
		return Response{}, err
	}

	ctx, span := p.tracer.Start(ctx, "tracking.Track", trace.WithAttributes(
		attribute.String("user.id", req.UserID),
		attribute.String("session.id", req.SessionID),
	))
	defer span.End()

	in := domain.Metrics{TypingSpeed: req.TypingSpeed, IdleTime: req.IdleTime, TabSwitches: req.TabSwitches}
	result := p.scorer.Score(ctx, in)
	fb := p.enricher.Enrich(ctx, result.Score, result.Label)

	span.SetAttributes(
		attribute.Float64("focus.score", result.Score),
		attribute.String("focus.label", string(result.Label)),
		attribute.String("focus.source", result.Source),
		attribute.Bool("feedback.message", fb.Message != ""),
		attribute.Bool("feedback.voice", fb.VoiceURL != ""),
	)

	point := domain.Point{
		Timestamp:   p.now(),
		TypingSpeed: in.TypingSpeed,
		IdleTime:    in.IdleTime,
		TabSwitches: in.TabSwitches,
		FocusScore:  result.Score,
		FocusLabel:  result.Label,
		AIMessage:   fb.Message,
		VoiceURL:    fb.VoiceURL,
	}

	data := &domain.FocusData{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Point:     point,
	}
	if err := p.repo.SaveFocusData(ctx, data); err != nil {
		return Response{}, p.fail(span, fmt.Errorf("failed to save focus data: %w", err))
	}

	var sess *domain.Session
	if req.SessionID != "" {
		var err error
		sess, err = p.sessions.RecordPoint(ctx, req.UserID, req.SessionID, point)
		if err != nil {
			return Response{}, p.fail(span, fmt.Errorf("failed to record point: %w", err))
		}
	}

	p.publish(ctx, events.PointRecorded(req.UserID, point, sess))
	p.maybeAlert(ctx, req.UserID, sess)

	p.metrics.TrackingRequests.WithLabelValues("ok").Inc()

	return Response{
		FocusScore: result.Score,
		FocusLabel: result.Label,
		AIMessage:  optional(fb.Message),
		VoiceURL:   optional(fb.VoiceURL),
	}, nil
}

// Wait blocks until in-flight drop alerts have finished.
func (p *Pipeline) Wait() {
	p.alerts.Wait()
}

func (p *Pipeline) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	p.metrics.TrackingRequests.WithLabelValues("error").Inc()
	return err
}

func (p *Pipeline) publish(ctx context.Context, e events.Event) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, e); err != nil {
		p.logger.Warn("failed to publish point event",
			zap.String("integration", metrics.IntegrationEvents),
			zap.String("user_id", e.UserID),
			zap.String("session_id", e.SessionID),
			zap.Error(err),
		)
		p.metrics.IntegrationFailures.WithLabelValues(metrics.IntegrationEvents).Inc()
	}
}

// maybeAlert compares the two newest points of the session and mails the user
// in the background when the drop qualifies.
func (p *Pipeline) maybeAlert(ctx context.Context, userID string, sess *domain.Session) {
	if p.alerter == nil || sess == nil || len(sess.Points) < 2 {
		return
	}

	previous := sess.Points[len(sess.Points)-2].FocusScore
	current := sess.Points[len(sess.Points)-1].FocusScore
	if !p.alerter.ShouldAlert(previous, current) {
		return
	}

	ctx = context.WithoutCancel(ctx)
	p.alerts.Add(1)
	go func() {
		defer p.alerts.Done()

		ctx, cancel := context.WithTimeout(ctx, alertTimeout)
		defer cancel()

		user, err := p.repo.GetUser(ctx, userID)
		if err != nil {
			p.logger.Warn("cannot load user for focus drop alert", zap.String("user_id", userID), zap.Error(err))
			return
		}
		p.alerter.FocusDrop(ctx, user, previous, current)
	}()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
