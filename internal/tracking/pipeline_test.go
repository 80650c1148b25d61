package tracking

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hperssn/focusflow/internal/config"
	"github.com/hperssn/focusflow/internal/domain"
	"github.com/hperssn/focusflow/internal/events"
	"github.com/hperssn/focusflow/internal/feedback"
	"github.com/hperssn/focusflow/internal/metrics"
	"github.com/hperssn/focusflow/internal/notify"
	"github.com/hperssn/focusflow/internal/scoring"
	"github.com/hperssn/focusflow/internal/session"
	"github.com/hperssn/focusflow/internal/storage"
)

type recordingMailer struct {
	mu       sync.Mutex
	subjects []string
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subjects)
}

type fixedScorer struct {
	scores []float64
	i      int
}

func (f *fixedScorer) Score(ctx context.Context, _ domain.Metrics) scoring.Result {
	s := f.scores[f.i%len(f.scores)]
	f.i++
	return scoring.Result{Score: s, Label: domain.LabelFor(s), Source: scoring.SourceML}
}

type env struct {
	pipeline *Pipeline
	repo     *storage.MemoryRepository
	sessions *session.Service
	hub      *events.Hub
	mailer   *recordingMailer
	metrics  *metrics.Metrics
	user     *domain.User
}

func newEnv(t *testing.T, scorer Scorer) *env {
	t.Helper()
	logger := zaptest.NewLogger(t)
	m := metrics.Nop()
	repo := storage.NewMemoryRepository()

	user := domain.NewUser("", domain.Identity{Subject: "auth0|1", Email: "ada@example.com", Name: "Ada"}, time.Now())
	require.NoError(t, repo.CreateUser(context.Background(), user))

	sessions := session.NewService(repo, config.TrackingConfig{LockIdleTTL: time.Hour}, logger, m)
	t.Cleanup(sessions.Close)

	hub := events.NewHub()
	t.Cleanup(hub.Close)

	mailer := &recordingMailer{}
	p := New(Deps{
		Repo:      repo,
		Scorer:    scorer,
		Enricher:  feedback.NewEnricher(nil, nil, logger, m),
		Sessions:  sessions,
		Publisher: hub,
		Alerter:   notify.NewAlerter(mailer, config.NotifyConfig{DropThreshold: 20}, logger, m),
		Logger:    logger,
		Metrics:   m,
	})

	return &env{pipeline: p, repo: repo, sessions: sessions, hub: hub, mailer: mailer, metrics: m, user: user}
}

func unreachableGateway(t *testing.T) *scoring.Gateway {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return scoring.NewGateway(config.ScoringConfig{MLURL: url, Timeout: time.Second}, nil, zaptest.NewLogger(t), metrics.Nop())
}

func TestTrackEndToEndWithMLDown(t *testing.T) {
	e := newEnv(t, unreachableGateway(t))
	ctx := context.Background()

	sess, _, err := e.sessions.CreateOrResume(ctx, e.user.ID)
	require.NoError(t, err)

	stream, cancel := e.hub.Subscribe(sess.ID)
	defer cancel()

	resp, err := e.pipeline.Track(ctx, Request{
		UserID:      e.user.ID,
		SessionID:   sess.ID,
		TypingSpeed: 5,
		IdleTime:    35,
		TabSwitches: 7,
	})
	require.NoError(t, err)

	assert.Equal(t, 55.0, resp.FocusScore)
	assert.Equal(t, domain.LabelLosingFocus, resp.FocusLabel)
	require.NotNil(t, resp.AIMessage)
	assert.Equal(t, feedback.CannedMessage(55), *resp.AIMessage)
	assert.Nil(t, resp.VoiceURL)

	got, err := e.sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Points, 1)
	assert.Equal(t, 55.0, got.AverageScore)
	assert.Equal(t, *resp.AIMessage, got.Points[0].AIMessage)

	history, err := e.repo.ListFocusData(ctx, e.user.ID, storage.FocusDataQuery{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, sess.ID, history[0].SessionID)
	assert.Equal(t, 7.0, history[0].TabSwitches)

	select {
	case ev := <-stream:
		assert.Equal(t, events.TypePoint, ev.Type)
		assert.Equal(t, 55.0, ev.Point.FocusScore)
	case <-time.After(time.Second):
		t.Fatal("expected point event")
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.TrackingRequests.WithLabelValues("ok")))
}

func TestTrackWithoutSessionStoresStandalone(t *testing.T) {
	e := newEnv(t, &fixedScorer{scores: []float64{90}})
	ctx := context.Background()

	resp, err := e.pipeline.Track(ctx, Request{UserID: e.user.ID, TypingSpeed: 40})
	require.NoError(t, err)
	assert.Nil(t, resp.AIMessage)

	history, err := e.repo.ListFocusData(ctx, e.user.ID, storage.FocusDataQuery{})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestTrackUnknownSessionIsSoft(t *testing.T) {
	e := newEnv(t, &fixedScorer{scores: []float64{70}})
	ctx := context.Background()

	resp, err := e.pipeline.Track(ctx, Request{UserID: e.user.ID, SessionID: "gone"})
	require.NoError(t, err)
	assert.Equal(t, 70.0, resp.FocusScore)

	history, err := e.repo.ListFocusData(ctx, e.user.ID, storage.FocusDataQuery{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "gone", history[0].SessionID)
}

func TestTrackForeignSessionIsNotAggregated(t *testing.T) {
	e := newEnv(t, &fixedScorer{scores: []float64{30}})
	ctx := context.Background()

	sess, _, err := e.sessions.CreateOrResume(ctx, e.user.ID)
	require.NoError(t, err)

	other := domain.NewUser("", domain.Identity{Subject: "auth0|2", Email: "bob@example.com", Name: "Bob"}, time.Now())
	require.NoError(t, e.repo.CreateUser(ctx, other))

	_, err = e.pipeline.Track(ctx, Request{UserID: other.ID, SessionID: sess.ID})
	require.NoError(t, err)

	stored, err := e.sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Points)

	history, err := e.repo.ListFocusData(ctx, other.ID, storage.FocusDataQuery{})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestTrackValidation(t *testing.T) {
	e := newEnv(t, &fixedScorer{scores: []float64{70}})
	ctx := context.Background()

	_, err := e.pipeline.Track(ctx, Request{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = e.pipeline.Track(ctx, Request{UserID: e.user.ID, IdleTime: -1})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	history, err := e.repo.ListFocusData(ctx, e.user.ID, storage.FocusDataQuery{})
	require.NoError(t, err)
	assert.Empty(t, history, "rejected requests leave nothing behind")
	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.TrackingRequests.WithLabelValues("invalid")))
}

func TestTrackSendsDropAlert(t *testing.T) {
	e := newEnv(t, &fixedScorer{scores: []float64{90, 85, 50}})
	ctx := context.Background()

	sess, _, err := e.sessions.CreateOrResume(ctx, e.user.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := e.pipeline.Track(ctx, Request{UserID: e.user.ID, SessionID: sess.ID})
		require.NoError(t, err)
	}
	e.pipeline.Wait()

	require.Equal(t, 1, e.mailer.count())
	assert.Equal(t, "⚠️ Focus Alert: Your focus score dropped by 35 points", e.mailer.subjects[0])
}

type failingRepo struct {
	*storage.MemoryRepository
}

func (failingRepo) SaveFocusData(context.Context, *domain.FocusData) error {
	return errors.New("disk full")
}

func TestTrackPersistenceFailure(t *testing.T) {
	e := newEnv(t, &fixedScorer{scores: []float64{70}})
	e.pipeline.repo = failingRepo{e.repo}

	_, err := e.pipeline.Track(context.Background(), Request{UserID: e.user.ID})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.TrackingRequests.WithLabelValues("error")))
}

func TestRequestValidateNamesField(t *testing.T) {
	err := Request{}.Validate()
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "userId is required")

	err = Request{UserID: "u", TabSwitches: -2}.Validate()
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "tabSwitches must not be negative")

	assert.NoError(t, Request{UserID: "u"}.Validate())
}
