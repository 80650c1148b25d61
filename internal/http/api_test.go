package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hperssn/focusflow/internal/config"
	"github.com/hperssn/focusflow/internal/domain"
	"github.com/hperssn/focusflow/internal/events"
	"github.com/hperssn/focusflow/internal/feedback"
	"github.com/hperssn/focusflow/internal/metrics"
	"github.com/hperssn/focusflow/internal/scoring"
	"github.com/hperssn/focusflow/internal/session"
	"github.com/hperssn/focusflow/internal/storage"
	"github.com/hperssn/focusflow/internal/tracking"
	"github.com/hperssn/focusflow/internal/users"
)

type testAPI struct {
	handler http.Handler
	repo    *storage.MemoryRepository
	hub     *events.Hub
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zaptest.NewLogger(t)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	repo := storage.NewMemoryRepository()

	down := httptest.NewServer(http.NotFoundHandler())
	mlURL := down.URL
	down.Close()

	sessions := session.NewService(repo, config.TrackingConfig{LockIdleTTL: time.Hour}, logger, m)
	t.Cleanup(sessions.Close)
	hub := events.NewHub()
	t.Cleanup(hub.Close)

	pipeline := tracking.New(tracking.Deps{
		Repo:      repo,
		Scorer:    scoring.NewGateway(config.ScoringConfig{MLURL: mlURL, Timeout: time.Second}, nil, logger, m),
		Enricher:  feedback.NewEnricher(nil, nil, logger, m),
		Sessions:  sessions,
		Publisher: hub,
		Logger:    logger,
		Metrics:   m,
	})

	h := NewRouter(Deps{
		Users:          users.NewService(repo, logger),
		Sessions:       sessions,
		Tracker:        pipeline,
		Repo:           repo,
		Hub:            hub,
		Publisher:      hub,
		Gatherer:       reg,
		Location:       time.UTC,
		Logger:         logger,
		AllowedOrigins: []string{"http://localhost:5173"},
	})

	return &testAPI{handler: h, repo: repo, hub: hub}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testAPI) login(t *testing.T) domain.User {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/user", map[string]string{
		"auth0Id": "auth0|ada",
		"email":   "ada@example.com",
		"name":    "Ada",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[domain.User](t, rec)
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestAuthRoutes(t *testing.T) {
	a := newTestAPI(t)

	user := a.login(t)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "auth0|ada", user.Subject)
	assert.True(t, user.Notifications.FocusDropAlerts)

	again := a.login(t)
	assert.Equal(t, user.ID, again.ID)

	rec := a.do(t, http.MethodPost, "/api/auth/user", map[string]string{"auth0Id": "auth0|x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields", decode[map[string]string](t, rec)["error"])

	rec = a.do(t, http.MethodGet, "/api/auth/user/auth0|ada", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.ID, decode[domain.User](t, rec).ID)

	rec = a.do(t, http.MethodGet, "/api/auth/user/auth0|nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodPatch, "/api/auth/user/"+user.ID+"/preferences", map[string]any{
		"emailNotifications": map[string]bool{"weeklyReports": true, "focusDropAlerts": false},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[domain.User](t, rec)
	assert.True(t, updated.Notifications.Enabled)
	assert.False(t, updated.Notifications.FocusDropAlerts)
	assert.True(t, updated.Notifications.WeeklyReports)

	rec = a.do(t, http.MethodPatch, "/api/auth/user/missing/preferences", map[string]any{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginFallsBackToProxyIdentity(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/auth/user",
		map[string]string{"email": "lin@example.com", "name": "Lin"},
		"X-Forwarded-User", "proxy|lin",
	)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "proxy|lin", decode[domain.User](t, rec).Subject)
}

func TestSessionLifecycle(t *testing.T) {
	a := newTestAPI(t)
	user := a.login(t)

	rec := a.do(t, http.MethodGet, "/api/sessions/active/"+user.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

	rec = a.do(t, http.MethodPost, "/api/sessions/create", map[string]string{"userId": user.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sess := decode[domain.Session](t, rec)
	assert.Equal(t, domain.StatusActive, sess.Status)
	assert.Equal(t, 100.0, sess.MinScore)

	rec = a.do(t, http.MethodPost, "/api/sessions/create", map[string]string{"userId": user.ID})
	assert.Equal(t, sess.ID, decode[domain.Session](t, rec).ID)

	rec = a.do(t, http.MethodPost, "/api/focus/track", map[string]any{
		"userId":      user.ID,
		"sessionId":   sess.ID,
		"typingSpeed": 5,
		"idleTime":    35,
		"tabSwitches": 7,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tracked := decode[map[string]any](t, rec)
	assert.Equal(t, 55.0, tracked["focusScore"])
	assert.Equal(t, "Losing Focus", tracked["focusLabel"])
	assert.NotEmpty(t, tracked["aiMessage"])
	assert.Nil(t, tracked["voiceUrl"])

	rec = a.do(t, http.MethodPatch, "/api/sessions/"+sess.ID, map[string]any{"status": "paused", "task": "Reading"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatusPaused, decode[domain.Session](t, rec).Status)

	rec = a.do(t, http.MethodPatch, "/api/sessions/"+sess.ID, map[string]any{"status": "napping"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/sessions/"+sess.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[domain.Session](t, rec)
	require.Len(t, got.Points, 1)
	assert.Equal(t, 55.0, got.AverageScore)
	assert.Equal(t, "Reading", got.Task)

	rec = a.do(t, http.MethodPost, "/api/sessions/"+sess.ID+"/end", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ended := decode[domain.Session](t, rec)
	assert.Equal(t, domain.StatusCompleted, ended.Status)
	assert.NotNil(t, ended.EndTime)

	rec = a.do(t, http.MethodPatch, "/api/sessions/"+sess.ID, map[string]any{"status": "active"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/sessions/history/"+user.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]domain.Session](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, sess.ID, history[0].ID)

	rec = a.do(t, http.MethodGet, "/api/sessions/history/"+user.ID+"?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionErrors(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/sessions/create", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User ID required", decode[map[string]string](t, rec)["error"])

	rec = a.do(t, http.MethodPost, "/api/sessions/create", map[string]string{"userId": "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Session not found", decode[map[string]string](t, rec)["error"])

	rec = a.do(t, http.MethodPost, "/api/sessions/missing/end", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/sessions/history/nobody", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestTrackValidation(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/focus/track", map[string]any{"typingSpeed": 10})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/focus/track", map[string]any{"userId": "u", "tabSwitches": -2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/focus/track", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func seedFocusData(t *testing.T, repo storage.Repository, userID string, ts time.Time, score float64) {
	t.Helper()
	require.NoError(t, repo.SaveFocusData(context.Background(), &domain.FocusData{
		ID:     ts.Format(time.RFC3339Nano),
		UserID: userID,
		Point: domain.Point{
			Timestamp:  ts,
			FocusScore: score,
			FocusLabel: domain.LabelFor(score),
		},
	}))
}

func TestFocusHistoryAndAnalytics(t *testing.T) {
	a := newTestAPI(t)

	y := time.Now().UTC().AddDate(0, 0, -1)
	day := time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, time.UTC)
	seedFocusData(t, a.repo, "u1", day.Add(9*time.Hour), 80)
	seedFocusData(t, a.repo, "u1", day.Add(9*time.Hour+30*time.Minute), 90)
	seedFocusData(t, a.repo, "u1", day.Add(14*time.Hour), 60)
	seedFocusData(t, a.repo, "u1", day.AddDate(0, 0, -30), 10)

	rec := a.do(t, http.MethodGet, "/api/focus/history/u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]domain.FocusData](t, rec)
	require.Len(t, history, 4)
	assert.Equal(t, 60.0, history[0].FocusScore, "newest first")

	rec = a.do(t, http.MethodGet, "/api/focus/history/u1?limit=2", nil)
	assert.Len(t, decode[[]domain.FocusData](t, rec), 2)

	rec = a.do(t, http.MethodGet, "/api/focus/history/u1?startDate="+day.Format("2006-01-02"), nil)
	assert.Len(t, decode[[]domain.FocusData](t, rec), 3)

	rec = a.do(t, http.MethodGet, "/api/focus/history/u1?endDate=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/focus/analytics/u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[map[string]any](t, rec)
	assert.Equal(t, 3.0, summary["totalDataPoints"])
	assert.InDelta(t, 76.667, summary["averageScore"], 0.001)
	assert.Equal(t, 9.0, summary["bestHour"])
	daily, ok := summary["dailyData"].([]any)
	require.True(t, ok)
	assert.Len(t, daily, 3)

	rec = a.do(t, http.MethodGet, "/api/focus/analytics/u1?days=60", nil)
	assert.Equal(t, 4.0, decode[map[string]any](t, rec)["totalDataPoints"])

	rec = a.do(t, http.MethodGet, "/api/focus/analytics/nobody", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decode[map[string]any](t, rec)
	assert.Nil(t, empty["bestHour"])
	assert.Equal(t, 0.0, empty["averageScore"])

	rec = a.do(t, http.MethodGet, "/api/focus/analytics/u1?days=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestAPI(t)
	user := a.login(t)
	a.do(t, http.MethodPost, "/api/focus/track", map[string]any{"userId": user.ID, "typingSpeed": 50})

	rec := a.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `focusflow_tracking_requests_total{result="ok"} 1`)
	assert.Contains(t, rec.Body.String(), `focusflow_integration_failures_total{integration="ml"} 1`)
}

func TestCORS(t *testing.T) {
	a := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/focus/track", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStreamSessionEvents(t *testing.T) {
	a := newTestAPI(t)
	srv := httptest.NewServer(a.handler)
	defer srv.Close()

	user := a.login(t)
	rec := a.do(t, http.MethodPost, "/api/sessions/create", map[string]string{"userId": user.ID})
	sess := decode[domain.Session](t, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/sessions/"+sess.ID+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	lines.Buffer(make([]byte, 64*1024), 1<<20)
	next := func() (string, string) {
		var name, data string
		for lines.Scan() {
			line := lines.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && name != "":
				return name, data
			}
		}
		return "", ""
	}

	name, _ := next()
	assert.Equal(t, "snapshot", name)

	require.Eventually(t, func() bool { return a.hub.Subscribers(sess.ID) == 1 }, time.Second, 10*time.Millisecond)

	a.do(t, http.MethodPost, "/api/focus/track", map[string]any{"userId": user.ID, "sessionId": sess.ID, "typingSpeed": 50})
	name, data := next()
	assert.Equal(t, "point", name)
	var ev events.Event
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, sess.ID, ev.SessionID)
	assert.Equal(t, 100.0, ev.Point.FocusScore)

	a.do(t, http.MethodPost, "/api/sessions/"+sess.ID+"/end", nil)
	name, _ = next()
	assert.Equal(t, "session_ended", name)

	name, _ = next()
	assert.Empty(t, name, "stream closes after the session ends")
}

func TestStreamUnknownSession(t *testing.T) {
	a := newTestAPI(t)
	srv := httptest.NewServer(a.handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/sessions/missing/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
