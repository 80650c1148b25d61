package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hperssn/focusflow/internal/collector"
	"github.com/hperssn/focusflow/internal/domain"
)

type fakeTracker struct {
	mu      sync.Mutex
	reports []Report
	result  Result
	err     error
	block   chan struct{}
}

func (f *fakeTracker) Track(ctx context.Context, r Report) (Result, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return f.result, f.err
}

func (f *fakeTracker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reports)
}

type fakePlayer struct {
	mu    sync.Mutex
	calls []string
}

func (p *fakePlayer) Play(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "play "+url)
	return nil
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "stop")
}

func TestSendIsNoopWithoutIdentity(t *testing.T) {
	tracker := &fakeTracker{}
	r := New(tracker, nil, zaptest.NewLogger(t))

	assert.False(t, r.send(context.Background(), domain.Metrics{TypingSpeed: 30}))

	r.SetIdentity("u1", "")
	assert.False(t, r.send(context.Background(), domain.Metrics{TypingSpeed: 30}))

	r.sends.Wait()
	assert.Zero(t, tracker.count())
}

func TestSendReportsMetrics(t *testing.T) {
	tracker := &fakeTracker{result: Result{FocusScore: 82, FocusLabel: domain.LabelFocused}}
	var got []Result
	r := New(tracker, nil, zaptest.NewLogger(t), WithResultHandler(func(res Result) { got = append(got, res) }))
	r.SetIdentity("u1", "s1")

	assert.True(t, r.send(context.Background(), domain.Metrics{TypingSpeed: 30, IdleTime: 2, TabSwitches: 1}))
	r.sends.Wait()

	require.Equal(t, 1, tracker.count())
	assert.Equal(t, Report{UserID: "u1", SessionID: "s1", Metrics: domain.Metrics{TypingSpeed: 30, IdleTime: 2, TabSwitches: 1}}, tracker.reports[0])
	require.Len(t, got, 1)
	assert.Equal(t, 82.0, got[0].FocusScore)
}

func TestVoicePreemptsCurrentAudio(t *testing.T) {
	player := &fakePlayer{}
	r := New(&fakeTracker{}, nil, zaptest.NewLogger(t), WithPlayer(player))

	r.apply(Result{FocusScore: 30, VoiceURL: "data:audio/mpeg;base64,AA"})
	r.apply(Result{FocusScore: 70})
	r.apply(Result{FocusScore: 20, VoiceURL: "data:audio/mpeg;base64,BB"})

	assert.Equal(t, []string{
		"stop", "play data:audio/mpeg;base64,AA",
		"stop", "play data:audio/mpeg;base64,BB",
	}, player.calls)
}

func TestFailedReportIsLoggedOnly(t *testing.T) {
	called := false
	r := New(&fakeTracker{err: errors.New("connection refused")}, nil, zaptest.NewLogger(t),
		WithResultHandler(func(Result) { called = true }))
	r.SetIdentity("u1", "s1")

	r.send(context.Background(), domain.Metrics{})
	r.sends.Wait()
	assert.False(t, called)
}

func TestRunSendsLatestSnapshot(t *testing.T) {
	tracker := &fakeTracker{}
	snaps := make(chan collector.Snapshot, 1)
	r := New(tracker, snaps, zaptest.NewLogger(t), WithInterval(10*time.Millisecond))
	r.SetIdentity("u1", "s1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	snaps <- collector.Snapshot{Metrics: domain.Metrics{TypingSpeed: 42}}

	require.Eventually(t, func() bool {
		tracker.mu.Lock()
		defer tracker.mu.Unlock()
		for _, rep := range tracker.reports {
			if rep.Metrics.TypingSpeed == 42 {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSlowBackendDoesNotStallTicks(t *testing.T) {
	tracker := &fakeTracker{block: make(chan struct{})}
	r := New(tracker, nil, zaptest.NewLogger(t))
	r.SetIdentity("u1", "s1")

	for i := 0; i < 3; i++ {
		assert.True(t, r.send(context.Background(), domain.Metrics{}))
	}
	close(tracker.block)
	r.sends.Wait()
	assert.Equal(t, 3, tracker.count())
}

func TestClientTrack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/focus/track", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u1", body["userId"])
		assert.Equal(t, 35.0, body["idleTime"])
		_, _ = w.Write([]byte(`{"focusScore":55,"focusLabel":"Losing Focus","aiMessage":"Breathe.","voiceUrl":null}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	res, err := c.Track(context.Background(), Report{UserID: "u1", SessionID: "s1", Metrics: domain.Metrics{IdleTime: 35}})
	require.NoError(t, err)
	assert.Equal(t, Result{FocusScore: 55, FocusLabel: domain.LabelLosingFocus, AIMessage: "Breathe."}, res)
}

func TestClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"User not found"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.StartSession(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "User not found")
}
