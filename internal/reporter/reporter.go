// Package reporter ships collector snapshots to the backend on a fixed
// interval and plays back any spoken feedback that comes back.
package reporter

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hperssn/focusflow/internal/collector"
	"github.com/hperssn/focusflow/internal/domain"
)

const DefaultInterval = 5 * time.Second

type Report struct {
	UserID    string
	SessionID string
	Metrics   domain.Metrics
}

type Result struct {
	FocusScore float64
	FocusLabel domain.Label
	AIMessage  string
	VoiceURL   string
}

type Tracker interface {
	Track(ctx context.Context, r Report) (Result, error)
}

// Player plays one audio URL at a time.
type Player interface {
	Play(url string) error
	Stop()
}

type Reporter struct {
	tracker   Tracker
	player    Player
	snapshots <-chan collector.Snapshot
	interval  time.Duration
	onResult  func(Result)
	logger    *zap.Logger

	mu        sync.Mutex
	userID    string
	sessionID string

	playMu sync.Mutex
	sends  sync.WaitGroup
}

type Option func(*Reporter)

func WithInterval(d time.Duration) Option {
	return func(r *Reporter) { r.interval = d }
}

// WithResultHandler is called with every successful response.
func WithResultHandler(fn func(Result)) Option {
	return func(r *Reporter) { r.onResult = fn }
}

func WithPlayer(p Player) Option {
	return func(r *Reporter) { r.player = p }
}

func New(tracker Tracker, snapshots <-chan collector.Snapshot, logger *zap.Logger, opts ...Option) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reporter{
		tracker:   tracker,
		snapshots: snapshots,
		interval:  DefaultInterval,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetIdentity sets who reports are sent for. Until both ids are set, ticks
// are no-ops.
func (r *Reporter) SetIdentity(userID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userID = userID
	r.sessionID = sessionID
}

func (r *Reporter) identity() (string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userID, r.sessionID
}

// Run keeps the newest snapshot and sends it on every tick. Sends run in
// their own goroutines so a slow backend never stalls the loop.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer r.sends.Wait()

	var latest collector.Snapshot
	for {
		select {
		case s := <-r.snapshots:
			latest = s
		case <-ticker.C:
			r.send(ctx, latest.Metrics)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Reporter) send(ctx context.Context, m domain.Metrics) bool {
	userID, sessionID := r.identity()
	if userID == "" || sessionID == "" {
		return false
	}

	r.sends.Add(1)
	go func() {
		defer r.sends.Done()

		res, err := r.tracker.Track(ctx, Report{UserID: userID, SessionID: sessionID, Metrics: m})
		if err != nil {
			r.logger.Warn("tracking report failed", zap.String("session_id", sessionID), zap.Error(err))
			return
		}
		r.apply(res)
	}()
	return true
}

func (r *Reporter) apply(res Result) {
	if res.VoiceURL != "" && r.player != nil {
		r.playMu.Lock()
		r.player.Stop()
		if err := r.player.Play(res.VoiceURL); err != nil {
			r.logger.Warn("feedback playback failed", zap.Error(err))
		}
		r.playMu.Unlock()
	}
	if r.onResult != nil {
		r.onResult(res)
	}
}
