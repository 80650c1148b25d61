// Package collector turns raw interaction events into focus metrics. All
// counters live inside the Run goroutine; callers talk to it over channels and
// read immutable snapshots.
package collector

import (
	"context"
	"math"
	"time"

	"github.com/hperssn/focusflow/internal/domain"
)

type EventKind int

const (
	KeyPress EventKind = iota
	PointerPress
	PointerMove
	Scroll
	Hidden
	Visible
)

var kindNames = map[string]EventKind{
	"key":     KeyPress,
	"press":   PointerPress,
	"move":    PointerMove,
	"scroll":  Scroll,
	"hidden":  Hidden,
	"visible": Visible,
}

// ParseKind maps the agent's event words onto kinds.
func ParseKind(s string) (EventKind, bool) {
	k, ok := kindNames[s]
	return k, ok
}

type Event struct {
	Kind EventKind
	At   time.Time
}

type Snapshot struct {
	domain.Metrics
	At time.Time
}

type Config struct {
	SampleInterval  time.Duration
	IdleInterval    time.Duration
	IdleDebounce    time.Duration
	MoveEvery       int
	HiddenThreshold time.Duration
}

func DefaultConfig() Config {
	return Config{
		SampleInterval:  10 * time.Second,
		IdleInterval:    time.Second,
		IdleDebounce:    time.Second,
		MoveEvery:       5,
		HiddenThreshold: 2 * time.Second,
	}
}

const eventBuffer = 256

type Collector struct {
	cfg Config
	now func() time.Time

	events    chan Event
	active    chan bool
	reset     chan struct{}
	snapshots chan Snapshot

	state state
}

// state is only touched by the Run goroutine.
type state struct {
	active       bool
	count        int
	moves        int
	lastSample   time.Time
	lastActivity time.Time
	hidden       bool
	hiddenAt     time.Time
	metrics      domain.Metrics
}

func New(cfg Config) *Collector {
	if cfg.MoveEvery <= 0 {
		cfg.MoveEvery = 1
	}
	return &Collector{
		cfg:       cfg,
		now:       time.Now,
		events:    make(chan Event, eventBuffer),
		active:    make(chan bool),
		reset:     make(chan struct{}),
		snapshots: make(chan Snapshot, 1),
	}
}

// Observe queues an event stamped with the current time. Events arriving while
// the queue is full are dropped.
func (c *Collector) Observe(kind EventKind) {
	select {
	case c.events <- Event{Kind: kind, At: c.now()}:
	default:
	}
}

// SetActive switches collection on or off. It blocks until Run picks it up.
func (c *Collector) SetActive(ctx context.Context, active bool) error {
	select {
	case c.active <- active:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset zeroes all metrics and counters. It blocks until Run picks it up.
func (c *Collector) Reset(ctx context.Context) error {
	select {
	case c.reset <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshots delivers the latest metrics. Unread snapshots are replaced.
func (c *Collector) Snapshots() <-chan Snapshot {
	return c.snapshots
}

func (c *Collector) Run(ctx context.Context) error {
	sample := time.NewTicker(c.cfg.SampleInterval)
	defer sample.Stop()
	idle := time.NewTicker(c.cfg.IdleInterval)
	defer idle.Stop()

	for {
		select {
		case ev := <-c.events:
			c.handle(ev)
		case on := <-c.active:
			c.setActive(on, c.now())
		case <-c.reset:
			c.doReset(c.now())
		case <-sample.C:
			c.sample(c.now())
		case <-idle.C:
			c.checkIdle(c.now())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Collector) setActive(on bool, now time.Time) {
	if on && !c.state.active {
		c.state.lastSample = now
		c.state.lastActivity = now
	}
	c.state.active = on
}

func (c *Collector) handle(ev Event) {
	s := &c.state
	if !s.active {
		return
	}

	switch ev.Kind {
	case KeyPress, PointerPress, Scroll:
		s.count++
		c.activity(ev.At)
	case PointerMove:
		s.moves++
		if s.moves%c.cfg.MoveEvery == 0 {
			s.count++
			c.activity(ev.At)
		}
	case Hidden:
		if !s.hidden {
			s.hidden = true
			s.hiddenAt = ev.At
		}
	case Visible:
		if s.hidden && ev.At.Sub(s.hiddenAt) > c.cfg.HiddenThreshold {
			s.metrics.TabSwitches++
			c.publish(ev.At)
		}
		s.hidden = false
	}
}

func (c *Collector) activity(at time.Time) {
	c.state.lastActivity = at
	if c.state.metrics.IdleTime != 0 {
		c.state.metrics.IdleTime = 0
		c.publish(at)
	}
}

func (c *Collector) sample(now time.Time) {
	s := &c.state
	if !s.active {
		return
	}

	minutes := now.Sub(s.lastSample).Minutes()
	if minutes > 0 {
		s.metrics.TypingSpeed = math.Round(float64(s.count) / minutes)
	}
	s.count = 0
	s.lastSample = now
	c.publish(now)
}

func (c *Collector) checkIdle(now time.Time) {
	s := &c.state
	if !s.active {
		return
	}

	idle := 0.0
	if since := now.Sub(s.lastActivity); since > c.cfg.IdleDebounce {
		idle = math.Floor(since.Seconds())
	}
	if idle != s.metrics.IdleTime {
		s.metrics.IdleTime = idle
		c.publish(now)
	}
}

func (c *Collector) doReset(now time.Time) {
	active := c.state.active
	c.state = state{
		active:       active,
		lastSample:   now,
		lastActivity: now,
	}
	c.publish(now)
}

// publish replaces any unread snapshot with the current one. Run is the only
// sender, so the second send cannot block.
func (c *Collector) publish(at time.Time) {
	snap := Snapshot{Metrics: c.state.metrics, At: at}
	select {
	case c.snapshots <- snap:
		return
	default:
	}
	select {
	case <-c.snapshots:
	default:
	}
	c.snapshots <- snap
}
