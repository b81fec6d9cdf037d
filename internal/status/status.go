// Package status provides a thread-safe status tracker for the dashboard.
// It is written by the sampling loop and read by HTTP and websocket handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/proxtrend/internal/edges"
	"github.com/sweeney/proxtrend/internal/trend"
)

// MaxNotices bounds the operator notice list. Older notices are dropped.
const MaxNotices = 20

// Config contains dashboard configuration for display.
type Config struct {
	Interval time.Duration
	Window   time.Duration
	Redraw   time.Duration
	Debounce time.Duration
	HTTPAddr string
}

// Notice is a non-fatal message for the operator.
type Notice struct {
	Time    time.Time
	Message string
}

// Snapshot is a point-in-time view of dashboard state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Controller      string
	ControllerLabel string
	Tags            trend.Tags
	SourceKind      string
	// SourceConnected reflects the open at bed selection. Per-tick read
	// failures are left to metrics and logs.
	SourceConnected bool

	State    trend.RunState
	Cursor   int
	PausedAt float64
	ViewTime float64

	Prox1      edges.State
	Prox2      edges.State
	Baselined  bool
	Counts     edges.Counts
	Ticks      uint64
	HistoryLen int

	Notices   []Notice
	StartTime time.Time
	Now       time.Time
	Config    Config
}

// Uptime returns the duration since the dashboard started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Selected reports whether a bed is active.
func (s Snapshot) Selected() bool {
	return s.Tags.Bed != ""
}

// Label returns the paused status line, or "" while running.
func (s Snapshot) Label() string {
	if s.State != trend.Paused {
		return ""
	}
	return trend.FormatLabel(s.PausedAt, s.ViewTime)
}

// Tracker holds mutable dashboard state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetBed records a new active bed and clears everything sampled for the
// previous one.
func (t *Tracker) SetBed(controller, label, kind string, tags trend.Tags, connected bool) {
	t.mu.Lock()
	t.snap.Controller = controller
	t.snap.ControllerLabel = label
	t.snap.SourceKind = kind
	t.snap.Tags = tags
	t.snap.SourceConnected = connected
	t.snap.State = trend.Running
	t.snap.Cursor = -1
	t.snap.PausedAt = 0
	t.snap.ViewTime = 0
	t.snap.Prox1 = ""
	t.snap.Prox2 = ""
	t.snap.Baselined = false
	t.snap.Counts = edges.Counts{}
	t.snap.Ticks = 0
	t.snap.HistoryLen = 0
	t.mu.Unlock()
}

// ClearBed records that no bed is active.
func (t *Tracker) ClearBed() {
	t.mu.Lock()
	t.snap.Controller = ""
	t.snap.ControllerLabel = ""
	t.snap.SourceKind = ""
	t.snap.Tags = trend.Tags{}
	t.snap.SourceConnected = false
	t.snap.State = ""
	t.mu.Unlock()
}

// Update sets sampled levels and counters.
// Called from runLoop on every running tick.
func (t *Tracker) Update(p1, p2 edges.State, baselined bool, counts edges.Counts, ticks uint64, historyLen int) {
	t.mu.Lock()
	t.snap.Prox1 = p1
	t.snap.Prox2 = p2
	t.snap.Baselined = baselined
	t.snap.Counts = counts
	t.snap.Ticks = ticks
	t.snap.HistoryLen = historyLen
	t.mu.Unlock()
}

// SetPaused records the paused view.
func (t *Tracker) SetPaused(v trend.View) {
	t.mu.Lock()
	t.snap.State = trend.Paused
	t.snap.Cursor = v.Cursor
	t.snap.PausedAt = v.PausedAt
	t.snap.ViewTime = v.ViewTime
	t.mu.Unlock()
}

// SetRunning records that sampling resumed.
func (t *Tracker) SetRunning() {
	t.mu.Lock()
	t.snap.State = trend.Running
	t.snap.Cursor = -1
	t.mu.Unlock()
}

// AddNotice appends an operator notice, dropping the oldest beyond
// MaxNotices.
func (t *Tracker) AddNotice(at time.Time, msg string) {
	t.mu.Lock()
	t.snap.Notices = append(t.snap.Notices, Notice{Time: at, Message: msg})
	if n := len(t.snap.Notices); n > MaxNotices {
		t.snap.Notices = append([]Notice(nil), t.snap.Notices[n-MaxNotices:]...)
	}
	t.mu.Unlock()
}

// Notices returns a copy of the operator notices, newest last.
func (t *Tracker) Notices() []Notice {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Notice(nil), t.snap.Notices...)
}

// Snapshot returns a point-in-time copy of the dashboard state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Notices = append([]Notice(nil), t.snap.Notices...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
