package trend

import (
	"errors"
	"math"
	"time"
)

// ErrNoReader is reported for ticks taken without a connected source.
var ErrNoReader = errors.New("trend: no signal source")

// Reader returns the current values of two boolean tags.
type Reader interface {
	Read(tag1, tag2 string) (bool, bool, error)
}

// Reading is the outcome of one running tick.
type Reading struct {
	Sample Sample
	// Err is the read failure that was replaced by (false, false), if any.
	Err error
}

// Engine samples one bed at a fixed cadence into a bounded history and
// navigates that history while paused.
// Not safe for concurrent use: one loop owns the engine.
type Engine struct {
	cfg    Config
	reader Reader
	tags   Tags
	start  time.Time

	hist     *History
	state    RunState
	cursor   int
	pausedAt float64

	ticks    uint64
	failures uint64
}

// NewEngine creates a running engine. reader may be nil when the controller
// could not be reached; every tick then records (false, false).
func NewEngine(cfg Config, reader Reader, tags Tags, start time.Time) *Engine {
	return &Engine{
		cfg:    cfg,
		reader: reader,
		tags:   tags,
		start:  start,
		hist:   NewHistory(2 * cfg.Capacity()),
		state:  Running,
		cursor: -1,
	}
}

// Tick takes one sample if running. It returns false while paused, in which
// case nothing is read and nothing is recorded.
func (e *Engine) Tick(now time.Time) (Reading, bool) {
	if e.state == Paused {
		return Reading{}, false
	}

	t := e.elapsed(now)
	p1, p2, err := e.read()
	if err != nil {
		p1, p2 = false, false
		e.failures++
	}

	if prev, ok := e.hist.Last(); ok {
		// Hold the previous level up to just before t so that a plain line
		// plot draws a vertical edge at t.
		dup := t - e.cfg.Epsilon()
		if dup < prev.T {
			dup = prev.T
		}
		e.hist.Append(Sample{T: dup, P1: prev.P1, P2: prev.P2})
	}

	s := Sample{T: t, P1: p1, P2: p2}
	e.hist.Append(s)
	e.hist.Trim()
	e.ticks++

	return Reading{Sample: s, Err: err}, true
}

func (e *Engine) read() (bool, bool, error) {
	if e.reader == nil {
		return false, false, ErrNoReader
	}
	return e.reader.Read(e.tags.Prox1, e.tags.Prox2)
}

func (e *Engine) elapsed(now time.Time) float64 {
	return now.Sub(e.start).Seconds()
}

// Pause stops sampling and returns the view of the newest sample.
// Pausing an already paused engine keeps the current pause point.
func (e *Engine) Pause(now time.Time) View {
	if e.state != Paused {
		e.state = Paused
		e.pausedAt = e.elapsed(now)
		e.cursor = -1
	}
	v, _ := e.PausedView()
	return v
}

// Resume restarts sampling from the current time. Missed ticks are not
// back-filled.
func (e *Engine) Resume() {
	e.state = Running
}

// Toggle flips between running and paused. The view is only meaningful when
// the returned state is Paused.
func (e *Engine) Toggle(now time.Time) (RunState, View) {
	if e.state == Paused {
		e.Resume()
		return Running, View{}
	}
	return Paused, e.Pause(now)
}

// entriesPerTick is the number of history entries a running tick adds: the
// step duplicate and the real sample.
const entriesPerTick = 2

// Shift moves the paused view by deltaSeconds, negative into the past.
// The view moves by round(delta/interval) ticks, each of which spans
// entriesPerTick history entries, and is clamped to the retained history.
// Returns false while running.
func (e *Engine) Shift(deltaSeconds float64) (View, bool) {
	if e.state != Paused {
		return View{}, false
	}

	ticks := 0
	if e.cfg.Interval > 0 {
		ticks = int(math.Round(deltaSeconds / e.cfg.Interval.Seconds()))
	}
	e.cursor = clampCursor(e.cursor+ticks*entriesPerTick, e.hist.Len())
	return e.PausedView()
}

// clampCursor limits c to [-(length-1), -1], never above -1.
func clampCursor(c, length int) int {
	lo := -(length - 1)
	if lo > -1 {
		lo = -1
	}
	if c < lo {
		return lo
	}
	if c > -1 {
		return -1
	}
	return c
}

// PausedView resolves the cursor and returns the full history with the
// window ending at the viewed sample. Returns false while running.
func (e *Engine) PausedView() (View, bool) {
	if e.state != Paused {
		return View{}, false
	}

	n := e.hist.Len()
	v := View{
		Cursor:   e.cursor,
		Index:    -1,
		PausedAt: e.pausedAt,
		ViewTime: e.pausedAt,
	}
	if n > 0 {
		idx := n + e.cursor
		if idx < 0 {
			idx = 0
		}
		v.Index = idx
		v.ViewTime = e.hist.At(idx).T
	}
	v.Frame = e.frame(v.ViewTime-e.cfg.Window.Seconds(), v.ViewTime)
	return v, true
}

// LiveFrame returns the full history with the window trailing the newest
// sample.
func (e *Engine) LiveFrame() Frame {
	end := 0.0
	if last, ok := e.hist.Last(); ok {
		end = last.T
	}
	start := math.Max(0, end-e.cfg.Window.Seconds())
	return e.frame(start, end)
}

func (e *Engine) frame(start, end float64) Frame {
	x, y1, y2 := e.hist.series()
	return Frame{
		Title: "Live Trend for Bed: " + e.tags.Bed,
		X:     x,
		Y1:    y1,
		Y2:    y2,
		Start: start,
		End:   end,
	}
}

// State returns the current run state.
func (e *Engine) State() RunState {
	return e.state
}

// Cursor returns the paused view cursor (-1 = newest).
func (e *Engine) Cursor() int {
	return e.cursor
}

// PausedAt returns the elapsed seconds at which the engine was paused.
func (e *Engine) PausedAt() float64 {
	return e.pausedAt
}

// History returns the engine's history. Callers must not retain it across
// ticks.
func (e *Engine) History() *History {
	return e.hist
}

// Tags returns the sampled tag names.
func (e *Engine) Tags() Tags {
	return e.tags
}

// Counts returns the number of samples taken and how many of them fell back
// to (false, false).
func (e *Engine) Counts() (ticks, failures uint64) {
	return e.ticks, e.failures
}
