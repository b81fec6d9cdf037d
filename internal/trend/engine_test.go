package trend

import (
	"errors"
	"math"
	"testing"
	"time"
)

// scriptedReader returns scripted (p1, p2) values; the last one repeats.
type scriptedReader struct {
	values [][2]bool
	err    error
	calls  int
	tags   [][2]string
}

func (r *scriptedReader) Read(tag1, tag2 string) (bool, bool, error) {
	r.calls++
	r.tags = append(r.tags, [2]string{tag1, tag2})
	if r.err != nil {
		return true, true, r.err
	}
	if len(r.values) == 0 {
		return false, false, nil
	}
	i := r.calls - 1
	if i >= len(r.values) {
		i = len(r.values) - 1
	}
	return r.values[i][0], r.values[i][1], nil
}

var testStart = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

var testTags = Tags{Bed: "B1001", Prox1: "B1001_PRX_OL1", Prox2: "B1001_PRX_OL2"}

// runTicks drives n ticks at step intervals, starting one step after start.
func runTicks(e *Engine, n int, step time.Duration) time.Time {
	now := testStart
	for i := 0; i < n; i++ {
		now = now.Add(step)
		e.Tick(now)
	}
	return now
}

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestCapacity(t *testing.T) {
	cfg := Config{Interval: 10 * time.Millisecond, Window: time.Second}
	if got := cfg.Capacity(); got != 110 {
		t.Errorf("expected capacity 110, got %d", got)
	}

	cfg = Config{Interval: DefaultInterval, Window: DefaultWindow}
	if got := cfg.Capacity(); got != 1010 {
		t.Errorf("expected default capacity 1010, got %d", got)
	}
}

func TestFirstTickHasNoDuplicate(t *testing.T) {
	r := &scriptedReader{values: [][2]bool{{true, false}}}
	e := NewEngine(Config{Interval: 10 * time.Millisecond, Window: time.Second}, r, testTags, testStart)

	reading, ok := e.Tick(testStart.Add(10 * time.Millisecond))
	if !ok {
		t.Fatal("expected tick to sample while running")
	}
	if reading.Err != nil {
		t.Errorf("unexpected read error: %v", reading.Err)
	}
	if e.History().Len() != 1 {
		t.Fatalf("expected 1 sample after first tick, got %d", e.History().Len())
	}
	s := e.History().At(0)
	if !approx(s.T, 0.01, 1e-9) || !s.P1 || s.P2 {
		t.Errorf("unexpected first sample: %+v", s)
	}
}

func TestTickReadsBedTags(t *testing.T) {
	r := &scriptedReader{}
	e := NewEngine(Config{Interval: 10 * time.Millisecond, Window: time.Second}, r, testTags, testStart)
	e.Tick(testStart.Add(10 * time.Millisecond))

	if len(r.tags) != 1 {
		t.Fatalf("expected 1 read, got %d", len(r.tags))
	}
	if r.tags[0] != [2]string{"B1001_PRX_OL1", "B1001_PRX_OL2"} {
		t.Errorf("unexpected tags: %v", r.tags[0])
	}
}

func TestBoundedGrowth(t *testing.T) {
	cfg := Config{Interval: 10 * time.Millisecond, Window: time.Second}
	r := &scriptedReader{values: [][2]bool{{true, false}, {false, true}}}
	e := NewEngine(cfg, r, testTags, testStart)

	limit := 2 * cfg.Capacity()
	now := testStart
	for i := 0; i < 1000; i++ {
		now = now.Add(cfg.Interval)
		e.Tick(now)
		if e.History().Len() > limit {
			t.Fatalf("tick %d: history length %d exceeds %d", i, e.History().Len(), limit)
		}
	}
	if e.History().Len() != limit {
		t.Errorf("expected history to fill to %d, got %d", limit, e.History().Len())
	}

	// Eviction is from the front: the newest sample is the last tick.
	last, _ := e.History().Last()
	if !approx(last.T, 10.0, 1e-6) {
		t.Errorf("expected newest sample at 10.0s, got %v", last.T)
	}
}

func TestStepDuplication(t *testing.T) {
	cfg := Config{Interval: 10 * time.Millisecond, Window: time.Second}
	r := &scriptedReader{values: [][2]bool{
		{false, false},
		{true, false},
		{true, true},
		{false, true},
		{false, false},
	}}
	e := NewEngine(cfg, r, testTags, testStart)
	runTicks(e, 5, cfg.Interval)

	samples := e.History().Samples()
	if len(samples) != 9 {
		t.Fatalf("expected 9 samples (5 real + 4 duplicates), got %d", len(samples))
	}

	eps := cfg.Epsilon()
	// Real samples sit at even indices, duplicates at odd ones.
	for i := 2; i < len(samples); i += 2 {
		prev := samples[i-2]
		dup := samples[i-1]
		cur := samples[i]

		if !approx(dup.T, cur.T-eps, 1e-12) {
			t.Errorf("sample %d: duplicate at %v, want %v", i, dup.T, cur.T-eps)
		}
		if dup.T <= prev.T {
			t.Errorf("sample %d: duplicate at %v not after previous %v", i, dup.T, prev.T)
		}
		if dup.P1 != prev.P1 || dup.P2 != prev.P2 {
			t.Errorf("sample %d: duplicate carries (%v,%v), want previous (%v,%v)",
				i, dup.P1, dup.P2, prev.P1, prev.P2)
		}
	}
}

func TestMonotonicTimestamps(t *testing.T) {
	cfg := Config{Interval: 10 * time.Millisecond, Window: time.Second}
	r := &scriptedReader{values: [][2]bool{{true, false}, {false, true}, {true, true}}}
	e := NewEngine(cfg, r, testTags, testStart)

	// Irregular clock including a repeated instant.
	offsets := []time.Duration{10, 20, 20, 21, 35, 36, 80, 80, 80, 120}
	for _, ms := range offsets {
		e.Tick(testStart.Add(ms * time.Millisecond))
	}

	samples := e.History().Samples()
	for i := 1; i < len(samples); i++ {
		if samples[i].T < samples[i-1].T {
			t.Errorf("timestamps decrease at %d: %v < %v", i, samples[i].T, samples[i-1].T)
		}
	}
}

func TestReadFailureFallsBackToZero(t *testing.T) {
	cfg := Config{Interval: 10 * time.Millisecond, Window: time.Second}
	r := &scriptedReader{err: errors.New("connection reset")}
	e := NewEngine(cfg, r, testTags, testStart)

	runTicks(e, 500, cfg.Interval)

	for i, s := range e.History().Samples() {
		if s.P1 || s.P2 {
			t.Fatalf("sample %d: expected (false, false) on failure, got (%v, %v)", i, s.P1, s.P2)
		}
	}
	ticks, failures := e.Counts()
	if ticks != 500 || failures != 500 {
		t.Errorf("expected 500 ticks and 500 failures, got %d and %d", ticks, failures)
	}
	if e.State() != Running {
		t.Errorf("engine should keep running, got %s", e.State())
	}
}

func TestNilReaderFallsBackToZero(t *testing.T) {
	cfg := Config{Interval: 10 * time.Millisecond, Window: time.Second}
	e := NewEngine(cfg, nil, testTags, testStart)

	reading, ok := e.Tick(testStart.Add(cfg.Interval))
	if !ok {
		t.Fatal("expected tick to sample")
	}
	if !errors.Is(reading.Err, ErrNoReader) {
		t.Errorf("expected ErrNoReader, got %v", reading.Err)
	}
	if reading.Sample.P1 || reading.Sample.P2 {
		t.Errorf("expected (false, false), got %+v", reading.Sample)
	}
}

func TestPausedTickIsInert(t *testing.T) {
	cfg := Config{Interval: 10 * time.Millisecond, Window: time.Second}
	r := &scriptedReader{values: [][2]bool{{true, true}}}
	e := NewEngine(cfg, r, testTags, testStart)

	now := runTicks(e, 10, cfg.Interval)
	e.Pause(now)
	before := e.History().Len()
	calls := r.calls

	for i := 0; i < 50; i++ {
		now = now.Add(cfg.Interval)
		if _, ok := e.Tick(now); ok {
			t.Fatal("paused tick should not sample")
		}
	}
	if e.History().Len() != before {
		t.Errorf("history changed while paused: %d -> %d", before, e.History().Len())
	}
	if r.calls != calls {
		t.Errorf("source read while paused: %d -> %d calls", calls, r.calls)
	}
}

func TestResumeDoesNotCatchUp(t *testing.T) {
	cfg := Config{Interval: 10 * time.Millisecond, Window: time.Second}
	e := NewEngine(cfg, &scriptedReader{}, testTags, testStart)

	now := runTicks(e, 10, cfg.Interval) // t = 0.10
	e.Pause(now)
	now = now.Add(2 * time.Second)
	e.Resume()
	e.Tick(now)

	samples := e.History().Samples()
	last := samples[len(samples)-1]
	prevReal := samples[len(samples)-3]
	if !approx(last.T, 2.1, 1e-9) {
		t.Errorf("expected resumed sample at 2.1s, got %v", last.T)
	}
	if !approx(prevReal.T, 0.1, 1e-9) {
		t.Errorf("expected gap back to 0.1s, got %v", prevReal.T)
	}
}

func TestShiftAndPausedViewNoOpWhileRunning(t *testing.T) {
	cfg := Config{Interval: 10 * time.Millisecond, Window: time.Second}
	e := NewEngine(cfg, &scriptedReader{}, testTags, testStart)
	runTicks(e, 20, cfg.Interval)

	before := e.History().Samples()
	if _, ok := e.Shift(-0.5); ok {
		t.Error("Shift should be a no-op while running")
	}
	if _, ok := e.PausedView(); ok {
		t.Error("PausedView should be a no-op while running")
	}
	if e.Cursor() != -1 {
		t.Errorf("cursor changed while running: %d", e.Cursor())
	}
	after := e.History().Samples()
	if len(before) != len(after) {
		t.Fatalf("history length changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("sample %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}
}

func TestPauseResetsCursor(t *testing.T) {
	cfg := Config{Interval: 10 * time.Millisecond, Window: time.Second}
	e := NewEngine(cfg, &scriptedReader{}, testTags, testStart)
	now := runTicks(e, 50, cfg.Interval)

	e.Pause(now)
	e.Shift(-0.2)
	if e.Cursor() == -1 {
		t.Fatal("expected cursor to move into the past")
	}

	e.Resume()
	now = now.Add(cfg.Interval)
	e.Tick(now)
	v := e.Pause(now)
	if v.Cursor != -1 || e.Cursor() != -1 {
		t.Errorf("expected cursor reset to -1 on pause, got %d", e.Cursor())
	}
}

func TestShiftForwardClampsAtNewest(t *testing.T) {
	cfg := Config{Interval: 10 * time.Millisecond, Window: time.Second}
	e := NewEngine(cfg, &scriptedReader{}, testTags, testStart)
	now := runTicks(e, 50, cfg.Interval)
	e.Pause(now)

	v, ok := e.Shift(0.1)
	if !ok {
		t.Fatal("expected shift to apply while paused")
	}
	if v.Cursor != -1 {
		t.Errorf("expected cursor clamped at -1, got %d", v.Cursor)
	}

	e.Shift(-0.1)
	v, _ = e.Shift(0.05)
	if v.Cursor != -11 {
		t.Errorf("expected cursor -11 after -10+5 ticks, got %d", v.Cursor)
	}
	if !approx(v.ViewTime, e.PausedAt()-0.05, 1e-9) {
		t.Errorf("expected view 50ms before pause, got %v", v.ViewTime)
	}
}

func TestCursorClampProperty(t *testing.T) {
	cfg := Config{Interval: 10 * time.Millisecond, Window: 500 * time.Millisecond}
	e := NewEngine(cfg, &scriptedReader{values: [][2]bool{{true, false}, {false, true}}}, testTags, testStart)
	now := runTicks(e, 37, cfg.Interval)
	e.Pause(now)

	deltas := []float64{-0.1, -0.5, -3, 0.1, 0.1, -1000, 1000, -0.05, 0.5, -0.5, -0.5, 0.02}
	for _, d := range deltas {
		v, ok := e.Shift(d)
		if !ok {
			t.Fatalf("shift(%v) returned not ok while paused", d)
		}
		n := e.History().Len()
		if v.Index < 0 || v.Index >= n {
			t.Fatalf("shift(%v): index %d out of range [0,%d)", d, v.Index, n)
		}
		if v.Cursor > -1 || v.Cursor < -(n-1) {
			t.Fatalf("shift(%v): cursor %d out of [-%d,-1]", d, v.Cursor, n-1)
		}
	}
}

func TestPausedViewBeforeFirstSample(t *testing.T) {
	cfg := Config{Interval: 10 * time.Millisecond, Window: time.Second}
	e := NewEngine(cfg, &scriptedReader{}, testTags, testStart)

	v := e.Pause(testStart.Add(5 * time.Millisecond))
	if v.Index != -1 {
		t.Errorf("expected no index on empty history, got %d", v.Index)
	}
	if !approx(v.ViewTime, 0.005, 1e-9) {
		t.Errorf("expected view time to fall back to pausedAt, got %v", v.ViewTime)
	}
	v, _ = e.Shift(-1000)
	if v.Cursor != -1 {
		t.Errorf("expected cursor -1 on empty history, got %d", v.Cursor)
	}
}

func TestSingleSampleCursor(t *testing.T) {
	cfg := Config{Interval: 10 * time.Millisecond, Window: time.Second}
	e := NewEngine(cfg, &scriptedReader{}, testTags, testStart)
	now := runTicks(e, 1, cfg.Interval)
	e.Pause(now)

	v, _ := e.Shift(-5)
	if v.Cursor != -1 || v.Index != 0 {
		t.Errorf("expected cursor -1 at index 0, got cursor %d index %d", v.Cursor, v.Index)
	}
}

func TestToggle(t *testing.T) {
	cfg := Config{Interval: 10 * time.Millisecond, Window: time.Second}
	e := NewEngine(cfg, &scriptedReader{}, testTags, testStart)
	now := runTicks(e, 10, cfg.Interval)

	state, v := e.Toggle(now)
	if state != Paused || e.State() != Paused {
		t.Fatalf("expected paused, got %s", state)
	}
	if !approx(v.PausedAt, 0.1, 1e-9) {
		t.Errorf("expected pausedAt 0.1, got %v", v.PausedAt)
	}

	state, _ = e.Toggle(now.Add(time.Second))
	if state != Running || e.State() != Running {
		t.Errorf("expected running, got %s", state)
	}
}

func TestLiveFrameWindow(t *testing.T) {
	cfg := Config{Interval: 10 * time.Millisecond, Window: time.Second}
	e := NewEngine(cfg, &scriptedReader{}, testTags, testStart)

	runTicks(e, 50, cfg.Interval)
	f := e.LiveFrame()
	if f.Start != 0 {
		t.Errorf("expected window start clamped to 0, got %v", f.Start)
	}
	if !approx(f.End, 0.5, 1e-9) {
		t.Errorf("expected window end 0.5, got %v", f.End)
	}

	runTicks(e, 100, cfg.Interval)
	f = e.LiveFrame()
	if !approx(f.End-f.Start, 1.0, 1e-9) {
		t.Errorf("expected 1s window, got [%v, %v]", f.Start, f.End)
	}
	if f.Len() != e.History().Len() {
		t.Errorf("frame should carry the full history: %d vs %d", f.Len(), e.History().Len())
	}
	if f.Title != "Live Trend for Bed: B1001" {
		t.Errorf("unexpected title %q", f.Title)
	}
}

func TestViewLabel(t *testing.T) {
	v := View{PausedAt: 2.004, ViewTime: 1.746}
	if want := "Paused at: 2.00s | Viewing: 1.75s"; v.Label() != want {
		t.Errorf("label: got %q, want %q", v.Label(), want)
	}
	if got := FormatLabel(1.5, 0.25); got != "Paused at: 1.50s | Viewing: 0.25s" {
		t.Errorf("unexpected label %q", got)
	}
}

// Scenario A: interval 10ms, window 1s, 150 ticks, immediate pause.
func TestScenarioImmediatePauseAfter150Ticks(t *testing.T) {
	cfg := Config{Interval: 10 * time.Millisecond, Window: time.Second}
	e := NewEngine(cfg, &scriptedReader{values: [][2]bool{{true, false}, {false, false}}}, testTags, testStart)

	now := runTicks(e, 150, cfg.Interval)
	v := e.Pause(now)

	if !approx(v.PausedAt, 1.5, cfg.Interval.Seconds()) {
		t.Errorf("expected pausedAt ≈ 1.5s, got %v", v.PausedAt)
	}
	if e.History().Len() > 2*(100+10) {
		t.Errorf("history length %d exceeds %d", e.History().Len(), 2*(100+10))
	}
	if !approx(v.ViewTime, 1.5, 1e-9) {
		t.Errorf("expected view at newest sample 1.5s, got %v", v.ViewTime)
	}
	if !approx(v.Frame.Start, 0.5, 1e-9) || !approx(v.Frame.End, 1.5, 1e-9) {
		t.Errorf("expected window [0.5, 1.5], got [%v, %v]", v.Frame.Start, v.Frame.End)
	}
}

// Scenario B: pause at 2.0s, shift(-0.5) with interval 10ms.
func TestScenarioShiftHalfSecondBack(t *testing.T) {
	cfg := Config{Interval: 10 * time.Millisecond, Window: time.Second}
	e := NewEngine(cfg, &scriptedReader{}, testTags, testStart)

	now := runTicks(e, 200, cfg.Interval)
	e.Pause(now)

	v, ok := e.Shift(-0.5)
	if !ok {
		t.Fatal("expected shift to apply while paused")
	}
	// 50 ticks back; each tick holds a real sample and a step duplicate.
	if v.Cursor != -101 {
		t.Fatalf("expected cursor to move 50 ticks into the past (-101), got %d", v.Cursor)
	}

	want := e.History().At(e.History().Len() - 101).T
	if v.ViewTime != want {
		t.Errorf("view time %v does not match resolved entry %v", v.ViewTime, want)
	}
	if !approx(v.ViewTime, 1.5, 1e-9) {
		t.Errorf("expected view time 1.5s, got %v", v.ViewTime)
	}
	if v.Frame.End != v.ViewTime || !approx(v.Frame.Start, v.ViewTime-1, 1e-9) {
		t.Errorf("expected window [%v, %v], got [%v, %v]", v.ViewTime-1, v.ViewTime, v.Frame.Start, v.Frame.End)
	}
	if v.Frame.Len() != e.History().Len() {
		t.Errorf("paused frame should carry the full history")
	}
	if v.Label() != "Paused at: 2.00s | Viewing: 1.50s" {
		t.Errorf("unexpected label %q", v.Label())
	}
}

// Scenario C: every read fails; the engine keeps sampling zeros.
func TestScenarioSourceAlwaysFails(t *testing.T) {
	cfg := Config{Interval: 10 * time.Millisecond, Window: time.Second}
	r := &scriptedReader{err: errors.New("unavailable")}
	e := NewEngine(cfg, r, testTags, testStart)

	runTicks(e, 300, cfg.Interval)
	if r.calls != 300 {
		t.Errorf("expected 300 reads, got %d", r.calls)
	}
	for _, s := range e.History().Samples() {
		if s.P1 || s.P2 {
			t.Fatal("expected only (false, false) samples")
		}
	}
}

// Scenario D: shift(-1000) on a 120-entry history clamps to -119.
func TestScenarioShiftClampsToOldest(t *testing.T) {
	cfg := Config{Interval: 10 * time.Millisecond, Window: 500 * time.Millisecond}
	if 2*cfg.Capacity() != 120 {
		t.Fatalf("test setup: expected history limit 120, got %d", 2*cfg.Capacity())
	}
	e := NewEngine(cfg, &scriptedReader{}, testTags, testStart)
	now := runTicks(e, 100, cfg.Interval)
	if e.History().Len() != 120 {
		t.Fatalf("expected 120 entries, got %d", e.History().Len())
	}
	e.Pause(now)

	v, ok := e.Shift(-1000)
	if !ok {
		t.Fatal("expected shift to apply")
	}
	if v.Cursor != -119 {
		t.Errorf("expected cursor -119, got %d", v.Cursor)
	}
	if v.Index != 1 {
		t.Errorf("expected index 1, got %d", v.Index)
	}
}
