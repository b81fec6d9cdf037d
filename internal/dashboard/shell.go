// Package dashboard owns the single active bed: its source connection, its
// trend engine and the loop that drives them.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/proxtrend/internal/metrics"
	"github.com/sweeney/proxtrend/internal/plant"
	"github.com/sweeney/proxtrend/internal/render"
	"github.com/sweeney/proxtrend/internal/source"
	"github.com/sweeney/proxtrend/internal/status"
	"github.com/sweeney/proxtrend/internal/trend"
)

var (
	// ErrNoBed is returned by operator controls when no bed is selected.
	ErrNoBed = errors.New("dashboard: no bed selected")
	// ErrUnknownBed is returned when a controller/bed pair is not in the
	// plant table.
	ErrUnknownBed = errors.New("dashboard: unknown bed")
)

// DefaultRedraw is the live chart refresh period.
const DefaultRedraw = 40 * time.Millisecond

// Notifier is told about state changes that browsers should pick up.
// Notify must not block.
type Notifier interface {
	Notify(event string)
}

// Ticker delivers ticks at a fixed period.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// Options configures a Shell.
type Options struct {
	Engine   trend.Config
	Redraw   time.Duration
	Debounce time.Duration

	Plant    plant.Table
	Opener   source.Opener
	Renderer render.Renderer
	Tracker  *status.Tracker
	Notifier Notifier // optional
	Logger   *slog.Logger

	// Now and NewTicker default to the real clock.
	Now       func() time.Time
	NewTicker func(time.Duration) Ticker
}

// Result reports the run state after an operator command. View is only set
// while paused.
type Result struct {
	State trend.RunState
	View  trend.View
}

// Label returns the paused status line, or "" while running.
func (r Result) Label() string {
	if r.State != trend.Paused {
		return ""
	}
	return r.View.Label()
}

// Shell holds at most one active bed bundle. Selecting another bed tears the
// current bundle down before the next one is built.
type Shell struct {
	opts   Options
	logger *slog.Logger

	gen atomic.Uint64

	selectMu sync.Mutex // serialises SelectBed and Close

	mu     sync.Mutex
	active *bundle
}

// bundle is everything that lives and dies with one bed selection.
type bundle struct {
	gen        uint64
	controller plant.Controller
	tags       trend.Tags
	src        source.Source

	ctx    context.Context
	cancel context.CancelFunc
	cmds   chan command
	done   chan struct{}
}

// New creates a shell with no bed selected.
func New(opts Options) *Shell {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewTimeTicker
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracker == nil {
		opts.Tracker = status.NewTracker(opts.Now(), status.Config{})
	}
	if opts.Engine.Interval <= 0 {
		opts.Engine.Interval = trend.DefaultInterval
	}
	if opts.Engine.Window <= 0 {
		opts.Engine.Window = trend.DefaultWindow
	}
	if opts.Redraw <= 0 {
		opts.Redraw = DefaultRedraw
	}
	if opts.Renderer == nil {
		opts.Renderer = render.NewChart(0, 0)
	}
	return &Shell{
		opts:   opts,
		logger: opts.Logger.With("component", "dashboard"),
	}
}

// SelectBed makes bed on the controller at address the active bed. The
// previous bed's loop is stopped and its source closed first. A source that
// cannot be opened is reported as a notice and the bed samples (false, false)
// until another selection.
func (s *Shell) SelectBed(ctx context.Context, address, bed string) error {
	ctrl, err := s.opts.Plant.Lookup(address, bed)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnknownBed, err)
	}

	s.selectMu.Lock()
	defer s.selectMu.Unlock()

	s.stopActive()

	tags := plant.TagsFor(bed)
	src, err := s.opts.Opener.Open(ctx, ctrl, tags)
	connected := err == nil
	if err != nil {
		src = nil
		s.logger.Warn("could not connect to controller", "controller", address, "bed", bed, "error", err)
		s.AddNotice(fmt.Sprintf("Could not connect to PLC at %s: %v", address, err))
	}

	// A nil source must reach the engine as a nil interface.
	var reader trend.Reader
	if src != nil {
		reader = src
	}
	eng := trend.NewEngine(s.opts.Engine, reader, tags, s.opts.Now())

	s.opts.Tracker.SetBed(ctrl.Address, ctrl.Label, ctrl.SourceKind(), tags, connected)
	metrics.IncBedSwitch(connected)
	metrics.SetPaused(false)
	metrics.SetHistorySamples(0)

	bctx, cancel := context.WithCancel(context.Background())
	b := &bundle{
		gen:        s.gen.Add(1),
		controller: ctrl,
		tags:       tags,
		src:        src,
		ctx:        bctx,
		cancel:     cancel,
		cmds:       make(chan command),
		done:       make(chan struct{}),
	}

	s.mu.Lock()
	s.active = b
	s.mu.Unlock()

	sample := s.opts.NewTicker(s.opts.Engine.Interval)
	redraw := s.opts.NewTicker(s.opts.Redraw)

	s.opts.Renderer.Draw(eng.LiveFrame())
	go s.runLoop(b, eng, sample, redraw)

	s.logger.Info("bed selected", "controller", address, "label", ctrl.Label, "bed", bed, "connected", connected)
	s.notify("bed")
	return nil
}

// stopActive invalidates the current bundle and waits for its loop to exit.
func (s *Shell) stopActive() {
	s.mu.Lock()
	b := s.active
	s.active = nil
	s.gen.Add(1)
	s.mu.Unlock()

	if b == nil {
		return
	}
	b.cancel()
	<-b.done
	if b.src != nil {
		if err := b.src.Close(); err != nil {
			s.logger.Warn("close source", "bed", b.tags.Bed, "error", err)
		}
	}
}

// current reports whether gen is still the active generation.
func (s *Shell) current(gen uint64) bool {
	return s.gen.Load() == gen
}

// Selected returns the active controller address and bed, if any.
func (s *Shell) Selected() (address, bed string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return "", "", false
	}
	return s.active.controller.Address, s.active.tags.Bed, true
}

// TogglePause pauses a running bed or resumes a paused one.
func (s *Shell) TogglePause(ctx context.Context) (Result, error) {
	return s.send(ctx, command{kind: cmdToggle})
}

// Shift moves the paused view by deltaSeconds, negative into the past.
// While running it changes nothing and reports the running state.
func (s *Shell) Shift(ctx context.Context, deltaSeconds float64) (Result, error) {
	return s.send(ctx, command{kind: cmdShift, delta: deltaSeconds})
}

// Current reports the run state. It returns after every tick already
// delivered to the loop has been handled.
func (s *Shell) Current(ctx context.Context) (Result, error) {
	return s.send(ctx, command{kind: cmdCurrent})
}

func (s *Shell) send(ctx context.Context, cmd command) (Result, error) {
	s.mu.Lock()
	b := s.active
	s.mu.Unlock()
	if b == nil {
		return Result{}, ErrNoBed
	}

	cmd.resp = make(chan Result, 1)
	select {
	case b.cmds <- cmd:
	case <-b.done:
		return Result{}, ErrNoBed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case r := <-cmd.resp:
		return r, nil
	case <-b.done:
		return Result{}, ErrNoBed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// AddNotice records a non-fatal operator notice.
func (s *Shell) AddNotice(msg string) {
	s.opts.Tracker.AddNotice(s.opts.Now(), msg)
	s.notify("notice")
}

// Notices returns the operator notices, newest last.
func (s *Shell) Notices() []status.Notice {
	return s.opts.Tracker.Notices()
}

// Close stops the active bed, if any.
func (s *Shell) Close() {
	s.selectMu.Lock()
	defer s.selectMu.Unlock()
	s.stopActive()
	s.opts.Tracker.ClearBed()
	metrics.SetPaused(false)
}

func (s *Shell) notify(event string) {
	if s.opts.Notifier != nil {
		s.opts.Notifier.Notify(event)
	}
}
