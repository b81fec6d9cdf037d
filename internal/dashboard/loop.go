package dashboard

import (
	"github.com/sweeney/proxtrend/internal/edges"
	"github.com/sweeney/proxtrend/internal/metrics"
	"github.com/sweeney/proxtrend/internal/trend"
)

type commandKind int

const (
	cmdToggle commandKind = iota + 1
	cmdShift
	cmdCurrent
)

// command is an operator request handled by the loop that owns the engine.
type command struct {
	kind  commandKind
	delta float64
	resp  chan Result
}

// runLoop is the only goroutine that touches eng. It exits when the bundle
// is cancelled or its generation is no longer current.
func (s *Shell) runLoop(b *bundle, eng *trend.Engine, sample, redraw Ticker) {
	defer close(b.done)
	defer sample.Stop()
	defer redraw.Stop()

	logger := s.logger.With("bed", b.tags.Bed, "controller", b.controller.Address)
	counter := edges.NewCounter(s.opts.Debounce)
	tracker := s.opts.Tracker
	failing := false
	dirty := false

	for {
		select {
		case <-b.ctx.Done():
			return

		case cmd := <-b.cmds:
			if !s.current(b.gen) {
				return
			}
			cmd.resp <- s.apply(eng, cmd)

		case t := <-sample.C():
			if b.ctx.Err() != nil || !s.current(b.gen) {
				return
			}
			reading, ok := eng.Tick(t)
			if !ok {
				// Paused: the tick is a heartbeat only.
				continue
			}

			ticks, failures := eng.Counts()
			failed := reading.Err != nil
			if failed != failing {
				failing = failed
				if failed {
					logger.Debug("tag read failing, recording (false, false)", "error", reading.Err)
				} else {
					logger.Debug("tag reads recovered", "failures", failures)
				}
			}
			if !failed {
				for _, e := range counter.Process(reading.Sample.P1, reading.Sample.P2, t) {
					metrics.IncEdge(string(e.Channel), string(e.Direction))
				}
			}
			metrics.IncTick(failed)

			p1, p2 := counter.CurrentState()
			n := eng.History().Len()
			tracker.Update(p1, p2, counter.Baselined(), counter.Counts(), ticks, n)
			metrics.SetHistorySamples(n)
			dirty = true

		case <-redraw.C():
			if b.ctx.Err() != nil || !s.current(b.gen) {
				return
			}
			if dirty && eng.State() == trend.Running {
				s.opts.Renderer.Draw(eng.LiveFrame())
				dirty = false
				s.notify("tick")
			}
		}
	}
}

// apply runs one operator command against eng.
func (s *Shell) apply(eng *trend.Engine, cmd command) Result {
	tracker := s.opts.Tracker

	switch cmd.kind {
	case cmdToggle:
		state, view := eng.Toggle(s.opts.Now())
		if state == trend.Paused {
			tracker.SetPaused(view)
			metrics.SetPaused(true)
			s.opts.Renderer.Draw(view.Frame)
			s.logger.Info("paused", "bed", eng.Tags().Bed, "label", view.Label())
			s.notify("pause")
			return Result{State: state, View: view}
		}
		tracker.SetRunning()
		metrics.SetPaused(false)
		s.opts.Renderer.Draw(eng.LiveFrame())
		s.logger.Info("resumed", "bed", eng.Tags().Bed)
		s.notify("resume")
		return Result{State: state}

	case cmdShift:
		view, ok := eng.Shift(cmd.delta)
		if !ok {
			return Result{State: eng.State()}
		}
		tracker.SetPaused(view)
		s.opts.Renderer.Draw(view.Frame)
		s.notify("shift")
		return Result{State: trend.Paused, View: view}

	default:
		if view, ok := eng.PausedView(); ok {
			return Result{State: trend.Paused, View: view}
		}
		return Result{State: eng.State()}
	}
}
