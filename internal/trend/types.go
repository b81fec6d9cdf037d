// Package trend contains the sampling and timeline logic for a two-channel
// proximity trend. It has NO external dependencies (no PLC, HTTP, or
// time.Sleep). Time is always injectable via time.Time parameters.
package trend

import (
	"fmt"
	"time"
)

// Capacity slack added on top of Window/Interval.
const capacitySlack = 10

// Default cadence.
const (
	DefaultInterval = time.Millisecond
	DefaultWindow   = time.Second
)

// Sample is a single reading of both proximity channels.
type Sample struct {
	T  float64 // seconds since engine start
	P1 bool
	P2 bool
}

// RunState is the engine's pause state.
type RunState string

const (
	Running RunState = "RUNNING"
	Paused  RunState = "PAUSED"
)

// Config controls sampling cadence and the visible window.
type Config struct {
	Interval time.Duration
	Window   time.Duration
}

// Capacity returns C, the number of ticks that fit in the visible window
// plus slack. The history retains 2×C entries to absorb step duplicates.
func (c Config) Capacity() int {
	if c.Interval <= 0 {
		return capacitySlack
	}
	return int(c.Window/c.Interval) + capacitySlack
}

// Epsilon is the offset of the synthetic step sample before each real one.
func (c Config) Epsilon() float64 {
	return c.Interval.Seconds() / 10
}

// Tags names the two PLC tags sampled for one bed.
type Tags struct {
	Bed   string
	Prox1 string
	Prox2 string
}

// Frame is what the render port draws: full x/y history plus the visible
// window. Most of the history may lie outside the window.
type Frame struct {
	Title string
	X     []float64
	Y1    []float64
	Y2    []float64
	Start float64
	End   float64
}

// Len returns the number of points in the frame.
func (f Frame) Len() int {
	return len(f.X)
}

// View is the result of rendering the paused timeline.
type View struct {
	Cursor   int // negative offset from the newest entry
	Index    int // absolute index into the history
	PausedAt float64
	ViewTime float64
	Frame    Frame
}

// Label returns the operator-facing status line.
func (v View) Label() string {
	return FormatLabel(v.PausedAt, v.ViewTime)
}

// FormatLabel formats the paused-at and viewing times with 2-decimal precision.
func FormatLabel(pausedAt, viewTime float64) string {
	return fmt.Sprintf("Paused at: %.2fs | Viewing: %.2fs", pausedAt, viewTime)
}
