// Package edges counts debounced transitions on the two proximity channels.
// This package has NO external dependencies. Time is always injectable via
// time.Time parameters.
package edges

import "time"

// State is the debounced level of a channel.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// Channel names a proximity channel.
type Channel string

const (
	Prox1 Channel = "prox1"
	Prox2 Channel = "prox2"
)

// Direction is the direction of a transition.
type Direction string

const (
	Rising  Direction = "rising"
	Falling Direction = "falling"
)

// Edge is one debounced transition.
type Edge struct {
	Time      time.Time
	Channel   Channel
	Direction Direction
}

// Counts tracks the number of edges per channel since the last reset.
type Counts struct {
	Prox1Rising  int
	Prox1Falling int
	Prox2Rising  int
	Prox2Falling int
}

// Total returns the number of edges on both channels.
func (c Counts) Total() int {
	return c.Prox1Rising + c.Prox1Falling + c.Prox2Rising + c.Prox2Falling
}

// channelState tracks debounce state for a single channel.
type channelState struct {
	stable       State
	pending      State
	pendingSince time.Time
	baselined    bool
}

// Counter detects debounced edges on both channels. With a zero debounce
// every change counts as soon as it is observed.
type Counter struct {
	debounce time.Duration
	p1       channelState
	p2       channelState
	counts   Counts
}

// NewCounter creates a counter with the given debounce duration.
func NewCounter(debounce time.Duration) *Counter {
	if debounce < 0 {
		debounce = 0
	}
	return &Counter{debounce: debounce}
}

// Process takes one sample of both channels and returns the edges it
// completes. Prox1 edges come before Prox2 edges. The first stable level of a
// channel establishes its baseline and is not an edge.
func (c *Counter) Process(p1, p2 bool, now time.Time) []Edge {
	var out []Edge
	if d, ok := c.step(&c.p1, boolToState(p1), now); ok {
		out = append(out, Edge{Time: now, Channel: Prox1, Direction: d})
		if d == Rising {
			c.counts.Prox1Rising++
		} else {
			c.counts.Prox1Falling++
		}
	}
	if d, ok := c.step(&c.p2, boolToState(p2), now); ok {
		out = append(out, Edge{Time: now, Channel: Prox2, Direction: d})
		if d == Rising {
			c.counts.Prox2Rising++
		} else {
			c.counts.Prox2Falling++
		}
	}
	return out
}

func (c *Counter) step(ch *channelState, s State, now time.Time) (Direction, bool) {
	if ch.baselined && s == ch.stable {
		ch.pending = ""
		return "", false
	}

	if ch.pending != s {
		ch.pending = s
		ch.pendingSince = now
	}
	if now.Sub(ch.pendingSince) < c.debounce {
		return "", false
	}

	ch.pending = ""
	if !ch.baselined {
		ch.stable = s
		ch.baselined = true
		return "", false
	}
	ch.stable = s
	if s == StateOn {
		return Rising, true
	}
	return Falling, true
}

// Baselined reports whether both channels have a stable level.
func (c *Counter) Baselined() bool {
	return c.p1.baselined && c.p2.baselined
}

// CurrentState returns the debounced levels. Empty until baselined.
func (c *Counter) CurrentState() (p1, p2 State) {
	return c.p1.stable, c.p2.stable
}

// Counts returns the edge counts so far.
func (c *Counter) Counts() Counts {
	return c.counts
}

func boolToState(b bool) State {
	if b {
		return StateOn
	}
	return StateOff
}
