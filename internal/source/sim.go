package source

import (
	"hash/fnv"
	"time"
)

// Simulated square-wave periods fall in [simMinPeriod, simMinPeriod+simSpread).
const (
	simMinPeriod = 200 * time.Millisecond
	simSpread    = 800 * time.Millisecond
)

// SimSource produces a square wave per tag so the dashboard can be run
// without a controller on the network.
type SimSource struct {
	start time.Time
	now   func() time.Time
}

// NewSimSource starts every wave low at start.
func NewSimSource(start time.Time, now func() time.Time) *SimSource {
	if now == nil {
		now = time.Now
	}
	return &SimSource{start: start, now: now}
}

// SimPeriod returns the wave period used for tag.
func SimPeriod(tag string) time.Duration {
	h := fnv.New32a()
	h.Write([]byte(tag))
	ms := time.Duration(h.Sum32()) % (simSpread / time.Millisecond)
	return simMinPeriod + ms*time.Millisecond
}

// Read returns the level of each tag's wave at the current time.
func (s *SimSource) Read(tag1, tag2 string) (bool, bool, error) {
	elapsed := s.now().Sub(s.start)
	return level(elapsed, SimPeriod(tag1)), level(elapsed, SimPeriod(tag2)), nil
}

// Close is a no-op.
func (s *SimSource) Close() error { return nil }

func level(elapsed, period time.Duration) bool {
	if elapsed < 0 {
		return false
	}
	half := period / 2
	return (elapsed/half)%2 == 1
}
