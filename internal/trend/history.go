package trend

// History is a bounded, time-ordered store of samples. Once the limit is
// exceeded the oldest entries are dropped from the front.
// Not safe for concurrent use; the owning engine's loop is the only caller.
type History struct {
	samples []Sample
	limit   int
}

// NewHistory creates a history retaining at most limit samples.
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = 1
	}
	return &History{
		samples: make([]Sample, 0, limit+2),
		limit:   limit,
	}
}

// Append adds s at the newest end.
func (h *History) Append(s Sample) {
	h.samples = append(h.samples, s)
}

// Trim drops the oldest entries until at most limit remain.
func (h *History) Trim() {
	excess := len(h.samples) - h.limit
	if excess <= 0 {
		return
	}
	// Shift in place so the backing array does not creep forward forever.
	n := copy(h.samples, h.samples[excess:])
	h.samples = h.samples[:n]
}

// Len returns the number of retained samples.
func (h *History) Len() int {
	return len(h.samples)
}

// At returns the sample at absolute index i (0 = oldest).
func (h *History) At(i int) Sample {
	return h.samples[i]
}

// Last returns the newest sample, or false if the history is empty.
func (h *History) Last() (Sample, bool) {
	if len(h.samples) == 0 {
		return Sample{}, false
	}
	return h.samples[len(h.samples)-1], true
}

// Samples returns a copy of the retained samples, oldest first.
func (h *History) Samples() []Sample {
	out := make([]Sample, len(h.samples))
	copy(out, h.samples)
	return out
}

// series flattens the history into plot arrays. Booleans map to 0/1.
func (h *History) series() (x, y1, y2 []float64) {
	x = make([]float64, len(h.samples))
	y1 = make([]float64, len(h.samples))
	y2 = make([]float64, len(h.samples))
	for i, s := range h.samples {
		x[i] = s.T
		y1[i] = level(s.P1)
		y2[i] = level(s.P2)
	}
	return x, y1, y2
}

func level(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
