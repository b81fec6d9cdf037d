package source

import (
	"context"
	"errors"
	"sync"

	"github.com/sweeney/proxtrend/internal/plant"
	"github.com/sweeney/proxtrend/internal/trend"
)

// FakeSource is a test double that returns scripted tag values.
type FakeSource struct {
	mu sync.Mutex

	// Samples contains scripted (prox1, prox2) values to return.
	// Each call to Read() consumes the next sample.
	Samples []Sample

	// index tracks current position in Samples
	index int

	// Reads counts calls to Read.
	Reads int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// Sample represents a single reading of both tags (already in logical form).
type Sample struct {
	P1 bool
	P2 bool
}

// NewFakeSource creates a FakeSource with the given samples.
func NewFakeSource(samples []Sample) *FakeSource {
	return &FakeSource{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeSource) Read(tag1, tag2 string) (bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++

	if f.ReadError != nil {
		return false, false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample.P1, sample.P2, nil
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// IsClosed reports whether Close was called.
func (f *FakeSource) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Closed
}

// ReadCount returns the number of Read calls so far.
func (f *FakeSource) ReadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Reads
}

// Reset resets the source to the beginning of samples.
func (f *FakeSource) Reset() {
	f.mu.Lock()
	f.index = 0
	f.Reads = 0
	f.Closed = false
	f.mu.Unlock()
}

// FakeOpener hands out scripted sources and records every Open call.
type FakeOpener struct {
	mu sync.Mutex

	// Sources maps a bed id to the source returned for it. Beds without an
	// entry get a fresh FakeSource reading (false, false).
	Sources map[string]*FakeSource

	// OpenError, if set, is returned by Open.
	OpenError error

	// Opened lists the beds opened, in order.
	Opened []string
}

// Open returns the scripted source for tags.Bed.
func (f *FakeOpener) Open(ctx context.Context, c plant.Controller, tags trend.Tags) (Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Opened = append(f.Opened, tags.Bed)
	if f.OpenError != nil {
		return nil, f.OpenError
	}
	if src, ok := f.Sources[tags.Bed]; ok {
		return src, nil
	}
	return NewFakeSource([]Sample{{}}), nil
}

// OpenedBeds returns a copy of the beds opened so far.
func (f *FakeOpener) OpenedBeds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Opened))
	copy(out, f.Opened)
	return out
}
