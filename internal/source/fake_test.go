package source

import (
	"context"
	"errors"
	"testing"

	"github.com/sweeney/proxtrend/internal/plant"
)

func TestFakeSourceRead(t *testing.T) {
	samples := []Sample{
		{P1: true, P2: false},
		{P1: false, P2: true},
		{P1: true, P2: true},
	}

	f := NewFakeSource(samples)

	// Read first sample
	p1, p2, err := f.Read("B1_PRX_OL1", "B1_PRX_OL2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p1 != true || p2 != false {
		t.Errorf("sample 0: expected (true, false), got (%v, %v)", p1, p2)
	}

	// Read second sample
	p1, p2, err = f.Read("B1_PRX_OL1", "B1_PRX_OL2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p1 != false || p2 != true {
		t.Errorf("sample 1: expected (false, true), got (%v, %v)", p1, p2)
	}

	// Read third sample
	p1, p2, err = f.Read("B1_PRX_OL1", "B1_PRX_OL2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p1 != true || p2 != true {
		t.Errorf("sample 2: expected (true, true), got (%v, %v)", p1, p2)
	}

	// Fourth read should repeat last sample
	p1, p2, err = f.Read("B1_PRX_OL1", "B1_PRX_OL2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p1 != true || p2 != true {
		t.Errorf("sample 3 (repeat): expected (true, true), got (%v, %v)", p1, p2)
	}

	if f.ReadCount() != 4 {
		t.Errorf("expected 4 reads, got %d", f.ReadCount())
	}
}

func TestFakeSourceNoSamples(t *testing.T) {
	f := NewFakeSource(nil)

	_, _, err := f.Read("a", "b")
	if err == nil {
		t.Error("expected error with no samples")
	}
}

func TestFakeSourceError(t *testing.T) {
	f := NewFakeSource([]Sample{{P1: true, P2: true}})
	f.ReadError = errors.New("simulated error")

	_, _, err := f.Read("a", "b")
	if err == nil {
		t.Error("expected error to be returned")
	}
	if err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFakeSourceClose(t *testing.T) {
	f := NewFakeSource([]Sample{{P1: true, P2: true}})

	if f.IsClosed() {
		t.Error("should not be closed initially")
	}

	err := f.Close()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if !f.IsClosed() {
		t.Error("should be closed after Close()")
	}
}

func TestFakeSourceReset(t *testing.T) {
	samples := []Sample{
		{P1: true, P2: false},
		{P1: false, P2: true},
	}

	f := NewFakeSource(samples)

	// Consume first sample
	f.Read("a", "b")

	// Reset
	f.Reset()

	// Should read first sample again
	p1, p2, _ := f.Read("a", "b")
	if p1 != true || p2 != false {
		t.Errorf("after reset: expected (true, false), got (%v, %v)", p1, p2)
	}
}

func TestFakeOpener(t *testing.T) {
	scripted := NewFakeSource([]Sample{{P1: true}})
	o := &FakeOpener{Sources: map[string]*FakeSource{"B1001": scripted}}
	ctrl := plant.Default()[0]

	src, err := o.Open(context.Background(), ctrl, plant.TagsFor("B1001"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src != scripted {
		t.Error("expected the scripted source for B1001")
	}

	src, err = o.Open(context.Background(), ctrl, plant.TagsFor("B1002"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p1, p2, err := src.Read("x", "y")
	if err != nil || p1 || p2 {
		t.Errorf("default source: expected (false, false, nil), got (%v, %v, %v)", p1, p2, err)
	}

	o.OpenError = errors.New("refused")
	if _, err := o.Open(context.Background(), ctrl, plant.TagsFor("B1003")); err == nil {
		t.Error("expected OpenError")
	}

	beds := o.OpenedBeds()
	if len(beds) != 3 || beds[0] != "B1001" || beds[2] != "B1003" {
		t.Errorf("unexpected opened beds: %v", beds)
	}
}
