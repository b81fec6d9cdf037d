//go:build linux

package source

import (
	"fmt"

	"github.com/sweeney/proxtrend/internal/plant"
	"github.com/sweeney/proxtrend/internal/trend"
	"github.com/warthog618/go-gpiocdev"
)

// DefaultChip is used when a bench rig does not name its GPIO chip.
const DefaultChip = "gpiochip0"

// GPIOSource reads a bench rig's proximity sensors from a Linux GPIO
// character device.
type GPIOSource struct {
	chip  *gpiocdev.Chip
	lines map[string]*gpiocdev.Line
}

// NewGPIOSource requests the two tag lines of a bed as inputs.
func NewGPIOSource(c plant.Controller, tags trend.Tags) (*GPIOSource, error) {
	off1, ok := c.Lines[tags.Prox1]
	if !ok {
		return nil, fmt.Errorf("gpio: no line configured for %s", tags.Prox1)
	}
	off2, ok := c.Lines[tags.Prox2]
	if !ok {
		return nil, fmt.Errorf("gpio: no line configured for %s", tags.Prox2)
	}

	name := c.Chip
	if name == "" {
		name = DefaultChip
	}
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// Pull-down keeps a disconnected sensor at logical zero.
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullDown}
	if c.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	l1, err := chip.RequestLine(off1, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request %s line %d: %w", tags.Prox1, off1, err)
	}

	l2, err := chip.RequestLine(off2, opts...)
	if err != nil {
		l1.Close()
		chip.Close()
		return nil, fmt.Errorf("request %s line %d: %w", tags.Prox2, off2, err)
	}

	return &GPIOSource{
		chip: chip,
		lines: map[string]*gpiocdev.Line{
			tags.Prox1: l1,
			tags.Prox2: l2,
		},
	}, nil
}

// Read returns the logical values of both lines.
func (s *GPIOSource) Read(tag1, tag2 string) (bool, bool, error) {
	v1, err := s.value(tag1)
	if err != nil {
		return false, false, err
	}
	v2, err := s.value(tag2)
	if err != nil {
		return false, false, err
	}
	return v1, v2, nil
}

func (s *GPIOSource) value(tag string) (bool, error) {
	l, ok := s.lines[tag]
	if !ok {
		return false, fmt.Errorf("%w: %s not requested", ErrUnavailable, tag)
	}
	v, err := l.Value()
	if err != nil {
		return false, fmt.Errorf("read %s: %w", tag, err)
	}
	return v == 1, nil
}

// Close releases the lines and the chip.
func (s *GPIOSource) Close() error {
	var errs []error

	for tag, l := range s.lines {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s line: %w", tag, err))
		}
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
