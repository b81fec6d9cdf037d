//go:build !linux

package source

import (
	"errors"

	"github.com/sweeney/proxtrend/internal/plant"
	"github.com/sweeney/proxtrend/internal/trend"
)

// GPIOSource is not available on non-Linux platforms.
type GPIOSource struct{}

// NewGPIOSource returns an error on non-Linux platforms.
func NewGPIOSource(c plant.Controller, tags trend.Tags) (*GPIOSource, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Read is not implemented on non-Linux platforms.
func (s *GPIOSource) Read(tag1, tag2 string) (bool, bool, error) {
	return false, false, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (s *GPIOSource) Close() error {
	return nil
}
