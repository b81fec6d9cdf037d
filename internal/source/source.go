// Package source reads proximity tags from controllers with abstraction for
// testing. Real implementations bridge PLC tags over MQTT or read a GPIO
// bench rig; the fake implementation allows testing without hardware.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sweeney/proxtrend/internal/plant"
	"github.com/sweeney/proxtrend/internal/trend"
)

// ErrUnavailable is returned by Read when a tag has no current value.
var ErrUnavailable = errors.New("source: tag unavailable")

// Source reads the two proximity tags of one bed.
type Source interface {
	// Read returns the current logical values of tag1 and tag2.
	// It must not block on the network.
	Read(tag1, tag2 string) (bool, bool, error)

	// Close releases the controller connection.
	Close() error
}

// Opener connects to a controller for one bed. It is called once per bed
// selection.
type Opener interface {
	Open(ctx context.Context, c plant.Controller, tags trend.Tags) (Source, error)
}

// Dialer opens sources according to the controller kind.
type Dialer struct {
	MQTT   MQTTOptions
	Logger *slog.Logger
	Now    func() time.Time
}

// Open connects to c and prepares to read tags.
func (d Dialer) Open(ctx context.Context, c plant.Controller, tags trend.Tags) (Source, error) {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "source", "controller", c.Address, "bed", tags.Bed)

	switch c.SourceKind() {
	case plant.KindMQTT:
		src, err := NewMQTTSource(ctx, c.Address, []string{tags.Prox1, tags.Prox2}, d.MQTT, now, logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	case plant.KindGPIO:
		src, err := NewGPIOSource(c, tags)
		if err != nil {
			return nil, err
		}
		return src, nil
	case plant.KindSim:
		return NewSimSource(now(), now), nil
	default:
		return nil, fmt.Errorf("source: unknown kind %q for %s", c.Kind, c.Address)
	}
}
