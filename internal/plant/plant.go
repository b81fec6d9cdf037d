// Package plant describes the controllers and beds the dashboard can sample.
// The table is load-time configuration; nothing here is discovered at runtime.
package plant

import (
	"errors"
	"fmt"

	"github.com/sweeney/proxtrend/internal/trend"
)

// Source kinds.
const (
	KindMQTT = "mqtt"
	KindGPIO = "gpio"
	KindSim  = "sim"
)

// Tag suffixes for the two proximity sensors on every bed.
const (
	SuffixProx1 = "_PRX_OL1"
	SuffixProx2 = "_PRX_OL2"
)

var (
	ErrUnknownController = errors.New("unknown controller")
	ErrUnknownBed        = errors.New("unknown bed")
)

// Controller is one PLC and the beds it serves.
type Controller struct {
	Label   string
	Address string
	Kind    string   // mqtt, gpio or sim; empty means mqtt
	Beds    []string // ordered as displayed

	// GPIO bench rigs only.
	Chip      string
	Lines     map[string]int // tag name -> line offset
	ActiveLow bool
}

// SourceKind returns the controller's kind, defaulting to mqtt.
func (c Controller) SourceKind() string {
	if c.Kind == "" {
		return KindMQTT
	}
	return c.Kind
}

// HasBed reports whether bed belongs to the controller.
func (c Controller) HasBed(bed string) bool {
	for _, b := range c.Beds {
		if b == bed {
			return true
		}
	}
	return false
}

// Table is the ordered list of controllers.
type Table []Controller

// Lookup finds the controller at address that owns bed.
func (t Table) Lookup(address, bed string) (Controller, error) {
	for _, c := range t {
		if c.Address != address {
			continue
		}
		if !c.HasBed(bed) {
			return Controller{}, fmt.Errorf("%w: %s on %s", ErrUnknownBed, bed, address)
		}
		return c, nil
	}
	return Controller{}, fmt.Errorf("%w: %s", ErrUnknownController, address)
}

// FindBed returns the first controller that owns bed.
func (t Table) FindBed(bed string) (Controller, error) {
	for _, c := range t {
		if c.HasBed(bed) {
			return c, nil
		}
	}
	return Controller{}, fmt.Errorf("%w: %s", ErrUnknownBed, bed)
}

// Validate checks for empty tables and duplicate addresses or beds.
func (t Table) Validate() error {
	if len(t) == 0 {
		return errors.New("plant: no controllers configured")
	}
	addrs := make(map[string]bool)
	for _, c := range t {
		if c.Address == "" {
			return fmt.Errorf("plant: controller %q has no address", c.Label)
		}
		if addrs[c.Address] {
			return fmt.Errorf("plant: duplicate controller address %s", c.Address)
		}
		addrs[c.Address] = true

		switch c.SourceKind() {
		case KindMQTT, KindGPIO, KindSim:
		default:
			return fmt.Errorf("plant: controller %s: unknown kind %q", c.Address, c.Kind)
		}

		if len(c.Beds) == 0 {
			return fmt.Errorf("plant: controller %s has no beds", c.Address)
		}
		beds := make(map[string]bool)
		for _, b := range c.Beds {
			if b == "" {
				return fmt.Errorf("plant: controller %s has an empty bed id", c.Address)
			}
			if beds[b] {
				return fmt.Errorf("plant: controller %s lists bed %s twice", c.Address, b)
			}
			beds[b] = true
		}
	}
	return nil
}

// TagsFor returns the two proximity tag names for bed.
func TagsFor(bed string) trend.Tags {
	return trend.Tags{
		Bed:   bed,
		Prox1: bed + SuffixProx1,
		Prox2: bed + SuffixProx2,
	}
}

// Default returns the three-sorter table the dashboard ships with.
func Default() Table {
	return Table{
		{Label: "Sorter A", Address: "192.168.0.10", Beds: []string{"B1001", "B1002", "B1003"}},
		{Label: "Sorter B", Address: "192.168.0.11", Beds: []string{"B2001", "B2002", "B2003"}},
		{Label: "Sorter C", Address: "192.168.0.12", Beds: []string{"B3001", "B3002", "B3003"}},
	}
}
