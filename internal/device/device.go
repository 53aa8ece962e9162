// Package device holds the static wiring of one probe board: which w1
// address and which button pin belong to each sensor id.
package device

import (
	"fmt"
	"slices"

	"github.com/Agrid-Dev/thermoprobe/internal/buttons"
	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

type Probe struct {
	Sensor  sensors.SensorID
	Address string // w1 slave directory, e.g. 28-000010eb7a80
	Pin     int    // button GPIO line, 0 for none
}

type Device struct {
	ID     string
	probes []Probe
}

// New validates probes and orders them by sensor id.
func New(id string, probes []Probe) (*Device, error) {
	seenID := make(map[sensors.SensorID]bool, len(probes))
	seenPin := make(map[int]sensors.SensorID, len(probes))
	for _, p := range probes {
		if !p.Sensor.Valid() {
			return nil, fmt.Errorf("probe %d: %w", p.Sensor, sensors.ErrInvalidSensor)
		}
		if seenID[p.Sensor] {
			return nil, fmt.Errorf("%s: %w", p.Sensor, sensors.ErrDuplicateInput)
		}
		seenID[p.Sensor] = true
		if p.Pin == 0 {
			continue
		}
		if other, ok := seenPin[p.Pin]; ok {
			return nil, fmt.Errorf("pin %d shared by %s and %s: %w", p.Pin, other, p.Sensor, sensors.ErrDuplicateInput)
		}
		seenPin[p.Pin] = p.Sensor
	}

	ps := slices.Clone(probes)
	slices.SortFunc(ps, func(a, b Probe) int { return int(a.Sensor) - int(b.Sensor) })
	return &Device{ID: id, probes: ps}, nil
}

func (d *Device) Probes() []Probe {
	return slices.Clone(d.probes)
}

func (d *Device) Probe(id sensors.SensorID) (Probe, bool) {
	for _, p := range d.probes {
		if p.Sensor == id {
			return p, true
		}
	}
	return Probe{}, false
}

func (d *Device) Sensors() []sensors.SensorID {
	out := make([]sensors.SensorID, len(d.probes))
	for i, p := range d.probes {
		out[i] = p.Sensor
	}
	return out
}

// Addresses is the id -> w1 address map the readers take.
func (d *Device) Addresses() map[sensors.SensorID]string {
	m := make(map[sensors.SensorID]string, len(d.probes))
	for _, p := range d.probes {
		if p.Address != "" {
			m[p.Sensor] = p.Address
		}
	}
	return m
}

// Bindings lists the probes that have a button.
func (d *Device) Bindings() []buttons.Binding {
	var out []buttons.Binding
	for _, p := range d.probes {
		if p.Pin != 0 {
			out = append(out, buttons.Binding{Sensor: p.Sensor, Pin: p.Pin})
		}
	}
	return out
}
