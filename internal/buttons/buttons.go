// Package buttons turns GPIO button presses into ports.Edge values.
// Backends differ only in how they learn about an edge; all of them hand the
// edge to the coordinator through a non-blocking enqueue.
package buttons

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Agrid-Dev/thermoprobe/internal/ports"
	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

// Binding ties a sensor to the GPIO line of its button (BCM numbering).
type Binding struct {
	Sensor sensors.SensorID
	Pin    int
}

// enqueue never blocks: a full queue means the consumer is behind a burst
// that the debouncer would drop anyway.
func enqueue(out chan<- ports.Edge, id sensors.SensorID, at time.Time) bool {
	select {
	case out <- ports.Edge{Sensor: id, At: at}:
		return true
	default:
		slog.Debug("edge queue full, dropping edge", "component", "buttons", "sensor", id.String())
		return false
	}
}

// None is used when a deployment has no buttons.
type None struct{}

func (None) Start(context.Context, chan<- ports.Edge) error { return nil }
func (None) Close() error                                   { return nil }

// New returns the EdgeSource for driver.
func New(driver, chip string, bindings []Binding) (ports.EdgeSource, error) {
	switch driver {
	case "", "none":
		return None{}, nil
	case "gpiocdev":
		return NewGPIOCDev(chip, bindings), nil
	case "rpio":
		return NewRPIO(bindings, 0), nil
	case "periph":
		return NewPeriph(bindings), nil
	default:
		return nil, fmt.Errorf("buttons: unknown driver %q", driver)
	}
}
