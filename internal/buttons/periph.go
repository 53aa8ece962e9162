package buttons

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/Agrid-Dev/thermoprobe/internal/ports"
	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

// edgeWait bounds WaitForEdge so the watcher notices cancellation.
const edgeWait = 200 * time.Millisecond

// Periph waits on edges with periph.io, one goroutine per button.
type Periph struct {
	bindings []Binding
	pins     []gpio.PinIO
}

func NewPeriph(bindings []Binding) *Periph {
	return &Periph{bindings: bindings}
}

func (p *Periph) Start(ctx context.Context, out chan<- ports.Edge) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("periph init: %w", err)
	}
	pins, err := configurePins(p.bindings, gpioreg.ByName)
	if err != nil {
		return err
	}
	p.pins = pins
	for i, b := range p.bindings {
		go watchPin(ctx, pins[i], b.Sensor, out)
	}
	return nil
}

// configurePins sets every bound pin up as a pulled-down rising-edge input.
// On failure the pins already configured are halted and none are returned.
func configurePins(bindings []Binding, lookup func(string) gpio.PinIO) ([]gpio.PinIO, error) {
	pins := make([]gpio.PinIO, 0, len(bindings))
	for _, b := range bindings {
		name := "GPIO" + strconv.Itoa(b.Pin)
		pin := lookup(name)
		if pin == nil {
			_ = haltPins(pins)
			return nil, fmt.Errorf("periph: no pin %s for %s", name, b.Sensor)
		}
		if err := pin.In(gpio.PullDown, gpio.RisingEdge); err != nil {
			_ = haltPins(pins)
			return nil, fmt.Errorf("periph: configure %s: %w", name, err)
		}
		pins = append(pins, pin)
	}
	return pins, nil
}

func haltPins(pins []gpio.PinIO) error {
	var first error
	for _, pin := range pins {
		if err := pin.Halt(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func watchPin(ctx context.Context, pin gpio.PinIn, id sensors.SensorID, out chan<- ports.Edge) {
	for ctx.Err() == nil {
		if pin.WaitForEdge(edgeWait) {
			enqueue(out, id, time.Now())
		}
	}
}

func (p *Periph) Close() error {
	err := haltPins(p.pins)
	p.pins = nil
	return err
}
