package buttons

import (
	"context"
	"errors"
	"fmt"
	"time"

	gpiod "github.com/warthog618/go-gpiocdev"

	"github.com/Agrid-Dev/thermoprobe/internal/ports"
	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

// DefaultChip is the GPIO character device of the Raspberry Pi header.
const DefaultChip = "gpiochip0"

// GPIOCDev receives edges from the kernel GPIO character device. The event
// handler runs on the library's watcher goroutine.
type GPIOCDev struct {
	chipName string
	bindings []Binding

	chip  *gpiod.Chip
	lines []*gpiod.Line
}

func NewGPIOCDev(chip string, bindings []Binding) *GPIOCDev {
	if chip == "" {
		chip = DefaultChip
	}
	return &GPIOCDev{chipName: chip, bindings: bindings}
}

func (g *GPIOCDev) Start(_ context.Context, out chan<- ports.Edge) error {
	chip, err := gpiod.NewChip(g.chipName)
	if err != nil {
		return fmt.Errorf("open %s: %w", g.chipName, err)
	}
	g.chip = chip

	for _, b := range g.bindings {
		line, err := chip.RequestLine(b.Pin,
			gpiod.AsInput,
			gpiod.WithPullDown,
			gpiod.WithRisingEdge,
			gpiod.WithEventHandler(g.handler(b.Sensor, out)),
		)
		if err != nil {
			_ = g.Close()
			return fmt.Errorf("request line %d for %s: %w", b.Pin, b.Sensor, err)
		}
		g.lines = append(g.lines, line)
	}
	return nil
}

func (g *GPIOCDev) handler(id sensors.SensorID, out chan<- ports.Edge) func(gpiod.LineEvent) {
	return func(evt gpiod.LineEvent) {
		if evt.Type != gpiod.LineEventRisingEdge {
			return
		}
		enqueue(out, id, time.Now())
	}
}

func (g *GPIOCDev) Close() error {
	var errs []error
	for _, l := range g.lines {
		errs = append(errs, l.Close())
	}
	g.lines = nil
	if g.chip != nil {
		errs = append(errs, g.chip.Close())
		g.chip = nil
	}
	return errors.Join(errs...)
}
