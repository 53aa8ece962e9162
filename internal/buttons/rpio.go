package buttons

import (
	"context"
	"fmt"
	"time"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/Agrid-Dev/thermoprobe/internal/ports"
	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

// DefaultPollInterval is how often the rpio backend checks its edge latches.
const DefaultPollInterval = 5 * time.Millisecond

type edgeDetector interface {
	EdgeDetected() bool
}

// RPIO uses the BCM2835 edge detect registers through /dev/gpiomem and polls
// the latched events.
type RPIO struct {
	bindings []Binding
	interval time.Duration
	pins     []rpio.Pin
	opened   bool
}

func NewRPIO(bindings []Binding, interval time.Duration) *RPIO {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &RPIO{bindings: bindings, interval: interval}
}

func (r *RPIO) Start(ctx context.Context, out chan<- ports.Edge) error {
	if err := rpio.Open(); err != nil {
		return fmt.Errorf("rpio open: %w", err)
	}
	r.opened = true

	ids := make([]sensors.SensorID, 0, len(r.bindings))
	dets := make([]edgeDetector, 0, len(r.bindings))
	for _, b := range r.bindings {
		pin := rpio.Pin(b.Pin)
		pin.Input()
		pin.PullDown()
		pin.Detect(rpio.RiseEdge)
		r.pins = append(r.pins, pin)
		ids = append(ids, b.Sensor)
		dets = append(dets, pin)
	}

	go pollEdges(ctx, r.interval, ids, dets, out)
	return nil
}

func pollEdges(ctx context.Context, interval time.Duration, ids []sensors.SensorID, dets []edgeDetector, out chan<- ports.Edge) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for i, d := range dets {
				if d.EdgeDetected() {
					enqueue(out, ids[i], now)
				}
			}
		}
	}
}

func (r *RPIO) Close() error {
	if !r.opened {
		return nil
	}
	for _, p := range r.pins {
		p.Detect(rpio.NoEdge)
	}
	r.pins = nil
	r.opened = false
	return rpio.Close()
}
