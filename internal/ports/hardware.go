package ports

import (
	"context"
	"time"

	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

// Edge is one raw button edge. It still has to go through the debouncer.
type Edge struct {
	Sensor sensors.SensorID
	At     time.Time
}

// EdgeSource delivers button edges. Implementations must never block on out:
// a full queue drops the edge.
type EdgeSource interface {
	Start(ctx context.Context, out chan<- Edge) error
	Close() error
}

// DisplaySink is a small text display addressed in pixels.
type DisplaySink interface {
	DrawString(x, y int, text string) error
	Clear() error
	Close() error
}
