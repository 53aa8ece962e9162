package sensors

import "time"

// DebounceWindow is the minimum spacing between two accepted edges of one button.
const DebounceWindow = 100 * time.Millisecond

// Debouncer turns raw button edges into toggle events.
// It is not safe for concurrent use; edges reach it through a single-consumer queue.
type Debouncer struct {
	window       time.Duration
	lastAccepted map[SensorID]time.Time
}

func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DebounceWindow
	}
	return &Debouncer{
		window:       window,
		lastAccepted: make(map[SensorID]time.Time),
	}
}

// OnEdge reports a toggle when the edge is outside the window of the last accepted one.
// The first edge of a sensor is always accepted.
func (d *Debouncer) OnEdge(id SensorID, now time.Time) (ToggleEvent, bool) {
	if last, seen := d.lastAccepted[id]; seen && now.Sub(last) <= d.window {
		return ToggleEvent{}, false
	}
	d.lastAccepted[id] = now
	return ToggleEvent{Sensor: id, Source: SourceButton, At: now}, true
}
