package ports

import (
	"context"

	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

// Reading is one entry of a report. Value is nil when the sensor has no usable reading.
type Reading struct {
	Sensor sensors.SensorID
	Value  *float64
}

// Feedback is the collector's answer to a report.
type Feedback struct {
	Unit            sensors.Unit
	ToggleRequested []bool // true flips the sensor, in report order
}

// ReportSink sends one report and returns the collector's feedback.
type ReportSink interface {
	Send(ctx context.Context, readings []Reading) (Feedback, error)
}
