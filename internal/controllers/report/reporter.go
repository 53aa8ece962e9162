package report

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/Agrid-Dev/thermoprobe/internal/ports"
	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

// Reporter sends the Store's readings after every sampling tick and applies
// the collector's feedback through the same service port as every other
// controller.
type Reporter struct {
	svc  ports.SensorService
	sink ports.ReportSink
	log  *slog.Logger
	now  func() time.Time
}

func New(svc ports.SensorService, sink ports.ReportSink) *Reporter {
	return &Reporter{
		svc:  svc,
		sink: sink,
		log:  slog.Default().With("component", "reporter"),
		now:  time.Now,
	}
}

// Run sends one report per trigger until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context, triggers <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-triggers:
			_ = r.Cycle(ctx)
		}
	}
}

// Cycle reports once. Errors are logged here; the returned error is for callers that care.
func (r *Reporter) Cycle(ctx context.Context) error {
	readings := Readings(r.svc.Get())

	fb, err := r.sink.Send(ctx, readings)
	switch {
	case err == nil:
	case errors.Is(err, ErrProtocol):
		r.log.Error("collector feedback ignored", "error", err)
		return err
	default:
		r.log.Warn("report skipped", "error", err)
		return err
	}

	r.apply(readings, fb)
	return nil
}

func (r *Reporter) apply(readings []ports.Reading, fb ports.Feedback) {
	if changed, err := r.svc.ApplyUnit(fb.Unit); err != nil {
		r.log.Error("remote unit rejected", "unit", fb.Unit.String(), "error", err)
	} else if changed {
		r.log.Info("unit changed by collector", "unit", fb.Unit.String())
	}

	// A requested toggle flips the sensor like a button press, without the
	// debouncer. false means nothing was requested.
	now := r.now()
	for i, requested := range fb.ToggleRequested {
		if i >= len(readings) {
			break
		}
		if !requested {
			continue
		}
		id := readings[i].Sensor
		if _, err := r.svc.ApplyToggle(sensors.ToggleEvent{Sensor: id, Source: sensors.SourceRemote, At: now}); err != nil {
			r.log.Error("remote toggle rejected", "sensor", id.String(), "error", err)
			continue
		}
		r.log.Info("sensor toggled", "sensor", id.String(), "source", "remote")
	}
}

// Readings builds one entry per sensor, in id order, expressed in the sensor's
// display unit and rounded to hundredths. Sensors without a usable reading get nil.
func Readings(snap sensors.Snapshot) []ports.Reading {
	out := make([]ports.Reading, 0, len(snap.Sensors))
	for _, st := range snap.Sensors {
		rd := ports.Reading{Sensor: st.ID}
		if c, ok := st.Reading(); ok {
			v := math.Round(snap.UnitFor(st.ID).Convert(c)*100) / 100
			rd.Value = &v
		}
		out = append(out, rd)
	}
	return out
}
