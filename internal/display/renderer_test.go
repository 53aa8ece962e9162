package display

import (
	"errors"
	"testing"

	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

type drawCall struct {
	x, y int
	text string
}

type fakeSink struct {
	draws   []drawCall
	clears  int
	drawErr error
}

func (f *fakeSink) DrawString(x, y int, text string) error {
	if f.drawErr != nil {
		return f.drawErr
	}
	f.draws = append(f.draws, drawCall{x, y, text})
	return nil
}
func (f *fakeSink) Clear() error { f.clears++; return nil }
func (f *fakeSink) Close() error { return nil }

func snapshot(unit sensors.Unit, states ...sensors.SensorState) sensors.Snapshot {
	return sensors.Snapshot{Unit: unit, Sensors: states}
}

func okState(id sensors.SensorID, c float64) sensors.SensorState {
	return sensors.SensorState{ID: id, Enabled: true, LastStatus: sensors.StatusOk, LastReading: c, HasReading: true}
}

func TestFormatLine(t *testing.T) {
	tests := []struct {
		name string
		st   sensors.SensorState
		unit sensors.Unit
		want string
	}{
		{"reading celsius", okState(sensors.Sensor1, 23.4), sensors.UnitCelsius, "Sensor 1: 23.40 C"},
		{"reading fahrenheit", okState(sensors.Sensor1, 23.4), sensors.UnitFahrenheit, "Sensor 1: 74.12 F"},
		{"disabled", sensors.SensorState{ID: sensors.Sensor2, LastStatus: sensors.StatusOk, HasReading: true}, sensors.UnitCelsius, "Sensor 2: OFF"},
		{"unplugged", sensors.SensorState{ID: sensors.Sensor1, Enabled: true, LastStatus: sensors.StatusUnplugged}, sensors.UnitCelsius, "Sensor 1: Unplugged"},
		{"read error", sensors.SensorState{ID: sensors.Sensor1, Enabled: true, LastStatus: sensors.StatusReadError}, sensors.UnitCelsius, "Sensor 1: Unplugged"},
		{"pending", sensors.SensorState{ID: sensors.Sensor1, Enabled: true}, sensors.UnitCelsius, "Sensor 1: --"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatLine(tt.st, tt.unit); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender_PadsAndPositionsRows(t *testing.T) {
	sink := &fakeSink{}
	r := NewRenderer(sink, Layout{})

	n, err := r.Render(snapshot(sensors.UnitCelsius,
		okState(sensors.Sensor1, 23.4),
		sensors.SensorState{ID: sensors.Sensor2, Enabled: true, LastStatus: sensors.StatusUnplugged},
	))
	if err != nil || n != 2 {
		t.Fatalf("Render: n=%d err=%v", n, err)
	}

	want := []drawCall{
		{0, 0, "Sensor 1: 23.40 C  "},
		{0, DefaultLineHeight, "Sensor 2: Unplugged"},
	}
	for i, w := range want {
		if sink.draws[i] != w {
			t.Fatalf("draw %d: got %+v, want %+v", i, sink.draws[i], w)
		}
	}
}

func TestRender_NoRedrawWithoutChange(t *testing.T) {
	sink := &fakeSink{}
	r := NewRenderer(sink, Layout{})
	snap := snapshot(sensors.UnitCelsius, okState(sensors.Sensor1, 20))

	_, _ = r.Render(snap)
	n, _ := r.Render(snap)
	if n != 0 || len(sink.draws) != 1 {
		t.Fatalf("expected no redraw, got n=%d draws=%d", n, len(sink.draws))
	}
}

func TestRender_OnlyChangedRowRedrawn(t *testing.T) {
	sink := &fakeSink{}
	r := NewRenderer(sink, Layout{})
	_, _ = r.Render(snapshot(sensors.UnitCelsius, okState(sensors.Sensor1, 20), okState(sensors.Sensor2, 21)))

	disabled := okState(sensors.Sensor2, 21)
	disabled.Enabled = false
	n, _ := r.Render(snapshot(sensors.UnitCelsius, okState(sensors.Sensor1, 20), disabled))
	if n != 1 {
		t.Fatalf("expected 1 redraw, got %d", n)
	}
	last := sink.draws[len(sink.draws)-1]
	if last.y != DefaultLineHeight || last.text != "Sensor 2: OFF      " {
		t.Fatalf("unexpected redraw %+v", last)
	}
}

func TestRender_PadsToPriorLength(t *testing.T) {
	sink := &fakeSink{}
	r := NewRenderer(sink, Layout{LineWidth: 4})

	_, _ = r.Render(snapshot(sensors.UnitCelsius, sensors.SensorState{ID: sensors.Sensor1, Enabled: true, LastStatus: sensors.StatusUnplugged}))
	_, _ = r.Render(snapshot(sensors.UnitCelsius, sensors.SensorState{ID: sensors.Sensor1}))

	first, second := sink.draws[0].text, sink.draws[1].text
	if len(second) != len(first) {
		t.Fatalf("expected %q padded to %d, got %d", second, len(first), len(second))
	}
	if second[:13] != "Sensor 1: OFF" {
		t.Fatalf("unexpected text %q", second)
	}
}

func TestRender_UnitChangeRedraws(t *testing.T) {
	sink := &fakeSink{}
	r := NewRenderer(sink, Layout{})
	_, _ = r.Render(snapshot(sensors.UnitCelsius, okState(sensors.Sensor1, 23.4)))
	n, _ := r.Render(snapshot(sensors.UnitFahrenheit, okState(sensors.Sensor1, 23.4)))
	if n != 1 || sink.draws[1].text != "Sensor 1: 74.12 F  " {
		t.Fatalf("expected fahrenheit redraw, got n=%d draws=%+v", n, sink.draws)
	}
}

func TestRender_SinkErrorRetriedNextTick(t *testing.T) {
	sink := &fakeSink{drawErr: errors.New("i2c nack")}
	r := NewRenderer(sink, Layout{})
	snap := snapshot(sensors.UnitCelsius, okState(sensors.Sensor1, 20))

	if _, err := r.Render(snap); err == nil {
		t.Fatal("expected error from sink")
	}
	sink.drawErr = nil
	if n, err := r.Render(snap); err != nil || n != 1 {
		t.Fatalf("expected retry to draw, got n=%d err=%v", n, err)
	}
}

func TestClearResetsShadow(t *testing.T) {
	sink := &fakeSink{}
	r := NewRenderer(sink, Layout{})
	snap := snapshot(sensors.UnitCelsius, okState(sensors.Sensor1, 20))
	_, _ = r.Render(snap)

	if err := r.Clear(); err != nil {
		t.Fatal(err)
	}
	if sink.clears != 1 {
		t.Fatalf("expected sink cleared once, got %d", sink.clears)
	}
	if n, _ := r.Render(snap); n != 1 {
		t.Fatalf("expected full redraw after clear, got %d", n)
	}
}
