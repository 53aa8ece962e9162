package w1

import (
	"errors"
	"testing"
	"time"

	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

func TestDriftParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		params DriftParams
		want   error
	}{
		{"Valid params", DriftParams{Ambient: 10, Coefficient: 5}, nil},
		{"Negative coefficient", DriftParams{Ambient: 10, Coefficient: -5}, ErrNegativeDriftCoefficient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.Validate(); got != tt.want {
				t.Errorf("Got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDriftDelta(t *testing.T) {
	tests := []struct {
		name    string
		ambient float64
		temp    float64
		want    func(float64) bool
	}{
		{"cools toward lower ambient", 5, 20, func(d float64) bool { return d < 0 }},
		{"warms toward higher ambient", 30, 20, func(d float64) bool { return d > 0 }},
		{"steady at ambient", 20, 20, func(d float64) bool { return d == 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DriftParams{Ambient: tt.ambient, Coefficient: 0.1}
			if d := p.Delta(tt.temp, time.Second); !tt.want(d) {
				t.Errorf("%q: got delta %v from %v", tt.name, d, tt.temp)
			}
		})
	}
}

func TestSimulatedReader(t *testing.T) {
	r, err := NewSimulatedReader(DriftParams{Ambient: 10, Coefficient: 0.1}, map[sensors.SensorID]float64{
		sensors.Sensor1: 20,
	})
	if err != nil {
		t.Fatal(err)
	}
	clock := time.Unix(1000, 0)
	r.now = func() time.Time { return clock }

	v, err := r.Read(sensors.Sensor1)
	if err != nil || v != 20 {
		t.Fatalf("first read: got %v, %v", v, err)
	}

	clock = clock.Add(time.Second)
	v, _ = r.Read(sensors.Sensor1)
	if v != 19 {
		t.Fatalf("after 1s: got %v want 19", v)
	}

	r.SetUnplugged(sensors.Sensor1, true)
	if _, err := r.Read(sensors.Sensor1); !errors.Is(err, sensors.ErrUnplugged) {
		t.Fatalf("expected ErrUnplugged, got %v", err)
	}

	if _, err := r.Read(sensors.Sensor2); !errors.Is(err, sensors.ErrIO) {
		t.Fatalf("expected ErrIO for unknown sensor, got %v", err)
	}
}
