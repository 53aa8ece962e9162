package buttons

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	gpiod "github.com/warthog618/go-gpiocdev"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/Agrid-Dev/thermoprobe/internal/ports"
	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

func TestEnqueueNeverBlocks(t *testing.T) {
	out := make(chan ports.Edge, 1)
	now := time.Now()

	if !enqueue(out, sensors.Sensor1, now) {
		t.Fatal("expected first edge to be queued")
	}
	if enqueue(out, sensors.Sensor1, now) {
		t.Fatal("expected edge to be dropped on a full queue")
	}
	e := <-out
	if e.Sensor != sensors.Sensor1 || !e.At.Equal(now) {
		t.Fatalf("unexpected edge %+v", e)
	}
}

func TestNewDriverSelection(t *testing.T) {
	tests := []struct {
		driver  string
		wantErr bool
	}{
		{"", false},
		{"none", false},
		{"gpiocdev", false},
		{"rpio", false},
		{"periph", false},
		{"pigpio", true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			src, err := New(tt.driver, "", nil)
			if tt.wantErr != (err != nil) {
				t.Fatalf("New(%q) err=%v wantErr=%v", tt.driver, err, tt.wantErr)
			}
			if err == nil && src == nil {
				t.Fatalf("New(%q) returned nil source", tt.driver)
			}
		})
	}
}

func TestGPIOCDevHandler_RisingEdgeOnly(t *testing.T) {
	g := NewGPIOCDev("", nil)
	if g.chipName != DefaultChip {
		t.Fatalf("expected default chip, got %q", g.chipName)
	}
	out := make(chan ports.Edge, 4)
	h := g.handler(sensors.Sensor2, out)

	h(gpiod.LineEvent{Offset: 27, Type: gpiod.LineEventFallingEdge})
	h(gpiod.LineEvent{Offset: 27, Type: gpiod.LineEventRisingEdge})

	if len(out) != 1 {
		t.Fatalf("expected 1 queued edge, got %d", len(out))
	}
	if e := <-out; e.Sensor != sensors.Sensor2 {
		t.Fatalf("expected sensor2, got %v", e.Sensor)
	}
}

type fakeDetector struct{ hits atomic.Int32 }

func (f *fakeDetector) EdgeDetected() bool {
	for {
		n := f.hits.Load()
		if n <= 0 {
			return false
		}
		if f.hits.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

func TestPollEdges(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	d1, d2 := &fakeDetector{}, &fakeDetector{}
	d2.hits.Store(1)
	out := make(chan ports.Edge, 4)

	go pollEdges(ctx, time.Millisecond, []sensors.SensorID{sensors.Sensor1, sensors.Sensor2}, []edgeDetector{d1, d2}, out)

	select {
	case e := <-out:
		if e.Sensor != sensors.Sensor2 {
			t.Fatalf("expected sensor2 edge, got %v", e.Sensor)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for polled edge")
	}
}

func TestWatchPin(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	pin := &gpiotest.Pin{N: "GPIO27", Num: 27, EdgesChan: make(chan gpio.Level, 1)}
	if err := pin.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		t.Fatal(err)
	}
	out := make(chan ports.Edge, 1)
	go watchPin(ctx, pin, sensors.Sensor1, out)

	pin.EdgesChan <- gpio.High

	select {
	case e := <-out:
		if e.Sensor != sensors.Sensor1 {
			t.Fatalf("expected sensor1, got %v", e.Sensor)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for edge")
	}
}

type haltCountPin struct {
	*gpiotest.Pin
	halts int
}

func (p *haltCountPin) Halt() error {
	p.halts++
	return nil
}

func TestConfigurePins(t *testing.T) {
	bindings := []Binding{{Sensor: sensors.Sensor1, Pin: 17}, {Sensor: sensors.Sensor2, Pin: 27}}
	p17 := &haltCountPin{Pin: &gpiotest.Pin{N: "GPIO17", Num: 17, EdgesChan: make(chan gpio.Level, 1)}}
	p27 := &haltCountPin{Pin: &gpiotest.Pin{N: "GPIO27", Num: 27, EdgesChan: make(chan gpio.Level, 1)}}

	pins, err := configurePins(bindings, func(name string) gpio.PinIO {
		return map[string]gpio.PinIO{"GPIO17": p17, "GPIO27": p27}[name]
	})
	if err != nil {
		t.Fatalf("configurePins: %v", err)
	}
	if len(pins) != 2 || pins[0] != p17 || pins[1] != p27 {
		t.Fatalf("unexpected pins %v", pins)
	}
	if p17.halts != 0 || p27.halts != 0 {
		t.Fatal("expected no halt on success")
	}
}

func TestConfigurePins_FailureHaltsConfigured(t *testing.T) {
	bindings := []Binding{{Sensor: sensors.Sensor1, Pin: 17}, {Sensor: sensors.Sensor2, Pin: 27}}

	t.Run("missing pin", func(t *testing.T) {
		p17 := &haltCountPin{Pin: &gpiotest.Pin{N: "GPIO17", Num: 17, EdgesChan: make(chan gpio.Level, 1)}}
		pins, err := configurePins(bindings, func(name string) gpio.PinIO {
			if name == "GPIO17" {
				return p17
			}
			return nil
		})
		if err == nil || pins != nil {
			t.Fatalf("expected error and no pins, got %v %v", pins, err)
		}
		if p17.halts != 1 {
			t.Fatalf("expected GPIO17 halted once, got %d", p17.halts)
		}
	})

	t.Run("configure error", func(t *testing.T) {
		p17 := &haltCountPin{Pin: &gpiotest.Pin{N: "GPIO17", Num: 17, EdgesChan: make(chan gpio.Level, 1)}}
		// no EdgesChan: gpiotest refuses edge detection
		p27 := &haltCountPin{Pin: &gpiotest.Pin{N: "GPIO27", Num: 27}}
		pins, err := configurePins(bindings, func(name string) gpio.PinIO {
			return map[string]gpio.PinIO{"GPIO17": p17, "GPIO27": p27}[name]
		})
		if err == nil || pins != nil {
			t.Fatalf("expected error and no pins, got %v %v", pins, err)
		}
		if p17.halts != 1 || p27.halts != 0 {
			t.Fatalf("halts: GPIO17=%d GPIO27=%d", p17.halts, p27.halts)
		}
	})
}

func TestNoneSource(t *testing.T) {
	var n None
	if err := n.Start(t.Context(), make(chan ports.Edge)); err != nil {
		t.Fatal(err)
	}
	if err := n.Close(); err != nil {
		t.Fatal(err)
	}
}
