package sensors

import (
	"testing"
	"time"
)

func TestDebouncer_FirstEdgeAccepted(t *testing.T) {
	d := NewDebouncer(0)
	ev, ok := d.OnEdge(Sensor1, time.Unix(0, 0))
	if !ok {
		t.Fatal("first edge must be accepted")
	}
	assertEqual(t, "sensor", ev.Sensor, Sensor1)
	assertEqual(t, "source", ev.Source, SourceButton)
}

func TestDebouncer_BurstWithinWindowEmitsOne(t *testing.T) {
	d := NewDebouncer(DebounceWindow)
	start := time.Now()

	accepted := 0
	for i := 0; i < 20; i++ {
		if _, ok := d.OnEdge(Sensor1, start.Add(time.Duration(i)*5*time.Millisecond)); ok {
			accepted++
		}
	}
	assertEqual(t, "accepted", accepted, 1)
}

func TestDebouncer_Table(t *testing.T) {
	base := time.Now()
	cases := []struct {
		name  string
		edges []time.Duration // offsets from base
		want  []bool
	}{
		{"exactly at window is dropped", []time.Duration{0, 100 * time.Millisecond}, []bool{true, false}},
		{"just past window is accepted", []time.Duration{0, 101 * time.Millisecond}, []bool{true, true}},
		{
			// rejected edges do not extend the window
			"window measured from last accepted",
			[]time.Duration{0, 60 * time.Millisecond, 120 * time.Millisecond},
			[]bool{true, false, true},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDebouncer(DebounceWindow)
			for i, off := range tc.edges {
				_, ok := d.OnEdge(Sensor1, base.Add(off))
				if ok != tc.want[i] {
					t.Fatalf("edge %d at %v: accepted=%v want %v", i, off, ok, tc.want[i])
				}
			}
		})
	}
}

func TestDebouncer_SensorsIndependent(t *testing.T) {
	d := NewDebouncer(DebounceWindow)
	now := time.Now()
	if _, ok := d.OnEdge(Sensor1, now); !ok {
		t.Fatal("sensor1 first edge rejected")
	}
	if _, ok := d.OnEdge(Sensor2, now.Add(time.Millisecond)); !ok {
		t.Fatal("sensor2 first edge rejected")
	}
}
