package main

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
	"github.com/Agrid-Dev/thermoprobe/internal/w1"
)

// Command is applied right before the given iteration is sampled.
type Command struct {
	IterationNumber int
	Press           sensors.SensorID // button press, SensorUnknown for none
	Unplug          sensors.SensorID
	Replug          sensors.SensorID
}

// SimulateProbes drives a Store through the sampler with simulated probes on
// a synthetic one-second clock and writes every state to filename.
func SimulateProbes(iterations int, filename string, commands []Command) error {
	ids := []sensors.SensorID{sensors.Sensor1, sensors.Sensor2}

	store, err := sensors.New(sensors.Snapshot{
		Unit: sensors.UnitCelsius,
		Sensors: []sensors.SensorState{
			{ID: sensors.Sensor1, Enabled: true},
			{ID: sensors.Sensor2, Enabled: true},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create store: %v", err)
	}

	reader, err := w1.NewSimulatedReader(
		w1.DriftParams{Ambient: 21, Coefficient: 5e-3},
		map[sensors.SensorID]float64{sensors.Sensor1: 4, sensors.Sensor2: 60},
	)
	if err != nil {
		return fmt.Errorf("failed to create reader: %v", err)
	}

	sampler := sensors.NewSampler(reader, store, time.Second)
	debouncer := sensors.NewDebouncer(sensors.DebounceWindow)

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Iteration"}
	for _, id := range ids {
		header = append(header, id.String()+"_status", id.String()+"_celsius")
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	start := time.Unix(0, 0)
	for i := range iterations {
		now := start.Add(time.Duration(i) * time.Second)

		for _, cmd := range commands {
			if cmd.IterationNumber != i+1 {
				continue
			}
			if cmd.Press.Valid() {
				if ev, ok := debouncer.OnEdge(cmd.Press, now); ok {
					_, _ = store.ApplyToggle(ev)
				}
			}
			if cmd.Unplug.Valid() {
				reader.SetUnplugged(cmd.Unplug, true)
			}
			if cmd.Replug.Valid() {
				reader.SetUnplugged(cmd.Replug, false)
			}
		}

		for _, id := range ids {
			reader.Step(id, time.Second)
		}
		sampler.Tick(now)

		row := []string{strconv.Itoa(i + 1)}
		snap := store.Get()
		for _, id := range ids {
			st, _ := snap.Sensor(id)
			reading := ""
			if v, ok := st.Reading(); ok {
				reading = fmt.Sprintf("%.2f", v)
			}
			row = append(row, st.Status().String(), reading)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %v", err)
		}
	}

	return nil
}

func main() {
	commands := []Command{
		{IterationNumber: 200, Press: sensors.Sensor1},
		{IterationNumber: 260, Press: sensors.Sensor1},
		{IterationNumber: 400, Unplug: sensors.Sensor2},
		{IterationNumber: 450, Replug: sensors.Sensor2},
	}
	if err := SimulateProbes(1000, "thermoprobe.csv", commands); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}
