package w1

import (
	"fmt"
	"sync"
	"time"

	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

type DriftParams struct {
	Ambient     float64
	Coefficient float64 // >= 0, per second. 0 keeps the start value.
}

func (params *DriftParams) Validate() error {
	if params.Coefficient < 0 {
		return ErrNegativeDriftCoefficient
	}
	return nil
}

// Delta is the change of a probe at temp after dt, moving toward Ambient.
func (params *DriftParams) Delta(temp float64, dt time.Duration) float64 {
	return params.Coefficient * (params.Ambient - temp) * dt.Seconds()
}

// SimulatedReader stands in for real probes when no w1 bus is available.
// Every probe drifts from its start value toward the ambient temperature.
type SimulatedReader struct {
	mu        sync.Mutex
	params    DriftParams
	now       func() time.Time
	temps     map[sensors.SensorID]float64
	last      map[sensors.SensorID]time.Time
	unplugged map[sensors.SensorID]bool
}

func NewSimulatedReader(params DriftParams, start map[sensors.SensorID]float64) (*SimulatedReader, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	temps := make(map[sensors.SensorID]float64, len(start))
	for id, v := range start {
		temps[id] = v
	}
	return &SimulatedReader{
		params:    params,
		now:       time.Now,
		temps:     temps,
		last:      make(map[sensors.SensorID]time.Time),
		unplugged: make(map[sensors.SensorID]bool),
	}, nil
}

// SetUnplugged makes the next reads of id fail with ErrUnplugged.
func (r *SimulatedReader) SetUnplugged(id sensors.SensorID, unplugged bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unplugged[id] = unplugged
}

// Step advances the probe by dt without a wall clock. Used by the offline simulation.
func (r *SimulatedReader) Step(id sensors.SensorID, dt time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.temps[id] += r.params.Delta(r.temps[id], dt)
}

func (r *SimulatedReader) Read(id sensors.SensorID) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	temp, ok := r.temps[id]
	if !ok {
		return 0, fmt.Errorf("%w: %w %s", sensors.ErrIO, ErrNoAddress, id)
	}
	if r.unplugged[id] {
		return 0, fmt.Errorf("simulated %s: %w", id, sensors.ErrUnplugged)
	}

	now := r.now()
	if prev, seen := r.last[id]; seen {
		temp += r.params.Delta(temp, now.Sub(prev))
		r.temps[id] = temp
	}
	r.last[id] = now
	return temp, nil
}
