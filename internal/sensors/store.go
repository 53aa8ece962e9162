package sensors

import (
	"math"
	"slices"
	"sync"
)

// SensorState is the per-sensor part of a Snapshot.
//
// LastStatus and LastReading hold the outcome of the last sample and survive a
// disable, so re-enabling shows the last known value. Readers should go
// through Status and Reading, which apply the enabled flag.
type SensorState struct {
	ID          SensorID
	Enabled     bool
	Unit        Unit // UnitUnknown follows the store default
	LastStatus  Status
	LastReading float64 // Celsius, valid only when HasReading
	HasReading  bool
}

func (s SensorState) Status() Status {
	if !s.Enabled {
		return StatusDisabled
	}
	return s.LastStatus
}

// Reading returns the last Celsius value when the sensor is enabled and its last sample succeeded.
func (s SensorState) Reading() (float64, bool) {
	if s.Status() != StatusOk || !s.HasReading {
		return 0, false
	}
	return s.LastReading, true
}

type Snapshot struct {
	Unit    Unit
	Sensors []SensorState // ordered by ID
}

func (s Snapshot) Sensor(id SensorID) (SensorState, bool) {
	for _, st := range s.Sensors {
		if st.ID == id {
			return st, true
		}
	}
	return SensorState{}, false
}

// UnitFor returns the unit a sensor is rendered and reported in.
func (s Snapshot) UnitFor(id SensorID) Unit {
	if st, ok := s.Sensor(id); ok && st.Unit.Valid() {
		return st.Unit
	}
	return s.Unit
}

// Store is the single source of truth for sensor state. Every mutation goes
// through one of the Apply methods, which share one lock.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
}

func New(initial Snapshot) (*Store, error) {
	if err := validateSnapshot(initial); err != nil {
		return nil, err
	}
	s := Snapshot{Unit: initial.Unit, Sensors: slices.Clone(initial.Sensors)}
	slices.SortFunc(s.Sensors, func(a, b SensorState) int { return int(a.ID) - int(b.ID) })
	for i := range s.Sensors {
		s.Sensors[i].HasReading = s.Sensors[i].HasReading && s.Sensors[i].LastStatus == StatusOk
	}
	return &Store{snap: s}, nil
}

func validateSnapshot(s Snapshot) error {
	if !s.Unit.Valid() {
		return ErrInvalidUnit
	}
	seen := make(map[SensorID]bool, len(s.Sensors))
	for _, st := range s.Sensors {
		if !st.ID.Valid() {
			return ErrInvalidSensor
		}
		if seen[st.ID] {
			return ErrDuplicateInput
		}
		seen[st.ID] = true
		if st.Unit != UnitUnknown && !st.Unit.Valid() {
			return ErrInvalidUnit
		}
	}
	return nil
}

func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Unit: s.snap.Unit, Sensors: slices.Clone(s.snap.Sensors)}
}

// EnabledSensors lists ids the sampler should read, in id order.
func (s *Store) EnabledSensors() []SensorID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]SensorID, 0, len(s.snap.Sensors))
	for _, st := range s.snap.Sensors {
		if st.Enabled {
			ids = append(ids, st.ID)
		}
	}
	return ids
}

// must be called with mu held
func (s *Store) find(id SensorID) *SensorState {
	for i := range s.snap.Sensors {
		if s.snap.Sensors[i].ID == id {
			return &s.snap.Sensors[i]
		}
	}
	return nil
}

// ApplyToggle flips a sensor, or moves it to ev.Enabled when ev.Set is true.
// A set that matches the current state is not a change.
func (s *Store) ApplyToggle(ev ToggleEvent) (bool, error) {
	if !ev.Sensor.Valid() {
		return false, ErrInvalidSensor
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.find(ev.Sensor)
	if st == nil {
		return false, ErrUnknownSensor
	}
	if ev.Set {
		if st.Enabled == ev.Enabled {
			return false, nil
		}
		st.Enabled = ev.Enabled
		return true, nil
	}
	st.Enabled = !st.Enabled
	return true, nil
}

// ApplySample stores a read outcome. Samples for disabled or unknown sensors are dropped.
func (s *Store) ApplySample(r SampleResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.find(r.Sensor)
	if st == nil || !st.Enabled {
		return false
	}

	prev := *st
	if r.Err == nil && math.IsNaN(r.Celsius) {
		r.Err = ErrMalformed
	}
	if r.Err != nil {
		st.LastStatus = StatusFor(r.Err)
		st.LastReading = 0
		st.HasReading = false
	} else {
		st.LastStatus = StatusOk
		st.LastReading = Clamp(r.Celsius)
		st.HasReading = true
	}
	return *st != prev
}

// ApplyUnit sets the default unit. Stored readings stay in Celsius.
func (s *Store) ApplyUnit(u Unit) (bool, error) {
	if !u.Valid() {
		return false, ErrInvalidUnit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Unit == u {
		return false, nil
	}
	s.snap.Unit = u
	return true, nil
}

// ApplySensorUnit overrides the unit of one sensor. UnitUnknown clears the override.
func (s *Store) ApplySensorUnit(id SensorID, u Unit) (bool, error) {
	if !id.Valid() {
		return false, ErrInvalidSensor
	}
	if u != UnitUnknown && !u.Valid() {
		return false, ErrInvalidUnit
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.find(id)
	if st == nil {
		return false, ErrUnknownSensor
	}
	if st.Unit == u {
		return false, nil
	}
	st.Unit = u
	return true, nil
}
