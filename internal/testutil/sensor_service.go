package testutil

import (
	"sync"

	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

// FakeSensorService is a reusable fake implementing ports.SensorService.
// Put ONLY what multiple test packages need here.
type FakeSensorService struct {
	mu sync.Mutex
	S  sensors.Snapshot

	Toggles   []sensors.ToggleEvent
	ToggleErr error

	ApplyUnitCalled bool
	ApplyUnitArg    sensors.Unit
	ApplyUnitErr    error

	SensorUnitCalled bool
	SensorUnitID     sensors.SensorID
	SensorUnitArg    sensors.Unit
	SensorUnitErr    error
}

func NewFakeSensorService() *FakeSensorService {
	return &FakeSensorService{
		S: sensors.Snapshot{
			Unit: sensors.UnitCelsius,
			Sensors: []sensors.SensorState{
				{ID: sensors.Sensor1, Enabled: true, LastStatus: sensors.StatusOk, LastReading: 23.4, HasReading: true},
				{ID: sensors.Sensor2, Enabled: true, LastStatus: sensors.StatusUnplugged},
			},
		},
	}
}

func (f *FakeSensorService) Get() sensors.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.S
	s.Sensors = append([]sensors.SensorState(nil), f.S.Sensors...)
	return s
}

// Set replaces the snapshot under the lock, for tests that mutate while a controller runs.
func (f *FakeSensorService) Set(fn func(*sensors.Snapshot)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.S)
}

// ToggleCalls returns a copy of the recorded toggle events.
func (f *FakeSensorService) ToggleCalls() []sensors.ToggleEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sensors.ToggleEvent(nil), f.Toggles...)
}

func (f *FakeSensorService) ApplyToggle(ev sensors.ToggleEvent) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Toggles = append(f.Toggles, ev)
	if f.ToggleErr != nil {
		return false, f.ToggleErr
	}
	for i := range f.S.Sensors {
		st := &f.S.Sensors[i]
		if st.ID != ev.Sensor {
			continue
		}
		want := !st.Enabled
		if ev.Set {
			want = ev.Enabled
		}
		changed := st.Enabled != want
		st.Enabled = want
		return changed, nil
	}
	return false, sensors.ErrUnknownSensor
}

func (f *FakeSensorService) ApplyUnit(u sensors.Unit) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ApplyUnitCalled = true
	f.ApplyUnitArg = u
	if f.ApplyUnitErr != nil {
		return false, f.ApplyUnitErr
	}
	changed := f.S.Unit != u
	f.S.Unit = u
	return changed, nil
}

func (f *FakeSensorService) ApplySensorUnit(id sensors.SensorID, u sensors.Unit) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SensorUnitCalled = true
	f.SensorUnitID = id
	f.SensorUnitArg = u
	if f.SensorUnitErr != nil {
		return false, f.SensorUnitErr
	}
	for i := range f.S.Sensors {
		if f.S.Sensors[i].ID == id {
			changed := f.S.Sensors[i].Unit != u
			f.S.Sensors[i].Unit = u
			return changed, nil
		}
	}
	return false, sensors.ErrUnknownSensor
}
