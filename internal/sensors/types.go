package sensors

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// SensorID is a small integer enum. The mapping to a physical device lives in config.
type SensorID int

const (
	SensorUnknown SensorID = iota
	Sensor1
	Sensor2
	Sensor3
	Sensor4
)

// MaxSensors is the highest id a deployment may configure.
const MaxSensors = 4

func (id SensorID) Valid() bool {
	return id >= Sensor1 && id <= Sensor4
}

func (id SensorID) String() string {
	if !id.Valid() {
		return "unknown"
	}
	return "sensor" + strconv.Itoa(int(id))
}

// Label is the human form used on the display.
func (id SensorID) Label() string {
	if !id.Valid() {
		return "Sensor ?"
	}
	return "Sensor " + strconv.Itoa(int(id))
}

// ParseSensorID accepts "sensor1" or "1".
func ParseSensorID(s string) (SensorID, error) {
	n := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "sensor")
	i, err := strconv.Atoi(n)
	if err != nil || !SensorID(i).Valid() {
		return SensorUnknown, fmt.Errorf("invalid sensor id: %q", s)
	}
	return SensorID(i), nil
}

// Unit is an integer enum.
type Unit int

const (
	UnitUnknown Unit = iota
	UnitCelsius
	UnitFahrenheit
)

func (u Unit) Valid() bool {
	return u == UnitCelsius || u == UnitFahrenheit
}

func (u Unit) String() string {
	switch u {
	case UnitCelsius:
		return "C"
	case UnitFahrenheit:
		return "F"
	default:
		return "unknown"
	}
}

func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "celsius":
		return UnitCelsius, nil
	case "f", "fahrenheit":
		return UnitFahrenheit, nil
	default:
		return UnitUnknown, fmt.Errorf("invalid unit: %q", s)
	}
}

// Convert expresses a Celsius value in u. Unknown units pass the value through.
func (u Unit) Convert(celsius float64) float64 {
	if u == UnitFahrenheit {
		return celsius*9/5 + 32
	}
	return celsius
}

// Status of the last sampling attempt of a sensor.
type Status int

const (
	StatusPending Status = iota // enabled, never sampled
	StatusOk
	StatusUnplugged
	StatusReadError
	StatusDisabled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusOk:
		return "ok"
	case StatusUnplugged:
		return "unplugged"
	case StatusReadError:
		return "read_error"
	case StatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Source tells who asked for a toggle.
type Source int

const (
	SourceButton Source = iota
	SourceRemote
)

func (s Source) String() string {
	switch s {
	case SourceButton:
		return "button"
	case SourceRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// ToggleEvent is consumed by Store.ApplyToggle. Without Set it flips the
// sensor. With Set, Enabled is the target state; control surfaces that
// write a value use this form.
type ToggleEvent struct {
	Sensor  SensorID
	Source  Source
	At      time.Time
	Set     bool
	Enabled bool
}

// SampleResult carries either a Celsius reading or a read failure.
type SampleResult struct {
	Sensor  SensorID
	Celsius float64
	Err     error
	At      time.Time
}

const (
	MinCelsius = -10.0
	MaxCelsius = 63.0
)

// Clamp bounds a raw reading to [MinCelsius, MaxCelsius]. NaN maps to MinCelsius.
func Clamp(celsius float64) float64 {
	if math.IsNaN(celsius) {
		return MinCelsius
	}
	return min(max(celsius, MinCelsius), MaxCelsius)
}
