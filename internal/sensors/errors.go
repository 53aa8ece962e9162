package sensors

import "errors"

var (
	ErrUnplugged      = errors.New("sensor unplugged")
	ErrMalformed      = errors.New("malformed sensor data")
	ErrIO             = errors.New("sensor io error")
	ErrInvalidSensor  = errors.New("invalid sensor id")
	ErrUnknownSensor  = errors.New("sensor not configured")
	ErrInvalidUnit    = errors.New("invalid unit")
	ErrDuplicateInput = errors.New("sensor configured twice")
)

// StatusFor maps a read failure onto the status stored for the sensor.
// Only ErrUnplugged is reported as unplugged; everything else is a read error.
func StatusFor(err error) Status {
	switch {
	case err == nil:
		return StatusOk
	case errors.Is(err, ErrUnplugged):
		return StatusUnplugged
	default:
		return StatusReadError
	}
}
