package ports

import "github.com/Agrid-Dev/thermoprobe/internal/sensors"

// SensorService is the control-plane port used by controllers (HTTP/MQTT/Modbus/report).
type SensorService interface {
	Get() sensors.Snapshot
	ApplyToggle(sensors.ToggleEvent) (bool, error)
	ApplyUnit(sensors.Unit) (bool, error)
	ApplySensorUnit(sensors.SensorID, sensors.Unit) (bool, error)
}
