package w1

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yryz/ds18b20"

	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

// DS18B20Reader reads probes with github.com/yryz/ds18b20, which always
// looks under DefaultBaseDir.
type DS18B20Reader struct {
	addrs map[sensors.SensorID]string
	temp  func(string) (float64, error)
	stat  func(string) (os.FileInfo, error)
}

func NewDS18B20Reader(addrs map[sensors.SensorID]string) *DS18B20Reader {
	return &DS18B20Reader{addrs: addrs, temp: ds18b20.Temperature, stat: os.Stat}
}

// Discover logs the probes present on the bus and warns about configured ones that are missing.
func (r *DS18B20Reader) Discover() ([]string, error) {
	found, err := ds18b20.Sensors()
	if err != nil {
		return nil, fmt.Errorf("w1 discovery: %w", err)
	}
	present := make(map[string]bool, len(found))
	for _, a := range found {
		present[a] = true
	}
	slog.Info("w1 devices found", "component", "w1", "devices", found)
	for id, a := range r.addrs {
		if !present[a] {
			slog.Warn("configured sensor not on bus", "component", "w1", "sensor", id.String(), "address", a)
		}
	}
	return found, nil
}

func (r *DS18B20Reader) Read(id sensors.SensorID) (float64, error) {
	addr, ok := r.addrs[id]
	if !ok || addr == "" {
		return 0, fmt.Errorf("%w: %w %s", sensors.ErrIO, ErrNoAddress, id)
	}

	c, err := r.temp(addr)
	if err == nil {
		return c, nil
	}
	return 0, r.classify(addr, err)
}

func (r *DS18B20Reader) classify(addr string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", addr, sensors.ErrUnplugged)
	}
	if _, serr := r.stat(filepath.Join(DefaultBaseDir, addr)); errors.Is(serr, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", addr, sensors.ErrUnplugged)
	}
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return fmt.Errorf("%s: %w: %v", addr, sensors.ErrIO, err)
	}
	return fmt.Errorf("%s: %w: %v", addr, sensors.ErrMalformed, err)
}
