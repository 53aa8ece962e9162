package w1

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

// DefaultBaseDir is where the kernel w1 bus exposes its slaves.
const DefaultBaseDir = "/sys/bus/w1/devices"

// FileReader reads DS18B20 probes through the w1_slave sysfs file.
type FileReader struct {
	baseDir string
	addrs   map[sensors.SensorID]string
}

func NewFileReader(baseDir string, addrs map[sensors.SensorID]string) *FileReader {
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}
	return &FileReader{baseDir: baseDir, addrs: addrs}
}

func (r *FileReader) Read(id sensors.SensorID) (float64, error) {
	addr, ok := r.addrs[id]
	if !ok || addr == "" {
		return 0, fmt.Errorf("%w: %w %s", sensors.ErrIO, ErrNoAddress, id)
	}

	data, err := os.ReadFile(filepath.Join(r.baseDir, addr, "w1_slave"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%s: %w", addr, sensors.ErrUnplugged)
		}
		return 0, fmt.Errorf("%s: %w: %v", addr, sensors.ErrIO, err)
	}

	c, err := ParseSlave(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", addr, err)
	}
	return c, nil
}

// ParseSlave decodes the two-line w1_slave format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func ParseSlave(data []byte) (float64, error) {
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	if len(lines) < 2 {
		return 0, fmt.Errorf("%w: short read", sensors.ErrMalformed)
	}
	if !bytes.Contains(lines[0], []byte("YES")) {
		return 0, fmt.Errorf("%w: crc check failed", sensors.ErrMalformed)
	}

	line := string(lines[1])
	pos := strings.Index(line, "t=")
	if pos < 0 {
		return 0, fmt.Errorf("%w: temperature not found", sensors.ErrMalformed)
	}
	milli, err := strconv.Atoi(strings.TrimSpace(line[pos+2:]))
	if err != nil {
		return 0, fmt.Errorf("%w: bad temperature %q", sensors.ErrMalformed, line[pos+2:])
	}
	return float64(milli) / 1000.0, nil
}
