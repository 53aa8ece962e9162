package w1

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

const okSlave = "72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n72 01 4b 46 7f ff 0e 10 57 t=23125\n"

func writeSlave(t *testing.T, base, addr, content string) {
	t.Helper()
	dir := filepath.Join(base, addr)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "w1_slave"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseSlave(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    float64
		wantErr error
	}{
		{"valid", okSlave, 23.125, nil},
		{"negative", "aa : crc=aa YES\naa t=-1250\n", -1.25, nil},
		{"crc failed", "72 01 : crc=57 NO\n72 01 t=23125\n", 0, sensors.ErrMalformed},
		{"single line", "72 01 : crc=57 YES\n", 0, sensors.ErrMalformed},
		{"empty", "", 0, sensors.ErrMalformed},
		{"missing t=", "aa : crc=aa YES\naa bb cc\n", 0, sensors.ErrMalformed},
		{"garbage value", "aa : crc=aa YES\naa t=xyz\n", 0, sensors.ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSlave([]byte(tt.in))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFileReader_Read(t *testing.T) {
	base := t.TempDir()
	writeSlave(t, base, "28-000010eb7a80", okSlave)
	writeSlave(t, base, "28-000007292a49", "ff : crc=00 NO\nff t=85000\n")

	r := NewFileReader(base, map[sensors.SensorID]string{
		sensors.Sensor1: "28-000010eb7a80",
		sensors.Sensor2: "28-000007292a49",
		sensors.Sensor3: "28-0000deadbeef",
	})

	v, err := r.Read(sensors.Sensor1)
	if err != nil || v != 23.125 {
		t.Fatalf("sensor1: got %v, %v", v, err)
	}

	if _, err := r.Read(sensors.Sensor2); !errors.Is(err, sensors.ErrMalformed) {
		t.Fatalf("sensor2: expected ErrMalformed, got %v", err)
	}
	if _, err := r.Read(sensors.Sensor3); !errors.Is(err, sensors.ErrUnplugged) {
		t.Fatalf("sensor3: expected ErrUnplugged, got %v", err)
	}
	_, err = r.Read(sensors.Sensor4)
	if !errors.Is(err, sensors.ErrIO) || !errors.Is(err, ErrNoAddress) {
		t.Fatalf("sensor4: expected ErrIO + ErrNoAddress, got %v", err)
	}
}

func TestFileReader_DefaultBaseDir(t *testing.T) {
	r := NewFileReader("", nil)
	if r.baseDir != DefaultBaseDir {
		t.Fatalf("expected %q, got %q", DefaultBaseDir, r.baseDir)
	}
}
