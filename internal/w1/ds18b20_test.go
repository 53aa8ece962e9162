package w1

import (
	"errors"
	"io/fs"
	"os"
	"testing"

	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

func newTestDS18B20(temp func(string) (float64, error), present bool) *DS18B20Reader {
	r := NewDS18B20Reader(map[sensors.SensorID]string{sensors.Sensor1: "28-000010eb7a80"})
	r.temp = temp
	r.stat = func(string) (os.FileInfo, error) {
		if present {
			return nil, nil
		}
		return nil, fs.ErrNotExist
	}
	return r
}

func TestDS18B20Reader_Read(t *testing.T) {
	tests := []struct {
		name    string
		temp    func(string) (float64, error)
		present bool
		want    float64
		wantErr error
	}{
		{
			name:    "ok",
			temp:    func(string) (float64, error) { return 21.5, nil },
			present: true,
			want:    21.5,
		},
		{
			name:    "file missing",
			temp:    func(string) (float64, error) { return 0, &fs.PathError{Op: "open", Err: fs.ErrNotExist} },
			present: true,
			wantErr: sensors.ErrUnplugged,
		},
		{
			name:    "device directory gone",
			temp:    func(string) (float64, error) { return 0, errors.New("failed to read sensor temperature") },
			present: false,
			wantErr: sensors.ErrUnplugged,
		},
		{
			name:    "io failure",
			temp:    func(string) (float64, error) { return 0, &fs.PathError{Op: "read", Err: errors.New("no such device")} },
			present: true,
			wantErr: sensors.ErrIO,
		},
		{
			name:    "bad crc",
			temp:    func(string) (float64, error) { return 0, errors.New("failed to read sensor temperature") },
			present: true,
			wantErr: sensors.ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestDS18B20(tt.temp, tt.present)
			got, err := r.Read(sensors.Sensor1)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("got %v, %v want %v", got, err, tt.want)
			}
		})
	}
}

func TestDS18B20Reader_UnconfiguredSensor(t *testing.T) {
	r := newTestDS18B20(func(string) (float64, error) { return 0, nil }, true)
	if _, err := r.Read(sensors.Sensor2); !errors.Is(err, ErrNoAddress) {
		t.Fatalf("expected ErrNoAddress, got %v", err)
	}
}
