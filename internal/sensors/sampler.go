package sensors

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// DefaultSampleInterval is the period between two reads of the enabled sensors.
const DefaultSampleInterval = time.Second

// Reader reads one sensor. A failure wraps ErrUnplugged, ErrMalformed or ErrIO.
type Reader interface {
	Read(id SensorID) (float64, error)
}

// Sampler reads every enabled sensor once per interval and writes the results into the Store.
type Sampler struct {
	reader   Reader
	store    *Store
	interval time.Duration
	log      *slog.Logger

	last    time.Time
	started bool
}

func NewSampler(reader Reader, store *Store, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Sampler{
		reader:   reader,
		store:    store,
		interval: interval,
		log:      slog.Default().With("component", "sampler"),
	}
}

// Tick samples when the interval has elapsed since the last sampling tick and
// reports whether it did. The first call always samples.
func (s *Sampler) Tick(now time.Time) bool {
	if s.started && now.Sub(s.last) < s.interval {
		return false
	}

	for _, id := range s.store.EnabledSensors() {
		res := SampleResult{Sensor: id, At: now}
		c, err := s.reader.Read(id)
		if err == nil && math.IsNaN(c) {
			err = fmt.Errorf("%w: NaN reading", ErrMalformed)
		}
		if err != nil {
			res.Err = err
			s.logFailure(id, err)
		} else {
			res.Celsius = Clamp(c)
		}
		s.store.ApplySample(res)
	}

	s.last = now
	s.started = true
	return true
}

func (s *Sampler) logFailure(id SensorID, err error) {
	switch {
	case errors.Is(err, ErrUnplugged):
		s.log.Warn("sensor unplugged", "sensor", id.String())
	case errors.Is(err, ErrMalformed):
		s.log.Error("malformed sensor data", "sensor", id.String(), "error", err)
	default:
		s.log.Error("sensor read failed", "sensor", id.String(), "error", err)
	}
}
