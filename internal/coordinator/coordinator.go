// Package coordinator runs the main loop: button edges, sampling, rendering
// and report triggers all meet the Store here.
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/Agrid-Dev/thermoprobe/internal/display"
	"github.com/Agrid-Dev/thermoprobe/internal/ports"
	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

const (
	DefaultPollInterval = 20 * time.Millisecond
	DefaultQueueSize    = 32
)

type Config struct {
	PollInterval time.Duration
	QueueSize    int
}

type Coordinator struct {
	store     *sensors.Store
	debouncer *sensors.Debouncer
	sampler   *sensors.Sampler
	renderer  *display.Renderer
	poll      time.Duration
	log       *slog.Logger

	edges   chan ports.Edge
	reports chan struct{}
}

func New(store *sensors.Store, sampler *sensors.Sampler, renderer *display.Renderer, cfg Config) *Coordinator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	return &Coordinator{
		store:     store,
		debouncer: sensors.NewDebouncer(sensors.DebounceWindow),
		sampler:   sampler,
		renderer:  renderer,
		poll:      cfg.PollInterval,
		log:       slog.Default().With("component", "coordinator"),
		edges:     make(chan ports.Edge, cfg.QueueSize),
		reports:   make(chan struct{}, 1),
	}
}

// Edges is the queue EdgeSources write into. The coordinator is its only consumer.
func (c *Coordinator) Edges() chan<- ports.Edge { return c.edges }

// ReportTriggers fires after every sampling tick. A trigger that finds the
// previous one still pending is merged into it.
func (c *Coordinator) ReportTriggers() <-chan struct{} { return c.reports }

// Run loops until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	c.Step(time.Now())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			c.Step(now)
		}
	}
}

// Step runs one cycle and reports whether the sampler ran.
func (c *Coordinator) Step(now time.Time) bool {
	c.drainEdges()

	sampled := c.sampler.Tick(now)
	if sampled {
		select {
		case c.reports <- struct{}{}:
		default:
		}
	}

	if _, err := c.renderer.Render(c.store.Get()); err != nil {
		c.log.Warn("render incomplete", "error", err)
	}
	return sampled
}

func (c *Coordinator) drainEdges() {
	for {
		select {
		case e := <-c.edges:
			ev, ok := c.debouncer.OnEdge(e.Sensor, e.At)
			if !ok {
				continue
			}
			changed, err := c.store.ApplyToggle(ev)
			if err != nil {
				c.log.Warn("button toggle rejected", "sensor", e.Sensor.String(), "error", err)
				continue
			}
			if changed {
				st, _ := c.store.Get().Sensor(e.Sensor)
				c.log.Info("sensor toggled", "sensor", e.Sensor.String(), "source", ev.Source.String(), "enabled", st.Enabled)
			}
		default:
			return
		}
	}
}
