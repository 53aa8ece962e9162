package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Agrid-Dev/thermoprobe/cmd/app"
	"github.com/Agrid-Dev/thermoprobe/internal/buttons"
	httpctrl "github.com/Agrid-Dev/thermoprobe/internal/controllers/http"
	modbusctrl "github.com/Agrid-Dev/thermoprobe/internal/controllers/modbus"
	mqttctrl "github.com/Agrid-Dev/thermoprobe/internal/controllers/mqtt"
	"github.com/Agrid-Dev/thermoprobe/internal/controllers/report"
	"github.com/Agrid-Dev/thermoprobe/internal/coordinator"
	"github.com/Agrid-Dev/thermoprobe/internal/device"
	"github.com/Agrid-Dev/thermoprobe/internal/display"
	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
	"github.com/Agrid-Dev/thermoprobe/internal/w1"
)

var logLevel = new(slog.LevelVar)

func main() {
	var (
		configPath    string
		level         string
		useMockSensor bool
		printConfig   bool
	)
	flag.StringVar(&configPath, "config", "config.yaml", "path to config file (.yaml/.yml/.json)")
	flag.StringVar(&level, "log_level", "", "debug | info | warn | error (overrides logging.level)")
	flag.BoolVar(&useMockSensor, "use_mock_sensor", false, "read simulated probes instead of the w1 bus")
	flag.BoolVar(&printConfig, "print-config", false, "print the effective config as YAML and exit")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		slog.Error("invalid config", "path", configPath, "error", err)
		os.Exit(1)
	}
	if level != "" {
		cfg.Logging.Level = level
	}
	if useMockSensor {
		cfg.Reader.Driver = "simulated"
	}
	if err := logLevel.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		slog.Error("invalid log level", "level", cfg.Logging.Level, "error", err)
		os.Exit(1)
	}

	if printConfig {
		if err := app.PrintConfig(os.Stdout, cfg); err != nil {
			slog.Error("print config", "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("thermoprobe stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg app.Config) error {
	dev, err := cfg.Device()
	if err != nil {
		return err
	}
	snap, err := cfg.Snapshot()
	if err != nil {
		return err
	}
	store, err := sensors.New(snap)
	if err != nil {
		return err
	}

	// Hardware first: any failure here ends the process before anything runs.
	reader, err := newReader(cfg.Reader, dev)
	if err != nil {
		return fmt.Errorf("sensor reader: %w", err)
	}
	sink, err := display.Open(display.Config{
		Driver:     cfg.Display.Driver,
		Bus:        cfg.Display.Bus,
		Width:      cfg.Display.Width,
		Height:     cfg.Display.Height,
		LineHeight: display.DefaultLineHeight,
		Rows:       sensors.MaxSensors,
	})
	if err != nil {
		return fmt.Errorf("display: %w", err)
	}
	defer sink.Close()

	edges, err := buttons.New(cfg.Buttons.Driver, cfg.Buttons.Chip, dev.Bindings())
	if err != nil {
		return fmt.Errorf("buttons: %w", err)
	}
	defer edges.Close()

	renderer := display.NewRenderer(sink, display.Layout{LineWidth: display.DefaultLineWidth, LineHeight: display.DefaultLineHeight})
	defer func() {
		if err := renderer.Clear(); err != nil {
			slog.Warn("display clear failed", "error", err)
		}
	}()

	sampler := sensors.NewSampler(reader, store, cfg.Sampler.Interval)
	coord := coordinator.New(store, sampler, renderer, coordinator.Config{
		PollInterval: cfg.Coordinator.PollInterval,
		QueueSize:    cfg.Coordinator.QueueSize,
	})
	if err := edges.Start(ctx, coord.Edges()); err != nil {
		return fmt.Errorf("buttons: %w", err)
	}

	var runners []namedRunner
	runners = append(runners, namedRunner{"coordinator", coord.Run})

	if cfg.Reporter.Enabled {
		client, err := report.NewClient(report.Config{URL: cfg.Reporter.URL, Timeout: cfg.Reporter.Timeout})
		if err != nil {
			return fmt.Errorf("reporter: %w", err)
		}
		rep := report.New(store, client)
		runners = append(runners, namedRunner{"reporter", func(ctx context.Context) error {
			return rep.Run(ctx, coord.ReportTriggers())
		}})
	}

	ctrls, err := controllers(cfg, store)
	if err != nil {
		return err
	}
	runners = append(runners, ctrls...)

	slog.Info("thermoprobe started",
		"device_id", cfg.DeviceID,
		"sensors", len(dev.Sensors()),
		"reader", cfg.Reader.Driver,
		"display", cfg.Display.Driver,
		"buttons", cfg.Buttons.Driver,
	)
	return runAll(ctx, runners)
}

func newReader(cfg app.ReaderConfig, dev *device.Device) (sensors.Reader, error) {
	switch cfg.Driver {
	case "simulated":
		start := make(map[sensors.SensorID]float64)
		for _, id := range dev.Sensors() {
			start[id] = cfg.Start
		}
		return w1.NewSimulatedReader(w1.DriftParams{Ambient: cfg.Ambient, Coefficient: cfg.Coefficient}, start)
	case "ds18b20":
		r := w1.NewDS18B20Reader(dev.Addresses())
		if _, err := r.Discover(); err != nil {
			return nil, err
		}
		return r, nil
	case "file", "":
		return w1.NewFileReader(cfg.BaseDir, dev.Addresses()), nil
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}

func controllers(cfg app.Config, store *sensors.Store) ([]namedRunner, error) {
	var out []namedRunner

	if c := cfg.Controllers.HTTP; c.Enabled {
		srv := httpctrl.New(store, c.Addr, cfg.DeviceID)
		slog.Info("http controller listening", "addr", c.Addr)
		out = append(out, namedRunner{"http", srv.Run})
	}
	if c := cfg.Controllers.MQTT; c.Enabled {
		ctrl, err := mqttctrl.New(store, mqttctrl.Config{
			DeviceID:        cfg.DeviceID,
			BrokerURL:       c.BrokerURL,
			ClientID:        c.ClientID,
			BaseTopic:       c.BaseTopic,
			QoS:             c.QoS,
			RetainSnapshot:  c.RetainSnapshot,
			PublishInterval: c.PublishInterval,
			Username:        c.Username,
			Password:        c.Password,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, namedRunner{"mqtt", ctrl.Run})
	}
	if c := cfg.Controllers.MODBUS; c.Enabled {
		ctrl, err := modbusctrl.New(store, modbusctrl.Config{DeviceID: cfg.DeviceID, Addr: c.Addr, UnitID: c.UnitID})
		if err != nil {
			return nil, err
		}
		out = append(out, namedRunner{"modbus", ctrl.Run})
	}
	return out, nil
}

type namedRunner struct {
	name string
	run  func(context.Context) error
}

// runAll runs every runner until ctx is done. A runner failing on its own is
// logged and the others keep going.
func runAll(ctx context.Context, runners []namedRunner) error {
	var wg sync.WaitGroup
	for _, r := range runners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("component exited", "component", r.name, "error", err)
			}
		}()
	}
	wg.Wait()
	slog.Info("shutting down")
	return nil
}
