package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/Agrid-Dev/thermoprobe/internal/device"
	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

const EnvPrefix = "THERMOPROBE_"

type Config struct {
	DeviceID string `koanf:"device_id" yaml:"device_id"`
	Unit     string `koanf:"unit" yaml:"unit"` // "C" | "F"

	Controllers struct {
		HTTP   HTTPConfig   `koanf:"http" yaml:"http"`
		MQTT   MQTTConfig   `koanf:"mqtt" yaml:"mqtt"`
		MODBUS ModbusConfig `koanf:"modbus" yaml:"modbus"`
	} `koanf:"controllers" yaml:"controllers"`

	Sensors     []SensorConfig    `koanf:"sensors" yaml:"sensors"`
	Sampler     SamplerConfig     `koanf:"sampler" yaml:"sampler"`
	Coordinator CoordinatorConfig `koanf:"coordinator" yaml:"coordinator"`
	Reader      ReaderConfig      `koanf:"reader" yaml:"reader"`
	Buttons     ButtonsConfig     `koanf:"buttons" yaml:"buttons"`
	Display     DisplayConfig     `koanf:"display" yaml:"display"`
	Reporter    ReporterConfig    `koanf:"reporter" yaml:"reporter"`
	Logging     LoggingConfig     `koanf:"logging" yaml:"logging"`
}

type SensorConfig struct {
	ID       int    `koanf:"id" yaml:"id"`
	Address  string `koanf:"address" yaml:"address"`
	Pin      int    `koanf:"pin" yaml:"pin"`
	Disabled bool   `koanf:"disabled" yaml:"disabled"`
	Unit     string `koanf:"unit" yaml:"unit"` // empty follows the device unit
}

type HTTPConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" yaml:"addr"`
}

type MQTTConfig struct {
	Enabled         bool          `koanf:"enabled" yaml:"enabled"`
	BrokerURL       string        `koanf:"broker_url" yaml:"broker_url"`
	ClientID        string        `koanf:"client_id" yaml:"client_id"`
	BaseTopic       string        `koanf:"base_topic" yaml:"base_topic"`
	QoS             byte          `koanf:"qos" yaml:"qos"`
	RetainSnapshot  bool          `koanf:"retain_snapshot" yaml:"retain_snapshot"`
	PublishInterval time.Duration `koanf:"publish_interval" yaml:"publish_interval"`
	Username        string        `koanf:"username" yaml:"username"`
	Password        string        `koanf:"password" yaml:"password"`
}

type ModbusConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" yaml:"addr"`
	UnitID  byte   `koanf:"unit_id" yaml:"unit_id"`
}

type SamplerConfig struct {
	Interval time.Duration `koanf:"interval" yaml:"interval"`
}

type CoordinatorConfig struct {
	PollInterval time.Duration `koanf:"poll_interval" yaml:"poll_interval"`
	QueueSize    int           `koanf:"queue_size" yaml:"queue_size"`
}

type ReaderConfig struct {
	Driver  string `koanf:"driver" yaml:"driver"` // file | ds18b20 | simulated
	BaseDir string `koanf:"base_dir" yaml:"base_dir"`

	// simulated driver only
	Ambient     float64 `koanf:"ambient" yaml:"ambient"`
	Coefficient float64 `koanf:"coefficient" yaml:"coefficient"`
	Start       float64 `koanf:"start" yaml:"start"`
}

type ButtonsConfig struct {
	Driver string `koanf:"driver" yaml:"driver"` // gpiocdev | rpio | periph | none
	Chip   string `koanf:"chip" yaml:"chip"`
}

type DisplayConfig struct {
	Driver string `koanf:"driver" yaml:"driver"` // ssd1306 | console | none
	Bus    string `koanf:"bus" yaml:"bus"`
	Width  int    `koanf:"width" yaml:"width"`
	Height int    `koanf:"height" yaml:"height"`
}

type ReporterConfig struct {
	Enabled bool          `koanf:"enabled" yaml:"enabled"`
	URL     string        `koanf:"url" yaml:"url"`
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`
}

type LoggingConfig struct {
	Level string `koanf:"level" yaml:"level"`
}

var (
	validReaders  = []string{"file", "ds18b20", "simulated"}
	validButtons  = []string{"", "none", "gpiocdev", "rpio", "periph"}
	validDisplays = []string{"", "none", "ssd1306", "console"}
)

func defaultConfig() Config {
	var cfg Config
	cfg.Unit = "C"
	cfg.Sensors = []SensorConfig{
		{ID: 1, Address: "28-000010eb7a80", Pin: 27},
		{ID: 2, Address: "28-000007292a49", Pin: 22},
	}
	cfg.Reader.Driver = "file"
	cfg.Reader.Ambient = 21
	cfg.Reader.Coefficient = 0.01
	cfg.Reader.Start = 21
	cfg.Buttons.Driver = "gpiocdev"
	cfg.Display.Driver = "ssd1306"
	applyDefaults(&cfg)
	return cfg
}

// LoadConfig layers struct defaults, the config file, .env and the
// environment, in that order. A missing file leaves the defaults in place.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := loadFile(k, path); err != nil {
			return Config{}, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, v string) (string, any) {
			return envKeyTransform(strings.TrimPrefix(key, EnvPrefix)), v
		},
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, cfg.Validate()
}

func loadFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	var parser koanf.Parser
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config extension %q", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// envKeyTransform maps an env var name, prefix already removed, to a koanf key:
// CONTROLLERS_HTTP_ADDR -> controllers.http.addr, SAMPLER_INTERVAL -> sampler.interval.
func envKeyTransform(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	if rest, ok := strings.CutPrefix(s, "controllers_"); ok {
		ctrl, field, ok := strings.Cut(rest, "_")
		if !ok {
			return s
		}
		return "controllers." + ctrl + "." + field
	}

	for _, section := range []string{"sampler", "coordinator", "reader", "buttons", "display", "reporter", "logging"} {
		if rest, ok := strings.CutPrefix(s, section+"_"); ok {
			return section + "." + rest
		}
	}
	return s
}

func applyDefaults(cfg *Config) {
	if cfg.DeviceID == "" {
		cfg.DeviceID = "default"
	}
	if cfg.Unit == "" {
		cfg.Unit = "C"
	}
	if cfg.Controllers.HTTP.Addr == "" {
		cfg.Controllers.HTTP.Addr = ":8080"
	}
	if cfg.Controllers.MQTT.PublishInterval == 0 {
		cfg.Controllers.MQTT.PublishInterval = 1 * time.Second
	}
	if cfg.Controllers.MODBUS.UnitID == 0 {
		cfg.Controllers.MODBUS.UnitID = 1
	}
	if cfg.Sampler.Interval == 0 {
		cfg.Sampler.Interval = sensors.DefaultSampleInterval
	}
	if cfg.Display.Width == 0 {
		cfg.Display.Width = 128
	}
	if cfg.Display.Height == 0 {
		cfg.Display.Height = 32
	}
	if cfg.Reporter.Timeout == 0 {
		cfg.Reporter.Timeout = 5 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func (c Config) Validate() error {
	if _, err := sensors.ParseUnit(c.Unit); err != nil {
		return fmt.Errorf("unit: %w", err)
	}
	if len(c.Sensors) == 0 {
		return errors.New("config: at least one sensor is required")
	}
	if _, err := c.Device(); err != nil {
		return err
	}
	for _, s := range c.Sensors {
		if s.Unit == "" {
			continue
		}
		if _, err := sensors.ParseUnit(s.Unit); err != nil {
			return fmt.Errorf("sensor %d unit: %w", s.ID, err)
		}
	}
	if !oneOf(c.Reader.Driver, validReaders) {
		return fmt.Errorf("reader: unknown driver %q", c.Reader.Driver)
	}
	if !oneOf(c.Buttons.Driver, validButtons) {
		return fmt.Errorf("buttons: unknown driver %q", c.Buttons.Driver)
	}
	if !oneOf(c.Display.Driver, validDisplays) {
		return fmt.Errorf("display: unknown driver %q", c.Display.Driver)
	}
	if c.Sampler.Interval < 0 {
		return errors.New("sampler: interval must be positive")
	}
	if c.Reporter.Enabled && c.Reporter.URL == "" {
		return errors.New("reporter: url is required when enabled")
	}
	return nil
}

// Device is the static sensor wiring described by the config.
func (c Config) Device() (*device.Device, error) {
	probes := make([]device.Probe, 0, len(c.Sensors))
	for _, s := range c.Sensors {
		probes = append(probes, device.Probe{Sensor: sensors.SensorID(s.ID), Address: s.Address, Pin: s.Pin})
	}
	return device.New(c.DeviceID, probes)
}

// Snapshot is the Store's initial state.
func (c Config) Snapshot() (sensors.Snapshot, error) {
	unit, err := sensors.ParseUnit(c.Unit)
	if err != nil {
		return sensors.Snapshot{}, err
	}
	snap := sensors.Snapshot{Unit: unit}
	for _, s := range c.Sensors {
		st := sensors.SensorState{ID: sensors.SensorID(s.ID), Enabled: !s.Disabled}
		if s.Unit != "" {
			if st.Unit, err = sensors.ParseUnit(s.Unit); err != nil {
				return sensors.Snapshot{}, err
			}
		}
		snap.Sensors = append(snap.Sensors, st)
	}
	return snap, nil
}

// PrintConfig writes the effective config as YAML.
func PrintConfig(w io.Writer, cfg Config) error {
	enc := yamlv3.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}
