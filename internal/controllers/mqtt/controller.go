package mqttctrl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Agrid-Dev/thermoprobe/internal/ports"
	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

type Config struct {
	// Identity
	DeviceID string

	// MQTT connection
	BrokerURL string
	ClientID  string

	// Topics
	BaseTopic string

	// Behavior
	QoS             byte
	RetainSnapshot  bool
	PublishInterval time.Duration

	Username string
	Password string
}

type Controller struct {
	svc ports.SensorService
	cfg Config
	log *slog.Logger

	client mqtt.Client
}

func New(svc ports.SensorService, cfg Config) (*Controller, error) {
	// ---- defaults ----

	if cfg.BrokerURL == "" {
		cfg.BrokerURL = "tcp://localhost:1883"
	}

	if cfg.DeviceID == "" {
		return nil, errors.New("mqtt: DeviceID is required")
	}
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = "thermoprobe/" + cfg.DeviceID
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "thermoprobe-" + cfg.DeviceID
	}
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = 1 * time.Second
	}
	if cfg.QoS > 1 {
		return nil, errors.New("mqtt: QoS must be 0 or 1")
	}
	return &Controller{
		svc: svc,
		cfg: cfg,
		log: slog.Default().With("component", "mqtt"),
	}, nil
}

func (c *Controller) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.BrokerURL).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	// Subscribe when connected/reconnected.
	opts.OnConnect = func(cl mqtt.Client) {
		topic := c.topic("set/+")
		token := cl.Subscribe(topic, c.cfg.QoS, c.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			c.log.Error("subscribe failed", "topic", topic, "error", err)
		}
	}

	c.client = mqtt.NewClient(opts)
	tok := c.client.Connect()
	tok.Wait()
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	// Publish loop: publish snapshot on interval, and only when changed.
	ticker := time.NewTicker(c.cfg.PublishInterval)
	defer ticker.Stop()

	last := c.svc.Get()
	c.publishSnapshot()

	for {
		select {
		case <-ctx.Done():
			c.client.Disconnect(250)
			return ctx.Err()

		case <-ticker.C:
			cur := c.svc.Get()
			if !reflect.DeepEqual(cur, last) {
				c.publishSnapshot()
				last = cur
			}
		}
	}
}

func (c *Controller) publishSnapshot() {
	b, _ := json.Marshal(toDTO(c.svc.Get()))
	c.client.Publish(c.topic("snapshot"), c.cfg.QoS, c.cfg.RetainSnapshot, b)
}

type sensorDTO struct {
	Enabled bool     `json:"enabled"`
	Status  string   `json:"status"`
	Reading *float64 `json:"reading"`
	Unit    string   `json:"unit"`
}

type snapshotDTO struct {
	Unit    string               `json:"unit"`
	Sensors map[string]sensorDTO `json:"sensors"`
}

func toDTO(s sensors.Snapshot) snapshotDTO {
	dto := snapshotDTO{Unit: s.Unit.String(), Sensors: make(map[string]sensorDTO, len(s.Sensors))}
	for _, st := range s.Sensors {
		u := s.UnitFor(st.ID)
		sd := sensorDTO{Enabled: st.Enabled, Status: st.Status().String(), Unit: u.String()}
		if v, ok := st.Reading(); ok {
			r := math.Round(u.Convert(v)*100) / 100
			sd.Reading = &r
		}
		dto.Sensors[st.ID.String()] = sd
	}
	return dto
}

// Command payload format: {"value": ...}
type valueReq[T any] struct {
	Value *T `json:"value"`
}

func (c *Controller) onMessage(_ mqtt.Client, msg mqtt.Message) {
	// topic format: <base>/set/<field>
	t := msg.Topic()
	prefix := c.cfg.BaseTopic + "/set/"
	if !strings.HasPrefix(t, prefix) {
		return
	}
	field := strings.TrimPrefix(t, prefix)

	if err := c.dispatch(field, msg.Payload()); err != nil {
		c.log.Warn("command rejected", "topic", t, "error", err)
	}
}

// dispatch handles "unit", "sensorN_enabled" and "sensorN_unit".
func (c *Controller) dispatch(field string, payload []byte) error {
	if field == "unit" {
		s, err := decodeValueStrict[string](payload)
		if err != nil {
			return err
		}
		u, err := sensors.ParseUnit(s)
		if err != nil {
			return err
		}
		_, err = c.svc.ApplyUnit(u)
		return err
	}

	name, attr, ok := strings.Cut(field, "_")
	if !ok {
		return fmt.Errorf("unknown field %q", field)
	}
	id, err := sensors.ParseSensorID(name)
	if err != nil {
		return err
	}

	switch attr {
	case "enabled":
		v, err := decodeValueStrict[bool](payload)
		if err != nil {
			return err
		}
		changed, err := c.svc.ApplyToggle(sensors.ToggleEvent{
			Sensor:  id,
			Source:  sensors.SourceRemote,
			At:      time.Now(),
			Set:     true,
			Enabled: v,
		})
		if changed {
			c.log.Info("sensor toggled", "sensor", id.String(), "source", "remote", "enabled", v)
		}
		return err

	case "unit":
		s, err := decodeValueStrict[string](payload)
		if err != nil {
			return err
		}
		u := sensors.UnitUnknown
		if s != "" {
			if u, err = sensors.ParseUnit(s); err != nil {
				return err
			}
		}
		_, err = c.svc.ApplySensorUnit(id, u)
		return err

	default:
		return fmt.Errorf("unknown field %q", field)
	}
}

func (c *Controller) topic(suffix string) string {
	return strings.TrimRight(c.cfg.BaseTopic, "/") + "/" + suffix
}

func decodeValueStrict[T any](b []byte) (T, error) {
	var zero T
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var req valueReq[T]
	if err := dec.Decode(&req); err != nil {
		return zero, err
	}
	if req.Value == nil {
		return zero, errors.New("missing field 'value'")
	}
	return *req.Value, nil
}
