package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Agrid-Dev/thermoprobe/internal/ports"
	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

const (
	DefaultTimeout = 5 * time.Second
	maxBody        = 64 << 10
)

type Config struct {
	URL     string
	Timeout time.Duration
}

// Client posts readings to the collector. It implements ports.ReportSink.
type Client struct {
	url     string
	timeout time.Duration
	http    *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrNoURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{url: cfg.URL, timeout: cfg.Timeout, http: &http.Client{}}, nil
}

// Send performs one POST bounded by the configured timeout.
func (c *Client) Send(ctx context.Context, readings []ports.Reading) (ports.Feedback, error) {
	body, err := json.Marshal(payload(readings))
	if err != nil {
		return ports.Feedback{}, fmt.Errorf("encode report: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return ports.Feedback{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Report-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return ports.Feedback{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ports.Feedback{}, fmt.Errorf("%w: collector answered %s", ErrTransport, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return ports.Feedback{}, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	return ParseFeedback(data, len(readings))
}

// payload is the request body: {"sensor1Temperature": 23.4, "sensor2Temperature": null}.
func payload(readings []ports.Reading) map[string]*float64 {
	m := make(map[string]*float64, len(readings))
	for _, r := range readings {
		m[Key(r.Sensor)] = r.Value
	}
	return m
}

// Key is the JSON field a sensor is reported under.
func Key(id sensors.SensorID) string {
	return "sensor" + strconv.Itoa(int(id)) + "Temperature"
}

// ParseFeedback decodes ["F", true, false]: a unit followed by one
// toggle-requested flag per reported sensor. Every flag must be a JSON bool.
func ParseFeedback(data []byte, sensorsReported int) (ports.Feedback, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return ports.Feedback{}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if len(raw) != sensorsReported+1 {
		return ports.Feedback{}, fmt.Errorf("%w: expected %d elements, got %d", ErrProtocol, sensorsReported+1, len(raw))
	}

	var unitStr string
	if err := json.Unmarshal(raw[0], &unitStr); err != nil {
		return ports.Feedback{}, fmt.Errorf("%w: unit: %v", ErrProtocol, err)
	}
	unit, err := sensors.ParseUnit(unitStr)
	if err != nil {
		return ports.Feedback{}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	fb := ports.Feedback{Unit: unit, ToggleRequested: make([]bool, sensorsReported)}
	for i, r := range raw[1:] {
		var flag *bool
		if err := json.Unmarshal(r, &flag); err != nil {
			return ports.Feedback{}, fmt.Errorf("%w: element %d: %v", ErrProtocol, i+1, err)
		}
		if flag == nil {
			return ports.Feedback{}, fmt.Errorf("%w: element %d is null", ErrProtocol, i+1)
		}
		fb.ToggleRequested[i] = *flag
	}
	return fb, nil
}
