package httpctrl

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"reflect"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Agrid-Dev/thermoprobe/internal/ports"
	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

const DefaultStreamInterval = 500 * time.Millisecond

type Server struct {
	svc      ports.SensorService
	srv      *http.Server
	deviceID string
	log      *slog.Logger

	// how often a stream connection checks for a new snapshot
	streamInterval time.Duration
}

// New returns a runnable server.
func New(svc ports.SensorService, addr string, deviceID string) *Server {
	mux := http.NewServeMux()
	s := &Server{
		svc:            svc,
		deviceID:       deviceID,
		log:            slog.Default().With("component", "http"),
		streamInterval: DefaultStreamInterval,
	}

	// Read
	mux.HandleFunc("GET /v1", s.handleGet)
	mux.HandleFunc("GET /v1/stream", s.handleStream)

	// Write
	mux.HandleFunc("POST /v1/unit", s.handlePostUnit)
	mux.HandleFunc("POST /v1/sensors/{id}/enabled", s.handlePostSensorEnabled)
	mux.HandleFunc("POST /v1/sensors/{id}/unit", s.handlePostSensorUnit)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ---- DTOs ----

type sensorDTO struct {
	ID      string   `json:"id"`
	Enabled bool     `json:"enabled"`
	Status  string   `json:"status"`
	Reading *float64 `json:"reading"` // in Unit, null unless status is ok
	Unit    string   `json:"unit"`
}

type snapshotDTO struct {
	DeviceID string      `json:"device_id"`
	Unit     string      `json:"unit"`
	Sensors  []sensorDTO `json:"sensors"`
}

func toDTO(s sensors.Snapshot) snapshotDTO {
	dto := snapshotDTO{Unit: s.Unit.String(), Sensors: make([]sensorDTO, 0, len(s.Sensors))}
	for _, st := range s.Sensors {
		u := s.UnitFor(st.ID)
		sd := sensorDTO{
			ID:      st.ID.String(),
			Enabled: st.Enabled,
			Status:  st.Status().String(),
			Unit:    u.String(),
		}
		if c, ok := st.Reading(); ok {
			v := math.Round(u.Convert(c)*100) / 100
			sd.Reading = &v
		}
		dto.Sensors = append(dto.Sensors, sd)
	}
	return dto
}

// ---- Handlers ----

func (s *Server) handleGet(w http.ResponseWriter, _ *http.Request) {
	s.respondSnapshot(w)
}

func (s *Server) handlePostUnit(w http.ResponseWriter, r *http.Request) {
	// body: {"value": "F"}
	postValue(s, w, r, func(v string) error {
		u, err := sensors.ParseUnit(v)
		if err != nil {
			return err
		}
		_, err = s.svc.ApplyUnit(u)
		return err
	})
}

func (s *Server) handlePostSensorEnabled(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sensorParam(w, r)
	if !ok {
		return
	}
	// body: {"value": false}
	postValue(s, w, r, func(v bool) error {
		changed, err := s.svc.ApplyToggle(sensors.ToggleEvent{
			Sensor:  id,
			Source:  sensors.SourceRemote,
			At:      time.Now(),
			Set:     true,
			Enabled: v,
		})
		if changed {
			s.log.Info("sensor toggled", "sensor", id.String(), "source", "remote", "enabled", v)
		}
		return err
	})
}

func (s *Server) handlePostSensorUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sensorParam(w, r)
	if !ok {
		return
	}
	// body: {"value": "F"}, or "" to follow the device unit
	postValue(s, w, r, func(v string) error {
		u := sensors.UnitUnknown
		if v != "" {
			var err error
			if u, err = sensors.ParseUnit(v); err != nil {
				return err
			}
		}
		_, err := s.svc.ApplySensorUnit(id, u)
		return err
	})
}

// handleStream pushes the snapshot on connect and again whenever it changes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Error("websocket accept failed", "error", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "unexpected close")

	ctx := c.CloseRead(r.Context())
	err = s.stream(ctx, c)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		c.Close(websocket.StatusNormalClosure, "")
	case websocket.CloseStatus(err) != -1:
	default:
		s.log.Debug("stream closed", "error", err)
	}
}

func (s *Server) stream(ctx context.Context, c *websocket.Conn) error {
	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	var last snapshotDTO
	first := true
	for {
		dto := s.snapshot()
		if first || !reflect.DeepEqual(dto, last) {
			if err := wsjson.Write(ctx, c, dto); err != nil {
				return err
			}
			last, first = dto, false
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ---- generic helpers ----

func (s *Server) sensorParam(w http.ResponseWriter, r *http.Request) (sensors.SensorID, bool) {
	id, err := sensors.ParseSensorID(r.PathValue("id"))
	if err != nil {
		writeErr(w, http.StatusNotFound, err.Error())
		return sensors.SensorUnknown, false
	}
	return id, true
}

func (s *Server) snapshot() snapshotDTO {
	dto := toDTO(s.svc.Get())
	dto.DeviceID = s.deviceID
	return dto
}

func (s *Server) respondSnapshot(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func postValue[T any](s *Server, w http.ResponseWriter, r *http.Request, apply func(T) error) {
	dec := json.NewDecoder(r.Body)
	var req struct {
		Value *T `json:"value"`
	}
	if err := dec.Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Value == nil {
		writeErr(w, http.StatusBadRequest, "missing field 'value'")
		return
	}

	if err := apply(*req.Value); err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, sensors.ErrUnknownSensor) {
			code = http.StatusNotFound
		}
		writeErr(w, code, err.Error())
		return
	}

	s.respondSnapshot(w)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
