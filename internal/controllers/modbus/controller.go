package modbusctrl

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	mbserver "github.com/tbrandon/mbserver"

	"github.com/Agrid-Dev/thermoprobe/internal/ports"
	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

// Register map. Sensor N lives at offset N-1 in each block.
//
//	coils             0..3   enabled (writable)
//	input registers   0..3   temperature, Celsius x100, NoValue when absent
//	input registers  16..19  status code (sensors.Status)
//	holding register  0      device unit (sensors.Unit, writable)
const (
	StatusBase   = 16
	UnitRegister = 0

	// NoValue is reported for a sensor without a usable reading.
	NoValue uint16 = 0x8000
)

// Config for the Modbus controller.
type Config struct {
	DeviceID string
	Addr     string
	UnitID   byte // UnitID (Modbus slave/unit ID). Use an integer 1..247.
}

type Controller struct {
	svc ports.SensorService
	cfg Config
	log *slog.Logger

	serv *mbserver.Server
}

func New(svc ports.SensorService, cfg Config) (*Controller, error) {
	if cfg.UnitID == 0 {
		return nil, errors.New("modbus: UnitID is required (non-zero)")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:1502"
	}
	return &Controller{svc: svc, cfg: cfg, log: slog.Default().With("component", "modbus")}, nil
}

// Run starts the Modbus server and registers handlers that apply writes immediately and
// serve reads directly from the sensor service. It blocks until ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	serv := mbserver.NewServer()
	c.serv = serv

	// Register handlers BEFORE starting the TCP listener to avoid races inside mbserver
	// between handler registration and the server's goroutines.
	serv.RegisterFunctionHandler(1, c.readCoils)
	serv.RegisterFunctionHandler(3, c.readHoldingRegisters)
	serv.RegisterFunctionHandler(4, c.readInputRegisters)
	serv.RegisterFunctionHandler(5, c.writeSingleCoil)
	serv.RegisterFunctionHandler(6, c.writeSingleRegister)
	serv.RegisterFunctionHandler(16, c.writeMultipleRegisters)

	if err := serv.ListenTCP(c.cfg.Addr); err != nil {
		return fmt.Errorf("mbserver listen tcp %s: %w", c.cfg.Addr, err)
	}

	<-ctx.Done()
	serv.Close()
	return ctx.Err()
}

// readCoils (function 1) packs the enabled flag of each addressed sensor.
func (c *Controller) readCoils(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	start, qty, exc := readRange(frame.GetData(), 2000)
	if exc != nil {
		return []byte{}, exc
	}
	snap := c.svc.Get()

	byteCount := (qty + 7) / 8
	resp := make([]byte, 1+byteCount)
	resp[0] = byte(byteCount)
	for i := 0; i < qty; i++ {
		st, ok := snap.Sensor(sensorAt(start + i))
		if !ok {
			return []byte{}, &mbserver.IllegalDataAddress
		}
		if st.Enabled {
			resp[1+i/8] |= 1 << (i % 8)
		}
	}
	return resp, &mbserver.Success
}

// readHoldingRegisters (function 3) exposes the device unit.
func (c *Controller) readHoldingRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	start, qty, exc := readRange(frame.GetData(), 125)
	if exc != nil {
		return []byte{}, exc
	}
	if start != UnitRegister || qty != 1 {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	return registers(uint16(c.svc.Get().Unit)), &mbserver.Success
}

// readInputRegisters (function 4) exposes temperatures and status codes.
func (c *Controller) readInputRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	start, qty, exc := readRange(frame.GetData(), 125)
	if exc != nil {
		return []byte{}, exc
	}
	snap := c.svc.Get()

	regs := make([]uint16, 0, qty)
	for i := 0; i < qty; i++ {
		addr := start + i
		switch {
		case addr < sensors.MaxSensors:
			st, ok := snap.Sensor(sensorAt(addr))
			if !ok {
				return []byte{}, &mbserver.IllegalDataAddress
			}
			v, ok := st.Reading()
			if !ok {
				regs = append(regs, NoValue)
				continue
			}
			regs = append(regs, encodeTemp(v))
		case addr >= StatusBase && addr < StatusBase+sensors.MaxSensors:
			st, ok := snap.Sensor(sensorAt(addr - StatusBase))
			if !ok {
				return []byte{}, &mbserver.IllegalDataAddress
			}
			regs = append(regs, uint16(st.Status()))
		default:
			return []byte{}, &mbserver.IllegalDataAddress
		}
	}
	return registers(regs...), &mbserver.Success
}

// writeSingleCoil (function 5) requests a sensor's enabled state.
func (c *Controller) writeSingleCoil(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	addr := int(binary.BigEndian.Uint16(data[0:2]))
	value := binary.BigEndian.Uint16(data[2:4])

	var enabled bool
	switch value {
	case 0x0000:
		enabled = false
	case 0xFF00:
		enabled = true
	default:
		return []byte{}, &mbserver.IllegalDataValue
	}

	id := sensorAt(addr)
	changed, err := c.svc.ApplyToggle(sensors.ToggleEvent{
		Sensor:  id,
		Source:  sensors.SourceRemote,
		At:      time.Now(),
		Set:     true,
		Enabled: enabled,
	})
	if err != nil {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	if changed {
		c.log.Info("sensor toggled", "sensor", id.String(), "source", "remote", "enabled", enabled)
	}

	// echo request (address + value)
	resp := make([]byte, 4)
	copy(resp, data[0:4])
	return resp, &mbserver.Success
}

// writeSingleRegister (function 6)
func (c *Controller) writeSingleRegister(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])

	if exc := c.writeRegister(addr, value); exc != nil {
		return []byte{}, exc
	}

	resp := make([]byte, 4)
	copy(resp, data[0:4])
	return resp, &mbserver.Success
}

// writeMultipleRegisters (function 16)
func (c *Controller) writeMultipleRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	d := frame.GetData()
	if len(d) < 5 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	start := binary.BigEndian.Uint16(d[0:2])
	quantity := binary.BigEndian.Uint16(d[2:4])
	byteCount := int(d[4])
	if byteCount != int(quantity)*2 || len(d) < 5+byteCount {
		return []byte{}, &mbserver.IllegalDataValue
	}
	for i := 0; i < int(quantity); i++ {
		val := binary.BigEndian.Uint16(d[5+i*2 : 5+i*2+2])
		if exc := c.writeRegister(start+uint16(i), val); exc != nil {
			return []byte{}, exc
		}
	}

	resp := make([]byte, 4)
	binary.BigEndian.PutUint16(resp[0:2], start)
	binary.BigEndian.PutUint16(resp[2:4], quantity)
	return resp, &mbserver.Success
}

func (c *Controller) writeRegister(addr, value uint16) *mbserver.Exception {
	if addr != UnitRegister {
		return &mbserver.IllegalDataAddress
	}
	u := sensors.Unit(value)
	if !u.Valid() {
		return &mbserver.IllegalDataValue
	}
	if _, err := c.svc.ApplyUnit(u); err != nil {
		return &mbserver.IllegalDataValue
	}
	return nil
}

func readRange(data []byte, maxQty int) (start, qty int, exc *mbserver.Exception) {
	if len(data) < 4 {
		return 0, 0, &mbserver.IllegalDataValue
	}
	start = int(binary.BigEndian.Uint16(data[0:2]))
	qty = int(binary.BigEndian.Uint16(data[2:4]))
	if qty == 0 || qty > maxQty {
		return 0, 0, &mbserver.IllegalDataValue
	}
	return start, qty, nil
}

// registers builds a read response: byte count + big-endian registers.
func registers(regs ...uint16) []byte {
	resp := make([]byte, 1+len(regs)*2)
	resp[0] = byte(len(regs) * 2)
	for i, r := range regs {
		binary.BigEndian.PutUint16(resp[1+i*2:], r)
	}
	return resp
}

func sensorAt(offset int) sensors.SensorID {
	return sensors.SensorID(offset + 1)
}

const TemperatureScale int = 100

func encodeTemp(v float64) uint16 {
	// keep clear of NoValue (-32768)
	r := min(max(int(math.Round(v*float64(TemperatureScale))), math.MinInt16+1), math.MaxInt16)
	return uint16(int16(r))
}
