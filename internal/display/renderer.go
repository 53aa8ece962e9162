package display

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Agrid-Dev/thermoprobe/internal/ports"
	"github.com/Agrid-Dev/thermoprobe/internal/sensors"
)

const (
	// DefaultLineWidth fits the longest line, "Sensor N: Unplugged".
	DefaultLineWidth  = 19
	DefaultLineHeight = 16
)

type Layout struct {
	LineWidth  int // characters every line is padded to
	LineHeight int // pixels between two rows
}

// lineState is what a rendered line depends on.
type lineState struct {
	status  sensors.Status
	reading float64
	unit    sensors.Unit
}

// Renderer projects snapshots onto a DisplaySink, one row per sensor.
// It keeps a shadow of what each row currently shows and only redraws rows
// whose content changed.
type Renderer struct {
	sink   ports.DisplaySink
	layout Layout
	log    *slog.Logger

	shadow  map[sensors.SensorID]lineState
	lastLen map[sensors.SensorID]int
}

func NewRenderer(sink ports.DisplaySink, layout Layout) *Renderer {
	if layout.LineWidth <= 0 {
		layout.LineWidth = DefaultLineWidth
	}
	if layout.LineHeight <= 0 {
		layout.LineHeight = DefaultLineHeight
	}
	return &Renderer{
		sink:    sink,
		layout:  layout,
		log:     slog.Default().With("component", "renderer"),
		shadow:  make(map[sensors.SensorID]lineState),
		lastLen: make(map[sensors.SensorID]int),
	}
}

// Render redraws the rows that differ from the shadow. It returns the number of rows written.
func (r *Renderer) Render(snap sensors.Snapshot) (int, error) {
	var errs []error
	drawn := 0
	for row, st := range snap.Sensors {
		unit := snap.UnitFor(st.ID)
		cur := stateOf(st, unit)
		if prev, ok := r.shadow[st.ID]; ok && prev == cur {
			continue
		}

		text := r.pad(st.ID, FormatLine(st, unit))
		if err := r.sink.DrawString(0, row*r.layout.LineHeight, text); err != nil {
			r.log.Error("display write failed", "sensor", st.ID.String(), "error", err)
			errs = append(errs, fmt.Errorf("draw %s: %w", st.ID, err))
			continue
		}
		r.shadow[st.ID] = cur
		r.lastLen[st.ID] = len(text)
		drawn++
	}
	return drawn, errors.Join(errs...)
}

// Clear blanks the sink and forgets the shadow so the next Render redraws everything.
func (r *Renderer) Clear() error {
	clear(r.shadow)
	clear(r.lastLen)
	return r.sink.Clear()
}

// pad right-fills text so it covers whatever the row showed before.
func (r *Renderer) pad(id sensors.SensorID, text string) string {
	width := max(r.layout.LineWidth, r.lastLen[id])
	if len(text) >= width {
		return text
	}
	return text + strings.Repeat(" ", width-len(text))
}

func stateOf(st sensors.SensorState, unit sensors.Unit) lineState {
	ls := lineState{status: st.Status()}
	if v, ok := st.Reading(); ok {
		ls.reading = v
		ls.unit = unit
	}
	return ls
}

// FormatLine is the unpadded text of a sensor row.
func FormatLine(st sensors.SensorState, unit sensors.Unit) string {
	label := st.ID.Label()
	switch st.Status() {
	case sensors.StatusDisabled:
		return label + ": OFF"
	case sensors.StatusPending:
		return label + ": --"
	case sensors.StatusOk:
		v, ok := st.Reading()
		if !ok {
			return label + ": --"
		}
		return fmt.Sprintf("%s: %.2f %s", label, unit.Convert(v), unit)
	default:
		return label + ": Unplugged"
	}
}
