// Package display renders sensor rows on a small text display.
package display

import (
	"fmt"
	"os"

	"github.com/Agrid-Dev/thermoprobe/internal/ports"
)

type Config struct {
	Driver     string // ssd1306 | console | none
	Bus        string // I2C bus name, "" for the default
	Width      int
	Height     int
	LineWidth  int
	LineHeight int
	Rows       int
}

// Open returns the DisplaySink for cfg.Driver. Failing to open real hardware is fatal to the caller.
func Open(cfg Config) (ports.DisplaySink, error) {
	switch cfg.Driver {
	case "ssd1306":
		return OpenSSD1306(cfg.Bus, cfg.Width, cfg.Height)
	case "console":
		return NewConsole(os.Stdout, cfg.Rows, cfg.LineHeight), nil
	case "", "none":
		return Discard{}, nil
	default:
		return nil, fmt.Errorf("display: unknown driver %q", cfg.Driver)
	}
}
