package display

import (
	"fmt"
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"
)

type frameDevice interface {
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Halt() error
}

// face is basicfont 7x13 set one pixel tighter so 21 columns fit on 128 pixels.
var face = func() *basicfont.Face {
	f := *basicfont.Face7x13
	f.Advance = 6
	return &f
}()

// OLED is a DisplaySink on an SSD1306 panel. It keeps a frame buffer, clears
// only the character cells a write covers and pushes the frame to the panel.
type OLED struct {
	dev   frameDevice
	bus   i2c.BusCloser
	frame *image1bit.VerticalLSB
}

// OpenSSD1306 opens the panel on the named I2C bus ("" for the first one).
func OpenSSD1306(busName string, width, height int) (*OLED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}

	opts := ssd1306.DefaultOpts
	opts.W = width
	opts.H = height
	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	return newOLED(dev, bus, width, height), nil
}

func newOLED(dev frameDevice, bus i2c.BusCloser, width, height int) *OLED {
	return &OLED{
		dev:   dev,
		bus:   bus,
		frame: image1bit.NewVerticalLSB(image.Rect(0, 0, width, height)),
	}
}

func (o *OLED) DrawString(x, y int, text string) error {
	cell := image.Rect(x, y, x+len(text)*face.Advance, y+face.Height).Intersect(o.frame.Bounds())
	draw.Draw(o.frame, cell, &image.Uniform{C: image1bit.Off}, image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  o.frame,
		Src:  &image.Uniform{C: image1bit.On},
		Face: face,
		Dot:  fixed.P(x, y+face.Ascent),
	}
	drawer.DrawString(text)
	return o.dev.Draw(o.frame.Bounds(), o.frame, image.Point{})
}

func (o *OLED) Clear() error {
	draw.Draw(o.frame, o.frame.Bounds(), &image.Uniform{C: image1bit.Off}, image.Point{}, draw.Src)
	return o.dev.Draw(o.frame.Bounds(), o.frame, image.Point{})
}

func (o *OLED) Close() error {
	err := o.dev.Halt()
	if o.bus != nil {
		if cerr := o.bus.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
