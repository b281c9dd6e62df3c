package indicator

import (
	"fmt"
	"io"
	"strings"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Display renders frames. Implementations are synchronous sinks.
type Display interface {
	Show(f Frame) error
	Clear() error
}

// Console renders the matrix as text, one block per frame change.
type Console struct {
	w    io.Writer
	last Frame
	seen bool
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Show(f Frame) error {
	if c.seen && f == c.last {
		return nil
	}
	c.last, c.seen = f, true
	_, err := fmt.Fprintf(c.w, "[matrix %s]\n%s\n", f, strings.Join(f.Render(), "\n"))
	return err
}

func (c *Console) Clear() error {
	return c.Show(Blank)
}

// LED maps the matrix onto a single status LED: on whenever any pixel is lit.
type LED struct {
	pin gpio.PinIO
}

func NewLED(pin gpio.PinIO) (*LED, error) {
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("indicator pin %s: %w", pin, err)
	}
	return &LED{pin: pin}, nil
}

// OpenLED looks up a GPIO pin by name (e.g. "GPIO17") and drives it as an LED.
func OpenLED(name string) (*LED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("indicator pin %q not found", name)
	}
	return NewLED(pin)
}

func (l *LED) Show(f Frame) error {
	level := gpio.Low
	if f.Lit() {
		level = gpio.High
	}
	return l.pin.Out(level)
}

func (l *LED) Clear() error {
	return l.pin.Out(gpio.Low)
}

// Nop discards frames.
type Nop struct{}

func (Nop) Show(Frame) error { return nil }
func (Nop) Clear() error     { return nil }
