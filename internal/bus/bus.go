// Package bus owns the I²C bus the sensor hangs off.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"vejrstation-node/internal/clock"
)

const (
	Speed       = 100 * physic.KiloHertz
	ResetSettle = 100 * time.Millisecond
)

// Opener opens a bus by name.
type Opener func(name string) (i2c.BusCloser, error)

// I2C is a single-master bus handle that can be torn down and re-acquired.
// It implements i2c.Bus, so devices bound to it keep working across Reset.
type I2C struct {
	name    string
	open    Opener
	sleeper clock.Sleeper
	logger  *slog.Logger

	mu  sync.Mutex
	bus i2c.BusCloser
}

// Open initializes the host drivers and opens the named bus ("" for the first one).
func Open(name string, logger *slog.Logger) (*I2C, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	return New(name, i2creg.Open, clock.Real{}, logger)
}

func New(name string, open Opener, sleeper clock.Sleeper, logger *slog.Logger) (*I2C, error) {
	if sleeper == nil {
		sleeper = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &I2C{name: name, open: open, sleeper: sleeper, logger: logger}
	if err := b.acquire(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *I2C) acquire() error {
	bc, err := b.open(b.name)
	if err != nil {
		return fmt.Errorf("i2c open %q: %w", b.name, err)
	}
	if err := bc.SetSpeed(Speed); err != nil {
		// sysfs buses fix the clock in the device tree
		b.logger.Debug("i2c: bus speed not settable", "bus", bc.String(), "error", err)
	}
	b.bus = bc
	b.logger.Info("i2c: bus opened", "bus", bc.String(), "speed", Speed.String())
	return nil
}

// Reset closes the bus, lets the lines settle and opens it again. If ctx ends
// during the settle the bus stays closed.
func (b *I2C) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bus != nil {
		if err := b.bus.Close(); err != nil {
			b.logger.Warn("i2c: close before reset failed", "error", err)
		}
		b.bus = nil
	}
	if err := b.sleeper.Sleep(ctx, ResetSettle); err != nil {
		return err
	}
	if err := b.acquire(); err != nil {
		return fmt.Errorf("i2c reset: %w", err)
	}
	return nil
}

func (b *I2C) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bus == nil {
		return fmt.Errorf("i2c %q: bus closed", b.name)
	}
	return b.bus.Tx(addr, w, r)
}

func (b *I2C) SetSpeed(f physic.Frequency) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bus == nil {
		return fmt.Errorf("i2c %q: bus closed", b.name)
	}
	return b.bus.SetSpeed(f)
}

func (b *I2C) String() string {
	if b.name == "" {
		return "i2c(default)"
	}
	return "i2c(" + b.name + ")"
}

func (b *I2C) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bus == nil {
		return nil
	}
	err := b.bus.Close()
	b.bus = nil
	return err
}
