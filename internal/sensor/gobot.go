package sensor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gobot.io/x/gobot/v2/drivers/i2c"
	"gobot.io/x/gobot/v2/platforms/raspi"

	"vejrstation-node/internal/utils"
)

// GobotAdaptor is the platform side of the gobot backend.
type GobotAdaptor interface {
	i2c.Connector
	Connect() error
	Finalize() error
}

// GobotDevice is the subset of gobot's BME280 driver the backend uses.
type GobotDevice interface {
	Start() error
	Halt() error
	Temperature() (float32, error)
	Pressure() (float32, error)
	Humidity() (float32, error)
}

// GobotDeviceFactory binds a device at addr on the numbered bus with the
// oversampling and filter settings of p.
type GobotDeviceFactory func(c i2c.Connector, bus int, addr uint16, p Profile) GobotDevice

func newGobotBME280(c i2c.Connector, bus int, addr uint16, p Profile) GobotDevice {
	return i2c.NewBME280Driver(c, gobotOptions(bus, addr, p)...)
}

func gobotOptions(bus int, addr uint16, p Profile) []func(i2c.Config) {
	return []func(i2c.Config){
		i2c.WithBus(bus),
		i2c.WithAddress(int(addr)),
		i2c.WithBME280TemperatureOversampling(i2c.BMP280TemperatureOversampling(oversamplingCode(p.TemperatureOversample))),
		i2c.WithBME280PressureOversampling(i2c.BMP280PressureOversampling(oversamplingCode(p.PressureOversample))),
		i2c.WithBME280HumidityOversampling(i2c.BME280HumidityOversampling(oversamplingCode(p.HumidityOversample))),
		i2c.WithBME280IIRFilter(i2c.BMP280IIRFilter(filterCode(p.Filter))),
	}
}

// GobotBME280 drives the sensor through gobot's Raspberry Pi adaptor.
// Configure rebinds the driver with the profile's oversampling and filter.
// The gobot driver always samples in normal mode with its shortest standby,
// so a forced conversion here is a read of the latest result.
// Reset finalizes and reconnects the adaptor.
type GobotBME280 struct {
	adaptor GobotAdaptor
	bind    GobotDeviceFactory
	bus     int
	logger  *slog.Logger

	dev     GobotDevice
	addr    uint16
	profile Profile
	last    Reading
	fresh   bool
}

// OpenGobot connects a Raspberry Pi adaptor and returns a backend on bus.
func OpenGobot(bus int, logger *slog.Logger) (*GobotBME280, error) {
	return NewGobot(raspi.NewAdaptor(), newGobotBME280, bus, logger)
}

func NewGobot(adaptor GobotAdaptor, bind GobotDeviceFactory, bus int, logger *slog.Logger) (*GobotBME280, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := adaptor.Connect(); err != nil {
		return nil, fmt.Errorf("gobot adaptor connect: %w", err)
	}
	return &GobotBME280{adaptor: adaptor, bind: bind, bus: bus, logger: logger, profile: WeatherProfile}, nil
}

func (g *GobotBME280) Probe(addr uint16) bool {
	g.halt()
	dev := g.bind(g.adaptor, g.bus, addr, g.profile)
	if err := dev.Start(); err != nil {
		g.logger.Debug("gobot bme280: probe failed", "addr", utils.Addr(addr), "bus", g.bus, "error", err)
		return false
	}
	g.dev, g.addr = dev, addr
	return true
}

func (g *GobotBME280) Configure(p Profile) error {
	if g.dev == nil {
		return errNotBound
	}
	g.halt()
	dev := g.bind(g.adaptor, g.bus, g.addr, p)
	if err := dev.Start(); err != nil {
		return fmt.Errorf("gobot bme280 configure at %s: %w", utils.Addr(g.addr), err)
	}
	g.dev, g.profile = dev, p
	g.logger.Debug("gobot bme280: configured",
		"addr", utils.Addr(g.addr),
		"osrs_t", p.TemperatureOversample,
		"osrs_p", p.PressureOversample,
		"osrs_h", p.HumidityOversample,
		"filter", p.Filter,
	)
	return nil
}

func (g *GobotBME280) TriggerForced() error {
	if g.dev == nil {
		return errNotBound
	}
	g.fresh = false
	t, err := g.dev.Temperature()
	if err != nil {
		return fmt.Errorf("gobot bme280 temperature: %w", err)
	}
	p, err := g.dev.Pressure()
	if err != nil {
		return fmt.Errorf("gobot bme280 pressure: %w", err)
	}
	h, err := g.dev.Humidity()
	if err != nil {
		return fmt.Errorf("gobot bme280 humidity: %w", err)
	}
	g.last = Reading{
		Temperature: float64(t),
		Humidity:    float64(h),
		Pressure:    float64(p) / 100, // Pa
	}
	g.fresh = true
	return nil
}

func (g *GobotBME280) Read() (Reading, error) {
	if g.dev == nil {
		return Reading{}, errNotBound
	}
	if !g.fresh {
		return Reading{}, errors.New("gobot bme280: no conversion pending")
	}
	g.fresh = false
	return g.last, nil
}

// Reset drops the device and cycles the adaptor's bus connections.
func (g *GobotBME280) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.halt()
	if err := g.adaptor.Finalize(); err != nil {
		g.logger.Warn("gobot: finalize before reset failed", "error", err)
	}
	if err := g.adaptor.Connect(); err != nil {
		return fmt.Errorf("gobot reset: %w", err)
	}
	return nil
}

func (g *GobotBME280) Close() error {
	g.halt()
	return g.adaptor.Finalize()
}

func (g *GobotBME280) halt() {
	if g.dev == nil {
		return
	}
	if err := g.dev.Halt(); err != nil {
		g.logger.Debug("gobot bme280: halt failed", "error", err)
	}
	g.dev = nil
}
