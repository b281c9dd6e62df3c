package sensor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"

	"vejrstation-node/internal/utils"
)

var errNotBound = errors.New("bme280: no device bound, probe first")

// regConfig holds t_sb and the IIR filter.
const regConfig = 0xF5

// BME280 drives the sensor through periph's bmxx80 device driver.
type BME280 struct {
	bus    i2c.Bus
	logger *slog.Logger

	mu      sync.Mutex
	dev     *bmxx80.Dev
	addr    uint16
	profile Profile
	env     physic.Env
	fresh   bool
}

func NewBME280(bus i2c.Bus, logger *slog.Logger) *BME280 {
	if logger == nil {
		logger = slog.Default()
	}
	return &BME280{bus: bus, logger: logger, profile: WeatherProfile}
}

func (s *BME280) Probe(addr uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.halt()
	dev, err := bmxx80.NewI2C(s.bus, addr, opts(s.profile))
	if err != nil {
		s.logger.Debug("bme280: probe failed", "addr", utils.Addr(addr), "error", err)
		return false
	}
	s.dev, s.addr = dev, addr
	return true
}

// Configure rebinds the device with p. bmxx80 writes the oversampling
// registers on bind but leaves the filter off unless it runs the chip in
// normal mode, so the config register is written here while the chip sleeps.
// Forced conversions never touch it again.
func (s *BME280) Configure(p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dev == nil {
		return errNotBound
	}
	if p.Mode != ModeForced {
		return fmt.Errorf("bme280: mode %s not supported, only forced", p.Mode)
	}
	o := opts(p)
	s.halt()
	dev, err := bmxx80.NewI2C(s.bus, s.addr, o)
	if err != nil {
		return fmt.Errorf("bme280 configure at %s: %w", utils.Addr(s.addr), err)
	}
	s.dev, s.profile = dev, p

	cfg := configRegister(p)
	d := &i2c.Dev{Bus: s.bus, Addr: s.addr}
	if err := d.Tx([]byte{regConfig, cfg}, nil); err != nil {
		return fmt.Errorf("bme280 config register at %s: %w", utils.Addr(s.addr), err)
	}
	s.logger.Debug("bme280: configured",
		"addr", utils.Addr(s.addr),
		"mode", p.Mode.String(),
		"osrs_t", p.TemperatureOversample,
		"osrs_p", p.PressureOversample,
		"osrs_h", p.HumidityOversample,
		"filter", p.Filter,
		"standby", p.Standby,
		"config", fmt.Sprintf("%#02x", cfg),
	)
	return nil
}

func (s *BME280) TriggerForced() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dev == nil {
		return errNotBound
	}
	s.fresh = false
	if err := s.dev.Sense(&s.env); err != nil {
		return fmt.Errorf("bme280 sense: %w", err)
	}
	s.fresh = true
	return nil
}

func (s *BME280) Read() (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dev == nil {
		return Reading{}, errNotBound
	}
	if !s.fresh {
		return Reading{}, errors.New("bme280: no conversion pending")
	}
	s.fresh = false
	return FromEnv(s.env), nil
}

func (s *BME280) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halt()
	return nil
}

func (s *BME280) halt() {
	if s.dev == nil {
		return
	}
	if err := s.dev.Halt(); err != nil {
		s.logger.Debug("bme280: halt failed", "error", err)
	}
	s.dev = nil
}

// FromEnv converts periph fixed-point units into °C, %RH and hPa.
func FromEnv(env physic.Env) Reading {
	return Reading{
		Temperature: env.Temperature.Celsius(),
		Humidity:    float64(env.Humidity) / float64(physic.PercentRH),
		Pressure:    float64(env.Pressure) / float64(100*physic.Pascal),
	}
}

func opts(p Profile) *bmxx80.Opts {
	return &bmxx80.Opts{
		Temperature: oversampling(p.TemperatureOversample),
		Pressure:    oversampling(p.PressureOversample),
		Humidity:    oversampling(p.HumidityOversample),
		Filter:      filter(p.Filter),
	}
}

func oversampling(n int) bmxx80.Oversampling {
	return bmxx80.Oversampling(oversamplingCode(n))
}

func filter(n int) bmxx80.Filter {
	return bmxx80.Filter(filterCode(n))
}
