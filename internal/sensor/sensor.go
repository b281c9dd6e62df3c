// Package sensor wraps the BME280 environmental sensor behind a small driver contract.
package sensor

import (
	"context"
	"time"
)

// Slave addresses a BME280 answers on, depending on the SDO strap.
const (
	PrimaryAddr   uint16 = 0x76
	SecondaryAddr uint16 = 0x77
)

// Reading is a raw measurement triple.
type Reading struct {
	Temperature float64 // °C
	Humidity    float64 // %RH
	Pressure    float64 // hPa
}

type Mode int

const (
	ModeSleep Mode = iota
	ModeForced
	ModeNormal
)

func (m Mode) String() string {
	switch m {
	case ModeSleep:
		return "sleep"
	case ModeForced:
		return "forced"
	case ModeNormal:
		return "normal"
	default:
		return "unknown"
	}
}

// Profile is the measurement configuration written to the sensor.
// Oversampling and filter values are the multipliers (1, 2, 4, 8, 16); 0 disables.
type Profile struct {
	Mode                  Mode
	TemperatureOversample int
	PressureOversample    int
	HumidityOversample    int
	Filter                int
	Standby               time.Duration
}

// WeatherProfile is the fixed profile the node runs with.
var WeatherProfile = Profile{
	Mode:                  ModeForced,
	TemperatureOversample: 2,
	PressureOversample:    16,
	HumidityOversample:    1,
	Filter:                16,
	Standby:               500 * time.Millisecond,
}

// Driver is the register-level contract the supervisor drives.
type Driver interface {
	// Probe reports whether a BME280 answers at addr and binds to it.
	Probe(addr uint16) bool
	Configure(p Profile) error
	// TriggerForced starts a single-shot conversion.
	TriggerForced() error
	// Read returns the result of the last conversion.
	Read() (Reading, error)
}

// Resetter power-cycles the bus the driver sits on. Waits inside Reset end
// early with ctx.
type Resetter interface {
	Reset(ctx context.Context) error
}

// oversamplingCode maps a multiplier onto the osrs_x register field.
func oversamplingCode(n int) uint8 {
	switch {
	case n <= 0:
		return 0
	case n == 1:
		return 1
	case n == 2:
		return 2
	case n <= 4:
		return 3
	case n <= 8:
		return 4
	default:
		return 5
	}
}

// filterCode maps an IIR coefficient onto the filter field of the config register.
func filterCode(n int) uint8 {
	switch {
	case n < 2:
		return 0
	case n == 2:
		return 1
	case n <= 4:
		return 2
	case n <= 8:
		return 3
	default:
		return 4
	}
}

// BME280 t_sb settings in ascending order of duration.
var standbySteps = []struct {
	code uint8
	d    time.Duration
}{
	{0, 500 * time.Microsecond},
	{6, 10 * time.Millisecond},
	{7, 20 * time.Millisecond},
	{1, 62500 * time.Microsecond},
	{2, 125 * time.Millisecond},
	{3, 250 * time.Millisecond},
	{4, 500 * time.Millisecond},
	{5, 1000 * time.Millisecond},
}

// standbyCode picks the longest t_sb setting that does not exceed d.
func standbyCode(d time.Duration) uint8 {
	code := standbySteps[0].code
	for _, s := range standbySteps {
		if s.d > d {
			break
		}
		code = s.code
	}
	return code
}

// configRegister is the value of the config register (0xF5) for p.
func configRegister(p Profile) byte {
	return standbyCode(p.Standby)<<5 | filterCode(p.Filter)<<2
}
