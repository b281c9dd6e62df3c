package supervisor

import (
	"fmt"
	"math"

	"vejrstation-node/internal/sensor"
)

// Admissible ranges of the BME280 channels.
const (
	TempMin     = -40.0
	TempMax     = 85.0
	PressureMin = 300.0
	PressureMax = 1100.0
	HumidityMin = 0.0
	HumidityMax = 100.0
)

// Alarm thresholds. They describe the environment, not sensor health.
const (
	TempThreshold     = 50.0
	PressureThreshold = 100.0
)

// Validate returns nil if every channel is finite and within its closed range.
// The error names the first offending channel.
func Validate(r sensor.Reading) error {
	if err := checkChannel("temperature", r.Temperature, TempMin, TempMax); err != nil {
		return err
	}
	if err := checkChannel("pressure", r.Pressure, PressureMin, PressureMax); err != nil {
		return err
	}
	return checkChannel("humidity", r.Humidity, HumidityMin, HumidityMax)
}

func checkChannel(name string, v, lo, hi float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s not finite: %v", name, v)
	}
	if v < lo || v > hi {
		return fmt.Errorf("%s out of range: %.2f (must be %.0f..%.0f)", name, v, lo, hi)
	}
	return nil
}

// Alarming reports whether a reading crosses an alarm threshold.
func Alarming(r sensor.Reading) bool {
	return r.Temperature > TempThreshold || r.Pressure <= PressureThreshold
}

// within reports whether every channel of a lies within eps of b.
func within(a, b sensor.Reading, eps float64) bool {
	return math.Abs(a.Temperature-b.Temperature) < eps &&
		math.Abs(a.Humidity-b.Humidity) < eps &&
		math.Abs(a.Pressure-b.Pressure) < eps
}
