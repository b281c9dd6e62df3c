package types

// Sample is one accepted measurement, produced once per cycle.
type Sample struct {
	Temperature float64 // °C
	Humidity    float64 // %RH
	Pressure    float64 // hPa
	WallCycle   int
}
