package devices

import (
	"fmt"
)

// Milli is a fixed point value with 0.001 precision.
type Milli int32

// Float64 returns the value as float64 with 0.001 precision.
func (m Milli) Float64() float64 {
	return float64(m) * .001
}

// String returns the value formatted as a string.
func (m Milli) String() string {
	d := m % 1000
	if d < 0 {
		d = -d
	}
	return fmt.Sprintf("%d.%03d", m/1000, d)
}

// Celsius is a temperature at a precision of 0.001°C, the unit the WTC640's
// focal plane array reports its readings in.
//
// Expected range is [-273150, >1000000]
type Celsius Milli

// Float64 returns the value as float64 with 0.001 precision.
func (c Celsius) Float64() float64 {
	return Milli(c).Float64()
}

// String returns the temperature formatted as a string.
func (c Celsius) String() string {
	return Milli(c).String() + "°C"
}
