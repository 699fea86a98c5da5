// Package units holds physical constants and conversions to SI.
package units

// Gravity is standard gravitational acceleration in m/s^2.
const Gravity = 9.80665

const (
	MPH    = 0.44704             // m/s per mile per hour
	LBF    = 4.4482216152605     // N per pound-force
	LB     = 0.45359237          // kg per pound-mass
	Ton    = 907.18474           // kg per short ton
	KWh    = 3.6e6               // J per kilowatt-hour
	Mile   = 1609.344            // m per mile
	Degree = 0.017453292519943295 // rad per degree
)

// CToK converts degrees Celsius to kelvin.
func CToK(c float64) float64 { return c + 273.15 }
