// Package units converts publisher temperature readings to the storage
// scale. Temperatures persist in degrees Fahrenheit.
package units

// CToF converts a Celsius reading to Fahrenheit.
func CToF(c float64) float64 {
	return c*9.0/5.0 + 32.0
}
