package format27

import "math"

const (
	magnusC1 = 243.04
	magnusC2 = 17.625
)

// Dewpoint returns the dewpoint in degrees C for temperature t (degrees C)
// and relative humidity rh (0..100), using the Magnus approximation.
// Humidity is clamped to [1%, 100%] so the logarithm stays defined.
func Dewpoint(t, rh float64) float64 {
	h := rh / 100
	if h <= 0.01 {
		h = 0.01
	} else if h > 1.0 {
		h = 1.0
	}

	lnh := math.Log(h)
	b := t * magnusC2 / (t + magnusC1)
	return magnusC1 * (lnh + b) / (magnusC2 - lnh - b)
}
