package format27

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDewpointReference(t *testing.T) {
	assert.InDelta(t, 9.27, Dewpoint(20, 50), 0.02)

	lnh := math.Log(0.5)
	b := 20 * 17.625 / (20 + 243.04)
	assert.InDelta(t, 243.04*(lnh+b)/(17.625-lnh-b), Dewpoint(20, 50), 1e-12)
}

func TestDewpointSaturated(t *testing.T) {
	for _, temp := range []float64{-20, 0, 15.5, 35} {
		assert.InDelta(t, temp, Dewpoint(temp, 100), 1e-9)
	}
}

func TestDewpointClamp(t *testing.T) {
	for _, temp := range []float64{-40, -5, 0, 23.5, 60} {
		assert.Equal(t, Dewpoint(temp, 1), Dewpoint(temp, 0), "floor at %v", temp)
		assert.Equal(t, Dewpoint(temp, 1), Dewpoint(temp, -10), "negative rh at %v", temp)
		assert.Equal(t, Dewpoint(temp, 100), Dewpoint(temp, 150), "ceiling at %v", temp)

		d := Dewpoint(temp, 0)
		assert.False(t, math.IsNaN(d))
		assert.False(t, math.IsInf(d, 0))
	}
}

func TestDewpointBelowTemperature(t *testing.T) {
	for rh := 5.0; rh < 100; rh += 5 {
		assert.Less(t, Dewpoint(21, rh), 21.0, "rh %v", rh)
	}
}
