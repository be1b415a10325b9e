package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithDefaults(t *testing.T) {
	d := DeviceInfo{RadioType: "SX1276"}.WithDefaults()
	assert.Equal(t, "Model 4916", d.NodeType)
	assert.Equal(t, "Model 4916", d.PlatformType)
	assert.Equal(t, "SX1276", d.RadioType)
	assert.Equal(t, "MultiGas sensor", d.ApplicationName)

	assert.Equal(t, DefaultDeviceInfo(), DeviceInfo{}.WithDefaults())
}
