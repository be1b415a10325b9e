package decoder

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/model4916_decoder/pkg/format27"
)

func TestDecodeHex(t *testing.T) {
	b, outcome, err := DecodeHex("27 0B 4C CD 05 17 80 62 F3 80", 1)
	require.NoError(t, err)
	assert.Equal(t, format27.OutcomeOK, outcome)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.EqualValues(t, 5, m["boot"])
	assert.Equal(t, "none", m["error"])
	assert.InDelta(t, 23.5, m["tempC"], 1e-9)

	_, outcome, err = DecodeHex("2700", 2)
	assert.True(t, errors.Is(err, format27.ErrPortNotApplicable))
	assert.Equal(t, format27.OutcomePortNotApplicable, outcome)

	_, outcome, err = DecodeHex("2701", 1)
	assert.True(t, errors.Is(err, format27.ErrTruncatedInput))
	assert.Equal(t, format27.OutcomeTruncatedInput, outcome)

	_, outcome, err = DecodeHex("zz", 1)
	assert.Error(t, err)
	assert.Equal(t, OutcomeInvalidEnvelope, outcome)
}
