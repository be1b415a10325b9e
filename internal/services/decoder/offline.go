package decoder

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/LeonardoBeccarini/model4916_decoder/pkg/format27"
)

// DecodeHex decodes a hex payload captured from a device and returns the
// record as indented JSON together with the outcome label.
func DecodeHex(input string, port int) ([]byte, string, error) {
	payload, err := format27.ParseHex(input)
	if err != nil {
		return nil, OutcomeInvalidEnvelope, err
	}
	rec, err := format27.Decode(payload, port)
	outcome := format27.Outcome(err)
	if err != nil {
		return nil, outcome, err
	}
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, format27.OutcomeError, errors.Wrap(err, "marshal record error")
	}
	return b, outcome, nil
}
