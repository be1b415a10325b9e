package model

import (
	"github.com/LeonardoBeccarini/model4916_decoder/internal/model/messages"
)

// DecodedReading is the message the decoder publishes for each uplink.
type DecodedReading = messages.DecodedReading
