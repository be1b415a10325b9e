package messages

import (
	"time"

	"github.com/brocaar/lorawan"

	"github.com/LeonardoBeccarini/model4916_decoder/internal/model/entities"
	"github.com/LeonardoBeccarini/model4916_decoder/pkg/format27"
)

// DecodedReading is published by the decoder for every uplink that decoded
// successfully.
type DecodedReading struct {
	ID         string              `json:"id"`
	DeviceID   string              `json:"device_id"`
	DevEUI     lorawan.EUI64       `json:"dev_eui"`
	Port       int                 `json:"port"`
	Payload    format27.Record     `json:"payload"`
	Local      entities.DeviceInfo `json:"local"`
	ReceivedAt time.Time           `json:"received_at"`
	DecodedAt  time.Time           `json:"decoded_at"`
}

// AggregatedReading holds the per-field means of a device over one window.
// A mean is nil when no sample in the window carried the field.
type AggregatedReading struct {
	DeviceID    string    `json:"device_id"`
	Samples     int       `json:"samples"`
	VBat        *float64  `json:"vBat,omitempty"`
	TempC       *float64  `json:"tempC,omitempty"`
	P           *float64  `json:"p,omitempty"`
	RH          *float64  `json:"rh,omitempty"`
	TDewC       *float64  `json:"tDewC,omitempty"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}
