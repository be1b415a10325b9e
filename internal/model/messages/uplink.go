package messages

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/brocaar/lorawan"
	"github.com/pkg/errors"
)

// Network servers an uplink envelope can come from.
const (
	NetworkTTSv3      = "tts-v3"
	NetworkTTNv2      = "ttn-v2"
	NetworkChirpStack = "chirpstack-v4"
)

// ErrUnknownEnvelope is returned when a message matches none of the
// supported uplink shapes.
var ErrUnknownEnvelope = errors.New("unknown uplink envelope")

// Uplink is the network-independent view of one LoRaWAN uplink.
type Uplink struct {
	DeviceID   string
	DevEUI     lorawan.EUI64
	Port       int
	Payload    []byte
	ReceivedAt time.Time
	Network    string
}

type ttsIDs struct {
	DeviceID string `json:"device_id"`
	DevEUI   string `json:"dev_eui"`
}

type ttsUplink struct {
	FPort      int    `json:"f_port"`
	FRMPayload []byte `json:"frm_payload"`
}

type chirpDeviceInfo struct {
	DevEUI     string `json:"devEui"`
	DeviceName string `json:"deviceName"`
}

// envelope is the union of the supported JSON shapes.
type envelope struct {
	// The Things Stack v3
	EndDeviceIDs  *ttsIDs    `json:"end_device_ids"`
	UplinkMessage *ttsUplink `json:"uplink_message"`
	ReceivedAt    *time.Time `json:"received_at"`

	// TTN v2 and the Node-RED TTN node
	DevID          string          `json:"dev_id"`
	HardwareSerial string          `json:"hardware_serial"`
	PortV2         *int            `json:"port"`
	PayloadRaw     []byte          `json:"payload_raw"`
	PayloadV2      json.RawMessage `json:"payload"`
	Metadata       *struct {
		Time *time.Time `json:"time"`
	} `json:"metadata"`

	// ChirpStack v4
	DeviceInfo *chirpDeviceInfo `json:"deviceInfo"`
	FPort      *int             `json:"fPort"`
	Data       []byte           `json:"data"`
	Time       *time.Time       `json:"time"`
}

// ParseUplink extracts the device identity, port and raw payload from an
// uplink envelope received on topic. The device id comes from the envelope,
// then the topic, then the DevEUI; an uplink with none of them is rejected.
func ParseUplink(topic string, b []byte) (Uplink, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Uplink{}, errors.Wrap(ErrUnknownEnvelope, err.Error())
	}

	var (
		up     Uplink
		devEUI string
	)
	switch {
	case env.UplinkMessage != nil:
		up.Network = NetworkTTSv3
		if env.EndDeviceIDs != nil {
			up.DeviceID = env.EndDeviceIDs.DeviceID
			devEUI = env.EndDeviceIDs.DevEUI
		}
		up.Port = env.UplinkMessage.FPort
		up.Payload = env.UplinkMessage.FRMPayload
		if env.ReceivedAt != nil {
			up.ReceivedAt = *env.ReceivedAt
		}
	case env.DeviceInfo != nil && env.FPort != nil:
		up.Network = NetworkChirpStack
		up.DeviceID = env.DeviceInfo.DeviceName
		devEUI = env.DeviceInfo.DevEUI
		up.Port = *env.FPort
		up.Payload = env.Data
		if env.Time != nil {
			up.ReceivedAt = *env.Time
		}
	case env.PortV2 != nil && (env.PayloadRaw != nil || len(env.PayloadV2) > 0):
		up.Network = NetworkTTNv2
		up.DeviceID = env.DevID
		devEUI = env.HardwareSerial
		up.Port = *env.PortV2
		up.Payload = env.PayloadRaw
		if up.Payload == nil {
			p, err := rawPayload(env.PayloadV2)
			if err != nil {
				return Uplink{}, err
			}
			up.Payload = p
		}
		if env.Metadata != nil && env.Metadata.Time != nil {
			up.ReceivedAt = *env.Metadata.Time
		}
	default:
		return Uplink{}, ErrUnknownEnvelope
	}

	if devEUI != "" {
		if err := up.DevEUI.UnmarshalText([]byte(devEUI)); err != nil {
			return Uplink{}, errors.Wrapf(err, "invalid dev_eui %q", devEUI)
		}
	}
	if up.DeviceID == "" {
		up.DeviceID = deviceFromTopic(topic)
	}
	if up.DeviceID == "" && devEUI != "" {
		up.DeviceID = up.DevEUI.String()
	}
	if up.DeviceID == "" {
		return Uplink{}, errors.Wrap(ErrUnknownEnvelope, "no device identity in envelope or topic")
	}
	if up.ReceivedAt.IsZero() {
		up.ReceivedAt = time.Now().UTC()
	}
	return up, nil
}

// rawPayload accepts the Node-RED "payload" member, either a base64 string
// or an array of byte values.
func rawPayload(raw json.RawMessage) ([]byte, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, errors.Wrap(err, "payload base64 error")
		}
		return b, nil
	}
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return nil, errors.Wrap(ErrUnknownEnvelope, "payload is neither base64 nor a byte array")
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, errors.Errorf("payload byte %d out of range: %d", i, v)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// deviceFromTopic returns the topic segment following "devices" or "device".
func deviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "devices" || parts[i] == "device" {
			return parts[i+1]
		}
	}
	return ""
}
