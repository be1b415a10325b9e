// Package replay republishes captured Model 4916 uplinks as network-server
// envelopes, for bench tests of the decoding pipeline.
package replay

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/LeonardoBeccarini/model4916_decoder/pkg/format27"
)

// Capture is one recorded uplink.
type Capture struct {
	DeviceID string
	Port     int
	Payload  []byte
}

// ParseCaptures reads "<device_id> <port> <hex payload>" lines. Blank lines
// and lines starting with # are skipped; the hex payload may contain spaces.
func ParseCaptures(r io.Reader) ([]Capture, error) {
	var out []Capture
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		parts := strings.Fields(text)
		if len(parts) < 3 {
			return nil, errors.Errorf("line %d: expected <device_id> <port> <hex payload>", line)
		}
		port, err := strconv.Atoi(parts[1])
		if err != nil || port < 0 || port > 255 {
			return nil, errors.Errorf("line %d: invalid port %q", line, parts[1])
		}
		payload, err := format27.ParseHex(strings.Join(parts[2:], ""))
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		out = append(out, Capture{DeviceID: parts[0], Port: port, Payload: payload})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read captures error")
	}
	return out, nil
}
