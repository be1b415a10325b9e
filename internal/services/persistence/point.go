package persistence

import (
	"strings"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/model4916_decoder/internal/model"
	"github.com/LeonardoBeccarini/model4916_decoder/pkg/format27"
)

// ReadingToPoint converts a decoded reading into an Influx point. The
// "error" marker is not a measurement and is dropped.
func ReadingToPoint(measurement string, r model.DecodedReading) *write.Point {
	tags := map[string]string{
		"device_id": r.DeviceID,
	}
	var zero [8]byte
	if r.DevEUI != zero {
		tags["dev_eui"] = r.DevEUI.String()
	}
	if r.Local.NodeType != "" {
		tags["node_type"] = r.Local.NodeType
	}

	fields := r.Payload.Fields()
	delete(fields, "error")
	fields["port"] = int64(r.Port)

	t := r.ReceivedAt
	if t.IsZero() {
		t = r.DecodedAt
	}
	return influxdb2.NewPoint(sanitizeMeasurement(measurement), tags, fields, t)
}

// readingFromValues rebuilds a reading from a pivoted Influx row.
func readingFromValues(values map[string]interface{}) model.DecodedReading {
	var r model.DecodedReading
	if s, ok := values["device_id"].(string); ok {
		r.DeviceID = s
	}
	if s, ok := values["dev_eui"].(string); ok {
		_ = r.DevEUI.UnmarshalText([]byte(s))
	}
	if s, ok := values["node_type"].(string); ok {
		r.Local.NodeType = s
	}
	if v, ok := toFloat(values["port"]); ok {
		r.Port = int(v)
	}

	rec := &r.Payload
	if v, ok := toFloat(values["vBat"]); ok {
		rec.VBat = &v
	}
	if v, ok := toFloat(values["boot"]); ok {
		b := uint8(v)
		rec.Boot = &b
	}
	if v, ok := toFloat(values["tempC"]); ok {
		rec.TempC = &v
	}
	if v, ok := toFloat(values["p"]); ok {
		rec.P = &v
	}
	if v, ok := toFloat(values["rh"]); ok {
		rec.RH = &v
	}
	if v, ok := toFloat(values["tDewC"]); ok {
		rec.TDewC = &v
	}
	if rec.TempC != nil {
		rec.Error = format27.ErrorNone
	}
	return r
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func sanitizeMeasurement(s string) string {
	if s == "" {
		return "environment"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_', r == ':', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
