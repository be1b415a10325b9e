// Package format27 decodes port 1 / format 0x27 uplinks sent by the
// MCCI Model 4916 multigas and environment sensor.
package format27

import (
	"github.com/pkg/errors"
)

const (
	// Port is the only LoRaWAN FPort carrying this format.
	Port = 1
	// FormatTag is the first byte of every format 0x27 message.
	FormatTag = 0x27
)

// Flag bits of the bitmap at offset 1.
const (
	FlagVBat = 0x01
	FlagBoot = 0x02
	FlagEnv  = 0x08
)

// ErrorNone is the error marker set alongside the environment group.
const ErrorNone = "none"

// Record is a decoded message. Members are nil when the flags did not
// announce them.
type Record struct {
	VBat  *float64 `json:"vBat,omitempty"`
	Boot  *uint8   `json:"boot,omitempty"`
	TempC *float64 `json:"tempC,omitempty"`
	P     *float64 `json:"p,omitempty"`
	RH    *float64 `json:"rh,omitempty"`
	TDewC *float64 `json:"tDewC,omitempty"`
	Error string   `json:"error,omitempty"`

	Flags byte `json:"-"`
}

// Fields returns the sparse key/value view of the record.
func (r Record) Fields() map[string]any {
	fields := map[string]any{}
	if r.VBat != nil {
		fields["vBat"] = *r.VBat
	}
	if r.Boot != nil {
		fields["boot"] = int64(*r.Boot)
	}
	if r.TempC != nil {
		fields["tempC"] = *r.TempC
	}
	if r.P != nil {
		fields["p"] = *r.P
	}
	if r.RH != nil {
		fields["rh"] = *r.RH
	}
	if r.TDewC != nil {
		fields["tDewC"] = *r.TDewC
	}
	if r.Error != "" {
		fields["error"] = r.Error
	}
	return fields
}

// Decode parses a format 0x27 payload received on the given port.
// The payload is only read, never retained.
func Decode(payload []byte, port int) (Record, error) {
	if port != Port {
		return Record{}, errors.Wrapf(ErrPortNotApplicable, "port %d", port)
	}

	c := cursor{buf: payload}
	tag, err := c.uint8()
	if err != nil {
		return Record{}, errors.Wrap(err, "read format tag")
	}
	if tag != FormatTag {
		return Record{}, errors.Wrapf(ErrUnrecognizedFormat, "format 0x%02x", tag)
	}
	flags, err := c.uint8()
	if err != nil {
		return Record{}, errors.Wrap(err, "read flags")
	}

	rec := Record{Flags: flags}

	if flags&FlagVBat != 0 {
		raw, err := c.int16()
		if err != nil {
			return Record{}, errors.Wrap(err, "read vBat")
		}
		rec.VBat = ptr(float64(raw) / 4096.0)
	}

	if flags&FlagBoot != 0 {
		boot, err := c.uint8()
		if err != nil {
			return Record{}, errors.Wrap(err, "read boot")
		}
		rec.Boot = &boot
	}

	if flags&FlagEnv != 0 {
		if err := decodeEnv(&c, &rec); err != nil {
			return Record{}, err
		}
	}

	return rec, nil
}

func decodeEnv(c *cursor, rec *Record) error {
	tRaw, err := c.int16()
	if err != nil {
		return errors.Wrap(err, "read tempC")
	}
	pRaw, err := c.uint16()
	if err != nil {
		return errors.Wrap(err, "read p")
	}
	hRaw, err := c.uint8()
	if err != nil {
		return errors.Wrap(err, "read rh")
	}

	tempC := float64(tRaw) / 256
	rh := float64(hRaw) / 256 * 100
	rec.TempC = ptr(tempC)
	rec.P = ptr(float64(pRaw) * 4 / 100.0)
	rec.RH = ptr(rh)
	rec.Error = ErrorNone
	rec.TDewC = ptr(Dewpoint(tempC, rh))
	return nil
}

func ptr(v float64) *float64 {
	return &v
}
