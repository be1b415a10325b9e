package format27

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// cursor reads forward through a payload. It never rewinds.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) take(n int) ([]byte, error) {
	if remaining := len(c.buf) - c.pos; remaining < n {
		return nil, errors.Wrapf(ErrTruncatedInput, "need %d bytes at offset %d, have %d", n, c.pos, remaining)
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) uint8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) uint16() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// int16 reads a big-endian two's-complement value.
func (c *cursor) int16() (int16, error) {
	v, err := c.uint16()
	if err != nil {
		return 0, err
	}
	return int16(v), nil
}
