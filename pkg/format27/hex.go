package format27

import (
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// ParseHex decodes a hex payload as typed by hand or copied from a console.
// Whitespace, '|', '_' and '-' separate tokens, and each token may carry
// its own 0x prefix, so "27 0B 4C", "0x270B4C" and "0x27 0x0B 0x4C" agree.
func ParseHex(input string) ([]byte, error) {
	var b strings.Builder
	b.Grow(len(input))
	for _, tok := range strings.FieldsFunc(input, isSeparator) {
		if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
			tok = tok[2:]
		}
		b.WriteString(tok)
	}
	clean := b.String()
	if len(clean)%2 != 0 {
		return nil, errors.Errorf("hex payload must contain an even number of digits, got %d", len(clean))
	}
	out := make([]byte, len(clean)/2)
	if _, err := hex.Decode(out, []byte(clean)); err != nil {
		return nil, errors.Wrap(err, "decode hex")
	}
	return out, nil
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == '|' || r == '_' || r == '-'
}
