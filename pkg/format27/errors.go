package format27

import "github.com/pkg/errors"

// errors
var (
	ErrPortNotApplicable  = errors.New("port not applicable")
	ErrUnrecognizedFormat = errors.New("unrecognized format")
	ErrTruncatedInput     = errors.New("truncated input")
)

// Outcome labels, stable for logs and metrics.
const (
	OutcomeOK                 = "ok"
	OutcomePortNotApplicable  = "port_not_applicable"
	OutcomeUnrecognizedFormat = "unrecognized_format"
	OutcomeTruncatedInput     = "truncated_input"
	OutcomeError              = "error"
)

// Outcome maps a Decode error to its outcome label. A nil error is OutcomeOK.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrPortNotApplicable):
		return OutcomePortNotApplicable
	case errors.Is(err, ErrUnrecognizedFormat):
		return OutcomeUnrecognizedFormat
	case errors.Is(err, ErrTruncatedInput):
		return OutcomeTruncatedInput
	default:
		return OutcomeError
	}
}
