package wire

import "fmt"

// ParseErrType identifies the reason a decode or encode operation failed.
type ParseErrType uint32

const (
	// PrematureEnd means the data ended in the middle of a field.
	PrematureEnd ParseErrType = iota
	// ValueTooLong means a value does not fit in its length prefix.
	ValueTooLong
	// UnknownTag means a tagged union carried an unrecognized discriminator.
	UnknownTag
	// TrailingData means bytes were left over inside a length-delimited block.
	TrailingData
	// BadMagic means the forwarding header did not start with the RELO token.
	BadMagic
	// BadLength means the header length disagrees with the data.
	BadLength
	// BadWidth means a length prefix width other than 1, 2, 3, 4 or 8.
	BadWidth
)

// ParseError is returned for malformed, truncated or oversized wire data.
type ParseError struct {
	field   string
	errType ParseErrType
	detail  string
}

// NewParseError ...
func NewParseError(field string, errType ParseErrType, detail string) ParseError {
	return ParseError{
		field:   field,
		errType: errType,
		detail:  detail,
	}
}

// Type returns the ParseErrType of the error.
func (e ParseError) Type() ParseErrType {
	return e.errType
}

// Error implements the error interface.
func (e ParseError) Error() string {
	m := ""
	switch e.errType {
	case PrematureEnd:
		m = "premature end of data"
	case ValueTooLong:
		m = "value too long"
	case UnknownTag:
		m = "unknown tag"
	case TrailingData:
		m = "trailing data"
	case BadMagic:
		m = "bad magic"
	case BadLength:
		m = "bad length"
	case BadWidth:
		m = "bad length prefix width"
	}

	if e.detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.field, m, e.detail)
	}
	return fmt.Sprintf("%s: %s", e.field, m)
}

// IsParse checks that an error is a ParseError of the given type.
func IsParse(err error, t ParseErrType) bool {
	parseErr, ok := err.(ParseError)
	return ok && parseErr.errType == t
}
