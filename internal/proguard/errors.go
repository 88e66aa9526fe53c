package proguard

import (
	"errors"
	"fmt"
)

// ErrMalformed is the error kind shared by every mapping parse failure.
var ErrMalformed = errors.New("malformed mapping input")

// ParseError describes a line of mapping input that could not be parsed.
type ParseError struct {
	// Line is the 1-indexed line number within the source being read.
	Line int
	// Text is the raw line as it appeared in the input.
	Text string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("proguard: line %d: %s: '%s'", e.Line, e.Msg, e.Text)
}

// Unwrap lets callers match parse failures with errors.Is(err, ErrMalformed).
func (e *ParseError) Unwrap() error {
	return ErrMalformed
}
