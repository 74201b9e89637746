package xmfile

import (
	"fmt"
)

// ParseError describes a malformed XM file.
type ParseError struct {
	// Stage is a parsing stage like "pattern[3]" or "instrument[0].sample[1]".
	// It can be empty if the error happened before the first stage.
	Stage string

	Message string

	// Offset is a data offset at which the error was detected.
	Offset int
}

func (e *ParseError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%s (offset=%d)", e.Message, e.Offset)
	}
	return fmt.Sprintf("%s: %s (offset=%d)", e.Stage, e.Message, e.Offset)
}
