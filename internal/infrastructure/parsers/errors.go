package parsers

import (
	"errors"
	"fmt"
)

// ErrMalformedRecord is matched by every structural parse failure.
var ErrMalformedRecord = errors.New("malformed record")

// MalformedRecordError reports a structural violation at a specific line.
// A document containing one is rejected as a whole.
type MalformedRecordError struct {
	Line   int    // Line number (1-indexed)
	Text   string // The offending line
	Reason string // Human-readable description
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("line %d: malformed record: %s", e.Line, e.Reason)
}

// Unwrap makes errors.Is(err, ErrMalformedRecord) hold.
func (e *MalformedRecordError) Unwrap() error {
	return ErrMalformedRecord
}
