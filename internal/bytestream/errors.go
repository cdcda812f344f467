package bytestream

import (
	"errors"
	"fmt"
)

// ErrEndOfInput is returned when the underlying stream ends before any byte
// of the requested item was consumed. It is an expected condition, e.g. a
// client closing an idle keep-alive connection.
var ErrEndOfInput = errors.New("bytestream: end of input")

// ProtocolViolation reports an item that could not be read completely:
// the stream ended mid-item or a line exceeded its limit.
type ProtocolViolation struct {
	Op     string // "line", "full", "uint16", ...
	Want   int    // bytes requested (line limit for "line")
	Got    int    // bytes consumed before the failure
	Reason string
	Err    error // underlying I/O error, if any
}

// Error implements the error interface.
func (e *ProtocolViolation) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bytestream: %s: %s after %d of %d bytes: %v", e.Op, e.Reason, e.Got, e.Want, e.Err)
	}
	return fmt.Sprintf("bytestream: %s: %s after %d of %d bytes", e.Op, e.Reason, e.Got, e.Want)
}

// Unwrap returns the underlying I/O error.
func (e *ProtocolViolation) Unwrap() error { return e.Err }

// IsTruncated reports whether err is a ProtocolViolation caused by the
// stream ending early.
func IsTruncated(err error) bool {
	var pv *ProtocolViolation
	return errors.As(err, &pv) && pv.Reason == reasonTruncated
}

// IsOverlong reports whether err is a ProtocolViolation caused by a line
// exceeding its limit.
func IsOverlong(err error) bool {
	var pv *ProtocolViolation
	return errors.As(err, &pv) && pv.Reason == reasonOverlong
}

const (
	reasonTruncated = "unexpected end of input"
	reasonOverlong  = "line too long"
)
