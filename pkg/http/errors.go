package http

import (
	"errors"
	"fmt"
	"net"

	"github.com/shapestone/shape-httpd/internal/bytestream"
)

// ErrEndOfInput is returned by Reader.ReadRequest when the stream ends
// cleanly before the first byte of a request. It is the normal end of a
// keep-alive connection, not a parse failure.
var ErrEndOfInput = bytestream.ErrEndOfInput

// ErrResponseFlushed is returned when a Response is written to the wire a
// second time, or its body is written after the flush.
var ErrResponseFlushed = errors.New("http: response already flushed")

// ErrInvalidHeader is returned when a message cannot be written because a
// header name is not a token or a header value, status reason or version
// contains CR, LF or NUL.
var ErrInvalidHeader = errors.New("http: invalid header field")

// ErrorKind classifies a ParseError.
type ErrorKind int

const (
	KindMalformed          ErrorKind = iota + 1 // syntax error
	KindTruncated                               // stream ended mid-request
	KindTooLarge                                // a configured limit was exceeded
	KindUnsupportedVersion                      // not HTTP/1.0 or HTTP/1.1
	KindTimeout                                 // read deadline expired
	KindIO                                      // other transport failure
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindTruncated:
		return "truncated"
	case KindTooLarge:
		return "too large"
	case KindUnsupportedVersion:
		return "unsupported version"
	case KindTimeout:
		return "timeout"
	case KindIO:
		return "i/o"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Request sections, used in ParseError.Section.
const (
	SectionRequestLine = "request line"
	SectionHeader      = "header"
	SectionBody        = "body"
)

// ParseError represents an error that occurred during HTTP message parsing.
type ParseError struct {
	Kind     ErrorKind
	Section  string // SectionRequestLine, SectionHeader or SectionBody
	Message  string // human-readable error message
	Line     int    // 1-indexed line number where error occurred (0 if unknown)
	Position int    // byte offset in input (0 if unknown)
	Err      error  // underlying error, if any
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Line > 0 {
		return fmt.Sprintf("http: parse error at line %d: %s", e.Line, msg)
	}
	if e.Position > 0 {
		return fmt.Sprintf("http: parse error at position %d: %s", e.Position, msg)
	}
	return fmt.Sprintf("http: %s", msg)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error { return e.Err }

// Status returns the response status that reports this error to the client,
// or 0 when no response should be attempted.
func (e *ParseError) Status() int {
	switch e.Kind {
	case KindMalformed, KindTruncated:
		return StatusBadRequest
	case KindTooLarge:
		switch e.Section {
		case SectionRequestLine:
			return StatusURITooLong
		case SectionHeader:
			return StatusRequestHeaderFieldsTooLarge
		default:
			return StatusContentTooLarge
		}
	case KindUnsupportedVersion:
		return StatusHTTPVersionNotSupported
	case KindTimeout:
		return StatusRequestTimeout
	default:
		return 0
	}
}

// KindOf returns the kind of a ParseError in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}

func newParseError(kind ErrorKind, section, msg string, line int) *ParseError {
	return &ParseError{Kind: kind, Section: section, Message: msg, Line: line}
}

// wrapReadError classifies a bytestream error raised while reading section.
func wrapReadError(err error, section string, line int) *ParseError {
	pe := &ParseError{Section: section, Line: line, Err: err}
	var ne net.Error
	switch {
	case errors.Is(err, bytestream.ErrEndOfInput), bytestream.IsTruncated(err):
		pe.Kind, pe.Message = KindTruncated, "unexpected end of input in "+section
	case bytestream.IsOverlong(err):
		pe.Kind, pe.Message = KindTooLarge, section+" too long"
	case errors.As(err, &ne) && ne.Timeout():
		pe.Kind, pe.Message = KindTimeout, "read timeout in "+section
	default:
		pe.Kind, pe.Message = KindIO, "read failed in "+section
	}
	return pe
}
