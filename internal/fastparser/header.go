// Package fastparser implements the byte-level pieces of HTTP/1.1 request
// parsing: header field lines, framing values, chunk sizes, url-encoded
// pairs and multipart bodies. It works on byte slices only and performs
// no I/O.
package fastparser

import (
	"bytes"
	"fmt"
	"strconv"
)

// Header is a key-value pair.
type Header struct {
	Key   string
	Value string
}

// ParseHeaderLine parses "Key: Value" with optional whitespace around the
// value. Whitespace between the field name and the colon is rejected
// (RFC 9112 section 5.1).
func ParseHeaderLine(line []byte) (Header, error) {
	colon := bytes.IndexByte(line, ':')
	if colon < 0 {
		return Header{}, fmt.Errorf("malformed header line (no colon): %q", line)
	}
	if colon == 0 {
		return Header{}, fmt.Errorf("malformed header line (empty name): %q", line)
	}

	keyBytes := line[:colon]
	if keyBytes[colon-1] == ' ' || keyBytes[colon-1] == '\t' {
		return Header{}, fmt.Errorf("whitespace before colon in header name: %q", keyBytes)
	}
	for _, c := range keyBytes {
		if !isTokenChar(c) {
			return Header{}, fmt.Errorf("invalid character %q in header name: %q", c, keyBytes)
		}
	}

	return Header{
		Key:   InternHeaderName(keyBytes),
		Value: string(trimOWS(line[colon+1:])),
	}, nil
}

// IsContinuation reports whether line is an obs-fold continuation of the
// previous header line (starts with SP or HTAB).
func IsContinuation(line []byte) bool {
	return len(line) > 0 && (line[0] == ' ' || line[0] == '\t')
}

// FoldContinuation appends an obs-fold continuation to a header value,
// replacing the fold with a single SP.
func FoldContinuation(value string, line []byte) string {
	return value + " " + string(trimOWS(line))
}

// ParseContentLength parses a Content-Length value. Unlike a lenient read,
// a present but invalid or negative value is an error.
func ParseContentLength(v string) (int64, error) {
	b := trimOWS([]byte(v))
	if len(b) == 0 {
		return 0, fmt.Errorf("empty Content-Length")
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid Content-Length %q", v)
		}
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid Content-Length %q: %w", v, err)
	}
	return n, nil
}

// HasToken reports whether a comma-separated header value contains token
// (case-insensitive), e.g. HasToken("keep-alive, Upgrade", "upgrade").
func HasToken(value, token string) bool {
	for _, part := range splitComma(value) {
		if EqFold(trimString(part), token) {
			return true
		}
	}
	return false
}

// isTokenChar reports whether c is an RFC 9110 tchar.
func isTokenChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

// IsToken reports whether s is a non-empty RFC 9110 token.
func IsToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isTokenChar(s[i]) {
			return false
		}
	}
	return true
}

// trimOWS trims optional whitespace (SP and HTAB) from both ends of b.
func trimOWS(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}

// splitComma splits a comma-separated string into parts.
func splitComma(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// trimString trims leading and trailing SP and HTAB.
func trimString(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}

// EqFold is a fast ASCII case-insensitive string comparison.
func EqFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
