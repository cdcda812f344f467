package fastparser

import (
	"bytes"
	"fmt"
)

// maxBoundaryLen is the RFC 2046 limit on boundary length.
const maxBoundaryLen = 70

// RawPart is one section of a multipart body before its headers are
// interpreted.
type RawPart struct {
	Headers []Header
	Content []byte
}

// Multipart is a split multipart body. Overhead counts every byte of the
// body that is not part content: preamble, delimiter lines, part headers
// and epilogue. The sum of content lengths plus Overhead equals the body
// length.
type Multipart struct {
	Parts    []RawPart
	Overhead int
}

// ValidBoundary reports whether b is an acceptable boundary parameter.
func ValidBoundary(b string) bool {
	return b != "" && len(b) <= maxBoundaryLen && b[len(b)-1] != ' '
}

// SplitMultipart splits a multipart body on the given boundary.
//
// Format:
//
//	[preamble CRLF] --boundary CRLF headers CRLF content
//	CRLF --boundary CRLF headers CRLF content
//	CRLF --boundary-- [epilogue]
//
// Bare LF is accepted wherever CRLF is expected. A body whose closing
// delimiter is missing fails rather than yielding a truncated last part.
func SplitMultipart(body []byte, boundary string) (*Multipart, error) {
	if !ValidBoundary(boundary) {
		return nil, fmt.Errorf("multipart: invalid boundary %q", boundary)
	}
	dash := []byte("--" + boundary)
	sep := append([]byte{'\n'}, dash...) // "\n--boundary"

	mp := &Multipart{}
	pos := 0
	if !bytes.HasPrefix(body, dash) {
		idx := bytes.Index(body, sep)
		if idx < 0 {
			return nil, fmt.Errorf("multipart: missing opening boundary")
		}
		pos = idx + 1
	}
	mp.Overhead += pos // preamble

	for {
		// pos is at "--boundary"
		pos += len(dash)
		mp.Overhead += len(dash)

		if bytes.HasPrefix(body[pos:], []byte("--")) {
			mp.Overhead += len(body) - pos // "--" and epilogue
			return mp, nil
		}

		// Transport padding then the line ending after the delimiter.
		start := pos
		for pos < len(body) && (body[pos] == ' ' || body[pos] == '\t') {
			pos++
		}
		next := skipLineEnding(body, pos)
		if next == pos {
			return nil, fmt.Errorf("multipart: malformed delimiter line at byte %d", start)
		}
		mp.Overhead += next - start
		pos = next

		headers, next, err := splitPartHeaders(body, pos)
		if err != nil {
			return nil, err
		}
		mp.Overhead += next - pos
		pos = next

		idx := bytes.Index(body[pos:], sep)
		if idx < 0 {
			return nil, fmt.Errorf("multipart: unterminated part %d", len(mp.Parts)+1)
		}
		end := pos + idx // at '\n'
		contentEnd := end
		if contentEnd > pos && body[contentEnd-1] == '\r' {
			contentEnd--
		}
		mp.Parts = append(mp.Parts, RawPart{Headers: headers, Content: body[pos:contentEnd:contentEnd]})
		mp.Overhead += end + 1 - contentEnd
		pos = end + 1
	}
}

// splitPartHeaders parses part header lines starting at pos up to and
// including the empty line. It returns the position after the empty line.
func splitPartHeaders(body []byte, pos int) ([]Header, int, error) {
	var headers []Header
	for {
		lineEnd := findLineEnd(body, pos)
		if lineEnd < 0 {
			return nil, 0, fmt.Errorf("multipart: unterminated part header section")
		}
		line := body[pos:lineEnd]
		next := skipLineEnding(body, lineEnd)
		if len(line) == 0 {
			return headers, next, nil
		}
		if IsContinuation(line) && len(headers) > 0 {
			last := &headers[len(headers)-1]
			last.Value = FoldContinuation(last.Value, line)
		} else {
			h, err := ParseHeaderLine(line)
			if err != nil {
				return nil, 0, fmt.Errorf("multipart: %w", err)
			}
			headers = append(headers, h)
		}
		pos = next
	}
}

// findLineEnd finds the position of \r\n or \n starting from pos.
// Returns the position of \r (or \n if bare), or -1 if not found.
func findLineEnd(data []byte, pos int) int {
	for i := pos; i < len(data); i++ {
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			return i
		}
		if data[i] == '\n' {
			return i
		}
	}
	return -1
}

// skipLineEnding advances past CRLF or LF at the given position.
func skipLineEnding(data []byte, pos int) int {
	if pos < len(data) && data[pos] == '\r' && pos+1 < len(data) && data[pos+1] == '\n' {
		return pos + 2
	}
	if pos < len(data) && data[pos] == '\n' {
		return pos + 1
	}
	return pos
}
