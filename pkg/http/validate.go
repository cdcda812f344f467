package http

import (
	"bytes"
	"io"
)

// Validate checks that input is one syntactically valid HTTP/1.x request:
// request line, headers, framing of the body and, for form and multipart
// content, the body encoding.
// Returns nil if valid, or a *ParseError identifying the problem.
func Validate(input string) error {
	_, err := UnmarshalRequest([]byte(input))
	return err
}

// ValidateReader reads all data from r and validates it as a request.
// See Validate for the validation semantics.
func ValidateReader(r io.Reader) error {
	data, err := readAll(r)
	if err != nil {
		return err
	}
	_, err = UnmarshalRequest(data)
	return err
}

func readAll(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(r)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
