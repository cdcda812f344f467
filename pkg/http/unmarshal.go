package http

import (
	"bytes"
	"fmt"
)

// Unmarshal parses a complete HTTP request held in data and stores the
// result in v.
//
// v must be a *Request or implement Unmarshaler. Trailing bytes after the
// request are an error.
//
// # Authentication
//
// Authentication headers are parsed as ordinary HTTP headers and are available
// via req.Headers.Get. All standard schemes are supported:
//
//	req.Headers.Get("Authorization")   // "Basic dXNlcm5hbWU6cGFzc3dvcmQ="
//	req.Headers.Get("Authorization")   // "Bearer eyJhbGci..."
//	req.Headers.Get("X-API-Key")       // "abc123def456"
//
// Query-string API keys are decoded into req.Query:
//
//	// GET /api/users?api_key=abc123 HTTP/1.1  →  req.Query.Get("api_key") = "abc123"
func Unmarshal(data []byte, v interface{}) error {
	if v == nil {
		return fmt.Errorf("http: Unmarshal(nil)")
	}

	// Check for Unmarshaler interface
	if u, ok := v.(Unmarshaler); ok {
		return u.UnmarshalHTTP(data)
	}

	target, ok := v.(*Request)
	if !ok {
		return fmt.Errorf("http: Unmarshal unsupported type %T (expected *Request)", v)
	}
	req, err := UnmarshalRequest(data)
	if err != nil {
		return err
	}
	*target = *req
	return nil
}

// UnmarshalRequest parses data as exactly one request.
func UnmarshalRequest(data []byte) (*Request, error) {
	r := NewReader(bytes.NewReader(data))
	req, err := r.ReadRequest()
	if err == ErrEndOfInput {
		return nil, newParseError(KindTruncated, SectionRequestLine, "empty input", 0)
	}
	if err != nil {
		return nil, err
	}
	if n := r.Count(); n != int64(len(data)) {
		return nil, &ParseError{Kind: KindMalformed, Section: SectionBody, Message: "trailing data after request", Position: int(n)}
	}
	return req, nil
}
