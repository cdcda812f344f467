package http

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/shapestone/shape-httpd/internal/bytestream"
)

// writerPool pools encoders for Marshal.
var writerPool = sync.Pool{
	New: func() interface{} {
		return bytestream.NewWriter(binary.BigEndian, 2048)
	},
}

// Marshal returns the HTTP/1.1 wire-format encoding of v.
//
// v must be a *Request or implement Marshaler (*Response does). If a
// request body is present and neither Content-Length nor chunked
// Transfer-Encoding is set, Content-Length is added.
func Marshal(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("http: Marshal(nil)")
	}

	// Check for Marshaler interface
	if m, ok := v.(Marshaler); ok {
		return m.MarshalHTTP()
	}

	req, ok := v.(*Request)
	if !ok {
		return nil, fmt.Errorf("http: Marshal unsupported type %T (expected *Request or Marshaler)", v)
	}

	w := writerPool.Get().(*bytestream.Writer)
	w.Reset()
	defer writerPool.Put(w)

	if err := writeRequest(w, req); err != nil {
		return nil, err
	}
	result := make([]byte, w.Len())
	copy(result, w.Bytes())
	return result, nil
}

// writeRequest serializes a Request to wire format. The request-target is
// Target if set, otherwise Path and RawQuery.
func writeRequest(w *bytestream.Writer, req *Request) error {
	if req.Method == "" {
		return &ParseError{Kind: KindMalformed, Section: SectionRequestLine, Message: "request method is empty"}
	}
	target := req.Target
	if target == "" {
		target = req.Path
		if req.RawQuery != "" {
			target += "?" + req.RawQuery
		}
	}
	if target == "" {
		return &ParseError{Kind: KindMalformed, Section: SectionRequestLine, Message: "request target is empty"}
	}

	version := req.Version
	if version == "" {
		version = "HTTP/1.1"
	}

	if !safeFieldText(req.Method) || !safeFieldText(target) || !safeFieldText(version) {
		return &ParseError{Kind: KindMalformed, Section: SectionRequestLine, Message: "request line contains CR, LF or NUL"}
	}
	if err := checkHeaders(req.Headers); err != nil {
		return err
	}

	writeRequestLine(w, req.Method, target, version)
	writeHeaders(w, req.Headers)

	// Auto-set Content-Length if body present and header absent
	if len(req.Body) > 0 && !req.Headers.Has("Content-Length") && !req.Headers.IsChunked() {
		writeContentLength(w, len(req.Body))
	}

	w.WriteCRLF()
	w.WriteBytes(req.Body)
	return nil
}
