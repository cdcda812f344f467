package http

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/shapestone/shape-httpd/internal/bytestream"
)

// Response accumulates the status, headers, cookies and body of an HTTP
// response. Nothing is serialized until MarshalHTTP or WriteTo, so header
// changes made after body writes still take effect.
//
// A Response is written to the wire at most once.
type Response struct {
	version string
	status  int
	reason  string
	headers Headers
	cookies []Cookie
	body    []byte
	noBody  bool
	flushed bool
	written int
}

// NewResponse returns an empty HTTP/1.1 response. A status that is never
// set renders as 200 OK.
func NewResponse() *Response {
	return &Response{version: "HTTP/1.1"}
}

// SetVersion sets the protocol version of the status line.
func (r *Response) SetVersion(version string) { r.version = version }

// Version returns the protocol version of the status line.
func (r *Response) Version() string { return r.version }

// SetStatus sets the status code; the reason phrase comes from StatusText.
func (r *Response) SetStatus(code int) {
	r.status = code
	r.reason = ""
}

// SetStatusReason sets the status code with a custom reason phrase.
func (r *Response) SetStatusReason(code int, reason string) {
	r.status = code
	r.reason = reason
}

// StatusCode returns the status that will be written.
func (r *Response) StatusCode() int {
	if r.status == 0 {
		return StatusOK
	}
	return r.status
}

// Reason returns the reason phrase that will be written.
func (r *Response) Reason() string {
	if r.reason != "" {
		return r.reason
	}
	return StatusText(r.StatusCode())
}

// Header returns the response headers for direct manipulation.
func (r *Response) Header() *Headers { return &r.headers }

// SetHeader replaces any header named key.
func (r *Response) SetHeader(key, value string) { r.headers.Set(key, value) }

// AddHeader appends a header, keeping existing ones with the same name.
func (r *Response) AddHeader(key, value string) { r.headers.Add(key, value) }

// DelHeader removes all headers named key.
func (r *Response) DelHeader(key string) { r.headers.Del(key) }

// SetContentType sets the Content-Type header.
func (r *Response) SetContentType(contentType string) {
	r.headers.Set("Content-Type", contentType)
}

// AddCookie adds a Set-Cookie header for c. The cookie is copied. A cookie
// that fails Validate is not added.
func (r *Response) AddCookie(c *Cookie) error {
	if err := c.Validate(); err != nil {
		return err
	}
	r.cookies = append(r.cookies, *c)
	return nil
}

// Cookies returns the cookies added so far.
func (r *Response) Cookies() []Cookie { return r.cookies }

// Write appends p to the body.
func (r *Response) Write(p []byte) (int, error) {
	if r.flushed {
		return 0, ErrResponseFlushed
	}
	r.body = append(r.body, p...)
	return len(p), nil
}

// WriteString appends s to the body.
func (r *Response) WriteString(s string) (int, error) {
	if r.flushed {
		return 0, ErrResponseFlushed
	}
	r.body = append(r.body, s...)
	return len(s), nil
}

// Body returns the buffered body.
func (r *Response) Body() []byte { return r.body }

// ResetBody discards the buffered body.
func (r *Response) ResetBody() { r.body = r.body[:0] }

// Redirect sets a 302 Found status with the given Location.
func (r *Response) Redirect(location string) {
	r.SetStatus(StatusFound)
	r.headers.Set("Location", location)
}

// Error replaces the body with a short plain-text message and sets code.
// An empty msg uses the status text.
func (r *Response) Error(code int, msg string) {
	r.SetStatus(code)
	if msg == "" {
		msg = StatusText(code)
	}
	r.ResetBody()
	r.headers.Del("Content-Length")
	r.headers.Del("Transfer-Encoding")
	r.headers.Set("Content-Type", "text/plain; charset=utf-8")
	r.body = append(r.body, msg...)
}

// SuppressBody omits the body from the wire while keeping the headers,
// including the computed Content-Length. Used for HEAD requests.
func (r *Response) SuppressBody() { r.noBody = true }

// Flushed reports whether the response has been written.
func (r *Response) Flushed() bool { return r.flushed }

// MarshalHTTP renders the response in wire format. It does not mark the
// response as written and returns the same bytes every time it is called
// on an unchanged response. A header that would break the framing fails
// with ErrInvalidHeader.
func (r *Response) MarshalHTTP() ([]byte, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	w := bytestream.NewWriter(binary.BigEndian, 256+len(r.body))
	r.render(w)
	return w.Bytes(), nil
}

// check validates everything render writes verbatim.
func (r *Response) check() error {
	if !safeFieldText(r.version) || !safeFieldText(r.reason) {
		return fmt.Errorf("%w: status line", ErrInvalidHeader)
	}
	return checkHeaders(r.headers)
}

func (r *Response) render(w *bytestream.Writer) {
	version := r.version
	if version == "" {
		version = "HTTP/1.1"
	}
	code := r.StatusCode()
	writeStatusLine(w, version, code, r.Reason())
	writeHeaders(w, r.headers)
	for i := range r.cookies {
		writeHeader(w, "Set-Cookie", r.cookies[i].String())
	}

	allowed := bodyAllowed(code)
	chunked := allowed && r.headers.IsChunked()
	if allowed && !chunked && !r.headers.Has("Content-Length") {
		writeContentLength(w, len(r.body))
	}
	w.WriteCRLF()

	if !allowed || r.noBody {
		return
	}
	if chunked {
		writeChunk(w, r.body)
		return
	}
	w.WriteBytes(r.body)
}

// WriteTo writes the response to dst. It succeeds at most once; later calls
// return ErrResponseFlushed without writing anything. A response failing
// with ErrInvalidHeader writes nothing and is not marked as flushed.
func (r *Response) WriteTo(dst io.Writer) (int64, error) {
	if r.flushed {
		return 0, ErrResponseFlushed
	}
	if err := r.check(); err != nil {
		return 0, err
	}
	r.flushed = true
	w := bytestream.NewWriter(binary.BigEndian, 256+len(r.body))
	r.render(w)
	r.written = w.Len()
	return w.WriteTo(dst)
}

// Size returns the number of bytes produced by WriteTo, or 0 before it.
func (r *Response) Size() int { return r.written }
