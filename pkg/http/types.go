// Package http provides the request/response model of an embedded HTTP/1.x
// server: a streaming request reader and a lazily serialized response
// builder.
//
// # Thread Safety
//
// Request values are immutable once returned by a Reader and may be shared
// between goroutines. Reader and Response are owned by a single connection
// worker and are not safe for concurrent use.
//
// # Parsing APIs
//
//   - NewReader / Reader.ReadRequest - streaming parse from a connection
//   - UnmarshalRequest / Unmarshal - parse a complete request held in memory
//   - Parse - AST view of a request via shape-core
//   - Validate - syntax check only
package http

import (
	"mime"
	"strconv"
	"strings"

	"github.com/shapestone/shape-httpd/internal/fastparser"
)

// Request methods.
const (
	MethodGet     = "GET"
	MethodHead    = "HEAD"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodDelete  = "DELETE"
	MethodConnect = "CONNECT"
	MethodOptions = "OPTIONS"
	MethodTrace   = "TRACE"
	MethodPatch   = "PATCH"
)

// Request represents a parsed HTTP/1.x request.
type Request struct {
	Method     string   // "GET", "POST", etc.
	Target     string   // raw request-target "/api/users?q=foo"
	Scheme     string   // "http" or "https" for absolute-form targets, else ""
	Path       string   // target without query, "/api/users"
	Segments   []string // percent-decoded path segments ["api", "users"]
	RawQuery   string   // "q=foo"
	Query      Values   // decoded query parameters
	Version    string   // "HTTP/1.1"
	Headers    Headers  // ordered, repeatable headers
	Cookies    Cookies  // from Cookie headers
	Body       []byte   // raw body (nil if none), dechunked if chunked
	Form       Values   // application/x-www-form-urlencoded body parameters
	Parts      []Part   // multipart/form-data parts
	RemoteAddr string   // set by the server, empty otherwise
}

// IsKnownMethod reports whether the method is one of the standard methods.
func (r *Request) IsKnownMethod() bool { return fastparser.IsKnownMethod(r.Method) }

// IsHTTP11 reports whether the request uses HTTP/1.1.
func (r *Request) IsHTTP11() bool { return r.Version == "HTTP/1.1" }

// Host returns the Host header.
func (r *Request) Host() string { return r.Headers.Get("Host") }

// UserAgent returns the User-Agent header.
func (r *Request) UserAgent() string { return r.Headers.Get("User-Agent") }

// Referer returns the Referer header.
func (r *Request) Referer() string { return r.Headers.Get("Referer") }

// MediaType returns the lower-cased media type of the Content-Type header
// without parameters, or "" if absent or unparsable.
func (r *Request) MediaType() string {
	mt, _, err := mime.ParseMediaType(r.Headers.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

// Cookie returns the first cookie with the given name.
func (r *Request) Cookie(name string) (Cookie, bool) { return r.Cookies.Get(name) }

// Part returns the first multipart part with the given form name.
func (r *Request) Part(name string) (*Part, bool) {
	for i := range r.Parts {
		if r.Parts[i].Name == name {
			return &r.Parts[i], true
		}
	}
	return nil, false
}

// KeepAlive reports whether the client allows the connection to be reused:
// HTTP/1.1 unless "Connection: close", HTTP/1.0 only with
// "Connection: keep-alive".
func (r *Request) KeepAlive() bool {
	conn := strings.Join(r.Headers.Values("Connection"), ",")
	if r.IsHTTP11() {
		return !fastparser.HasToken(conn, "close")
	}
	return fastparser.HasToken(conn, "keep-alive")
}

// Header represents a single HTTP header key-value pair.
type Header struct {
	Key   string
	Value string
}

// Headers is an ordered, repeatable list of HTTP headers.
// Header names compare case-insensitively; the original case is preserved.
type Headers []Header

// Get returns the first header value for the given key (case-insensitive).
// Returns empty string if not found.
func (h Headers) Get(key string) string {
	for _, hdr := range h {
		if fastparser.EqFold(hdr.Key, key) {
			return hdr.Value
		}
	}
	return ""
}

// Has reports whether a header with the given key is present.
func (h Headers) Has(key string) bool {
	for _, hdr := range h {
		if fastparser.EqFold(hdr.Key, key) {
			return true
		}
	}
	return false
}

// Values returns all header values for the given key (case-insensitive).
func (h Headers) Values(key string) []string {
	var vals []string
	for _, hdr := range h {
		if fastparser.EqFold(hdr.Key, key) {
			vals = append(vals, hdr.Value)
		}
	}
	return vals
}

// Set replaces the first header with the given key (case-insensitive) or appends if not found.
func (h *Headers) Set(key, value string) {
	for i, hdr := range *h {
		if fastparser.EqFold(hdr.Key, key) {
			(*h)[i].Value = value
			// Remove any subsequent headers with same key
			j := i + 1
			for j < len(*h) {
				if fastparser.EqFold((*h)[j].Key, key) {
					*h = append((*h)[:j], (*h)[j+1:]...)
				} else {
					j++
				}
			}
			return
		}
	}
	*h = append(*h, Header{Key: key, Value: value})
}

// Add appends a header without replacing existing ones.
func (h *Headers) Add(key, value string) {
	*h = append(*h, Header{Key: key, Value: value})
}

// Del removes all headers with the given key (case-insensitive).
func (h *Headers) Del(key string) {
	j := 0
	for _, hdr := range *h {
		if !fastparser.EqFold(hdr.Key, key) {
			(*h)[j] = hdr
			j++
		}
	}
	*h = (*h)[:j]
}

// Clone returns a deep copy of the headers.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	clone := make(Headers, len(h))
	copy(clone, h)
	return clone
}

// ContentLength returns the Content-Length header value, or -1 if absent or invalid.
func (h Headers) ContentLength() int64 {
	v := h.Get("Content-Length")
	if v == "" {
		return -1
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// IsChunked returns true if Transfer-Encoding contains "chunked".
func (h Headers) IsChunked() bool {
	for _, v := range h.Values("Transfer-Encoding") {
		if fastparser.HasToken(v, "chunked") {
			return true
		}
	}
	return false
}

// Marshaler is the interface implemented by types that can marshal themselves
// into valid HTTP wire format.
type Marshaler interface {
	MarshalHTTP() ([]byte, error)
}

// Unmarshaler is the interface implemented by types that can unmarshal
// an HTTP wire-format description of themselves.
type Unmarshaler interface {
	UnmarshalHTTP([]byte) error
}
