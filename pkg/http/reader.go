package http

import (
	"encoding/binary"
	"io"
	"mime"
	"strings"

	"github.com/shapestone/shape-httpd/internal/bytestream"
	"github.com/shapestone/shape-httpd/internal/fastparser"
	"github.com/shapestone/shape-httpd/internal/tokenizer"
)

// Default Reader limits.
const (
	DefaultMaxLineBytes   = 8 << 10
	DefaultMaxHeaderBytes = 64 << 10
	DefaultMaxBodyBytes   = 8 << 20
)

// maxLeadingEmptyLines is how many stray CRLFs before a request line are
// ignored (RFC 9112 section 2.2).
const maxLeadingEmptyLines = 4

// Reader reads HTTP requests from an input stream in HTTP/1.x wire format.
// A single Reader is not safe for concurrent use; one Reader serves one
// connection.
type Reader struct {
	br        *bytestream.Reader
	maxLine   int
	maxHeader int
	maxBody   int64
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithMaxLineBytes limits the request line and chunk-size lines.
func WithMaxLineBytes(n int) ReaderOption { return func(r *Reader) { r.maxLine = n } }

// WithMaxHeaderBytes limits the total size of the header section.
func WithMaxHeaderBytes(n int) ReaderOption { return func(r *Reader) { r.maxHeader = n } }

// WithMaxBodyBytes limits the (decoded) body size.
func WithMaxBodyBytes(n int64) ReaderOption { return func(r *Reader) { r.maxBody = n } }

// NewReader returns a new Reader that reads from r.
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	rd := &Reader{
		maxLine:   DefaultMaxLineBytes,
		maxHeader: DefaultMaxHeaderBytes,
		maxBody:   DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(rd)
	}
	// Network byte order for any binary framing read off the same stream.
	rd.br = bytestream.NewReader(r, binary.BigEndian, 0)
	return rd
}

// Count returns the number of bytes consumed from the stream so far.
func (r *Reader) Count() int64 { return r.br.Count() }

// Wait blocks until the first byte of the next request is available
// without consuming it. It returns ErrEndOfInput if the stream ends first,
// or the underlying read error.
func (r *Reader) Wait() error {
	_, err := r.br.Peek(1)
	return err
}

// ReadRequest reads and parses the next request.
//
// It returns ErrEndOfInput if the stream ends before the first byte of a
// request, and a *ParseError for anything else that prevents a complete,
// well-formed request from being read.
func (r *Reader) ReadRequest() (*Request, error) {
	line, err := r.br.ReadLine(r.maxLine)
	for skipped := 0; err == nil && len(line) == 0 && skipped < maxLeadingEmptyLines; skipped++ {
		line, err = r.br.ReadLine(r.maxLine)
	}
	if err != nil {
		if err == bytestream.ErrEndOfInput {
			return nil, ErrEndOfInput
		}
		return nil, wrapReadError(err, SectionRequestLine, 1)
	}

	req, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	headers, lines, err := r.readHeaders()
	if err != nil {
		return nil, err
	}
	req.Headers = headers

	body, err := r.readBody(headers, lines)
	if err != nil {
		return nil, err
	}
	req.Body = body

	if err := decodeContent(req); err != nil {
		return nil, err
	}
	return req, nil
}

// parseRequestLine parses "METHOD SP request-target SP HTTP-version".
func parseRequestLine(line []byte) (*Request, error) {
	for _, c := range line {
		if c < 0x20 || c >= 0x7f {
			return nil, newParseError(KindMalformed, SectionRequestLine, "invalid byte in request line", 1)
		}
	}

	tok := tokenizer.NewRequestLineTokenizer()
	tok.Initialize(string(line))
	tokens, eos := tok.Tokenize()
	if !eos || len(tokens) != 5 ||
		tokens[0].Kind() != tokenizer.TokenText ||
		tokens[1].Kind() != tokenizer.TokenSP ||
		tokens[2].Kind() != tokenizer.TokenText ||
		tokens[3].Kind() != tokenizer.TokenSP ||
		tokens[4].Kind() != tokenizer.TokenText {
		return nil, newParseError(KindMalformed, SectionRequestLine, "malformed request line", 1)
	}

	method := fastparser.InternMethod([]byte(tokens[0].ValueString()))
	if !fastparser.IsToken(method) {
		return nil, newParseError(KindMalformed, SectionRequestLine, "invalid request method", 1)
	}
	rawVersion := tokens[4].ValueString()
	version, ok := fastparser.InternVersion([]byte(rawVersion))
	if !ok {
		if strings.HasPrefix(rawVersion, "HTTP/") {
			return nil, newParseError(KindUnsupportedVersion, SectionRequestLine, "unsupported version "+rawVersion, 1)
		}
		return nil, newParseError(KindMalformed, SectionRequestLine, "malformed version "+rawVersion, 1)
	}

	req := &Request{Method: method, Target: tokens[2].ValueString(), Version: version}
	if err := splitTarget(req); err != nil {
		return nil, err
	}
	return req, nil
}

// splitTarget fills Path, Segments, RawQuery and Query from Target.
// Origin-form ("/a?b"), absolute-form ("http://h/a?b") and asterisk-form
// ("*") are accepted.
func splitTarget(req *Request) error {
	target := req.Target
	if target == "*" {
		req.Path = "*"
		return nil
	}

	for _, scheme := range []string{"http", "https"} {
		prefix := scheme + "://"
		if len(target) > len(prefix) && fastparser.EqFold(target[:len(prefix)], prefix) {
			req.Scheme = scheme
			rest := target[len(prefix):]
			if i := strings.IndexAny(rest, "/?"); i >= 0 {
				target = rest[i:]
			} else {
				target = "/"
			}
			if target[0] == '?' {
				target = "/" + target
			}
			break
		}
	}
	if target == "" || target[0] != '/' {
		return newParseError(KindMalformed, SectionRequestLine, "invalid request target", 1)
	}

	path, rawQuery, _ := strings.Cut(target, "?")
	segs, err := fastparser.SplitPath(path)
	if err != nil {
		return &ParseError{Kind: KindMalformed, Section: SectionRequestLine, Message: "bad path", Line: 1, Err: err}
	}
	query, err := ParseQuery(rawQuery)
	if err != nil {
		return &ParseError{Kind: KindMalformed, Section: SectionRequestLine, Message: "bad query string", Line: 1, Err: err}
	}
	req.Path, req.Segments, req.RawQuery, req.Query = path, segs, rawQuery, query
	return nil
}

// readHeaders reads header lines until an empty line. It returns the
// headers and the number of lines read, request line included.
func (r *Reader) readHeaders() (Headers, int, error) {
	var headers Headers
	total := 0
	lineNo := 1

	for {
		lineNo++
		line, err := r.br.ReadLine(r.maxHeader)
		if err != nil {
			return nil, lineNo, wrapReadError(err, SectionHeader, lineNo)
		}
		total += len(line) + 2
		if total > r.maxHeader {
			return nil, lineNo, newParseError(KindTooLarge, SectionHeader, "header section too large", lineNo)
		}

		// Empty line = end of headers
		if len(line) == 0 {
			return headers, lineNo, nil
		}

		if fastparser.IsContinuation(line) {
			if len(headers) == 0 {
				return nil, lineNo, newParseError(KindMalformed, SectionHeader, "continuation line before first header", lineNo)
			}
			last := &headers[len(headers)-1]
			last.Value = fastparser.FoldContinuation(last.Value, line)
			continue
		}

		h, err := fastparser.ParseHeaderLine(line)
		if err != nil {
			return nil, lineNo, &ParseError{Kind: KindMalformed, Section: SectionHeader, Message: "bad header line", Line: lineNo, Err: err}
		}
		headers = append(headers, Header{Key: h.Key, Value: h.Value})
	}
}

// readBody reads the message body based on headers.
// Transfer-Encoding: chunked wins; otherwise Content-Length; otherwise
// there is no body.
func (r *Reader) readBody(headers Headers, lineNo int) ([]byte, error) {
	if headers.Has("Transfer-Encoding") {
		if headers.Has("Content-Length") {
			return nil, newParseError(KindMalformed, SectionHeader, "both Transfer-Encoding and Content-Length present", 0)
		}
		// chunked must be the final coding
		te := strings.Join(headers.Values("Transfer-Encoding"), ",")
		codings := strings.Split(te, ",")
		if last := strings.TrimSpace(codings[len(codings)-1]); !fastparser.EqFold(last, "chunked") {
			return nil, newParseError(KindMalformed, SectionHeader, "unsupported Transfer-Encoding "+te, 0)
		}
		return r.readChunkedBody(lineNo)
	}

	cls := headers.Values("Content-Length")
	if len(cls) == 0 {
		return nil, nil
	}
	var cl int64 = -1
	for _, v := range cls {
		n, err := fastparser.ParseContentLength(v)
		if err != nil {
			return nil, &ParseError{Kind: KindMalformed, Section: SectionHeader, Message: "bad Content-Length", Err: err}
		}
		if cl >= 0 && n != cl {
			return nil, newParseError(KindMalformed, SectionHeader, "conflicting Content-Length values", 0)
		}
		cl = n
	}
	if cl == 0 {
		return nil, nil
	}
	if cl > r.maxBody {
		return nil, newParseError(KindTooLarge, SectionBody, "body exceeds limit", 0)
	}
	body, err := r.br.ReadFull(int(cl))
	if err != nil {
		return nil, wrapReadError(err, SectionBody, 0)
	}
	return body, nil
}

// readChunkedBody reads a chunked transfer-encoded body from the stream.
// Trailer fields are read and discarded.
func (r *Reader) readChunkedBody(lineNo int) ([]byte, error) {
	var result []byte

	for {
		lineNo++
		sizeLine, err := r.br.ReadLine(r.maxLine)
		if err != nil {
			return nil, wrapReadError(err, SectionBody, lineNo)
		}
		size, err := fastparser.ParseChunkSize(sizeLine)
		if err != nil {
			return nil, &ParseError{Kind: KindMalformed, Section: SectionBody, Message: "bad chunk size", Line: lineNo, Err: err}
		}

		if size == 0 {
			break
		}
		if int64(len(result))+int64(size) > r.maxBody {
			return nil, newParseError(KindTooLarge, SectionBody, "body exceeds limit", lineNo)
		}

		chunk, err := r.br.ReadFull(size)
		if err != nil {
			return nil, wrapReadError(err, SectionBody, lineNo)
		}
		result = append(result, chunk...)

		// CRLF after chunk data
		lineNo++
		end, err := r.br.ReadLine(r.maxLine)
		if err != nil {
			return nil, wrapReadError(err, SectionBody, lineNo)
		}
		if len(end) != 0 {
			return nil, newParseError(KindMalformed, SectionBody, "missing CRLF after chunk data", lineNo)
		}
	}

	total := 0
	for {
		lineNo++
		trailer, err := r.br.ReadLine(r.maxHeader)
		if err != nil {
			return nil, wrapReadError(err, SectionBody, lineNo)
		}
		if len(trailer) == 0 {
			break
		}
		total += len(trailer) + 2
		if total > r.maxHeader {
			return nil, newParseError(KindTooLarge, SectionHeader, "trailer section too large", lineNo)
		}
	}

	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

// decodeContent fills Cookies, Form and Parts from headers and body.
func decodeContent(req *Request) error {
	for _, v := range req.Headers.Values("Cookie") {
		req.Cookies = append(req.Cookies, ParseCookies(v)...)
	}

	ct := req.Headers.Get("Content-Type")
	if ct == "" {
		return nil
	}
	mt, params, err := mime.ParseMediaType(ct)
	if err != nil {
		if strings.HasPrefix(strings.ToLower(ct), "multipart/") {
			return &ParseError{Kind: KindMalformed, Section: SectionHeader, Message: "bad Content-Type", Err: err}
		}
		return nil
	}

	switch mt {
	case "application/x-www-form-urlencoded":
		form, err := ParseQuery(string(req.Body))
		if err != nil {
			return &ParseError{Kind: KindMalformed, Section: SectionBody, Message: "bad form body", Err: err}
		}
		req.Form = form
	case "multipart/form-data":
		parts, _, err := parseMultipart(req.Body, params)
		if err != nil {
			return err
		}
		req.Parts = parts
	}
	return nil
}
