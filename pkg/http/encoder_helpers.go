package http

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shapestone/shape-httpd/internal/bytestream"
	"github.com/shapestone/shape-httpd/internal/fastparser"
)

// writeRequestLine writes "METHOD TARGET VERSION\r\n".
func writeRequestLine(w *bytestream.Writer, method, target, version string) {
	w.WriteString(method)
	w.WriteByte(' ')
	w.WriteString(target)
	w.WriteByte(' ')
	w.WriteString(version)
	w.WriteCRLF()
}

// writeStatusLine writes "VERSION STATUS REASON\r\n".
func writeStatusLine(w *bytestream.Writer, version string, statusCode int, reason string) {
	w.WriteString(version)
	w.WriteByte(' ')
	w.WriteInt(int64(statusCode))
	w.WriteByte(' ')
	w.WriteString(reason)
	w.WriteCRLF()
}

// writeHeaders writes all headers in "Key: Value\r\n" format.
func writeHeaders(w *bytestream.Writer, headers Headers) {
	for _, h := range headers {
		writeHeader(w, h.Key, h.Value)
	}
}

// checkHeaders reports the first header that cannot be written as a single
// field line.
func checkHeaders(headers Headers) error {
	for _, h := range headers {
		if err := checkHeaderField(h.Key, h.Value); err != nil {
			return err
		}
	}
	return nil
}

func checkHeaderField(key, value string) error {
	if !fastparser.IsToken(key) {
		return fmt.Errorf("%w: name %q", ErrInvalidHeader, key)
	}
	if !safeFieldText(value) {
		return fmt.Errorf("%w: value of %s contains CR, LF or NUL", ErrInvalidHeader, key)
	}
	return nil
}

// safeFieldText reports whether s can appear inside a start or field line.
func safeFieldText(s string) bool {
	return !strings.ContainsAny(s, "\r\n\x00")
}

func writeHeader(w *bytestream.Writer, key, value string) {
	w.WriteString(key)
	w.WriteByte(':')
	w.WriteByte(' ')
	w.WriteString(value)
	w.WriteCRLF()
}

func writeContentLength(w *bytestream.Writer, n int) {
	w.WriteString("Content-Length: ")
	w.WriteInt(int64(n))
	w.WriteCRLF()
}

// writeChunk writes p as a single chunk followed by the last-chunk marker.
func writeChunk(w *bytestream.Writer, p []byte) {
	if len(p) > 0 {
		w.WriteString(strconv.FormatInt(int64(len(p)), 16))
		w.WriteCRLF()
		w.WriteBytes(p)
		w.WriteCRLF()
	}
	w.WriteString("0\r\n\r\n")
}
