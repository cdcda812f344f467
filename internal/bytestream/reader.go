// Package bytestream provides byte-order aware primitive reads and writes
// over buffered streams and growable byte buffers.
//
// The byte order is fixed when a Reader or Writer is constructed; there is
// no package-level default.
package bytestream

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

const defaultBufferSize = 4096

// Reader reads primitives and delimited fields from a buffered stream.
// A Reader is not safe for concurrent use.
type Reader struct {
	r     *bufio.Reader
	order binary.ByteOrder
	count int64 // bytes consumed
}

// NewReader returns a Reader over r using the given byte order for
// multi-byte integers. size is the read buffer size (0 for the default).
func NewReader(r io.Reader, order binary.ByteOrder, size int) *Reader {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Reader{r: bufio.NewReaderSize(r, size), order: order}
}

// Order returns the byte order used for multi-byte integers.
func (r *Reader) Order() binary.ByteOrder { return r.order }

// Count returns the total number of bytes consumed so far.
func (r *Reader) Count() int64 { return r.count }

// Reset discards buffered data and the byte count and reads from src.
func (r *Reader) Reset(src io.Reader) {
	r.r.Reset(src)
	r.count = 0
}

// Peek returns the next n bytes without consuming them.
func (r *Reader) Peek(n int) ([]byte, error) {
	b, err := r.r.Peek(n)
	if err != nil {
		if len(b) == 0 && errors.Is(err, io.EOF) {
			return nil, ErrEndOfInput
		}
		return b, classify("peek", n, len(b), err)
	}
	return b, nil
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, classify("byte", 1, 0, err)
	}
	r.count++
	return b, nil
}

// ReadFull reads exactly n bytes into a newly allocated slice.
func (r *Reader) ReadFull(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	got, err := io.ReadFull(r.r, buf)
	r.count += int64(got)
	if err != nil {
		return nil, classify("full", n, got, err)
	}
	return buf, nil
}

// Discard skips the next n bytes.
func (r *Reader) Discard(n int) (int, error) {
	got, err := r.r.Discard(n)
	r.count += int64(got)
	if err != nil {
		return got, classify("discard", n, got, err)
	}
	return got, nil
}

// ReadUint8 reads one byte as an unsigned integer.
func (r *Reader) ReadUint8() (uint8, error) {
	return r.ReadByte()
}

// ReadUint16 reads a 2-byte unsigned integer in the reader's byte order.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.fixed("uint16", 2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

// ReadUint32 reads a 4-byte unsigned integer in the reader's byte order.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.fixed("uint32", 4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

// ReadUint64 reads an 8-byte unsigned integer in the reader's byte order.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.fixed("uint64", 8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

func (r *Reader) fixed(op string, n int) ([]byte, error) {
	var scratch [8]byte
	got, err := io.ReadFull(r.r, scratch[:n])
	r.count += int64(got)
	if err != nil {
		return nil, classify(op, n, got, err)
	}
	return scratch[:n], nil
}

// ReadLine reads up to and including the next LF and returns the line
// without its CRLF or LF terminator. The returned slice is a copy.
// If max > 0, a line longer than max bytes (terminator excluded) fails
// with an overlong ProtocolViolation.
func (r *Reader) ReadLine(max int) ([]byte, error) {
	var line []byte
	for {
		frag, err := r.r.ReadSlice('\n')
		r.count += int64(len(frag))
		line = append(line, frag...)
		if max > 0 && contentLen(line) > max {
			return nil, &ProtocolViolation{Op: "line", Want: max, Got: len(line), Reason: reasonOverlong}
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return nil, classify("line", max, len(line), err)
	}
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, nil
}

// contentLen returns the length of line without a trailing CRLF or LF.
func contentLen(line []byte) int {
	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		n--
		if n > 0 && line[n-1] == '\r' {
			n--
		}
	}
	return n
}

// classify turns a raw read error into ErrEndOfInput or a ProtocolViolation.
func classify(op string, want, got int, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		if got == 0 {
			return ErrEndOfInput
		}
		return &ProtocolViolation{Op: op, Want: want, Got: got, Reason: reasonTruncated, Err: err}
	}
	return &ProtocolViolation{Op: op, Want: want, Got: got, Reason: "read failed", Err: err}
}
