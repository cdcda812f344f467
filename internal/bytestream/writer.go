package bytestream

import (
	"encoding/binary"
	"io"
	"strconv"
)

// Writer accumulates primitives into a growable byte buffer.
type Writer struct {
	buf   []byte
	order binary.ByteOrder
}

// NewWriter returns a Writer using the given byte order with an initial
// capacity of size bytes.
func NewWriter(order binary.ByteOrder, size int) *Writer {
	if size < 0 {
		size = 0
	}
	return &Writer{buf: make([]byte, 0, size), order: order}
}

// Order returns the byte order used for multi-byte integers.
func (w *Writer) Order() binary.ByteOrder { return w.order }

// Bytes returns the accumulated bytes. The slice aliases the buffer until
// the next write or Reset.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of accumulated bytes.
func (w *Writer) Len() int { return len(w.buf) }

// Reset empties the buffer, keeping its capacity.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

// Write appends p. It never fails.
func (w *Writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// WriteBytes appends p.
func (w *Writer) WriteBytes(p []byte) { w.buf = append(w.buf, p...) }

// WriteString appends s.
func (w *Writer) WriteString(s string) { w.buf = append(w.buf, s...) }

// WriteByte appends b.
func (w *Writer) WriteByte(b byte) error {
	w.buf = append(w.buf, b)
	return nil
}

// WriteCRLF appends "\r\n".
func (w *Writer) WriteCRLF() { w.buf = append(w.buf, '\r', '\n') }

// WriteInt appends the decimal form of n.
func (w *Writer) WriteInt(n int64) { w.buf = strconv.AppendInt(w.buf, n, 10) }

// WriteUint8 appends v.
func (w *Writer) WriteUint8(v uint8) { w.buf = append(w.buf, v) }

// WriteUint16 appends v in the writer's byte order.
func (w *Writer) WriteUint16(v uint16) {
	var b [2]byte
	w.order.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteUint32 appends v in the writer's byte order.
func (w *Writer) WriteUint32(v uint32) {
	var b [4]byte
	w.order.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteUint64 appends v in the writer's byte order.
func (w *Writer) WriteUint64(v uint64) {
	var b [8]byte
	w.order.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteTo writes the accumulated bytes to dst. The buffer is left intact.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	n, err := dst.Write(w.buf)
	return int64(n), err
}
