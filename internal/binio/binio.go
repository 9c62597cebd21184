// Package binio layers byte-order aware primitives over the sticky-error
// readers and writers of github.com/anaminus/parse.
//
// Every method returns true when it failed. Once a failure occurs, all
// following calls fail as well, and the error is available from Err or End.
package binio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/anaminus/parse"
)

// ErrStringLength indicates a length prefix that is negative or exceeds the
// bytes remaining in the stream.
var ErrStringLength = errors.New("string length out of range")

// maxCString bounds null-terminated strings so that corrupt data cannot make a
// reader consume an entire file looking for a terminator.
const maxCString = 1 << 12

// Reader reads fixed-size values in Order.
type Reader struct {
	*parse.BinaryReader

	// Order is the byte order of multi-byte values. It may be changed
	// between reads.
	Order binary.ByteOrder

	// Max, when positive, is the total number of bytes available to the
	// reader. Length-prefixed reads are checked against it before
	// allocating.
	Max int64

	buf [8]byte
}

// NewReader returns a Reader that reads from r in the given order.
func NewReader(r io.Reader, order binary.ByteOrder) *Reader {
	return &Reader{BinaryReader: parse.NewBinaryReader(r), Order: order}
}

// NewSectionReader returns a Reader over the n bytes of r starting at off,
// with Max set to n.
func NewSectionReader(r io.ReaderAt, off, n int64, order binary.ByteOrder) *Reader {
	br := NewReader(io.NewSectionReader(r, off, n), order)
	br.Max = n
	return br
}

// Fail records err as the reader's error. It always returns true.
func (r *Reader) Fail(err error) bool {
	r.Add(0, err)
	return true
}

func (r *Reader) U8(v *uint8) (failed bool) {
	if r.Bytes(r.buf[:1]) {
		return true
	}
	*v = r.buf[0]
	return false
}

func (r *Reader) Bool(v *bool) (failed bool) {
	var b uint8
	if r.U8(&b) {
		return true
	}
	*v = b != 0
	return false
}

func (r *Reader) U16(v *uint16) (failed bool) {
	if r.Bytes(r.buf[:2]) {
		return true
	}
	*v = r.Order.Uint16(r.buf[:2])
	return false
}

func (r *Reader) I16(v *int16) (failed bool) {
	var u uint16
	failed = r.U16(&u)
	*v = int16(u)
	return failed
}

func (r *Reader) U32(v *uint32) (failed bool) {
	if r.Bytes(r.buf[:4]) {
		return true
	}
	*v = r.Order.Uint32(r.buf[:4])
	return false
}

func (r *Reader) I32(v *int32) (failed bool) {
	var u uint32
	failed = r.U32(&u)
	*v = int32(u)
	return failed
}

func (r *Reader) U64(v *uint64) (failed bool) {
	if r.Bytes(r.buf[:8]) {
		return true
	}
	*v = r.Order.Uint64(r.buf[:8])
	return false
}

func (r *Reader) I64(v *int64) (failed bool) {
	var u uint64
	failed = r.U64(&u)
	*v = int64(u)
	return failed
}

func (r *Reader) F32(v *float32) (failed bool) {
	var u uint32
	failed = r.U32(&u)
	*v = math.Float32frombits(u)
	return failed
}

func (r *Reader) F64(v *float64) (failed bool) {
	var u uint64
	failed = r.U64(&u)
	*v = math.Float64frombits(u)
	return failed
}

// CString reads a null-terminated string.
func (r *Reader) CString(v *string) (failed bool) {
	var s []byte
	for {
		if r.Bytes(r.buf[:1]) {
			return true
		}
		if r.buf[0] == 0 {
			break
		}
		if len(s) >= maxCString {
			return r.Fail(ErrStringLength)
		}
		s = append(s, r.buf[0])
	}
	*v = string(s)
	return false
}

// String reads a string prefixed with its int32 byte length. No alignment is
// applied after the content.
func (r *Reader) String(v *string) (failed bool) {
	var length int32
	if r.I32(&length) {
		return true
	}
	if length < 0 || r.Max > 0 && int64(length) > r.Max-r.N() {
		return r.Fail(fmt.Errorf("%w: %d", ErrStringLength, length))
	}
	s := make([]byte, length)
	if r.Bytes(s) {
		return true
	}
	*v = string(s)
	return false
}

// Skip discards n bytes.
func (r *Reader) Skip(n int64) (failed bool) {
	if n < 0 {
		return r.Fail(fmt.Errorf("negative skip %d", n))
	}
	if r.Max > 0 && n > r.Max-r.N() {
		return r.Fail(io.ErrUnexpectedEOF)
	}
	var scratch [512]byte
	for n > 0 {
		c := int64(len(scratch))
		if n < c {
			c = n
		}
		if r.Bytes(scratch[:c]) {
			return true
		}
		n -= c
	}
	return false
}

// Align discards bytes until the number of bytes read is a multiple of n.
func (r *Reader) Align(n int64) (failed bool) {
	if pad := r.N() % n; pad != 0 {
		return r.Skip(n - pad)
	}
	return r.Err() != nil
}

////////////////////////////////////////////////////////////////

// Writer writes fixed-size values in Order. N reports the number of bytes
// written so far.
type Writer struct {
	*parse.BinaryWriter

	Order binary.ByteOrder

	n   int64
	buf [8]byte
}

// NewWriter returns a Writer that writes to w in the given order.
func NewWriter(w io.Writer, order binary.ByteOrder) *Writer {
	return &Writer{BinaryWriter: parse.NewBinaryWriter(w), Order: order}
}

// N returns the number of bytes successfully written.
func (w *Writer) N() int64 {
	return w.n
}

// Raw writes p as is.
func (w *Writer) Raw(p []byte) (failed bool) {
	if w.Bytes(p) {
		return true
	}
	w.n += int64(len(p))
	return false
}

func (w *Writer) U8(v uint8) (failed bool) {
	w.buf[0] = v
	return w.Raw(w.buf[:1])
}

func (w *Writer) Bool(v bool) (failed bool) {
	if v {
		return w.U8(1)
	}
	return w.U8(0)
}

func (w *Writer) U16(v uint16) (failed bool) {
	w.Order.PutUint16(w.buf[:2], v)
	return w.Raw(w.buf[:2])
}

func (w *Writer) I16(v int16) (failed bool) {
	return w.U16(uint16(v))
}

func (w *Writer) U32(v uint32) (failed bool) {
	w.Order.PutUint32(w.buf[:4], v)
	return w.Raw(w.buf[:4])
}

func (w *Writer) I32(v int32) (failed bool) {
	return w.U32(uint32(v))
}

func (w *Writer) U64(v uint64) (failed bool) {
	w.Order.PutUint64(w.buf[:8], v)
	return w.Raw(w.buf[:8])
}

func (w *Writer) I64(v int64) (failed bool) {
	return w.U64(uint64(v))
}

// CString writes s followed by a null byte.
func (w *Writer) CString(s string) (failed bool) {
	if w.Raw([]byte(s)) {
		return true
	}
	return w.U8(0)
}

// String writes s prefixed with its int32 byte length.
func (w *Writer) String(s string) (failed bool) {
	if w.I32(int32(len(s))) {
		return true
	}
	return w.Raw([]byte(s))
}

// Zero writes n zero bytes.
func (w *Writer) Zero(n int64) (failed bool) {
	var scratch [512]byte
	for n > 0 {
		c := int64(len(scratch))
		if n < c {
			c = n
		}
		if w.Raw(scratch[:c]) {
			return true
		}
		n -= c
	}
	return false
}

// Align writes zero bytes until N is a multiple of n.
func (w *Writer) Align(n int64) (failed bool) {
	if pad := w.n % n; pad != 0 {
		return w.Zero(n - pad)
	}
	return w.Err() != nil
}
