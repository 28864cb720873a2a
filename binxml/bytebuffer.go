package binxml

import (
	"io"
	"sync"
)

// ByteBuffer is the pooled buffer documents are rendered into. Decode
// sizes it off the input up front (decoded text tracks input size
// closely), so a steady-state run appends without reallocating.
type ByteBuffer struct {
	b []byte
}

var bbPool = sync.Pool{New: func() any { return &ByteBuffer{b: make([]byte, 0, 1024)} }}

// GetByteBuffer returns an empty pooled buffer.
func GetByteBuffer() *ByteBuffer {
	bb := bbPool.Get().(*ByteBuffer)
	bb.Reset()
	return bb
}

// GetMinSize returns an empty pooled buffer with capacity for at least
// size bytes.
func GetMinSize(size int) *ByteBuffer {
	bb := GetByteBuffer()
	bb.Ensure(size)
	return bb
}

// PutByteBuffer hands a buffer back to the pool. Callers copy out any
// bytes they still need first; the pool may give the buffer to another
// run immediately.
func PutByteBuffer(bb *ByteBuffer) {
	bb.Reset()
	bbPool.Put(bb)
}

// Bytes returns the rendered bytes, valid until the buffer goes back
// to the pool.
func (bb *ByteBuffer) Bytes() []byte { return bb.b }

// Len returns the number of rendered bytes.
func (bb *ByteBuffer) Len() int { return len(bb.b) }

// Reset empties the buffer, keeping its capacity.
func (bb *ByteBuffer) Reset() { bb.b = bb.b[:0] }

// Ensure grows the buffer so that n more bytes fit without another
// reallocation.
func (bb *ByteBuffer) Ensure(n int) {
	need := len(bb.b) + n
	if cap(bb.b) >= need {
		return
	}
	c := 2 * cap(bb.b)
	if c < need {
		c = need
	}
	grown := make([]byte, len(bb.b), c)
	copy(grown, bb.b)
	bb.b = grown
}

// Write implements io.Writer.
func (bb *ByteBuffer) Write(p []byte) (int, error) {
	bb.b = append(bb.b, p...)
	return len(p), nil
}

// WriteString appends s.
func (bb *ByteBuffer) WriteString(s string) (int, error) {
	bb.b = append(bb.b, s...)
	return len(s), nil
}

// WriteByte appends a single byte.
func (bb *ByteBuffer) WriteByte(c byte) error {
	bb.b = append(bb.b, c)
	return nil
}

// ReadFrom implements io.ReaderFrom; DecodeReader drains its source
// through this.
func (bb *ByteBuffer) ReadFrom(r io.Reader) (int64, error) {
	var total int64
	for {
		if len(bb.b) == cap(bb.b) {
			bb.Ensure(32 * 1024)
		}
		n, err := r.Read(bb.b[len(bb.b):cap(bb.b)])
		if n > 0 {
			bb.b = bb.b[:len(bb.b)+n]
			total += int64(n)
		}
		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			return total, err
		}
	}
}
