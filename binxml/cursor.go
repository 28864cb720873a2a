package binxml

import "encoding/binary"

// cursor provides a minimal bounds-checked little-endian reader over
// the input buffer. All reads return ErrUnexpectedEOF instead of
// panicking when the buffer runs out; the position is tracked so that
// terminal errors can report the byte offset they occurred at.
type cursor struct {
	buf []byte
	off int
}

// newCursor constructs a cursor over the provided buffer.
func newCursor(b []byte) *cursor { return &cursor{buf: b} }

// pos returns the current byte offset from the start of the buffer.
func (c *cursor) pos() int { return c.off }

// remaining returns the number of unread bytes.
func (c *cursor) remaining() int { return len(c.buf) - c.off }

func (c *cursor) readU8() (uint8, error) {
	if c.remaining() < 1 {
		return 0, ErrUnexpectedEOF
	}
	v := c.buf[c.off]
	c.off++
	return v, nil
}

func (c *cursor) readU16() (uint16, error) {
	if c.remaining() < 2 {
		return 0, ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint16(c.buf[c.off:])
	c.off += 2
	return v, nil
}

func (c *cursor) readU32() (uint32, error) {
	if c.remaining() < 4 {
		return 0, ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint32(c.buf[c.off:])
	c.off += 4
	return v, nil
}

// skip advances past n bytes without reading them.
func (c *cursor) skip(n int) error {
	if n < 0 || c.remaining() < n {
		return ErrUnexpectedEOF
	}
	c.off += n
	return nil
}

// seek positions the cursor at an absolute offset. Seeking to
// len(buf) is allowed and leaves the cursor at end of input.
func (c *cursor) seek(off int) error {
	if off < 0 || off > len(c.buf) {
		return ErrUnexpectedEOF
	}
	c.off = off
	return nil
}

// chunkHeader is the 8-byte record prefix shared by every chunk.
type chunkHeader struct {
	typ        ChunkType
	headerSize uint16
	size       uint32
}

// readChunkHeader reads and validates one chunk header at the current
// position. limit is the exclusive end of the region the whole chunk
// must fit inside. It returns the header and the offset the chunk
// started at; the caller re-seeks to start+size once the chunk has
// been handled.
func (c *cursor) readChunkHeader(limit int) (chunkHeader, int, error) {
	start := c.pos()
	var hdr chunkHeader
	t, err := c.readU16()
	if err != nil {
		return hdr, start, err
	}
	hdr.typ = ChunkType(t)
	if hdr.headerSize, err = c.readU16(); err != nil {
		return hdr, start, err
	}
	if hdr.size, err = c.readU32(); err != nil {
		return hdr, start, err
	}
	switch {
	case hdr.headerSize < chunkHeaderSize:
		return hdr, start, MalformedChunkError{Offset: start, Type: hdr.typ, Size: hdr.size, Reason: "header_size below the 8-byte minimum"}
	case hdr.size < uint32(hdr.headerSize):
		return hdr, start, MalformedChunkError{Offset: start, Type: hdr.typ, Size: hdr.size, Reason: "chunk_size smaller than header_size"}
	case int64(start)+int64(hdr.size) > int64(limit):
		return hdr, start, MalformedChunkError{Offset: start, Type: hdr.typ, Size: hdr.size, Reason: "chunk_size exceeds the enclosing region"}
	}
	return hdr, start, nil
}
