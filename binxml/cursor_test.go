package binxml

import (
	"errors"
	"testing"
)

// TestCursorReads verifies little-endian scalar reads advance the
// cursor and fail with ErrUnexpectedEOF instead of slicing past the
// buffer.
func TestCursorReads(t *testing.T) {
	c := newCursor([]byte{0x2a, 0x34, 0x12, 0x78, 0x56, 0x34, 0x12})

	b, err := c.readU8()
	if err != nil || b != 0x2a {
		t.Fatalf("readU8 = %#x, %v", b, err)
	}
	v16, err := c.readU16()
	if err != nil || v16 != 0x1234 {
		t.Fatalf("readU16 = %#x, %v", v16, err)
	}
	v32, err := c.readU32()
	if err != nil || v32 != 0x12345678 {
		t.Fatalf("readU32 = %#x, %v", v32, err)
	}
	if c.remaining() != 0 {
		t.Fatalf("remaining = %d, want 0", c.remaining())
	}
	if _, err := c.readU8(); !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("readU8 at end: %v", err)
	}

	// A u32 straddling the end must not consume the partial bytes.
	c = newCursor([]byte{1, 2, 3})
	if _, err := c.readU32(); !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("short readU32: %v", err)
	}
}

func TestCursorSeek(t *testing.T) {
	c := newCursor(make([]byte, 4))
	if err := c.seek(4); err != nil {
		t.Fatalf("seek to end: %v", err)
	}
	if err := c.seek(5); !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("seek past end: %v", err)
	}
	if err := c.seek(-1); !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("negative seek: %v", err)
	}
	if err := c.skip(3); !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("skip from end: %v", err)
	}
}

// TestReadChunkHeader exercises the three structural invariants every
// chunk header must satisfy before its body is touched.
func TestReadChunkHeader(t *testing.T) {
	valid := appendU32(appendU16(appendU16(nil, uint16(ChunkElementStart)), 16), 36)

	c := newCursor(valid)
	hdr, start, err := c.readChunkHeader(36)
	if err != nil {
		t.Fatalf("valid header: %v", err)
	}
	if start != 0 || hdr.typ != ChunkElementStart || hdr.headerSize != 16 || hdr.size != 36 {
		t.Fatalf("header = %+v at %d", hdr, start)
	}

	cases := []struct {
		name       string
		headerSize uint16
		size       uint32
		limit      int
	}{
		{"header_size too small", 4, 36, 100},
		{"chunk_size below header_size", 16, 12, 100},
		{"chunk_size past region end", 16, 36, 20},
	}
	for _, tc := range cases {
		b := appendU32(appendU16(appendU16(nil, uint16(ChunkElementStart)), tc.headerSize), tc.size)
		c := newCursor(b)
		_, _, err := c.readChunkHeader(tc.limit)
		var mc MalformedChunkError
		if !errors.As(err, &mc) {
			t.Fatalf("%s: got %v, want MalformedChunkError", tc.name, err)
		}
		if mc.Type != ChunkElementStart || mc.Size != tc.size {
			t.Fatalf("%s: error fields %+v", tc.name, mc)
		}
	}

	// Truncated header.
	c = newCursor(valid[:6])
	if _, _, err := c.readChunkHeader(6); !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("truncated header: %v", err)
	}
}
