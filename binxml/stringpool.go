package binxml

import (
	"encoding/binary"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// String-pool header flag bits (ResStringPool_header::flags).
const (
	sortedFlag uint32 = 1 << 0
	utf8Flag   uint32 = 1 << 8

	knownPoolFlags = sortedFlag | utf8Flag
)

// stringPool is the arena of every text literal in the document,
// addressed by u32 index. It is built once per run and shared
// read-only by all later decoding stages.
type stringPool struct {
	strs       []string
	styleCount uint32 // style records exist in the buffer but carry no text
}

// count returns the number of strings in the pool. A nil pool counts
// as empty, which covers documents whose pool chunk never arrived.
func (p *stringPool) count() uint32 {
	if p == nil {
		return 0
	}
	return uint32(len(p.strs))
}

// get returns the pool string at index i. off is the byte offset of
// the chunk holding the reference, reported on failure.
func (p *stringPool) get(off int, i uint32) (string, error) {
	if i >= p.count() {
		return "", StringIndexError{Offset: off, Index: i, Count: p.count()}
	}
	return p.strs[i], nil
}

// decodeStringPool decodes a string-pool chunk whose header has
// already been read. The cursor sits just past the chunk header;
// start is the chunk's byte offset.
//
// Pool layout: five u32 header fields, then string_count u32 offsets
// relative to strings_start, then the encoded string data (UTF-8 or
// UTF-16 per the flags), then optional style records. Strings decode
// eagerly; styles are counted and left to the outer loop's re-seek.
func decodeStringPool(c *cursor, hdr chunkHeader, start int) (*stringPool, error) {
	malformed := func(reason string) error {
		return MalformedChunkError{Offset: start, Type: hdr.typ, Size: hdr.size, Reason: reason}
	}

	if hdr.headerSize < poolHeaderSize {
		return nil, malformed("header_size below the string-pool minimum")
	}

	var stringCount, styleCount, flags, stringsStart, stylesStart uint32
	var err error
	if stringCount, err = c.readU32(); err != nil {
		return nil, err
	}
	if styleCount, err = c.readU32(); err != nil {
		return nil, err
	}
	if flags, err = c.readU32(); err != nil {
		return nil, err
	}
	if stringsStart, err = c.readU32(); err != nil {
		return nil, err
	}
	if stylesStart, err = c.readU32(); err != nil {
		return nil, err
	}

	if flags&^knownPoolFlags != 0 {
		return nil, UnsupportedEncodingError{Offset: start, Flags: flags}
	}

	end := start + int(hdr.size)
	offsetsAt := start + int(hdr.headerSize)
	if err := c.seek(offsetsAt); err != nil {
		return nil, err
	}
	if uint64(stringCount)*4 > uint64(end-offsetsAt) {
		return nil, malformed("string offset table exceeds the chunk")
	}

	if stringsStart > hdr.size {
		return nil, malformed("strings_start outside the chunk")
	}
	dataStart := start + int(stringsStart)
	dataEnd := end
	if styleCount > 0 && stylesStart != 0 {
		if stylesStart > hdr.size {
			return nil, malformed("styles_start outside the chunk")
		}
		ds := start + int(stylesStart)
		if ds < dataStart {
			return nil, malformed("styles_start before strings_start")
		}
		dataEnd = ds
	}

	p := &stringPool{
		strs:       make([]string, 0, stringCount),
		styleCount: styleCount,
	}
	utf8Pool := flags&utf8Flag != 0
	for i := uint32(0); i < stringCount; i++ {
		rel, err := c.readU32()
		if err != nil {
			return nil, err
		}
		at := int64(dataStart) + int64(rel)
		if at > int64(dataEnd) {
			return nil, malformed("string offset outside the pool data")
		}
		var s string
		var ok bool
		if utf8Pool {
			s, ok = decodeUTF8At(c.buf, int(at), dataEnd)
		} else {
			s, ok = decodeUTF16At(c.buf, int(at), dataEnd)
		}
		if !ok {
			return nil, malformed("string data outside the pool bounds")
		}
		p.strs = append(p.strs, s)
	}
	return p, nil
}

// decodeUTF8At decodes one UTF-8 pool entry at off. The entry carries
// two lengths, character count then byte count, each one byte or two
// bytes with the high bit of the first set; the byte count selects the
// data. Invalid sequences decode to U+FFFD instead of failing.
func decodeUTF8At(b []byte, off, end int) (string, bool) {
	_, off, ok := readLenUTF8(b, off, end)
	if !ok {
		return "", false
	}
	var n int
	if n, off, ok = readLenUTF8(b, off, end); !ok {
		return "", false
	}
	if off+n > end {
		return "", false
	}
	return lossyString(b[off : off+n]), true
}

// readLenUTF8 reads a UTF-8 pool length: one byte, extended to two
// when the high bit is set ((b0 & 0x7F) << 8 | b1).
func readLenUTF8(b []byte, off, end int) (int, int, bool) {
	if off >= end {
		return 0, off, false
	}
	v := int(b[off])
	off++
	if v&0x80 != 0 {
		if off >= end {
			return 0, off, false
		}
		v = (v&0x7F)<<8 | int(b[off])
		off++
	}
	return v, off, true
}

// decodeUTF16At decodes one UTF-16LE pool entry at off: a code-unit
// count, extended to 31 bits when the high bit is set, then the units.
// Unpaired surrogates decode to U+FFFD.
func decodeUTF16At(b []byte, off, end int) (string, bool) {
	n, off, ok := readLenUTF16(b, off, end)
	if !ok {
		return "", false
	}
	if off+2*n > end {
		return "", false
	}
	if n == 0 {
		return "", true
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[off+2*i:])
	}
	return string(utf16.Decode(units)), true
}

// readLenUTF16 reads a UTF-16 pool length: one u16, extended to two
// when the high bit is set ((u0 & 0x7FFF) << 16 | u1).
func readLenUTF16(b []byte, off, end int) (int, int, bool) {
	if off+2 > end {
		return 0, off, false
	}
	v := int(binary.LittleEndian.Uint16(b[off:]))
	off += 2
	if v&0x8000 != 0 {
		if off+2 > end {
			return 0, off, false
		}
		v = (v&0x7FFF)<<16 | int(binary.LittleEndian.Uint16(b[off:]))
		off += 2
	}
	return v, off, true
}

// lossyString converts raw pool bytes to a string, substituting U+FFFD
// for each invalid byte rather than aborting the decode.
func lossyString(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, n := utf8.DecodeRune(b)
		sb.WriteRune(r)
		b = b[n:]
	}
	return sb.String()
}
