package binxml

import (
	"io"
	"os"
)

// Decode decodes a binary XML buffer into textual XML using default
// settings. Callers that need strict mode, nesting limits, or the
// recorded warnings construct a Decoder instead.
func Decode(buf []byte) ([]byte, error) {
	return NewDecoder(buf).Decode()
}

// DecodeFile reads the file at path into memory and decodes it.
func DecodeFile(path string) ([]byte, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(buf)
}

// DecodeReader reads r to its end and decodes the result. The reader
// must supply the whole chunk stream; decoding is not incremental.
func DecodeReader(r io.Reader) ([]byte, error) {
	bb := GetByteBuffer()
	defer PutByteBuffer(bb)
	if _, err := bb.ReadFrom(r); err != nil {
		return nil, err
	}
	return Decode(bb.Bytes())
}
