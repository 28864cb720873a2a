package binxml

import (
	"bytes"
	"testing"
)

// FuzzDecode feeds arbitrary bytes through the full decode pipeline
// across the option matrix. Any input may be rejected, but none may
// panic, return partial output alongside an error, or decode
// differently on a second run of the same Decoder.
func FuzzDecode(f *testing.F) {
	f.Add(buildManifest())

	// Truncated mid-chunk.
	f.Add(buildManifest()[:23])

	// Corrupted top-level chunk type.
	mut := buildManifest()
	mut[0] ^= 0xFF
	f.Add(mut)

	// Chunk size pointing far past the buffer.
	far := buildManifest()
	far[4], far[5], far[6], far[7] = 0xFF, 0xFF, 0xFF, 0x7F
	f.Add(far)

	f.Add([]byte{})
	f.Add([]byte("<?xml version=\"1.0\"?><manifest/>"))
	f.Add([]byte{0x03, 0x00, 0x08, 0x00, 0xFF, 0xFF, 0xFF, 0xFF})
	f.Add([]byte{0x01, 0x00, 0x1C, 0x00, 0x1C, 0x00, 0x00, 0x00})

	configs := []struct {
		strict  bool
		resolve bool
		depth   uint32
	}{
		{strict: false, resolve: true},
		{strict: true, resolve: true},
		{strict: false, resolve: false},
		{strict: true, resolve: false, depth: 8},
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("panic on input %x: %v", data, r)
			}
		}()

		for _, cfg := range configs {
			d := NewDecoder(data)
			d.SetStrict(cfg.strict)
			d.SetResolveAttrNames(cfg.resolve)
			if cfg.depth > 0 {
				d.SetMaxDepth(cfg.depth)
			}

			out, err := d.Decode()
			if err != nil && out != nil {
				t.Fatalf("error %q returned alongside output", err)
			}

			again, errAgain := d.Decode()
			if (err == nil) != (errAgain == nil) {
				t.Fatalf("second decode error mismatch: %v vs %v", err, errAgain)
			}
			if !bytes.Equal(out, again) {
				t.Fatalf("second decode produced different output")
			}
		}
	})
}
