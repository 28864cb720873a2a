// Package binxml decodes Android's compiled binary XML format (the
// AndroidManifest.xml representation found inside APKs) into plain
// textual XML.
//
// The input is a little-endian stream of self-describing chunks: a
// string pool holding every text literal, an optional map of
// attribute-name indexes to Android resource IDs, and a sequence of
// document nodes (namespace start/end, element start/end, character
// data). This package defines three layers:
//   - Decode/DecodeFile/DecodeReader, one-shot helpers that take a
//     buffer (or read one) and return the document as XML bytes.
//   - Decoder, a configurable run over one input buffer: strict
//     structural checking, nesting limits, attribute-name recovery
//     through the resource map, and recorded warnings.
//   - Per-chunk decoders operating on a bounds-checked cursor; these
//     never panic on truncated or hostile input.
//
// One Decoder owns one input buffer for the duration of a run.
// Independent runs over different buffers are safe to execute
// concurrently; nothing in this package shares mutable state.
package binxml

// ChunkType identifies one record in the binary XML chunk stream.
type ChunkType uint16

// Chunk types (frameworks/base/libs/androidfw ResourceTypes.h). Types
// with the 0x0100 bit set are XML document nodes; the rest are global
// tables or container records.
const (
	ChunkNull         ChunkType = 0x0000
	ChunkStringPool   ChunkType = 0x0001
	ChunkTable        ChunkType = 0x0002
	ChunkXML          ChunkType = 0x0003
	ChunkNSStart      ChunkType = 0x0100
	ChunkNSEnd        ChunkType = 0x0101
	ChunkElementStart ChunkType = 0x0102
	ChunkElementEnd   ChunkType = 0x0103
	ChunkCDATA        ChunkType = 0x0104
	ChunkResourceMap  ChunkType = 0x0180

	chunkMaskXML ChunkType = 0x0100
)

// String implements fmt.Stringer
func (t ChunkType) String() string {
	switch t {
	case ChunkNull:
		return "null"
	case ChunkStringPool:
		return "string pool"
	case ChunkTable:
		return "resource table"
	case ChunkXML:
		return "xml document"
	case ChunkNSStart:
		return "namespace start"
	case ChunkNSEnd:
		return "namespace end"
	case ChunkElementStart:
		return "element start"
	case ChunkElementEnd:
		return "element end"
	case ChunkCDATA:
		return "cdata"
	case ChunkResourceMap:
		return "resource map"
	default:
		return "unknown"
	}
}

// ValueType is the type tag of a typed attribute or CDATA value
// (frameworks/base Res_value::dataType).
type ValueType uint8

// Value type tags. Tags absent from this list are rendered through the
// raw hex fallback; they are not errors.
const (
	TypeNull             ValueType = 0x00
	TypeReference        ValueType = 0x01
	TypeAttribute        ValueType = 0x02
	TypeString           ValueType = 0x03
	TypeFloat            ValueType = 0x04
	TypeDimension        ValueType = 0x05
	TypeFraction         ValueType = 0x06
	TypeDynamicReference ValueType = 0x07
	TypeIntDec           ValueType = 0x10
	TypeIntHex           ValueType = 0x11
	TypeBoolean          ValueType = 0x12
	TypeColorARGB8       ValueType = 0x1c
	TypeColorRGB8        ValueType = 0x1d
	TypeColorARGB4       ValueType = 0x1e
	TypeColorRGB4        ValueType = 0x1f
)

// String implements fmt.Stringer
func (t ValueType) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeReference:
		return "reference"
	case TypeAttribute:
		return "attribute"
	case TypeString:
		return "string"
	case TypeFloat:
		return "float"
	case TypeDimension:
		return "dimension"
	case TypeFraction:
		return "fraction"
	case TypeDynamicReference:
		return "dynamic reference"
	case TypeIntDec:
		return "int"
	case TypeIntHex:
		return "hex int"
	case TypeBoolean:
		return "bool"
	case TypeColorARGB8, TypeColorRGB8, TypeColorARGB4, TypeColorRGB4:
		return "color"
	default:
		return "<unknown>"
	}
}

// NamespaceAndroid is the URI of the android: resource namespace used
// by every framework attribute in a manifest.
const NamespaceAndroid = "http://schemas.android.com/apk/res/android"

const (
	// chunkHeaderSize is the fixed 8-byte prefix of every chunk:
	// type u16, header_size u16, chunk_size u32.
	chunkHeaderSize = 8

	// nodeHeaderSize covers the chunk header plus the line number and
	// comment index every XML node chunk carries.
	nodeHeaderSize = 16

	// poolHeaderSize covers the chunk header plus the five u32 fields
	// of the string-pool header.
	poolHeaderSize = 28

	// elementExtSize is the fixed part of an element-start body.
	elementExtSize = 20

	// attributeSize is the canonical size of one attribute record.
	// Files may declare a larger stride; the extra bytes are skipped.
	attributeSize = 20
)

// noEntry is the u32 sentinel for an absent index: no namespace, no
// comment, no raw string value.
const noEntry uint32 = 0xFFFFFFFF
