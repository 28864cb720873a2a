package binxml

import "unicode/utf16"

// Test fixtures are built directly in the binary format, chunk by
// chunk, the way aapt lays documents out: an XML wrapper holding a
// string pool, an optional resource map, and the node chunks. The
// builder keeps every size canonical (node header 16, element
// extension 20, attribute records 20) unless a test overrides the
// attribute stride.

func appendU16(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}

func appendU32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// axmlAttr describes one attribute record for the builder.
type axmlAttr struct {
	ns   string // namespace URI, "" for none
	name string
	typ  ValueType
	data uint32
	str  string // TypeString payload, mirrored into raw_value
}

func strAttr(ns, name, value string) axmlAttr {
	return axmlAttr{ns: ns, name: name, typ: TypeString, str: value}
}

func intAttr(ns, name string, v int32) axmlAttr {
	return axmlAttr{ns: ns, name: name, typ: TypeIntDec, data: uint32(v)}
}

func boolAttr(ns, name string, v bool) axmlAttr {
	a := axmlAttr{ns: ns, name: name, typ: TypeBoolean}
	if v {
		a.data = 0xFFFFFFFF
	}
	return a
}

func typedAttr(ns, name string, typ ValueType, data uint32) axmlAttr {
	return axmlAttr{ns: ns, name: name, typ: typ, data: data}
}

// axmlBuilder assembles one binary XML document. Strings intern on
// first use; names that the resource map should cover must be added
// first, through resID, so the map stays aligned with the low pool
// indexes.
type axmlBuilder struct {
	utf8     bool
	attrSize uint16 // 0 means the canonical 20-byte record

	strs  []string
	index map[string]uint32
	res   []uint32
	body  []byte
}

func newAxml() *axmlBuilder {
	return &axmlBuilder{index: make(map[string]uint32)}
}

func (b *axmlBuilder) intern(s string) uint32 {
	if i, ok := b.index[s]; ok {
		return i
	}
	i := uint32(len(b.strs))
	b.strs = append(b.strs, s)
	b.index[s] = i
	return i
}

// resID interns name and assigns it the given resource ID. Every call
// must precede the first regular intern.
func (b *axmlBuilder) resID(name string, id uint32) {
	if len(b.res) != len(b.strs) {
		panic("resID after other strings were interned")
	}
	b.index[name] = uint32(len(b.strs))
	b.strs = append(b.strs, name)
	b.res = append(b.res, id)
}

// node appends one XML node chunk around body: chunk header, line,
// no comment.
func (b *axmlBuilder) node(typ ChunkType, line uint32, body []byte) {
	b.body = appendU16(b.body, uint16(typ))
	b.body = appendU16(b.body, nodeHeaderSize)
	b.body = appendU32(b.body, uint32(nodeHeaderSize+len(body)))
	b.body = appendU32(b.body, line)
	b.body = appendU32(b.body, noEntry)
	b.body = append(b.body, body...)
}

func (b *axmlBuilder) nsChunk(typ ChunkType, line uint32, prefix, uri string) {
	p := b.intern(prefix)
	u := b.intern(uri)
	var body []byte
	body = appendU32(body, p)
	body = appendU32(body, u)
	b.node(typ, line, body)
}

func (b *axmlBuilder) startNS(line uint32, prefix, uri string) {
	b.nsChunk(ChunkNSStart, line, prefix, uri)
}

func (b *axmlBuilder) endNS(line uint32, prefix, uri string) {
	b.nsChunk(ChunkNSEnd, line, prefix, uri)
}

func (b *axmlBuilder) start(line uint32, ns, name string, attrs ...axmlAttr) {
	nsIdx := noEntry
	if ns != "" {
		nsIdx = b.intern(ns)
	}
	nameIdx := b.intern(name)

	stride := b.attrSize
	if stride == 0 {
		stride = attributeSize
	}

	var body []byte
	body = appendU32(body, nsIdx)
	body = appendU32(body, nameIdx)
	body = appendU16(body, elementExtSize) // attribute_start
	body = appendU16(body, stride)
	body = appendU16(body, uint16(len(attrs)))
	body = appendU16(body, 0) // id index
	body = appendU16(body, 0) // class index
	body = appendU16(body, 0) // style index

	for _, a := range attrs {
		aNS := noEntry
		if a.ns != "" {
			aNS = b.intern(a.ns)
		}
		aName := b.intern(a.name)
		raw := noEntry
		data := a.data
		if a.typ == TypeString {
			raw = b.intern(a.str)
			data = raw
		}
		body = appendU32(body, aNS)
		body = appendU32(body, aName)
		body = appendU32(body, raw)
		body = appendU16(body, 8) // Res_value size
		body = append(body, 0, byte(a.typ))
		body = appendU32(body, data)
		for i := attributeSize; i < int(stride); i++ {
			body = append(body, 0)
		}
	}
	b.node(ChunkElementStart, line, body)
}

func (b *axmlBuilder) end(line uint32, ns, name string) {
	nsIdx := noEntry
	if ns != "" {
		nsIdx = b.intern(ns)
	}
	nameIdx := b.intern(name)
	var body []byte
	body = appendU32(body, nsIdx)
	body = appendU32(body, nameIdx)
	b.node(ChunkElementEnd, line, body)
}

// text appends a character-data chunk whose payload is pool text.
func (b *axmlBuilder) text(line uint32, s string) {
	idx := b.intern(s)
	var body []byte
	body = appendU32(body, idx)
	body = appendU16(body, 8)
	body = append(body, 0, byte(TypeString))
	body = appendU32(body, idx)
	b.node(ChunkCDATA, line, body)
}

// typedText appends a character-data chunk carrying only a typed
// value, the shape aapt emits for non-string payloads.
func (b *axmlBuilder) typedText(line uint32, typ ValueType, data uint32) {
	var body []byte
	body = appendU32(body, noEntry)
	body = appendU16(body, 8)
	body = append(body, 0, byte(typ))
	body = appendU32(body, data)
	b.node(ChunkCDATA, line, body)
}

// raw appends pre-assembled chunk bytes to the node stream verbatim.
func (b *axmlBuilder) raw(chunk []byte) {
	b.body = append(b.body, chunk...)
}

// rawChunk appends a chunk with an arbitrary header, for malformed and
// unknown-type cases.
func (b *axmlBuilder) rawChunk(typ uint16, headerSize uint16, size uint32, payload []byte) {
	b.body = appendU16(b.body, typ)
	b.body = appendU16(b.body, headerSize)
	b.body = appendU32(b.body, size)
	b.body = append(b.body, payload...)
}

// poolChunk encodes the interned strings as a standalone string-pool
// chunk, UTF-16 by default.
func (b *axmlBuilder) poolChunk() []byte {
	var data []byte
	offsets := make([]uint32, len(b.strs))
	for i, s := range b.strs {
		offsets[i] = uint32(len(data))
		if b.utf8 {
			data = appendUTF8Entry(data, s)
		} else {
			data = appendUTF16Entry(data, s)
		}
	}
	for len(data)%4 != 0 {
		data = append(data, 0)
	}

	stringsStart := uint32(poolHeaderSize + 4*len(b.strs))
	var out []byte
	out = appendU16(out, uint16(ChunkStringPool))
	out = appendU16(out, poolHeaderSize)
	out = appendU32(out, stringsStart+uint32(len(data)))
	out = appendU32(out, uint32(len(b.strs)))
	out = appendU32(out, 0) // style_count
	var flags uint32
	if b.utf8 {
		flags = utf8Flag
	}
	out = appendU32(out, flags)
	out = appendU32(out, stringsStart)
	out = appendU32(out, 0) // styles_start
	for _, off := range offsets {
		out = appendU32(out, off)
	}
	return append(out, data...)
}

func (b *axmlBuilder) resChunk() []byte {
	if len(b.res) == 0 {
		return nil
	}
	var out []byte
	out = appendU16(out, uint16(ChunkResourceMap))
	out = appendU16(out, chunkHeaderSize)
	out = appendU32(out, uint32(chunkHeaderSize+4*len(b.res)))
	for _, id := range b.res {
		out = appendU32(out, id)
	}
	return out
}

// bytes assembles the complete document behind an XML wrapper chunk.
func (b *axmlBuilder) bytes() []byte {
	pool := b.poolChunk()
	res := b.resChunk()
	total := chunkHeaderSize + len(pool) + len(res) + len(b.body)
	var out []byte
	out = appendU16(out, uint16(ChunkXML))
	out = appendU16(out, chunkHeaderSize)
	out = appendU32(out, uint32(total))
	out = append(out, pool...)
	out = append(out, res...)
	return append(out, b.body...)
}

// stream assembles the document without the outer wrapper, the layout
// some tools emit.
func (b *axmlBuilder) stream() []byte {
	out := b.poolChunk()
	out = append(out, b.resChunk()...)
	return append(out, b.body...)
}

func appendUTF16Entry(data []byte, s string) []byte {
	units := utf16.Encode([]rune(s))
	if n := len(units); n >= 0x8000 {
		data = appendU16(data, uint16(0x8000|(n>>16)))
		data = appendU16(data, uint16(n))
	} else {
		data = appendU16(data, uint16(n))
	}
	for _, u := range units {
		data = appendU16(data, u)
	}
	return appendU16(data, 0)
}

func appendUTF8Entry(data []byte, s string) []byte {
	data = appendUTF8Len(data, len([]rune(s)))
	data = appendUTF8Len(data, len(s))
	data = append(data, s...)
	return append(data, 0)
}

func appendUTF8Len(data []byte, n int) []byte {
	if n >= 0x80 {
		return append(data, byte(0x80|n>>8), byte(n))
	}
	return append(data, byte(n))
}

// buildManifest returns a representative manifest document: declared
// android namespace, resource-mapped attribute names, the pool-named
// package attribute, and nested components.
func buildManifest() []byte {
	b := newAxml()
	b.resID("versionCode", 0x0101021b)
	b.resID("versionName", 0x0101021c)
	b.resID("minSdkVersion", 0x0101020c)
	b.resID("targetSdkVersion", 0x01010270)
	b.resID("name", 0x01010003)
	b.resID("label", 0x01010001)
	b.resID("debuggable", 0x0101000f)

	b.startNS(2, "android", NamespaceAndroid)
	b.start(2, "", "manifest",
		strAttr("", "package", "com.example.app"),
		intAttr(NamespaceAndroid, "versionCode", 31),
		strAttr(NamespaceAndroid, "versionName", "1.2.3"),
	)
	b.start(3, "", "uses-sdk",
		intAttr(NamespaceAndroid, "minSdkVersion", 21),
		intAttr(NamespaceAndroid, "targetSdkVersion", 33),
	)
	b.end(3, "", "uses-sdk")
	b.start(4, "", "uses-permission",
		strAttr(NamespaceAndroid, "name", "android.permission.INTERNET"),
	)
	b.end(4, "", "uses-permission")
	b.start(5, "", "application",
		strAttr(NamespaceAndroid, "label", "Example"),
		boolAttr(NamespaceAndroid, "debuggable", true),
	)
	b.start(6, "", "activity",
		strAttr(NamespaceAndroid, "name", ".MainActivity"),
	)
	b.start(7, "", "intent-filter")
	b.start(8, "", "action",
		strAttr(NamespaceAndroid, "name", "android.intent.action.MAIN"),
	)
	b.end(8, "", "action")
	b.start(9, "", "category",
		strAttr(NamespaceAndroid, "name", "android.intent.category.LAUNCHER"),
	)
	b.end(9, "", "category")
	b.end(7, "", "intent-filter")
	b.end(6, "", "activity")
	b.end(5, "", "application")
	b.end(2, "", "manifest")
	b.endNS(2, "android", NamespaceAndroid)
	return b.bytes()
}

// manifestXML is the exact decoding of buildManifest.
const manifestXML = xmlDeclaration +
	`<manifest xmlns:android="http://schemas.android.com/apk/res/android"` +
	` package="com.example.app" android:versionCode="31" android:versionName="1.2.3">` +
	`<uses-sdk android:minSdkVersion="21" android:targetSdkVersion="33"></uses-sdk>` +
	`<uses-permission android:name="android.permission.INTERNET"></uses-permission>` +
	`<application android:label="Example" android:debuggable="true">` +
	`<activity android:name=".MainActivity">` +
	`<intent-filter>` +
	`<action android:name="android.intent.action.MAIN"></action>` +
	`<category android:name="android.intent.category.LAUNCHER"></category>` +
	`</intent-filter>` +
	`</activity>` +
	`</application>` +
	`</manifest>`
