package binxml

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	// defaultMaxDepth bounds element nesting. Real manifests nest a
	// handful of levels; anything near this limit is hostile input.
	defaultMaxDepth = 4096

	xmlDeclaration = "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n"
)

// attrEscaper rewrites text for use inside a double-quoted attribute
// value.
var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
)

// textEscaper rewrites character data between tags.
var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// nsFrame is one active prefix-to-URI binding.
type nsFrame struct {
	prefix string
	uri    string
	// declared is set once the binding has been rendered as an xmlns
	// attribute on an element.
	declared bool
}

// openElement is one entry of the open-tag stack. Identity for
// matching end chunks is the pool-index pair, not the rendered name,
// so prefix changes cannot fake a mismatch.
type openElement struct {
	qname string
	name  uint32
	ns    uint32
}

// Decoder decodes one binary XML buffer into textual XML.
//
// Configure it, call Decode, then inspect Warnings for the anomalies
// the run absorbed. A Decoder must not be shared across goroutines,
// but any number of Decoders may run concurrently.
type Decoder struct {
	buf []byte

	pool   *stringPool
	res    resourceMap
	scopes []nsFrame
	open   []openElement

	strict       bool
	resolveNames bool
	emitDecl     bool
	maxDepth     int

	rootSeen bool
	warnings []Warning
}

// NewDecoder constructs a Decoder over the provided buffer with
// default settings: attribute-name recovery on, XML declaration on,
// lenient structural handling.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{
		buf:          buf,
		resolveNames: true,
		emitDecl:     true,
		maxDepth:     defaultMaxDepth,
	}
}

// SetStrict controls whether structural mismatches (element-end or
// namespace-end chunks that do not match the open frame) abort the
// decode instead of being recorded as warnings.
func (d *Decoder) SetStrict(strict bool) { d.strict = strict }

// SetResolveAttrNames controls whether attribute names are recovered
// through the resource map when the string pool has been stripped or
// obfuscated. Enabled by default; disabling it reproduces the pool
// text verbatim.
func (d *Decoder) SetResolveAttrNames(resolve bool) { d.resolveNames = resolve }

// SetEmitDeclaration controls whether the output begins with an
// <?xml?> declaration. Enabled by default.
func (d *Decoder) SetEmitDeclaration(emit bool) { d.emitDecl = emit }

// SetMaxDepth configures an upper bound on element nesting. A value
// of zero restores the default. When exceeded, ErrTooDeep is
// returned.
func (d *Decoder) SetMaxDepth(max uint32) {
	if max == 0 {
		d.maxDepth = defaultMaxDepth
		return
	}
	d.maxDepth = int(max)
}

// Warnings returns the recoverable anomalies recorded by the last
// Decode call, in encounter order.
func (d *Decoder) Warnings() []Warning { return d.warnings }

// Decode runs the chunk stream to completion and returns the document
// as UTF-8 XML bytes. The contract is binary: a complete well-formed
// document, or a terminal error and no output.
func (d *Decoder) Decode() ([]byte, error) {
	if isPlainTextXML(d.buf) {
		return nil, ErrPlainTextXML
	}

	d.pool = nil
	d.res = resourceMap{}
	d.scopes = d.scopes[:0]
	d.open = d.open[:0]
	d.rootSeen = false
	d.warnings = nil

	c := newCursor(d.buf)
	hdr, start, err := c.readChunkHeader(len(d.buf))
	if err != nil {
		return nil, err
	}

	out := GetMinSize(len(d.buf))
	defer PutByteBuffer(out)

	if d.emitDecl {
		out.WriteString(xmlDeclaration)
	}

	if hdr.typ == ChunkXML {
		err = d.decodeStream(c, out, start+int(hdr.headerSize), start+int(hdr.size))
	} else {
		// No document wrapper; the buffer itself is the chunk stream.
		err = d.decodeStream(c, out, start, len(d.buf))
	}
	if err != nil {
		return nil, err
	}
	if !d.rootSeen {
		return nil, MalformedChunkError{Offset: start, Type: hdr.typ, Size: hdr.size, Reason: "document has no root element"}
	}

	res := make([]byte, out.Len())
	copy(res, out.Bytes())
	return res, nil
}

// decodeStream walks the chunks in [from, to), dispatching each to its
// decoder and re-seeking to the declared boundary afterwards.
func (d *Decoder) decodeStream(c *cursor, out *ByteBuffer, from, to int) error {
	if err := c.seek(from); err != nil {
		return err
	}
	for c.pos() < to {
		hdr, start, err := c.readChunkHeader(to)
		if err != nil {
			return err
		}
		if err := d.decodeChunk(c, out, hdr, start); err != nil {
			return err
		}
		// Unconditional re-seek: unknown trailing fields or a decoder
		// bug must never desynchronize the stream.
		if err := c.seek(start + int(hdr.size)); err != nil {
			return err
		}
	}
	// The binary form guarantees matching end chunks; close whatever
	// is left open so the output stays well-formed without them.
	for len(d.open) > 0 {
		top := d.open[len(d.open)-1]
		d.open = d.open[:len(d.open)-1]
		if err := d.structural(StructuralMismatchError{Offset: to, Want: top.qname}); err != nil {
			return err
		}
		out.WriteString("</")
		out.WriteString(top.qname)
		out.WriteByte('>')
	}
	return nil
}

func (d *Decoder) decodeChunk(c *cursor, out *ByteBuffer, hdr chunkHeader, start int) error {
	switch hdr.typ {
	case ChunkStringPool:
		if d.pool != nil {
			d.warnf(start, 0, "additional string pool ignored")
			return nil
		}
		pool, err := decodeStringPool(c, hdr, start)
		if err != nil {
			return err
		}
		d.pool = pool
		return nil
	case ChunkResourceMap:
		res, err := decodeResourceMap(c, hdr, start)
		if err != nil {
			return err
		}
		d.res = res
		return nil
	case ChunkNSStart:
		return d.startNamespace(c, hdr, start)
	case ChunkNSEnd:
		return d.endNamespace(c, hdr, start)
	case ChunkElementStart:
		return d.startElement(c, out, hdr, start)
	case ChunkElementEnd:
		return d.endElement(c, out, hdr, start)
	case ChunkCDATA:
		return d.cdata(c, out, hdr, start)
	case ChunkNull:
		return nil
	default:
		if hdr.typ&chunkMaskXML != 0 {
			d.warnf(start, 0, "unknown xml node chunk 0x%04x skipped", uint16(hdr.typ))
		} else {
			d.warnf(start, 0, "unknown chunk 0x%04x skipped", uint16(hdr.typ))
		}
		return nil
	}
}

func (d *Decoder) startNamespace(c *cursor, hdr chunkHeader, start int) error {
	ns, err := decodeNSNode(c, hdr, start)
	if err != nil {
		return err
	}
	var f nsFrame
	if ns.prefix != noEntry {
		if f.prefix, err = d.pool.get(start, ns.prefix); err != nil {
			return err
		}
	}
	if ns.uri != noEntry {
		if f.uri, err = d.pool.get(start, ns.uri); err != nil {
			return err
		}
	}
	d.scopes = append(d.scopes, f)
	return nil
}

func (d *Decoder) endNamespace(c *cursor, hdr chunkHeader, start int) error {
	ns, err := decodeNSNode(c, hdr, start)
	if err != nil {
		return err
	}
	var uri string
	if ns.uri != noEntry {
		if uri, err = d.pool.get(start, ns.uri); err != nil {
			return err
		}
	}
	if len(d.scopes) == 0 {
		return d.structural(StructuralMismatchError{Offset: start, Line: ns.node.line, Got: "xmlns " + uri})
	}
	top := d.scopes[len(d.scopes)-1]
	d.scopes = d.scopes[:len(d.scopes)-1]
	if top.uri != uri {
		return d.structural(StructuralMismatchError{Offset: start, Line: ns.node.line, Want: "xmlns " + top.uri, Got: "xmlns " + uri})
	}
	return nil
}

func (d *Decoder) startElement(c *cursor, out *ByteBuffer, hdr chunkHeader, start int) error {
	el, err := decodeElementStart(c, hdr, start)
	if err != nil {
		return err
	}
	if len(d.open) >= d.maxDepth {
		return ErrTooDeep
	}
	if len(d.open) == 0 && d.rootSeen {
		return MalformedChunkError{Offset: start, Type: hdr.typ, Size: hdr.size, Reason: "multiple root elements"}
	}

	name, err := d.pool.get(start, el.name)
	if err != nil {
		return err
	}
	qname := name
	if el.ns != noEntry {
		uri, err := d.pool.get(start, el.ns)
		if err != nil {
			return err
		}
		if prefix, ok := d.prefixFor(uri); ok {
			if prefix != "" {
				qname = prefix + ":" + name
			}
		} else {
			d.warnf(start, el.node.line, "element %q in undeclared namespace %q", name, uri)
		}
	}

	out.WriteByte('<')
	out.WriteString(qname)

	// Bindings pushed since the parent element are declared here.
	for i := range d.scopes {
		f := &d.scopes[i]
		if f.declared {
			continue
		}
		f.declared = true
		out.WriteString(" xmlns")
		if f.prefix != "" {
			out.WriteByte(':')
			out.WriteString(f.prefix)
		}
		out.WriteString("=\"")
		attrEscaper.WriteString(out, f.uri)
		out.WriteByte('"')
	}

	for i := range el.attrs {
		if err := d.writeAttribute(out, start, name, &el.attrs[i], el.node.line); err != nil {
			return err
		}
	}
	out.WriteByte('>')

	d.open = append(d.open, openElement{qname: qname, name: el.name, ns: el.ns})
	d.rootSeen = true
	return nil
}

func (d *Decoder) endElement(c *cursor, out *ByteBuffer, hdr chunkHeader, start int) error {
	el, err := decodeElementEnd(c, hdr, start)
	if err != nil {
		return err
	}
	name, err := d.pool.get(start, el.name)
	if err != nil {
		return err
	}
	qname := name
	if el.ns != noEntry {
		uri, err := d.pool.get(start, el.ns)
		if err != nil {
			return err
		}
		if prefix, ok := d.prefixFor(uri); ok && prefix != "" {
			qname = prefix + ":" + name
		}
	}

	if len(d.open) == 0 {
		return d.structural(StructuralMismatchError{Offset: start, Line: el.node.line, Got: qname})
	}
	top := d.open[len(d.open)-1]
	d.open = d.open[:len(d.open)-1]
	if top.name != el.name || top.ns != el.ns {
		if err := d.structural(StructuralMismatchError{Offset: start, Line: el.node.line, Want: top.qname, Got: qname}); err != nil {
			return err
		}
	}
	out.WriteString("</")
	out.WriteString(top.qname)
	out.WriteByte('>')
	return nil
}

func (d *Decoder) cdata(c *cursor, out *ByteBuffer, hdr chunkHeader, start int) error {
	cd, err := decodeCDATA(c, hdr, start)
	if err != nil {
		return err
	}
	if len(d.open) == 0 {
		d.warnf(start, cd.node.line, "character data outside any element skipped")
		return nil
	}
	var text string
	if cd.data != noEntry {
		if text, err = d.pool.get(start, cd.data); err != nil {
			return err
		}
	} else if text, err = formatValue(d.pool, start, cd.typ, cd.val); err != nil {
		return err
	}
	textEscaper.WriteString(out, text)
	return nil
}

// writeAttribute renders one attribute record, resolving its name and
// namespace per attrName and its value through the raw string or the
// typed-value formatter.
func (d *Decoder) writeAttribute(out *ByteBuffer, start int, element string, a *attribute, line uint32) error {
	name, uri, err := d.attrName(start, element, a)
	if err != nil {
		return WrapError(err, element)
	}
	if name == "" {
		d.warnf(start, line, "attribute with unresolvable name on %q skipped", element)
		return nil
	}

	var prefix string
	if uri != "" {
		if p, ok := d.prefixFor(uri); ok {
			prefix = p
		} else if uri == NamespaceAndroid {
			// Resource-ID attributes belong to the android namespace
			// even when the document never declared it.
			prefix = "android"
		} else {
			d.warnf(start, line, "attribute %q in undeclared namespace %q", name, uri)
		}
	}

	var value string
	if a.rawValue != noEntry {
		if value, err = d.pool.get(start, a.rawValue); err != nil {
			return WrapError(err, element, name)
		}
	} else if value, err = formatValue(d.pool, start, a.typ, a.data); err != nil {
		return WrapError(err, element, name)
	}

	out.WriteByte(' ')
	if prefix != "" {
		out.WriteString(prefix)
		out.WriteByte(':')
	}
	out.WriteString(name)
	out.WriteString("=\"")
	attrEscaper.WriteString(out, value)
	out.WriteByte('"')
	return nil
}

// attrName resolves one attribute's rendered name and namespace URI.
//
// Android resolves manifest attributes by resource ID, not by pool
// text, and obfuscators exploit that by stripping the names; when the
// resource map covers the name index and maps it to a known framework
// attribute, that name is authoritative. The exception is "package"
// (and the unparsed "platformBuildVersion*" pair) on the manifest
// element, which must come from the pool. A resource-ID-named
// attribute always lives in the android namespace even when the
// record leaves the namespace blank.
func (d *Decoder) attrName(start int, element string, a *attribute) (name, uri string, err error) {
	if a.ns != noEntry {
		if uri, err = d.pool.get(start, a.ns); err != nil {
			return "", "", err
		}
	}

	var resName string
	if d.resolveNames {
		if id, ok := d.res.id(a.name); ok {
			resName = androidAttrName(id)
		}
	}

	var poolName string
	if resName == "" || element == "manifest" {
		poolName, err = d.pool.get(start, a.name)
		if err != nil {
			if resName == "" {
				return "", "", err
			}
			// The resource ID already named the attribute; a stripped
			// pool entry on top of that is survivable.
			poolName, err = "", nil
		} else if resName != "" && poolName != "package" && !strings.HasPrefix(poolName, "platformBuildVersion") {
			poolName = ""
		}
	}

	if poolName != "" {
		return poolName, uri, nil
	}
	if resName != "" {
		if uri == "" {
			uri = NamespaceAndroid
		}
		return resName, uri, nil
	}
	return "", uri, nil
}

// prefixFor resolves a namespace URI to its innermost declared prefix.
func (d *Decoder) prefixFor(uri string) (string, bool) {
	for i := len(d.scopes) - 1; i >= 0; i-- {
		if d.scopes[i].uri == uri {
			return d.scopes[i].prefix, true
		}
	}
	return "", false
}

// structural resolves a recoverable structural anomaly: recorded as a
// warning by default, terminal in strict mode.
func (d *Decoder) structural(e StructuralMismatchError) error {
	if d.strict {
		return e
	}
	d.warnings = append(d.warnings, Warning{Offset: e.Offset, Line: e.Line, Msg: e.Error()})
	return nil
}

func (d *Decoder) warnf(off int, line uint32, format string, args ...any) {
	d.warnings = append(d.warnings, Warning{Offset: off, Line: line, Msg: fmt.Sprintf(format, args...)})
}

// isPlainTextXML reports whether the buffer opens like textual XML
// (optionally behind a UTF-8 byte-order mark). It is a heuristic, not
// a formal discriminator: the binary form's first chunk header can
// never begin with these byte sequences.
func isPlainTextXML(b []byte) bool {
	b = bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
	return bytes.HasPrefix(b, []byte("<?xml")) || bytes.HasPrefix(b, []byte("<manif"))
}
