package binxml

// nodeHeader is the common prefix every XML node chunk carries after
// the chunk header: the source line number the node came from and an
// optional comment string.
type nodeHeader struct {
	line    uint32
	comment uint32 // pool index, or noEntry
}

// readNodeHeader reads the line/comment pair of a node chunk whose
// chunk header has already been read, then leaves the cursor at the
// start of the chunk body (honoring an oversized header_size).
func readNodeHeader(c *cursor, hdr chunkHeader, start int) (nodeHeader, error) {
	if hdr.headerSize < nodeHeaderSize {
		return nodeHeader{}, MalformedChunkError{Offset: start, Type: hdr.typ, Size: hdr.size, Reason: "header_size below the node minimum"}
	}
	var n nodeHeader
	var err error
	if n.line, err = c.readU32(); err != nil {
		return nodeHeader{}, err
	}
	if n.comment, err = c.readU32(); err != nil {
		return nodeHeader{}, err
	}
	if err = c.seek(start + int(hdr.headerSize)); err != nil {
		return nodeHeader{}, err
	}
	return n, nil
}

// nsNode is the body of a namespace start or end chunk: the prefix and
// URI pool indexes of one binding.
type nsNode struct {
	node   nodeHeader
	prefix uint32
	uri    uint32
}

func decodeNSNode(c *cursor, hdr chunkHeader, start int) (nsNode, error) {
	var ns nsNode
	var err error
	if ns.node, err = readNodeHeader(c, hdr, start); err != nil {
		return nsNode{}, err
	}
	if int(hdr.size)-int(hdr.headerSize) < 8 {
		return nsNode{}, MalformedChunkError{Offset: start, Type: hdr.typ, Size: hdr.size, Reason: "namespace body does not fit"}
	}
	if ns.prefix, err = c.readU32(); err != nil {
		return nsNode{}, err
	}
	if ns.uri, err = c.readU32(); err != nil {
		return nsNode{}, err
	}
	return ns, nil
}

// attribute is one attribute record of an element-start chunk.
type attribute struct {
	ns       uint32 // namespace URI pool index, or noEntry
	name     uint32
	rawValue uint32 // string value pool index, or noEntry
	typ      ValueType
	data     uint32
}

// elementStart is the body of an element-start chunk: the element's
// name/namespace and its attribute records in source order.
type elementStart struct {
	node  nodeHeader
	ns    uint32
	name  uint32
	attrs []attribute
}

func decodeElementStart(c *cursor, hdr chunkHeader, start int) (elementStart, error) {
	malformed := func(reason string) error {
		return MalformedChunkError{Offset: start, Type: hdr.typ, Size: hdr.size, Reason: reason}
	}

	var el elementStart
	var err error
	if el.node, err = readNodeHeader(c, hdr, start); err != nil {
		return elementStart{}, err
	}

	extStart := start + int(hdr.headerSize)
	end := start + int(hdr.size)
	if end-extStart < elementExtSize {
		return elementStart{}, malformed("element extension does not fit")
	}

	if el.ns, err = c.readU32(); err != nil {
		return elementStart{}, err
	}
	if el.name, err = c.readU32(); err != nil {
		return elementStart{}, err
	}
	var attrStart, attrSize, attrCount uint16
	if attrStart, err = c.readU16(); err != nil {
		return elementStart{}, err
	}
	if attrSize, err = c.readU16(); err != nil {
		return elementStart{}, err
	}
	if attrCount, err = c.readU16(); err != nil {
		return elementStart{}, err
	}
	// id/class/style attribute indexes; nothing in the textual form
	// uses them.
	if err = c.skip(6); err != nil {
		return elementStart{}, err
	}

	if attrCount == 0 {
		return el, nil
	}
	if attrSize < attributeSize {
		return elementStart{}, malformed("attribute_size below the record minimum")
	}
	attrsAt := extStart + int(attrStart)
	if attrsAt < extStart || attrsAt+int(attrCount)*int(attrSize) > end {
		return elementStart{}, malformed("attribute records do not fit")
	}

	el.attrs = make([]attribute, 0, attrCount)
	for i := 0; i < int(attrCount); i++ {
		if err = c.seek(attrsAt + i*int(attrSize)); err != nil {
			return elementStart{}, err
		}
		var a attribute
		if a.ns, err = c.readU32(); err != nil {
			return elementStart{}, err
		}
		if a.name, err = c.readU32(); err != nil {
			return elementStart{}, err
		}
		if a.rawValue, err = c.readU32(); err != nil {
			return elementStart{}, err
		}
		// Res_value: size u16, res0 u8, type u8, data u32.
		if err = c.skip(3); err != nil {
			return elementStart{}, err
		}
		var t uint8
		if t, err = c.readU8(); err != nil {
			return elementStart{}, err
		}
		a.typ = ValueType(t)
		if a.data, err = c.readU32(); err != nil {
			return elementStart{}, err
		}
		el.attrs = append(el.attrs, a)
	}
	return el, nil
}

// elementEnd is the body of an element-end chunk.
type elementEnd struct {
	node nodeHeader
	ns   uint32
	name uint32
}

func decodeElementEnd(c *cursor, hdr chunkHeader, start int) (elementEnd, error) {
	var el elementEnd
	var err error
	if el.node, err = readNodeHeader(c, hdr, start); err != nil {
		return elementEnd{}, err
	}
	if int(hdr.size)-int(hdr.headerSize) < 8 {
		return elementEnd{}, MalformedChunkError{Offset: start, Type: hdr.typ, Size: hdr.size, Reason: "element end body does not fit"}
	}
	if el.ns, err = c.readU32(); err != nil {
		return elementEnd{}, err
	}
	if el.name, err = c.readU32(); err != nil {
		return elementEnd{}, err
	}
	return el, nil
}

// cdataNode is the body of a character-data chunk: the text's pool
// index plus a typed-value mirror for non-string payloads.
type cdataNode struct {
	node nodeHeader
	data uint32 // pool index, or noEntry
	typ  ValueType
	val  uint32
}

func decodeCDATA(c *cursor, hdr chunkHeader, start int) (cdataNode, error) {
	var cd cdataNode
	var err error
	if cd.node, err = readNodeHeader(c, hdr, start); err != nil {
		return cdataNode{}, err
	}
	if int(hdr.size)-int(hdr.headerSize) < 12 {
		return cdataNode{}, MalformedChunkError{Offset: start, Type: hdr.typ, Size: hdr.size, Reason: "cdata body does not fit"}
	}
	if cd.data, err = c.readU32(); err != nil {
		return cdataNode{}, err
	}
	if err = c.skip(3); err != nil {
		return cdataNode{}, err
	}
	var t uint8
	if t, err = c.readU8(); err != nil {
		return cdataNode{}, err
	}
	cd.typ = ValueType(t)
	if cd.val, err = c.readU32(); err != nil {
		return cdataNode{}, err
	}
	return cd, nil
}
