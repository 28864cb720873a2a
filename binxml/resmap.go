package binxml

// resourceMap is the optional chunk translating attribute-name pool
// indexes to Android resource IDs: ids[i] is the resource ID of the
// attribute whose name sits at pool index i.
type resourceMap struct {
	ids []uint32
}

// id returns the resource ID mapped to pool index i.
func (m resourceMap) id(i uint32) (uint32, bool) {
	if i >= uint32(len(m.ids)) {
		return 0, false
	}
	return m.ids[i], true
}

// decodeResourceMap decodes a resource-map chunk whose header has
// already been read: the body is a flat array of u32 resource IDs.
func decodeResourceMap(c *cursor, hdr chunkHeader, start int) (resourceMap, error) {
	body := int(hdr.size) - int(hdr.headerSize)
	if body%4 != 0 {
		return resourceMap{}, MalformedChunkError{Offset: start, Type: hdr.typ, Size: hdr.size, Reason: "body is not a whole number of resource IDs"}
	}
	if err := c.seek(start + int(hdr.headerSize)); err != nil {
		return resourceMap{}, err
	}
	ids := make([]uint32, 0, body/4)
	for i := 0; i < body/4; i++ {
		v, err := c.readU32()
		if err != nil {
			return resourceMap{}, err
		}
		ids = append(ids, v)
	}
	return resourceMap{ids: ids}, nil
}
