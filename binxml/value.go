package binxml

import (
	"fmt"
	"math"
	"strconv"
)

// Radix multipliers for packed dimension/fraction values: the mantissa
// is stored shifted left by 8 and carries 0, 7, 15 or 23 fraction bits
// depending on the radix field.
var radixMults = [4]float64{
	1.0 / (1 << 8),
	1.0 / (1 << 15),
	1.0 / (1 << 23),
	1.0 / (1 << 31),
}

var dimensionUnits = [...]string{"px", "dp", "sp", "pt", "in", "mm"}

var fractionUnits = [...]string{"%", "%p"}

// formatValue renders one typed value as attribute text. off is the
// byte offset reported by string-index errors; the pool is consulted
// only for TypeString. Unrecognized type tags degrade to a raw hex
// rendering so future format revisions keep decoding.
func formatValue(pool *stringPool, off int, typ ValueType, data uint32) (string, error) {
	switch typ {
	case TypeNull:
		return "", nil
	case TypeReference:
		return fmt.Sprintf("@0x%08x", data), nil
	case TypeAttribute:
		return fmt.Sprintf("?0x%08x", data), nil
	case TypeString:
		return pool.get(off, data)
	case TypeFloat:
		return formatFloat(float64(math.Float32frombits(data)), 32), nil
	case TypeDimension:
		unit := data & 0xF
		if unit >= uint32(len(dimensionUnits)) {
			break
		}
		return formatFloat(complexValue(data), 64) + dimensionUnits[unit], nil
	case TypeFraction:
		unit := data & 0xF
		if unit >= uint32(len(fractionUnits)) {
			break
		}
		return formatFloat(complexValue(data)*100, 64) + fractionUnits[unit], nil
	case TypeIntDec:
		return strconv.FormatInt(int64(int32(data)), 10), nil
	case TypeIntHex:
		return fmt.Sprintf("0x%08x", data), nil
	case TypeBoolean:
		if data != 0 {
			return "true", nil
		}
		return "false", nil
	case TypeColorARGB8:
		return fmt.Sprintf("#%08x", data), nil
	case TypeColorRGB8:
		return fmt.Sprintf("#%06x", data&0x00FFFFFF), nil
	case TypeColorARGB4:
		return fmt.Sprintf("#%04x", nibbleColor(data, 4)), nil
	case TypeColorRGB4:
		return fmt.Sprintf("#%03x", nibbleColor(data, 3)), nil
	}
	return fmt.Sprintf("0x%08x", data), nil
}

// complexValue unpacks the mantissa of a dimension/fraction value. The
// mantissa occupies bits 8..31 as a signed quantity; the radix field in
// bits 4..5 selects how many of its bits are fractional.
func complexValue(data uint32) float64 {
	return float64(int32(data&0xFFFFFF00)) * radixMults[(data>>4)&0x3]
}

// nibbleColor packs the high nibble of each of the value's low n bytes
// into an n-digit color, undoing the byte-doubling that expanded a
// short #ARGB/#RGB literal to AARRGGBB storage.
func nibbleColor(data uint32, n int) uint32 {
	var out uint32
	for i := n - 1; i >= 0; i-- {
		out = out<<4 | (data>>(uint(i)*8+4))&0xF
	}
	return out
}

// formatFloat renders a float with the fewest digits that round-trip
// at the given bit size. Decimal notation throughout; manifest tools
// do not emit exponents.
func formatFloat(f float64, bits int) string {
	return strconv.FormatFloat(f, 'f', -1, bits)
}
